package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"proxichat/broker/internal/database"
	"proxichat/broker/internal/queue"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// QueueInspectOptions holds flags for the queue inspect command.
type QueueInspectOptions struct {
	*RootOptions
	Path string
	User string
}

// NewQueueCommand groups the offline queue maintenance commands.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Work with the durable offline queue",
	}
	cmd.AddCommand(NewQueueInspectCommand(rootOpts))
	return cmd
}

// NewQueueInspectCommand creates the queue inspect command.
func NewQueueInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueueInspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List pending offline messages without delivering them",
		Long: `List the messages waiting in the Badger offline queue. Nothing is
removed; users still receive them on their next fetch. The server must be
stopped first since Badger allows a single process per directory.

Example:
  broker queue inspect --path ./data/badger
  broker queue inspect --path ./data/badger --user 7c9e6679-7425-40de-944b-e07fc1f90ae7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueInspect(opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Path, "path", defaultBadgerPath(), "Badger directory (defaults to BADGER_PATH)")
	cmd.Flags().StringVar(&opts.User, "user", "", "only list messages queued for this user ID")

	return cmd
}

func defaultBadgerPath() string {
	if path := os.Getenv("BADGER_PATH"); path != "" {
		return path
	}
	return "./data/badger"
}

func runQueueInspect(opts *QueueInspectOptions, out io.Writer) error {
	userID := uuid.Nil
	if opts.User != "" {
		id, err := uuid.Parse(opts.User)
		if err != nil {
			return fmt.Errorf("invalid --user %q: %w", opts.User, err)
		}
		userID = id
	}

	level := slog.LevelWarn
	if strings.EqualFold(opts.LogLevel, "debug") {
		level = slog.LevelDebug
	}
	db, err := database.OpenBadger(opts.Path, logs.GetLoggerFromLevel(level))
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := queue.Inspect(db, userID)
	if err != nil {
		return fmt.Errorf("inspect queue: %w", err)
	}

	renderEntries(out, entries)
	return nil
}

func renderEntries(out io.Writer, entries []queue.Entry) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Receiver", "Message ID", "Sender", "Timestamp", "Content"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, e := range entries {
		table.Append([]string{
			e.UserID.String(),
			e.Message.ID.String(),
			e.Message.SenderID.String(),
			e.Message.Timestamp.Format(time.RFC3339),
			strconv.Quote(truncate(e.Message.Content, 40)),
		})
	}
	table.Render()

	fmt.Fprintf(out, "%d pending message(s)\n", len(entries))
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
