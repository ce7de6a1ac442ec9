package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"proxichat/broker/internal/config"
	"proxichat/broker/internal/server"

	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the broker HTTP and websocket server",
		Long: `Run the broker. Settings come from the environment, optionally
preloaded from a .env file in the working directory.

Example:
  PORT=8080 QUEUE_BACKEND=badger broker serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
}

// loadServeConfig reads the environment and applies the command line
// overrides, validating the result again.
func loadServeConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = strings.ToUpper(opts.LogLevel)
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

func runServe(parent context.Context, opts *RootOptions) error {
	cfg, err := loadServeConfig(opts)
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, log)
	defer func() {
		log.Info("Closing stores...")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("Error closing stores", "error", closeErr)
		}
	}()
	if err != nil {
		return err
	}

	if err := srv.Run(ctx); err != nil {
		return err
	}
	log.Info("Server stopped gracefully")
	return nil
}
