package cli

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"proxichat/broker/internal/database"
	"proxichat/broker/internal/models"
	"proxichat/broker/internal/queue"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, path := range [][]string{{"serve"}, {"queue"}, {"queue", "inspect"}} {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}

	require.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}

func TestQueueInspect_ListsWithoutDraining(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()
	log := logs.GetLoggerFromLevel(slog.LevelError)
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	// Given two messages waiting for bob and one for carol
	db, err := database.OpenBadger(dir, log)
	req.NoError(err)
	q, err := queue.NewBadgerQueue(db, log)
	req.NoError(err)
	req.NoError(q.Enqueue(ctx, models.NewMessage(alice, bob, "first for bob"), bob))
	req.NoError(q.Enqueue(ctx, models.NewMessage(alice, bob, "second for bob"), bob))
	req.NoError(q.Enqueue(ctx, models.NewMessage(alice, carol, "for carol"), carol))
	req.NoError(q.Close())
	req.NoError(db.Close())

	// When inspecting bob's queue
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"queue", "inspect", "--path", dir, "--user", bob.String()})
	req.NoError(cmd.Execute())

	// Then only bob's messages are listed
	req.Contains(out.String(), "first for bob")
	req.Contains(out.String(), "second for bob")
	req.NotContains(out.String(), "for carol")
	req.Contains(out.String(), "2 pending message(s)")

	// And they are still there afterwards
	out.Reset()
	cmd = NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"queue", "inspect", "--path", dir})
	req.NoError(cmd.Execute())
	req.Contains(out.String(), "3 pending message(s)")
}

func TestQueueInspect_RejectsInvalidUser(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"queue", "inspect", "--path", t.TempDir(), "--user", "bob"})

	require.Error(t, cmd.Execute())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestLoadServeConfig_ValidatesLogLevelOverride(t *testing.T) {
	req := require.New(t)
	t.Setenv("LOG_LEVEL", "INFO")

	cfg, err := loadServeConfig(&RootOptions{LogLevel: "debug"})
	req.NoError(err)
	req.Equal("DEBUG", cfg.LogLevel)

	_, err = loadServeConfig(&RootOptions{LogLevel: "verbose"})
	req.ErrorContains(err, "LogLevel")
}

func TestServe_RejectsInvalidLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "INFO")
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"serve", "--log-level", "verbose"})

	require.Error(t, cmd.Execute())
}
