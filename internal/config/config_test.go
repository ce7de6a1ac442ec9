package config

import (
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestFromEnvSet_Defaults(t *testing.T) {
	req := require.New(t)

	cfg, err := FromEnvSet(env.EnvSet{})

	req.NoError(err)
	req.Equal(8080, cfg.Port)
	req.Equal(":8080", cfg.Addr())
	req.Equal("*", cfg.AllowedOrigins)
	req.Equal("INFO", cfg.LogLevel)
	req.Equal(24*time.Hour, cfg.TokenTTL)
	req.Equal(1000.0, cfg.DefaultRadius)
	req.Equal("memory", cfg.QueueBackend)
	req.Equal("memory", cfg.HistoryBackend)
	req.Equal("file::memory:?cache=shared", cfg.SQLiteDSN())
	req.Equal(10*time.Second, cfg.ShutdownTimeout)
	req.Equal(256, cfg.SendBuffer)
	req.False(cfg.AuthEnabled())
	req.False(cfg.NeedsBadger())
}

func TestFromEnvSet_Overrides(t *testing.T) {
	req := require.New(t)

	cfg, err := FromEnvSet(env.EnvSet{
		"PORT":            "9090",
		"JWT_SECRET":      "s3cret",
		"QUEUE_BACKEND":   "badger",
		"DEFAULT_RADIUS":  "250.5",
		"TOKEN_TTL":       "1h",
		"LOG_LEVEL":       "DEBUG",
		"HISTORY_BACKEND": "memory",
	})

	req.NoError(err)
	req.Equal(9090, cfg.Port)
	req.True(cfg.AuthEnabled())
	req.True(cfg.NeedsBadger())
	req.Equal(250.5, cfg.DefaultRadius)
	req.Equal(time.Hour, cfg.TokenTTL)
}

func TestFromEnvSet_RejectsInvalidValues(t *testing.T) {
	tests := map[string]env.EnvSet{
		"unknown queue backend":   {"QUEUE_BACKEND": "redis"},
		"unknown history backend": {"HISTORY_BACKEND": "postgres"},
		"negative radius":         {"DEFAULT_RADIUS": "-1"},
		"unknown log level":       {"LOG_LEVEL": "TRACE"},
		"zero send buffer":        {"SEND_BUFFER": "0"},
		"port is not a number":    {"PORT": "http"},
	}

	for name, es := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnvSet(es)
			require.Error(t, err)
		})
	}
}
