// Package config reads the broker settings from the environment.
package config

import (
	"fmt"
	"time"

	"proxichat/broker/internal/history"
	"proxichat/broker/internal/queue"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const inMemorySQLite = "file::memory:?cache=shared"

type Config struct {
	Port           int    `env:"PORT,default=8080" validate:"gt=0,lte=65535"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=*"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`

	// Authentication is disabled while JWTSecret is empty
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=24h" validate:"gt=0"`

	DefaultRadius  float64 `env:"DEFAULT_RADIUS,default=1000" validate:"gte=0"`
	QueueBackend   string  `env:"QUEUE_BACKEND,default=memory" validate:"oneof=memory badger"`
	HistoryBackend string  `env:"HISTORY_BACKEND,default=memory" validate:"oneof=memory badger"`
	BadgerPath     string  `env:"BADGER_PATH,default=./data/badger"`

	// Postgres is used when DatabaseURL is set, SQLite otherwise
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
	SendBuffer      int           `env:"SEND_BUFFER,default=256" validate:"gt=0"`
}

// Load reads an optional .env file, then the process environment
func Load() (Config, error) {
	// a missing .env file is fine, real deployments set the environment directly
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnvSet decodes cfg from an explicit set of variables
func FromEnvSet(es env.EnvSet) (Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// AuthEnabled reports whether requests must carry a token
func (c Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// NeedsBadger reports whether any store runs on Badger
func (c Config) NeedsBadger() bool {
	return c.QueueBackend == queue.BackendBadger || c.HistoryBackend == history.BackendBadger
}

// SQLiteDSN returns SQLitePath, or a shared in-memory database when unset
func (c Config) SQLiteDSN() string {
	if c.SQLitePath == "" {
		return inMemorySQLite
	}
	return c.SQLitePath
}

// Addr is the listen address of the HTTP server
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
