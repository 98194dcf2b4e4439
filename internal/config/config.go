package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr  string     `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"json"`

	StoreDriver  string        `env:"STORE_DRIVER" envDefault:"sqlite"`
	DBPath       string        `env:"DB_PATH" envDefault:"data/scoreboard.db"`
	DatabaseURL  string        `env:"DATABASE_URL"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	KeepAliveInterval time.Duration `env:"KEEPALIVE_INTERVAL" envDefault:"15s"`
	SubscriberBuffer  int           `env:"SUBSCRIBER_BUFFER" envDefault:"16"`

	RedisURL     string `env:"REDIS_URL"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"scoreboard:match"`

	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
	StaticDir   string   `env:"STATIC_DIR"`
	SeedDemo    bool     `env:"SEED_DEMO" envDefault:"false"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want sqlite or postgres)", c.StoreDriver)
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q (want json or text)", c.LogFormat)
	}

	if c.SubscriberBuffer < 1 {
		return errors.New("SUBSCRIBER_BUFFER must be at least 1")
	}
	if c.KeepAliveInterval <= 0 {
		return errors.New("KEEPALIVE_INTERVAL must be positive")
	}
	return nil
}
