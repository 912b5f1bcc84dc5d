package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config represents the application configuration.
// Values come from the environment, optionally seeded by a .env file.
type Config struct {
	Daemon  DaemonConfig
	Feed    FeedConfig
	Sandbox SandboxConfig
	Logging LoggingConfig
}

type DaemonConfig struct {
	URL         string        `env:"DAEMON_URL"   envDefault:"http://localhost:8000"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
}

type FeedConfig struct {
	Path              string        `env:"FEED_PATH"               envDefault:"/feed"`
	Transport         string        `env:"FEED_TRANSPORT"          envDefault:"sse"`
	ReconnectInitial  time.Duration `env:"FEED_RECONNECT_INITIAL"  envDefault:"1s"`
	ReconnectMax      time.Duration `env:"FEED_RECONNECT_MAX"      envDefault:"30s"`
	ReconnectAttempts int           `env:"FEED_RECONNECT_ATTEMPTS" envDefault:"10"`
}

type SandboxConfig struct {
	Port           string        `env:"SANDBOX_PORT"            envDefault:"8000"`
	AllowedOrigins []string      `env:"SANDBOX_ALLOWED_ORIGINS" envSeparator:","`
	KeepAlive      time.Duration `env:"SANDBOX_KEEPALIVE"       envDefault:"30s"`
	TickInterval   time.Duration `env:"SANDBOX_TICK_INTERVAL"   envDefault:"2s"`
}

type LoggingConfig struct {
	Level         string `env:"LOG_LEVEL"            envDefault:"info"`
	Format        string `env:"LOG_FORMAT"           envDefault:"pretty"`
	FileEnabled   bool   `env:"LOG_FILE_ENABLED"     envDefault:"false"`
	FilePath      string `env:"LOG_FILE_PATH"        envDefault:"./logs"`
	RotationSize  int    `env:"LOG_ROTATION_SIZE_MB" envDefault:"100"`
	RetentionDays int    `env:"LOG_RETENTION_DAYS"   envDefault:"7"`
}

// Load loads configuration from .env (if present) and the environment
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.Daemon.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid DAEMON_URL %q", c.Daemon.URL)
	}
	switch c.Feed.Transport {
	case "sse", "ws":
	default:
		return fmt.Errorf("invalid FEED_TRANSPORT %q: want sse or ws", c.Feed.Transport)
	}
	if c.Feed.ReconnectAttempts < 0 {
		return fmt.Errorf("invalid FEED_RECONNECT_ATTEMPTS %d", c.Feed.ReconnectAttempts)
	}
	return nil
}

// FeedURL returns the push feed URL for the configured transport
func (c *Config) FeedURL() string {
	base := strings.TrimRight(c.Daemon.URL, "/")
	path := "/" + strings.TrimLeft(c.Feed.Path, "/")

	if c.Feed.Transport == "ws" {
		switch {
		case strings.HasPrefix(base, "https://"):
			base = "wss://" + strings.TrimPrefix(base, "https://")
		case strings.HasPrefix(base, "http://"):
			base = "ws://" + strings.TrimPrefix(base, "http://")
		}
		path = strings.TrimRight(path, "/") + "/ws"
	}
	return base + path
}
