// Package config loads habitlog settings from HABITLOG_* environment
// variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/phillip-england/habitlog/internal/eventlog"
)

type Config struct {
	Env        string `env:"HABITLOG_ENV" envDefault:"development"`
	LogLevel   string `env:"HABITLOG_LOG_LEVEL" envDefault:"info"`
	APIAddr    string `env:"HABITLOG_API_ADDR" envDefault:":8080"`
	ClientAddr string `env:"HABITLOG_CLIENT_ADDR" envDefault:":3000"`
	APIBaseURL string `env:"HABITLOG_API_BASE_URL" envDefault:"http://localhost:8080"`

	// Storage
	Backend      string `env:"HABITLOG_BACKEND" envDefault:"csv"`
	DataDir      string `env:"HABITLOG_DATA_DIR" envDefault:"./data"`
	WorkbookPath string `env:"HABITLOG_WORKBOOK_PATH" envDefault:"./data/habitlog.xlsx"`
	SQLitePath   string `env:"HABITLOG_SQLITE_PATH" envDefault:"./data/habitlog.db"`
	RedisURL     string `env:"HABITLOG_REDIS_URL"`
	RedisPrefix  string `env:"HABITLOG_REDIS_PREFIX" envDefault:"habitlog:"`

	// Empty means the process local zone.
	Timezone        string        `env:"HABITLOG_TIMEZONE"`
	InhalerCooldown time.Duration `env:"HABITLOG_INHALER_COOLDOWN" envDefault:"8h"`
	HistoryLimit    int           `env:"HABITLOG_HISTORY_LIMIT" envDefault:"20"`

	CSRFKey string `env:"HABITLOG_CSRF_KEY"`

	// host:port values, e.g. "localhost:3000"
	CSRFTrustedOrigins []string `env:"HABITLOG_CSRF_TRUSTED_ORIGINS" envSeparator:","`
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("HABITLOG_TIMEZONE: %w", err)
	}
	return loc, nil
}

func (c Config) Storage() eventlog.BackendConfig {
	return eventlog.BackendConfig{
		Backend:      c.Backend,
		DataDir:      c.DataDir,
		WorkbookPath: c.WorkbookPath,
		SQLitePath:   c.SQLitePath,
		RedisURL:     c.RedisURL,
		RedisPrefix:  c.RedisPrefix,
	}
}

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load parses the process environment.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom parses vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch strings.ToLower(c.Backend) {
	case eventlog.BackendCSV, eventlog.BackendWorkbook, eventlog.BackendSQLite:
	case eventlog.BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("HABITLOG_REDIS_URL is required when HABITLOG_BACKEND=redis")
		}
	default:
		return fmt.Errorf("HABITLOG_BACKEND must be csv, workbook, sqlite or redis, got %q", c.Backend)
	}
	if c.InhalerCooldown <= 0 {
		return fmt.Errorf("HABITLOG_INHALER_COOLDOWN must be positive, got %s", c.InhalerCooldown)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("HABITLOG_HISTORY_LIMIT must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
