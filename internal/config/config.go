// Package config loads process configuration from REIM_* environment
// variables and builds the logger and default store options from it.
// Command-line flags override the loaded values.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/IniZio/reim/internal/store"
)

// Config holds process-wide settings.
type Config struct {
	LogLevel  string `env:"REIM_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"REIM_LOG_FORMAT" envDefault:"text"`

	// DevtoolsURL is the hub a store connects to. Empty disables the
	// debugger bridge.
	DevtoolsURL     string        `env:"REIM_DEVTOOLS_URL"`
	DevtoolsTimeout time.Duration `env:"REIM_DEVTOOLS_TIMEOUT" envDefault:"5s"`

	// DevtoolsAddr is where `reim devtools` listens.
	DevtoolsAddr string `env:"REIM_DEVTOOLS_ADDR" envDefault:"127.0.0.1:8000"`

	// MetricsAddr serves /metrics on a separate listener. Empty serves
	// it next to the hub.
	MetricsAddr string `env:"REIM_METRICS_ADDR"`

	Reentrancy      string `env:"REIM_REENTRANCY"       envDefault:"queue"`
	IsolateHandlers bool   `env:"REIM_ISOLATE_HANDLERS"`
}

var validLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Load parses the process environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFrom is Load over an explicit environment instead of os.Environ.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error

	if _, ok := validLevels[strings.ToLower(c.LogLevel)]; !ok {
		errs = append(errs, fmt.Errorf("invalid log level %q (want debug, info, warn or error)", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q (want text or json)", c.LogFormat))
	}
	if _, err := store.ParseReentrancy(c.Reentrancy); err != nil {
		errs = append(errs, err)
	}
	if c.DevtoolsTimeout <= 0 {
		errs = append(errs, fmt.Errorf("devtools timeout must be positive, got %s", c.DevtoolsTimeout))
	}
	if c.DevtoolsURL != "" && !strings.HasPrefix(c.DevtoolsURL, "ws://") && !strings.HasPrefix(c.DevtoolsURL, "wss://") {
		errs = append(errs, fmt.Errorf("devtools url %q must use ws:// or wss://", c.DevtoolsURL))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Level returns the configured slog level, info if unset or invalid.
func (c Config) Level() slog.Level {
	if lvl, ok := validLevels[strings.ToLower(c.LogLevel)]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// NewLogger builds a text or JSON logger writing to w.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// StoreOptions returns the store options implied by the configuration.
func (c Config) StoreOptions(logger *slog.Logger) []store.Option {
	policy, err := store.ParseReentrancy(c.Reentrancy)
	if err != nil {
		policy = store.ReentrancyQueue
	}

	opts := []store.Option{
		store.WithReentrancy(policy),
		store.WithHandlerIsolation(c.IsolateHandlers),
	}
	if logger != nil {
		opts = append(opts, store.WithLogger(logger))
	}
	return opts
}
