// Package config loads server configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig is the fully resolved server configuration.
type AppConfig struct {
	ListenAddr string

	DefaultStartMinutes     int
	DefaultIncrementSeconds int
	TickInterval            time.Duration

	PresetsFile string

	// Optional result archive. Both empty means the archive is disabled.
	RedisURL    string
	DatabaseURL string

	ShutdownTimeout time.Duration
}

// Load reads the environment and applies defaults. It never fails on a
// missing optional value; malformed numbers fall back to defaults.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:              ":8080",
		DefaultStartMinutes:     15,
		DefaultIncrementSeconds: 10,
		TickInterval:            100 * time.Millisecond,
		ShutdownTimeout:         10 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("DEFAULT_START_MINUTES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DefaultStartMinutes = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("DEFAULT_INCREMENT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.DefaultIncrementSeconds = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("TICK_INTERVAL_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TickInterval = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("SHUTDOWN_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ShutdownTimeout = time.Duration(n) * time.Second
		}
	}

	cfg.PresetsFile = strings.TrimSpace(os.Getenv("PRESETS_FILE"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	return cfg, nil
}

// DefaultInitial is the starting time per side when a client supplies no
// time control.
func (c *AppConfig) DefaultInitial() time.Duration {
	return time.Duration(c.DefaultStartMinutes) * time.Minute
}

// DefaultIncrement is the per-move increment when a client supplies none.
func (c *AppConfig) DefaultIncrement() time.Duration {
	return time.Duration(c.DefaultIncrementSeconds) * time.Second
}
