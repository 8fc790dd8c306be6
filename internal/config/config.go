// Package config provides configuration utilities for the application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/spareflow/spareflow/internal/common"
)

// Config holds the resolved application configuration.
type Config struct {
	DatabasePath   string
	LogLevel       string
	LogFormat      string
	SweepThreshold decimal.Decimal
}

// Load assembles the configuration with this precedence:
// 1. Viper configuration (from config file or SPAREFLOW_ env vars)
// 2. Direct environment variables
// 3. Default values
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath: defaultDatabasePath(),
		LogLevel:     "info",
		LogFormat:    "console",
	}

	if v := viper.GetString("database.path"); v != "" {
		cfg.DatabasePath = ExpandPath(v)
	}
	if v := viper.GetString("log.level"); v != "" {
		cfg.LogLevel = v
	}
	if v := viper.GetString("log.format"); v != "" {
		cfg.LogFormat = v
	}

	if v := viper.GetString("roundup.sweep_threshold"); v != "" {
		threshold, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: roundup.sweep_threshold %q: %v", common.ErrInvalidConfig, v, err)
		}
		if !threshold.IsPositive() {
			return nil, fmt.Errorf("%w: roundup.sweep_threshold must be positive", common.ErrInvalidConfig)
		}
		cfg.SweepThreshold = threshold
	}

	if cfg.DatabasePath == "" {
		return nil, fmt.Errorf("%w: database path", common.ErrMissingConfig)
	}

	return cfg, nil
}

// ExpandPath expands a leading ~ and $VAR environment references in a path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}

// defaultDatabasePath returns the XDG-style default database location.
func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "spareflow.db"
	}
	return filepath.Join(home, ".local", "share", "spareflow", "spareflow.db")
}
