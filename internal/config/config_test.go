package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.DatabasePath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.True(t, cfg.SweepThreshold.IsZero(), "unset threshold defers to the engine default")
}

func TestLoad_FromViper(t *testing.T) {
	viper.Reset()
	viper.Set("database.path", "/tmp/spareflow-test.db")
	viper.Set("log.level", "debug")
	viper.Set("log.format", "json")
	viper.Set("roundup.sweep_threshold", "25.00")
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/spareflow-test.db", cfg.DatabasePath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.SweepThreshold.Equal(decimal.RequireFromString("25.00")))
}

func TestLoad_InvalidThreshold(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("roundup.sweep_threshold", "not-a-number")
	_, err := Load()
	assert.Error(t, err)

	viper.Set("roundup.sweep_threshold", "-5.00")
	_, err = Load()
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Setenv("SPAREFLOW_TEST_DIR", "/var/data")

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{"empty", "", ""},
		{"bare tilde", "~", home},
		{"tilde prefix", "~/spareflow.db", filepath.Join(home, "spareflow.db")},
		{"env var", "$SPAREFLOW_TEST_DIR/spareflow.db", "/var/data/spareflow.db"},
		{"plain path", "/opt/spareflow.db", "/opt/spareflow.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExpandPath(tt.path))
		})
	}
}
