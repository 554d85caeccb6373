package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestLoadWithMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "linker.db", cfg.Database.Path)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("LINKER_DB_PATH", "/tmp/custom.db")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LINKER_RETENTION_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Retention.Enabled)
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "verbose"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroMaxOpenConns(t *testing.T) {
	cfg := Default()
	cfg.Database.MaxOpenConns = 0
	require.Error(t, cfg.Validate())
}

func TestLoadAppliesDatabaseURLAndPoolVars(t *testing.T) {
	t.Setenv("DATABASE_URL", "/tmp/primary.db")
	t.Setenv("DB_POOL_MIN_SIZE", "3")
	t.Setenv("DB_POOL_MAX_SIZE", "12")
	t.Setenv("DB_POOL_TIMEOUT", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/primary.db", cfg.Database.Path)
	assert.Equal(t, 3, cfg.Database.MaxIdleConns)
	assert.Equal(t, 12, cfg.Database.MaxOpenConns)
	assert.Equal(t, 7*time.Second, cfg.Database.ConnectTimeout)
}

func TestEnvProductionFlipsLogDefaults(t *testing.T) {
	t.Setenv("ENV", "production")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Log.ToFile)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestExplicitLogVarsWinOverEnvFlip(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.Log.Format)
}
