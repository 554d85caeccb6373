// Package config loads linker configuration from environment variables, with
// an optional YAML file overlay for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig controls the SQLite-backed connection pool.
type DatabaseConfig struct {
	Path           string        `yaml:"path"`
	MaxOpenConns   int           `yaml:"max_open_conns"`
	MaxIdleConns   int           `yaml:"max_idle_conns"`
	ConnMaxIdle    time.Duration `yaml:"conn_max_idle"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	MigrationLock  string        `yaml:"migration_lock_path"`
}

// CacheConfig controls the unified cache layer.
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	DefaultTTL     time.Duration `yaml:"default_ttl"`
}

// RetentionConfig controls the scheduled permanent-delete job.
type RetentionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	OlderThanDays  int           `yaml:"older_than_days"`
	MasteryFloor   float64       `yaml:"mastery_floor"`
	MistakeCeiling int           `yaml:"mistake_ceiling"`
	Cron           string        `yaml:"cron"`
	DryRun         bool          `yaml:"dry_run"`
}

// DailyLimitConfig controls the default daily-limit governor behavior.
type DailyLimitConfig struct {
	DefaultLimit     int  `yaml:"default_limit"`
	EnabledByDefault bool `yaml:"enabled_by_default"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level        string `yaml:"level"`
	Dir          string `yaml:"dir"`
	Format       string `yaml:"format"` // "text" or "json"
	ToConsole    bool   `yaml:"to_console"`
	ToFile       bool   `yaml:"to_file"`
	RotateDaily  bool   `yaml:"rotate_daily"`
	MaxBytes     int64  `yaml:"max_bytes"`
	BackupCount  int    `yaml:"backup_count"`
}

// Config is the top-level linker configuration.
type Config struct {
	Database   DatabaseConfig    `yaml:"database"`
	Cache      CacheConfig       `yaml:"cache"`
	Retention  RetentionConfig   `yaml:"retention"`
	DailyLimit DailyLimitConfig  `yaml:"daily_limit"`
	Log        LogConfig         `yaml:"log"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:           "linker.db",
			MaxOpenConns:   20, // DB_POOL_MAX_SIZE default
			MaxIdleConns:   5,  // DB_POOL_MIN_SIZE default
			ConnMaxIdle:    5 * time.Minute,
			ConnectTimeout: 10 * time.Second, // DB_POOL_TIMEOUT default
			MigrationLock:  "linker.db.migrate.lock",
		},
		Cache: CacheConfig{
			Enabled:       true,
			SweepInterval: 5 * time.Minute,
			DefaultTTL:    300 * time.Second,
		},
		Retention: RetentionConfig{
			Enabled:        true,
			OlderThanDays:  30,
			MasteryFloor:   0.3,
			MistakeCeiling: 5,
			Cron:           "0 3 * * *",
			DryRun:         false,
		},
		DailyLimit: DailyLimitConfig{
			DefaultLimit:     15,
			EnabledByDefault: false,
		},
		Log: LogConfig{
			Level:       "info",
			Dir:         "logs",
			Format:      "text",
			ToConsole:   true,
			ToFile:      false,
			RotateDaily: true,
			MaxBytes:    10 * 1024 * 1024,
			BackupCount: 5,
		},
	}
}

// Load builds configuration from process environment variables, optionally
// overlaid with a YAML file when path is non-empty. Environment variables
// always take precedence over the YAML file; the file only fills in values
// the environment leaves unset.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// DATABASE_URL is the canonical DSN variable; LINKER_DB_PATH remains as
	// a secondary override for local-dev convenience (set after, so
	// DATABASE_URL is the one product clients are expected to set).
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LINKER_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := envInt("DB_POOL_MIN_SIZE"); v != nil {
		cfg.Database.MaxIdleConns = *v
	}
	if v := envInt("DB_POOL_MAX_SIZE"); v != nil {
		cfg.Database.MaxOpenConns = *v
	}
	if v := envInt("DB_POOL_TIMEOUT"); v != nil {
		cfg.Database.ConnectTimeout = time.Duration(*v) * time.Second
	}
	if v := envInt("LINKER_DB_MAX_OPEN_CONNS"); v != nil {
		cfg.Database.MaxOpenConns = *v
	}
	if v := envInt("LINKER_DB_MAX_IDLE_CONNS"); v != nil {
		cfg.Database.MaxIdleConns = *v
	}
	if v := envDuration("LINKER_DB_CONNECT_TIMEOUT"); v != nil {
		cfg.Database.ConnectTimeout = *v
	}
	if v := envBool("LINKER_CACHE_ENABLED"); v != nil {
		cfg.Cache.Enabled = *v
	}
	if v := envDuration("LINKER_CACHE_SWEEP_INTERVAL"); v != nil {
		cfg.Cache.SweepInterval = *v
	}
	if v := envBool("LINKER_RETENTION_ENABLED"); v != nil {
		cfg.Retention.Enabled = *v
	}
	if v := envInt("LINKER_RETENTION_OLDER_THAN_DAYS"); v != nil {
		cfg.Retention.OlderThanDays = *v
	}
	if v := os.Getenv("LINKER_RETENTION_CRON"); v != "" {
		cfg.Retention.Cron = v
	}
	if v := envBool("LINKER_RETENTION_DRY_RUN"); v != nil {
		cfg.Retention.DryRun = *v
	}
	if v := envInt("LINKER_DAILY_LIMIT_DEFAULT"); v != nil {
		cfg.DailyLimit.DefaultLimit = *v
	}
	if v := envBool("LINKER_DAILY_LIMIT_ENABLED_BY_DEFAULT"); v != nil {
		cfg.DailyLimit.EnabledByDefault = *v
	}
	// ENV flips log defaults before the LOG_* overrides below are applied,
	// so an explicit LOG_* var always wins over ENV's blanket default.
	switch strings.ToLower(os.Getenv("ENV")) {
	case "production":
		cfg.Log.Format = "json"
		cfg.Log.ToFile = true
		cfg.Log.Level = "warn"
	case "development":
		cfg.Log.Format = "text"
		cfg.Log.Level = "info"
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_DIR"); v != "" {
		cfg.Log.Dir = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	if v := envBool("LOG_TO_CONSOLE"); v != nil {
		cfg.Log.ToConsole = *v
	}
	if v := envBool("LOG_TO_FILE"); v != nil {
		cfg.Log.ToFile = *v
	}
	if v := envBool("LOG_ROTATE_DAILY"); v != nil {
		cfg.Log.RotateDaily = *v
	}
	if v := envInt64("LOG_MAX_BYTES"); v != nil {
		cfg.Log.MaxBytes = *v
	}
	if v := envInt("LOG_BACKUP_COUNT"); v != nil {
		cfg.Log.BackupCount = *v
	}
}

func envInt(key string) *int {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func envInt64(key string) *int64 {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func envBool(key string) *bool {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b := v == "true" || v == "1"
	return &b
}

func envDuration(key string) *time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return nil
	}
	return &d
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path cannot be empty")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0, got %d", c.Database.MaxOpenConns)
	}
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log.level %q, must be one of: trace, debug, info, warn, error", c.Log.Level)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log.format %q, must be one of: text, json", c.Log.Format)
	}
	if c.Retention.OlderThanDays < 0 {
		return fmt.Errorf("retention.older_than_days must be >= 0, got %d", c.Retention.OlderThanDays)
	}
	if c.DailyLimit.DefaultLimit <= 0 {
		return fmt.Errorf("daily_limit.default_limit must be > 0, got %d", c.DailyLimit.DefaultLimit)
	}
	return nil
}
