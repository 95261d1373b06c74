package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults, and
// validates the result. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides of the form MERIDIAN_SECTION_FIELD
// (e.g., MERIDIAN_SERVER_LISTEN_ADDRESS). Environment variables always take
// precedence over file values.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("MERIDIAN_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	overrideDuration("MERIDIAN_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	overrideDuration("MERIDIAN_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	overrideDuration("MERIDIAN_SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	overrideDuration("MERIDIAN_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	overrideInt("MERIDIAN_SERVER_MAX_HEADER_BYTES", &cfg.Server.MaxHeaderBytes)

	if val := os.Getenv("MERIDIAN_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("MERIDIAN_STORAGE_SQLITE_PATH"); val != "" {
		cfg.Storage.SQLite.Path = val
	}
	if val := os.Getenv("MERIDIAN_STORAGE_SQLITE_DRIVER"); val != "" {
		cfg.Storage.SQLite.Driver = val
	}
	overrideInt("MERIDIAN_STORAGE_SQLITE_MAX_OPEN_CONNS", &cfg.Storage.SQLite.MaxOpenConns)
	overrideInt("MERIDIAN_STORAGE_SQLITE_MAX_IDLE_CONNS", &cfg.Storage.SQLite.MaxIdleConns)
	overrideBool("MERIDIAN_STORAGE_SQLITE_WAL_MODE", &cfg.Storage.SQLite.WALMode)
	overrideDuration("MERIDIAN_STORAGE_SQLITE_BUSY_TIMEOUT", &cfg.Storage.SQLite.BusyTimeout)

	overrideDuration("MERIDIAN_CACHE_TTL", &cfg.Cache.TTL)
	overrideDuration("MERIDIAN_CACHE_CLEANUP_INTERVAL", &cfg.Cache.CleanupInterval)

	overrideBool("MERIDIAN_DRIFT_ENABLED", &cfg.Drift.Enabled)
	if val := os.Getenv("MERIDIAN_DRIFT_SOURCE_PATH"); val != "" {
		cfg.Drift.SourcePath = val
	}
	if val := os.Getenv("MERIDIAN_DRIFT_SCHEDULE"); val != "" {
		cfg.Drift.Schedule = val
	}
	overrideBool("MERIDIAN_DRIFT_WATCH", &cfg.Drift.Watch)

	if val := os.Getenv("MERIDIAN_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("MERIDIAN_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	overrideBool("MERIDIAN_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	if val := os.Getenv("MERIDIAN_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
}

func overrideDuration(key string, target *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*target = d
		}
	}
}

func overrideInt(key string, target *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*target = i
		}
	}
}

func overrideBool(key string, target *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*target = b
		}
	}
}
