package config

import (
	"fmt"
	"strings"
)

var (
	validBackends   = []string{"sqlite", "memory"}
	validDrivers    = []string{"sqlite3", "sqlite"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"json", "text"}
)

// Validate checks the configuration for errors. It returns the first problem
// found, prefixed with the offending section.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := validateStorage(&cfg.Storage); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := validateCache(&cfg.Cache); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := validateDrift(&cfg.Drift); err != nil {
		return fmt.Errorf("drift: %w", err)
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.ListenAddress == "" {
		return fmt.Errorf("listen_address must not be empty")
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.IdleTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if cfg.MaxHeaderBytes < 0 {
		return fmt.Errorf("max_header_bytes must not be negative")
	}
	return nil
}

func validateStorage(cfg *StorageConfig) error {
	if !contains(validBackends, cfg.Backend) {
		return fmt.Errorf("unknown backend %q (valid: %s)",
			cfg.Backend, strings.Join(validBackends, ", "))
	}
	if cfg.Backend == "sqlite" {
		if cfg.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path must not be empty")
		}
		if !contains(validDrivers, cfg.SQLite.Driver) {
			return fmt.Errorf("unknown sqlite driver %q (valid: %s)",
				cfg.SQLite.Driver, strings.Join(validDrivers, ", "))
		}
		if cfg.SQLite.MaxOpenConns < 1 {
			return fmt.Errorf("sqlite.max_open_conns must be at least 1")
		}
		if cfg.SQLite.MaxIdleConns > cfg.SQLite.MaxOpenConns {
			return fmt.Errorf("sqlite.max_idle_conns must not exceed max_open_conns")
		}
	}
	return nil
}

func validateCache(cfg *CacheConfig) error {
	if cfg.TTL <= 0 {
		return fmt.Errorf("ttl must be positive")
	}
	if cfg.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup_interval must be positive")
	}
	return nil
}

func validateDrift(cfg *DriftConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.SourcePath == "" {
		return fmt.Errorf("source_path must be set when drift detection is enabled")
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) error {
	if !contains(validLogLevels, cfg.Logging.Level) {
		return fmt.Errorf("unknown log level %q (valid: %s)",
			cfg.Logging.Level, strings.Join(validLogLevels, ", "))
	}
	if !contains(validLogFormats, cfg.Logging.Format) {
		return fmt.Errorf("unknown log format %q (valid: %s)",
			cfg.Logging.Format, strings.Join(validLogFormats, ", "))
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics path %q must start with /", cfg.Metrics.Path)
	}
	return nil
}

func contains(valid []string, v string) bool {
	for _, candidate := range valid {
		if candidate == v {
			return true
		}
	}
	return false
}
