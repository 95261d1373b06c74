package config

import "time"

// Config is the root configuration for the meridian service.
type Config struct {
	// Server configures the HTTP API server.
	Server ServerConfig `yaml:"server"`

	// Storage configures the persistent store.
	Storage StorageConfig `yaml:"storage"`

	// Cache configures the rule/evidence TTL cache.
	Cache CacheConfig `yaml:"cache"`

	// Drift configures the schema drift detector.
	Drift DriftConfig `yaml:"drift"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ListenAddress is the address to listen on (e.g., ":8080")
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// StorageConfig contains persistent store settings.
type StorageConfig struct {
	// Backend selects the store implementation ("sqlite" or "memory").
	// The memory backend keeps nothing across restarts and exists for
	// development and tests.
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	// Path is the database file location
	Path string `yaml:"path"`

	// Driver selects the sql driver ("sqlite3" for cgo, "sqlite" for pure Go)
	Driver string `yaml:"driver"`

	// MaxOpenConns limits open connections
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns limits idle pooled connections
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables write-ahead logging
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long a locked database blocks a writer
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// CacheConfig contains rule cache settings.
type CacheConfig struct {
	// TTL is how long a cached rule set stays fresh
	TTL time.Duration `yaml:"ttl"`

	// CleanupInterval is the expired-entry sweep interval
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DriftConfig contains schema drift detector settings.
type DriftConfig struct {
	// Enabled turns the detector on
	Enabled bool `yaml:"enabled"`

	// SourcePath is the YAML file describing upstream API schemas
	SourcePath string `yaml:"source_path"`

	// Schedule is the cron expression for periodic checks
	// (e.g., "0 * * * *" for hourly). Empty disables the scheduler.
	Schedule string `yaml:"schedule"`

	// Watch triggers a recheck when the source file changes
	Watch bool `yaml:"watch"`
}

// TelemetryConfig contains logging and metrics settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error")
	Level string `yaml:"level"`

	// Format is the output format ("json" or "text")
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled turns the /metrics endpoint on
	Enabled bool `yaml:"enabled"`

	// Path is the metrics endpoint path
	Path string `yaml:"path"`
}
