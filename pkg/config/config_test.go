package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "{}")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("listen_address = %q", cfg.Server.ListenAddress)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("backend = %q", cfg.Storage.Backend)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("cache ttl = %v", cfg.Cache.TTL)
	}
	if cfg.Telemetry.Logging.Level != "info" || cfg.Telemetry.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Telemetry.Logging)
	}
}

func TestLoadConfigParsesValues(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: ":9090"
  read_timeout: 15s
storage:
  backend: memory
cache:
  ttl: 2m
drift:
  enabled: true
  source_path: schemas.yaml
  schedule: "*/5 * * * *"
  watch: true
telemetry:
  logging:
    level: debug
    format: text
  metrics:
    enabled: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.ListenAddress != ":9090" || cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("backend = %q", cfg.Storage.Backend)
	}
	if cfg.Cache.TTL != 2*time.Minute {
		t.Errorf("ttl = %v", cfg.Cache.TTL)
	}
	if !cfg.Drift.Enabled || !cfg.Drift.Watch || cfg.Drift.SourcePath != "schemas.yaml" {
		t.Errorf("drift = %+v", cfg.Drift)
	}
	if cfg.Telemetry.Logging.Level != "debug" || !cfg.Telemetry.Metrics.Enabled {
		t.Errorf("telemetry = %+v", cfg.Telemetry)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file must error")
	}

	if _, err := LoadConfig(writeConfig(t, "server: [nope")); err == nil {
		t.Error("malformed yaml must error")
	}

	_, err := LoadConfig(writeConfig(t, "storage:\n  backend: cassandra\n"))
	if err == nil || !strings.Contains(err.Error(), "backend") {
		t.Errorf("invalid backend error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		ApplyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "empty listen address",
			mutate:  func(c *Config) { c.Server.ListenAddress = "" },
			wantErr: "listen_address",
		},
		{
			name:    "bad sqlite driver",
			mutate:  func(c *Config) { c.Storage.SQLite.Driver = "postgres" },
			wantErr: "driver",
		},
		{
			name:    "idle conns exceed open conns",
			mutate:  func(c *Config) { c.Storage.SQLite.MaxIdleConns = 100 },
			wantErr: "max_idle_conns",
		},
		{
			name:    "zero cache ttl",
			mutate:  func(c *Config) { c.Cache.TTL = 0 },
			wantErr: "ttl",
		},
		{
			name:    "drift enabled without source",
			mutate:  func(c *Config) { c.Drift.Enabled = true },
			wantErr: "source_path",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			wantErr: "log level",
		},
		{
			name: "metrics path without slash",
			mutate: func(c *Config) {
				c.Telemetry.Metrics.Enabled = true
				c.Telemetry.Metrics.Path = "metrics"
			},
			wantErr: "metrics path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MERIDIAN_SERVER_LISTEN_ADDRESS", ":7070")
	t.Setenv("MERIDIAN_STORAGE_BACKEND", "memory")
	t.Setenv("MERIDIAN_CACHE_TTL", "90s")
	t.Setenv("MERIDIAN_TELEMETRY_METRICS_ENABLED", "true")

	cfg, err := LoadConfigWithEnvOverrides(writeConfig(t, `
server:
  listen_address: ":9090"
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.ListenAddress != ":7070" {
		t.Errorf("env override lost: listen_address = %q", cfg.Server.ListenAddress)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("backend = %q", cfg.Storage.Backend)
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("ttl = %v", cfg.Cache.TTL)
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("metrics not enabled via env")
	}
}
