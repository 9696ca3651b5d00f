package infra

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
app:
  name: "navtrack"
  version: "test"
symbol: "SPY"
feed:
  source: "mock"
  cache_ttl_sec: 10
  failure_threshold: 3
  perturbation: 0.05
  seed_price: 478.50
  seed_value: 477.80
model:
  premium_band_pct: 0.05
  reversion_rate: 0.2
  premium_noise_pct: 0.005
  walk_span: 2.0
series:
  retention: 3600
  tick_ms: 1000
  backfill_count: 60
stream:
  enabled: false
api:
  listen_addr: "127.0.0.1:8080"
logging:
  level: "debug"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Symbol != "SPY" {
		t.Errorf("Expected symbol SPY, got %s", cfg.Symbol)
	}
	if cfg.Series.Retention != 3600 {
		t.Errorf("Expected retention 3600, got %d", cfg.Series.Retention)
	}
	if cfg.Feed.Source != "mock" {
		t.Errorf("Expected mock source, got %s", cfg.Feed.Source)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("NAVTRACK_SYMBOL", "VOO")
	t.Setenv("NAVTRACK_API_ADDR", "127.0.0.1:9090")

	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Symbol != "VOO" {
		t.Errorf("Expected env-overridden symbol VOO, got %s", cfg.Symbol)
	}
	if cfg.API.ListenAddr != "127.0.0.1:9090" {
		t.Errorf("Expected overridden api addr, got %s", cfg.API.ListenAddr)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing symbol", func(c *Config) { c.Symbol = "" }},
		{"unknown source", func(c *Config) { c.Feed.Source = "csv" }},
		{"zero cache ttl", func(c *Config) { c.Feed.CacheTTLSec = 0 }},
		{"negative threshold", func(c *Config) { c.Feed.FailureThreshold = -1 }},
		{"zero retention", func(c *Config) { c.Series.Retention = 0 }},
		{"zero tick", func(c *Config) { c.Series.TickMS = 0 }},
		{"negative backfill", func(c *Config) { c.Series.BackfillCount = -1 }},
		{"missing api addr", func(c *Config) { c.API.ListenAddr = "" }},
		{"bad stream url", func(c *Config) {
			c.Stream.Enabled = true
			c.Stream.WSURL = "http://not-a-ws"
			c.Stream.ReconnectDelaySec = 5
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, validYAML))
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
