package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config holds every setting of the application. Values are loaded from the
// YAML file and may be overridden through environment variables afterwards.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Symbol string `yaml:"symbol"`

	Feed struct {
		Source           string  `yaml:"source"` // "yahoo" or "mock"
		QuoteURL         string  `yaml:"quote_url"`
		CacheTTLSec      int     `yaml:"cache_ttl_sec"`
		FailureThreshold int     `yaml:"failure_threshold"`
		Perturbation     float64 `yaml:"perturbation"`
		SeedPrice        float64 `yaml:"seed_price"`
		SeedValue        float64 `yaml:"seed_value"`
	} `yaml:"feed"`

	Model struct {
		PremiumBandPct  float64 `yaml:"premium_band_pct"`
		ReversionRate   float64 `yaml:"reversion_rate"`
		PremiumNoisePct float64 `yaml:"premium_noise_pct"`
		WalkSpan        float64 `yaml:"walk_span"`
	} `yaml:"model"`

	Series struct {
		Retention     int `yaml:"retention"`
		TickMS        int `yaml:"tick_ms"`
		BackfillCount int `yaml:"backfill_count"`
	} `yaml:"series"`

	Stream struct {
		Enabled           bool   `yaml:"enabled"`
		WSURL             string `yaml:"ws_url"`
		ReconnectDelaySec int    `yaml:"reconnect_delay_sec"`
	} `yaml:"stream"`

	API struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"api"`

	Archive struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"archive"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	switch c.Feed.Source {
	case "yahoo", "mock":
	default:
		return fmt.Errorf("unknown feed source: %q", c.Feed.Source)
	}
	if c.Feed.CacheTTLSec <= 0 {
		return fmt.Errorf("feed cache TTL must be positive")
	}
	if c.Feed.FailureThreshold < 0 {
		return fmt.Errorf("failure threshold must not be negative")
	}

	if c.Series.Retention <= 0 {
		return fmt.Errorf("series retention must be positive")
	}
	if c.Series.TickMS <= 0 {
		return fmt.Errorf("series tick must be positive")
	}
	if c.Series.BackfillCount < 0 {
		return fmt.Errorf("backfill count must not be negative")
	}

	if c.Stream.Enabled {
		if !strings.HasPrefix(c.Stream.WSURL, "ws://") && !strings.HasPrefix(c.Stream.WSURL, "wss://") {
			return fmt.Errorf("invalid stream WS URL: %s", c.Stream.WSURL)
		}
		if c.Stream.ReconnectDelaySec <= 0 {
			return fmt.Errorf("stream reconnect delay must be positive")
		}
	}

	if c.API.ListenAddr == "" {
		return fmt.Errorf("api listen address is required")
	}

	return nil
}

// overrideWithEnv overwrites settings when the matching env vars are set.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("NAVTRACK_SYMBOL"); v != "" {
		cfg.Symbol = v
	}
	if v := os.Getenv("NAVTRACK_FEED_SOURCE"); v != "" {
		cfg.Feed.Source = v
	}
	if v := os.Getenv("NAVTRACK_STREAM_URL"); v != "" {
		cfg.Stream.WSURL = v
	}
	if v := os.Getenv("NAVTRACK_API_ADDR"); v != "" {
		cfg.API.ListenAddr = v
	}
	if v := os.Getenv("NAVTRACK_ARCHIVE_PATH"); v != "" {
		cfg.Archive.Path = v
	}
}
