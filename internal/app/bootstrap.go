package app

import (
	"log/slog"
	"os"

	"navtrack/internal/domain"
	"navtrack/internal/infra"
	"navtrack/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config   *infra.Config
	Recorder domain.SampleRecorder
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration, installs the logger, and opens the sample
// archive when enabled.
func (b *Bootstrap) Initialize() error {
	// 1. Load Config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := infra.LoadConfig(cfgPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Sample archive (optional sink, never read back)
	if cfg.Archive.Enabled {
		archive, err := storage.NewArchive(cfg.Archive.Path)
		if err != nil {
			return err
		}
		b.Recorder = archive
		slog.Info("sample archive opened", slog.String("path", cfg.Archive.Path))
	} else {
		b.Recorder = storage.NoopRecorder{}
	}

	return nil
}
