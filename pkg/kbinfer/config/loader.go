package config

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/kbinfer/internal/logging"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb/memkb"
	"github.com/cognicore/kbinfer/pkg/kbinfer/kb/sqlitekb"
)

// Loader reads the configuration file and constructs components
type Loader struct {
	ConfigPath string // empty means Default()
}

// Components holds everything built from the configuration
type Components struct {
	Config *Config
	Store  kb.KB
	Logger *zap.Logger
}

// Close releases the store and flushes the logger
func (c *Components) Close() error {
	_ = c.Logger.Sync()
	return c.Store.Close()
}

// Load reads the configuration and opens the configured store and logger
func (l *Loader) Load(ctx context.Context) (*Components, error) {
	cfg := Default()
	if l.ConfigPath != "" {
		var err error
		cfg, err = Load(l.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	var store kb.KB
	switch cfg.Store.Driver {
	case DriverSQLite:
		store, err = sqlitekb.Open(ctx, cfg.Store.Path, cfg.Store.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
	default:
		store = memkb.New()
	}

	logger.Debug("components loaded",
		zap.String("driver", cfg.Store.Driver),
		zap.Int("max_passes", cfg.Inference.MaxPasses))
	return &Components{Config: cfg, Store: store, Logger: logger}, nil
}
