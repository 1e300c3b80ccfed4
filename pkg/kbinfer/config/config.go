package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/kbinfer/pkg/kbinfer/internalerr"
)

// Store drivers
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config is the top-level configuration file
type Config struct {
	Store     Store     `yaml:"store"`
	Inference Inference `yaml:"inference"`
	Logging   Logging   `yaml:"logging"`
}

// Store selects the knowledge base backend
type Store struct {
	Driver    string `yaml:"driver"`
	Path      string `yaml:"path"`
	CacheSize int    `yaml:"cache_size"` // identifier cache entries (sqlite only)
}

// Inference tunes the forward-chaining loop
type Inference struct {
	MaxPasses       int  `yaml:"max_passes"`
	PersistVerdicts bool `yaml:"persist_verdicts"`
}

// Logging configures the zap logger
type Logging struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Store: Store{
			Driver:    DriverMemory,
			CacheSize: 1024,
		},
		Inference: Inference{
			MaxPasses:       100,
			PersistVerdicts: true,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Load reads a YAML file on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field combinations
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for sqlite: %w", internalerr.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("unknown store driver %q: %w", c.Store.Driver, internalerr.ErrInvalidConfig)
	}
	if c.Store.CacheSize < 0 {
		return fmt.Errorf("store.cache_size must not be negative: %w", internalerr.ErrInvalidConfig)
	}
	if c.Inference.MaxPasses <= 0 {
		return fmt.Errorf("inference.max_passes must be positive: %w", internalerr.ErrInvalidConfig)
	}
	return nil
}
