// Package config provides configuration loading and access for the simulation.
//
// There are two layers. The run file (YAML, embedded defaults overlaid by an
// optional user file) fixes the field and the run. Colony parameters are hot:
// they live in a Store as one JSON blob per colony name and are re-read
// every tick through a Colony handle.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds the run configuration.
type Config struct {
	Field     FieldConfig     `yaml:"field"`
	Run       RunConfig       `yaml:"run"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Store     StoreConfig     `yaml:"store"`
	Serve     ServeConfig     `yaml:"serve"`
	Colonies  []ColonyConfig  `yaml:"colonies"`
}

// FieldConfig holds the field dimensions every colony shares.
type FieldConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// RunConfig holds scheduling parameters.
type RunConfig struct {
	Seed       int64  `yaml:"seed"`
	MaxTicks   int32  `yaml:"max_ticks"`   // 0 = run until interrupted
	BusMode    string `yaml:"bus_mode"`    // sequential | double_buffered
	LinearScan bool   `yaml:"linear_scan"` // neighbour queries without the grid
}

// TelemetryConfig holds telemetry collection parameters.
type TelemetryConfig struct {
	StatsWindow int32 `yaml:"stats_window"` // ticks per stats and perf window
}

// StoreConfig selects the colony parameter store.
type StoreConfig struct {
	Path string `yaml:"path"` // SQLite file; empty = in-memory store
}

// ServeConfig holds observer server settings.
type ServeConfig struct {
	Addr  string `yaml:"addr"`  // empty = disabled
	Every int32  `yaml:"every"` // publish a frame every N ticks
}

// ColonyConfig names a colony and the parameters the run writes to its blob
// at startup.
type ColonyConfig struct {
	Name   string             `yaml:"name"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be clamped.
func (c *Config) Validate() error {
	if c.Field.Width <= 0 || c.Field.Height <= 0 {
		return fmt.Errorf("field size %vx%v must be positive", c.Field.Width, c.Field.Height)
	}
	if len(c.Colonies) == 0 {
		return fmt.Errorf("at least one colony is required")
	}
	seen := make(map[string]bool, len(c.Colonies))
	for _, col := range c.Colonies {
		if col.Name == "" {
			return fmt.Errorf("colony name must not be empty")
		}
		if seen[col.Name] {
			return fmt.Errorf("duplicate colony %q", col.Name)
		}
		seen[col.Name] = true
		for key := range col.Params {
			if _, ok := LookupRange(key); !ok {
				return fmt.Errorf("colony %s: unknown parameter %q", col.Name, key)
			}
		}
	}
	if c.Telemetry.StatsWindow <= 0 {
		c.Telemetry.StatsWindow = 100
	}
	if c.Serve.Every <= 0 {
		c.Serve.Every = 1
	}
	return nil
}

// WriteYAML writes the config to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
