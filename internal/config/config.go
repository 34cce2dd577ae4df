package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file name looked up in the working
// directory when no explicit path is given.
const DefaultFile = "sentry.yaml"

// ToolConfig configures one analysis tool adapter. Every adapter registered
// with the engine has exactly one of these; there is no second, map-shaped
// configuration path.
type ToolConfig struct {
	Enabled  bool                   `yaml:"enabled" json:"enabled"`
	Timeout  int                    `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Accuracy float64                `yaml:"accuracy" json:"accuracy"`
	Options  map[string]interface{} `yaml:"options,omitempty" json:"options,omitempty"`
}

// StaticConfig configures the static analysis phase
type StaticConfig struct {
	Timeout    int                   `yaml:"timeout" json:"timeout"`
	MaxWorkers int                   `yaml:"max_workers" json:"max_workers"`
	Tools      map[string]ToolConfig `yaml:"tools" json:"tools"`
}

// DynamicConfig configures the dynamic analysis phase
type DynamicConfig struct {
	Timeout      int                   `yaml:"timeout" json:"timeout"`
	MaxWorkers   int                   `yaml:"max_workers" json:"max_workers"`
	CrossChain   bool                  `yaml:"cross_chain_analysis" json:"cross_chain_analysis"`
	CollectNotes bool                  `yaml:"collect_feedback" json:"collect_feedback"`
	Tools        map[string]ToolConfig `yaml:"tools" json:"tools"`
}

// StoreConfig configures result persistence
type StoreConfig struct {
	Path    string `yaml:"path" json:"path"`
	Indexed bool   `yaml:"indexed" json:"indexed"`
}

// Config is the single explicit configuration structure for the engine.
// All fields have enumerated defaults from Default().
type Config struct {
	LogLevel string        `yaml:"log_level" json:"log_level"`
	Static   StaticConfig  `yaml:"static" json:"static"`
	Dynamic  DynamicConfig `yaml:"dynamic" json:"dynamic"`
	Store    StoreConfig   `yaml:"store" json:"store"`
}

// Default returns the configuration used when no file is present. Tool
// accuracy defaults to 0.8; the adversarial fuzzer ships slightly higher,
// matching its measured precision.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Static: StaticConfig{
			Timeout:    300,
			MaxWorkers: 4,
			Tools: map[string]ToolConfig{
				"slither":   {Enabled: true, Accuracy: 0.8},
				"mythril":   {Enabled: true, Accuracy: 0.8},
				"manticore": {Enabled: false, Accuracy: 0.8},
			},
		},
		Dynamic: DynamicConfig{
			Timeout:    600,
			MaxWorkers: 2,
			Tools: map[string]ToolConfig{
				"echidna":          {Enabled: true, Accuracy: 0.8},
				"adversarial-fuzz": {Enabled: true, Accuracy: 0.85},
			},
		},
		Store: StoreConfig{
			Path:    ".sentry",
			Indexed: true,
		},
	}
}

// Load reads configuration from path, falling back to defaults for any field
// the file omits, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks field ranges
func (c *Config) Validate() error {
	if c.Static.MaxWorkers < 1 || c.Dynamic.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be >= 1")
	}
	if c.Static.Timeout < 1 || c.Dynamic.Timeout < 1 {
		return fmt.Errorf("timeout must be >= 1 second")
	}
	for name, tc := range c.Static.Tools {
		if tc.Accuracy < 0.0 || tc.Accuracy > 1.0 {
			return fmt.Errorf("tool %s: accuracy %v outside [0,1]", name, tc.Accuracy)
		}
	}
	for name, tc := range c.Dynamic.Tools {
		if tc.Accuracy < 0.0 || tc.Accuracy > 1.0 {
			return fmt.Errorf("tool %s: accuracy %v outside [0,1]", name, tc.Accuracy)
		}
	}
	return nil
}

// ToolTimeout resolves the timeout for one dynamic tool, falling back to the
// phase-wide timeout when the tool has none configured.
func (c *DynamicConfig) ToolTimeout(name string) time.Duration {
	if tc, ok := c.Tools[name]; ok && tc.Timeout > 0 {
		return time.Duration(tc.Timeout) * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// ToolAccuracy returns the accuracy weight for a tool, 0.8 when unset
func (c *DynamicConfig) ToolAccuracy(name string) float64 {
	if tc, ok := c.Tools[name]; ok && tc.Accuracy > 0 {
		return tc.Accuracy
	}
	return 0.8
}

// applyEnv overlays SENTRY_* environment variables on the configuration
func applyEnv(cfg *Config) {
	if v := os.Getenv("SENTRY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SENTRY_STATIC_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Static.Timeout = n
		}
	}
	if v := os.Getenv("SENTRY_DYNAMIC_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dynamic.Timeout = n
		}
	}
	if v := os.Getenv("SENTRY_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
}
