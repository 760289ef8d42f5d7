package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all intervalnet run configuration.
type Config struct {
	// Network bundle to verify
	Model ModelConfig `yaml:"model"`

	// Input batch
	Data DataConfig `yaml:"data"`

	// Verification parameters
	Verify VerifyConfig `yaml:"verify"`

	// Linear algebra backend: cpu or gpu
	Backend string `yaml:"backend"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ModelConfig points at a model bundle.
type ModelConfig struct {
	Path string `yaml:"path"`
	ID   string `yaml:"id"` // empty selects the first model in the bundle
}

// DataConfig points at the input batch.
type DataConfig struct {
	Path  string `yaml:"path"`  // JSON {"inputs", "labels", "shape"}
	Limit int    `yaml:"limit"` // 0 keeps every sample
}

// VerifyConfig configures the verification call and the radius sweep.
type VerifyConfig struct {
	Epsilon      float64   `yaml:"epsilon"`
	Method       string    `yaml:"method"` // naive, symbolic
	Radii        []float64 `yaml:"radii"`
	SweepWorkers int       `yaml:"sweep_workers"`
	Trace        bool      `yaml:"trace"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Path: "model.json",
		},
		Data: DataConfig{
			Path: "inputs.json",
		},
		Verify: VerifyConfig{
			Epsilon:      0.01,
			Method:       "symbolic",
			Radii:        []float64{0, 0.005, 0.01, 0.02, 0.05},
			SweepWorkers: 4,
		},
		Backend: "cpu",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("INTERVALNET_EPSILON"); v != "" {
		eps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid INTERVALNET_EPSILON %q: %w", v, err)
		}
		c.Verify.Epsilon = eps
	}
	if v := os.Getenv("INTERVALNET_METHOD"); v != "" {
		c.Verify.Method = v
	}
	if v := os.Getenv("INTERVALNET_BACKEND"); v != "" {
		c.Backend = v
	}
	return nil
}

// ValidMethods lists the accepted verification methods.
var ValidMethods = []string{"naive", "symbolic"}

// ValidBackends lists the accepted backends.
var ValidBackends = []string{"cpu", "gpu"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Verify.Epsilon < 0 {
		return fmt.Errorf("epsilon must be non-negative, got %g", c.Verify.Epsilon)
	}
	for _, r := range c.Verify.Radii {
		if r < 0 {
			return fmt.Errorf("sweep radius must be non-negative, got %g", r)
		}
	}
	if c.Verify.SweepWorkers < 1 {
		return fmt.Errorf("sweep_workers must be at least 1, got %d", c.Verify.SweepWorkers)
	}
	if !contains(ValidMethods, c.Verify.Method) {
		return fmt.Errorf("invalid method: %s (valid: %v)", c.Verify.Method, ValidMethods)
	}
	if !contains(ValidBackends, c.Backend) {
		return fmt.Errorf("invalid backend: %s (valid: %v)", c.Backend, ValidBackends)
	}
	if c.Data.Limit < 0 {
		return fmt.Errorf("data limit must be non-negative, got %d", c.Data.Limit)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
