package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Setenv("INTERVALNET_EPSILON", "")
	t.Setenv("INTERVALNET_METHOD", "")
	t.Setenv("INTERVALNET_BACKEND", "")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "symbolic", cfg.Verify.Method)
	assert.Equal(t, "cpu", cfg.Backend)
	assert.Equal(t, 0.01, cfg.Verify.Epsilon)
	require.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Model.Path = "mnist.json"
	cfg.Model.ID = "small"
	cfg.Verify.Method = "naive"
	cfg.Verify.Radii = []float64{0.1, 0.2}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("verify:\n  epsilon: 0.3\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.3, cfg.Verify.Epsilon)
	assert.Equal(t, "symbolic", cfg.Verify.Method)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("verify: [oops"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("INTERVALNET_EPSILON", "0.25")
	t.Setenv("INTERVALNET_METHOD", "naive")
	t.Setenv("INTERVALNET_BACKEND", "gpu")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.Verify.Epsilon)
	assert.Equal(t, "naive", cfg.Verify.Method)
	assert.Equal(t, "gpu", cfg.Backend)

	t.Setenv("INTERVALNET_EPSILON", "wide")
	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative epsilon", func(c *Config) { c.Verify.Epsilon = -1 }},
		{"negative radius", func(c *Config) { c.Verify.Radii = []float64{0.1, -0.1} }},
		{"no workers", func(c *Config) { c.Verify.SweepWorkers = 0 }},
		{"unknown method", func(c *Config) { c.Verify.Method = "zonotope" }},
		{"unknown backend", func(c *Config) { c.Backend = "tpu" }},
		{"negative limit", func(c *Config) { c.Data.Limit = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
