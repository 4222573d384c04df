package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/ising/internal/errs"
	"github.com/san-kum/ising/internal/lattice"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 100, cfg.Lattice.Rows)
	assert.Equal(t, 100, cfg.Lattice.Cols)
	assert.Equal(t, 100000, cfg.Sweep.Steps)
	assert.Equal(t, 100, cfg.Sweep.Simulations)
	assert.Equal(t, 10, cfg.Sweep.Workers)
	assert.Equal(t, 20, cfg.Estimator.Window)
	assert.Equal(t, 3, cfg.Estimator.Order)

	temps, err := cfg.Temperatures()
	require.NoError(t, err)
	require.Len(t, temps, 100)
	assert.InDelta(t, 0.1, temps[0], 1e-12)
	assert.InDelta(t, 4.0, temps[99], 1e-12)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ising.yaml")
	yml := "seed: 7\nlattice:\n  rows: 20\n  cols: 30\nsweep:\n  workers: 3\n  init: down\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	t.Setenv("ISING_WORKERS", "5")
	t.Setenv("ISING_STEPS", "1234")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 20, cfg.Lattice.Rows)
	assert.Equal(t, 30, cfg.Lattice.Cols)
	assert.Equal(t, 5, cfg.Sweep.Workers, "environment wins over the file")
	assert.Equal(t, 1234, cfg.Sweep.Steps)
	assert.Equal(t, DefaultSimulations, cfg.Sweep.Simulations, "unset keys keep defaults")

	base, err := cfg.SweepBase()
	require.NoError(t, err)
	assert.Equal(t, lattice.AllDown, base.Init)
	assert.Equal(t, 1234, base.Steps)
	assert.Equal(t, int64(7), base.Seed)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lattice: [1, 2"), 0644))
	_, err = Load(path)
	assert.Error(t, err)

	t.Setenv("ISING_ROWS", "many")
	_, err = Load("")
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := GetPreset("quick")
	require.NotNil(t, cfg)
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rows", func(c *Config) { c.Lattice.Rows = 0 }},
		{"negative cols", func(c *Config) { c.Lattice.Cols = -1 }},
		{"zero boltzmann", func(c *Config) { c.Lattice.Boltzmann = 0 }},
		{"zero min temperature", func(c *Config) { c.Sweep.MinTemperature = 0 }},
		{"inverted range", func(c *Config) { c.Sweep.MaxTemperature = 0.05 }},
		{"no simulations", func(c *Config) { c.Sweep.Simulations = 0 }},
		{"no workers", func(c *Config) { c.Sweep.Workers = 0 }},
		{"negative steps", func(c *Config) { c.Run.Steps = -1 }},
		{"cold run", func(c *Config) { c.Run.Temperature = 0 }},
		{"order too high", func(c *Config) { c.Estimator.Order = 20 }},
		{"unknown init", func(c *Config) { c.Sweep.Init = "sideways" }},
		{"zero moment", func(c *Config) { c.Lattice.Moment = 0 }},
		{"negative moment", func(c *Config) { c.Lattice.Moment = -1 }},
		{"negative step limit", func(c *Config) { c.Server.MaxSteps = -1 }},
		{"negative site limit", func(c *Config) { c.Server.MaxSites = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), errs.ErrInvalidParameter)
		})
	}
}

func TestSingleRun(t *testing.T) {
	cfg := DefaultConfig()
	run, err := cfg.SingleRun()
	require.NoError(t, err)

	assert.Equal(t, lattice.Random, run.Init)
	assert.Equal(t, DefaultRunTemperature, run.Temperature)
	assert.Equal(t, DefaultFrames, run.Snapshots)
	require.NoError(t, run.Validate())

	est := cfg.NewEstimator()
	assert.Equal(t, 20, est.Window)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, []string{"quick", "reference", "small"}, ListPresets())

	for _, name := range ListPresets() {
		cfg := GetPreset(name)
		require.NotNil(t, cfg, name)
		assert.NoError(t, cfg.Validate(), name)
		assert.GreaterOrEqual(t, cfg.Sweep.Simulations, cfg.Estimator.Window,
			"preset %s must produce enough points to estimate Tc", name)
	}

	assert.Equal(t, DefaultConfig(), GetPreset("reference"))
	assert.Nil(t, GetPreset("nonexistent"))

	a := GetPreset("small")
	a.Lattice.Rows = 1
	assert.Equal(t, 32, GetPreset("small").Lattice.Rows, "presets hand out copies")
}

func TestLoadOverPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ising.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sweep:\n  workers: 2\n"), 0644))

	cfg, err := LoadOver(GetPreset("small"), path)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Lattice.Rows, "preset value kept")
	assert.Equal(t, 2, cfg.Sweep.Workers, "file overrides preset")
}
