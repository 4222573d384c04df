// Package config loads the parameters of a run or sweep from a yaml file,
// environment variables and named presets.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/ising/internal/analysis"
	"github.com/san-kum/ising/internal/dynamo"
	"github.com/san-kum/ising/internal/errs"
	"github.com/san-kum/ising/internal/lattice"
	"github.com/san-kum/ising/internal/logging"
)

const (
	DefaultRows           = 100
	DefaultCols           = 100
	DefaultSteps          = 100000
	DefaultSimulations    = 100
	DefaultWorkers        = 10
	DefaultMinTemperature = 0.1
	DefaultMaxTemperature = 4.0
	DefaultRunTemperature = 2.269
	DefaultFrames         = 100
	DefaultFrameDelay     = 2 // hundredths of a second
	DefaultDataDir        = "data"
	DefaultAddr           = ":8080"
)

type Config struct {
	Seed      int64           `yaml:"seed" env:"ISING_SEED"`
	DataDir   string          `yaml:"data_dir" env:"ISING_DATA_DIR"`
	Lattice   LatticeConfig   `yaml:"lattice"`
	Sweep     SweepConfig     `yaml:"sweep"`
	Run       RunConfig       `yaml:"run"`
	Estimator EstimatorConfig `yaml:"estimator"`
	Server    ServerConfig    `yaml:"server"`
	Log       logging.Config  `yaml:"log"`
}

type LatticeConfig struct {
	Rows      int     `yaml:"rows" env:"ISING_ROWS"`
	Cols      int     `yaml:"cols" env:"ISING_COLS"`
	Coupling  float64 `yaml:"coupling" env:"ISING_COUPLING"`
	Boltzmann float64 `yaml:"boltzmann" env:"ISING_BOLTZMANN"`
	Moment    float64 `yaml:"moment" env:"ISING_MOMENT"`
}

type SweepConfig struct {
	MinTemperature float64 `yaml:"min_temperature" env:"ISING_MIN_TEMPERATURE"`
	MaxTemperature float64 `yaml:"max_temperature" env:"ISING_MAX_TEMPERATURE"`
	Simulations    int     `yaml:"simulations" env:"ISING_SIMULATIONS"`
	Steps          int     `yaml:"steps" env:"ISING_STEPS"`
	Workers        int     `yaml:"workers" env:"ISING_WORKERS"`
	Init           string  `yaml:"init" env:"ISING_INIT"`
}

// RunConfig describes a single visualized run.
type RunConfig struct {
	Temperature float64 `yaml:"temperature" env:"ISING_RUN_TEMPERATURE"`
	Steps       int     `yaml:"steps" env:"ISING_RUN_STEPS"`
	Init        string  `yaml:"init" env:"ISING_RUN_INIT"`
	Frames      int     `yaml:"frames" env:"ISING_RUN_FRAMES"`
	FrameDelay  int     `yaml:"frame_delay" env:"ISING_RUN_FRAME_DELAY"`
}

type EstimatorConfig struct {
	Window int `yaml:"window" env:"ISING_SMOOTH_WINDOW"`
	Order  int `yaml:"order" env:"ISING_SMOOTH_ORDER"`
}

// ServerConfig bounds what a single HTTP sweep may ask for. MaxSteps caps
// steps*simulations and MaxSites caps rows*cols; a zero limit is unbounded.
type ServerConfig struct {
	Addr           string        `yaml:"addr" env:"ISING_HTTP_ADDR"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"ISING_HTTP_READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"ISING_HTTP_WRITE_TIMEOUT"`
	MaxSteps       int           `yaml:"max_steps" env:"ISING_HTTP_MAX_STEPS"`
	MaxSimulations int           `yaml:"max_simulations" env:"ISING_HTTP_MAX_SIMULATIONS"`
	MaxSites       int           `yaml:"max_sites" env:"ISING_HTTP_MAX_SITES"`
	Concurrency    int           `yaml:"concurrency" env:"ISING_HTTP_CONCURRENCY"`
}

func DefaultConfig() *Config {
	return &Config{
		DataDir: DefaultDataDir,
		Lattice: LatticeConfig{
			Rows:      DefaultRows,
			Cols:      DefaultCols,
			Coupling:  1,
			Boltzmann: 1,
			Moment:    1,
		},
		Sweep: SweepConfig{
			MinTemperature: DefaultMinTemperature,
			MaxTemperature: DefaultMaxTemperature,
			Simulations:    DefaultSimulations,
			Steps:          DefaultSteps,
			Workers:        DefaultWorkers,
			Init:           lattice.AllUp.String(),
		},
		Run: RunConfig{
			Temperature: DefaultRunTemperature,
			Steps:       DefaultSteps,
			Init:        lattice.Random.String(),
			Frames:      DefaultFrames,
			FrameDelay:  DefaultFrameDelay,
		},
		Estimator: EstimatorConfig{
			Window: analysis.DefaultWindow,
			Order:  analysis.DefaultOrder,
		},
		Server: ServerConfig{
			Addr:           DefaultAddr,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   10 * time.Minute,
			MaxSteps:       DefaultSteps * DefaultSimulations,
			MaxSimulations: 10 * DefaultSimulations,
			MaxSites:       1 << 20,
			Concurrency:    1,
		},
		Log: logging.DefaultConfig(),
	}
}

// Load reads path over the defaults and then applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	return LoadOver(DefaultConfig(), path)
}

// LoadOver is Load starting from base instead of the defaults. base is
// modified in place and returned.
func LoadOver(base *Config, path string) (*Config, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, base); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := ApplyEnv(base); err != nil {
		return nil, err
	}
	return base, nil
}

// ApplyEnv overwrites fields whose environment variable is set.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	bad := func(format string, args ...any) error {
		return errs.E("config", "Validate", errs.ErrInvalidParameter, format, args...)
	}
	if c.Lattice.Rows <= 0 || c.Lattice.Cols <= 0 {
		return bad("lattice dimensions must be positive, got %dx%d", c.Lattice.Rows, c.Lattice.Cols)
	}
	if c.Lattice.Boltzmann <= 0 {
		return bad("boltzmann constant must be positive, got %g", c.Lattice.Boltzmann)
	}
	if !(c.Lattice.Moment > 0) {
		return bad("magnetic moment must be positive, got %g", c.Lattice.Moment)
	}
	if c.Sweep.MinTemperature <= 0 || c.Sweep.MaxTemperature < c.Sweep.MinTemperature {
		return bad("temperature range must satisfy 0 < min <= max, got [%g, %g]",
			c.Sweep.MinTemperature, c.Sweep.MaxTemperature)
	}
	if c.Sweep.Simulations <= 0 {
		return bad("simulations must be positive, got %d", c.Sweep.Simulations)
	}
	if c.Sweep.Workers <= 0 {
		return bad("workers must be positive, got %d", c.Sweep.Workers)
	}
	if c.Sweep.Steps < 0 || c.Run.Steps < 0 {
		return bad("steps must be non-negative")
	}
	if c.Run.Temperature <= 0 {
		return bad("run temperature must be positive, got %g", c.Run.Temperature)
	}
	if c.Run.Frames < 0 || c.Run.FrameDelay < 0 {
		return bad("frames and frame delay must be non-negative")
	}
	if c.Server.Concurrency < 1 {
		return bad("server concurrency must be positive, got %d", c.Server.Concurrency)
	}
	if c.Server.MaxSteps < 0 || c.Server.MaxSimulations < 0 || c.Server.MaxSites < 0 {
		return bad("server limits must be non-negative")
	}
	if c.Estimator.Order < 0 || c.Estimator.Order >= c.Estimator.Window {
		return bad("smoothing needs 0 <= order < window, got order %d window %d",
			c.Estimator.Order, c.Estimator.Window)
	}
	if _, err := lattice.ParseInitMode(c.Sweep.Init); err != nil {
		return err
	}
	if _, err := lattice.ParseInitMode(c.Run.Init); err != nil {
		return err
	}
	return nil
}

// Temperatures returns the evenly spaced sweep grid.
func (c *Config) Temperatures() ([]float64, error) {
	return dynamo.Linspace(c.Sweep.MinTemperature, c.Sweep.MaxTemperature, c.Sweep.Simulations)
}

// SweepBase returns the per-run configuration shared by every sweep
// temperature. The temperature itself is set by the sweep.
func (c *Config) SweepBase() (dynamo.Config, error) {
	mode, err := lattice.ParseInitMode(c.Sweep.Init)
	if err != nil {
		return dynamo.Config{}, err
	}
	return dynamo.Config{
		Rows:        c.Lattice.Rows,
		Cols:        c.Lattice.Cols,
		Temperature: c.Sweep.MinTemperature,
		Steps:       c.Sweep.Steps,
		CouplingJ:   c.Lattice.Coupling,
		BoltzmannK:  c.Lattice.Boltzmann,
		Moment:      c.Lattice.Moment,
		Init:        mode,
		Seed:        c.Seed,
	}, nil
}

// SingleRun returns the configuration of the visualized run.
func (c *Config) SingleRun() (dynamo.Config, error) {
	mode, err := lattice.ParseInitMode(c.Run.Init)
	if err != nil {
		return dynamo.Config{}, err
	}
	return dynamo.Config{
		Rows:        c.Lattice.Rows,
		Cols:        c.Lattice.Cols,
		Temperature: c.Run.Temperature,
		Steps:       c.Run.Steps,
		CouplingJ:   c.Lattice.Coupling,
		BoltzmannK:  c.Lattice.Boltzmann,
		Moment:      c.Lattice.Moment,
		Init:        mode,
		Snapshots:   c.Run.Frames,
		Seed:        c.Seed,
	}, nil
}

func (c *Config) NewEstimator() analysis.Estimator {
	return analysis.Estimator{Window: c.Estimator.Window, Order: c.Estimator.Order}
}
