// Package automation runs scripted studies: a yaml scenario lists several
// sweeps, each overriding part of a base configuration, and every sweep is
// estimated in turn. A typical scenario compares Tc across lattice sizes.
package automation

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/ising/internal/analysis"
	"github.com/san-kum/ising/internal/config"
	"github.com/san-kum/ising/internal/dynamo"
	"github.com/san-kum/ising/internal/errs"
	"github.com/san-kum/ising/internal/storage"
)

// Scenario defines a scripted sequence of sweeps.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is a single sweep. Zero fields inherit the base configuration.
type ScenarioStep struct {
	Name           string  `yaml:"name"`
	Rows           int     `yaml:"rows"`
	Cols           int     `yaml:"cols"`
	Steps          int     `yaml:"steps"`
	Simulations    int     `yaml:"simulations"`
	Workers        int     `yaml:"workers"`
	MinTemperature float64 `yaml:"min_temperature"`
	MaxTemperature float64 `yaml:"max_temperature"`
	Init           string  `yaml:"init"`
	Seed           int64   `yaml:"seed"`
	Save           bool    `yaml:"save"`
}

// LoadScenario loads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, errs.E("automation", "LoadScenario", errs.ErrInvalidParameter, "scenario %q has no steps", scenario.Name)
	}
	return &scenario, nil
}

// Apply returns a copy of base with the step's overrides.
func (s ScenarioStep) Apply(base *config.Config) *config.Config {
	cfg := *base
	if s.Rows > 0 {
		cfg.Lattice.Rows = s.Rows
	}
	if s.Cols > 0 {
		cfg.Lattice.Cols = s.Cols
	}
	if s.Steps > 0 {
		cfg.Sweep.Steps = s.Steps
	}
	if s.Simulations > 0 {
		cfg.Sweep.Simulations = s.Simulations
	}
	if s.Workers > 0 {
		cfg.Sweep.Workers = s.Workers
	}
	if s.MinTemperature > 0 {
		cfg.Sweep.MinTemperature = s.MinTemperature
	}
	if s.MaxTemperature > 0 {
		cfg.Sweep.MaxTemperature = s.MaxTemperature
	}
	if s.Init != "" {
		cfg.Sweep.Init = s.Init
	}
	if s.Seed != 0 {
		cfg.Seed = s.Seed
	}
	return &cfg
}

// StepResult is the outcome of one scenario step. Estimate is nil when the
// series could not be estimated, with the reason in EstimateErr.
type StepResult struct {
	Name        string
	Rows, Cols  int
	Series      dynamo.Series
	Estimate    *analysis.Estimate
	EstimateErr error
	RunID       string
	Elapsed     time.Duration
}

// Runner executes scenarios. Store may be nil to disable saving.
type Runner struct {
	Base     *config.Config
	Store    *storage.Store
	Observer dynamo.Observer
	Log      *zap.Logger
}

// RunScenario executes all steps in order and stops at the first failing
// sweep, returning the results gathered so far.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) ([]StepResult, error) {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		log.Info("scenario step", zap.String("scenario", scenario.Name), zap.String("step", name),
			zap.Int("index", i+1), zap.Int("of", len(scenario.Steps)))

		res, err := r.runStep(ctx, step)
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, name, err)
		}
		res.Name = name
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) runStep(ctx context.Context, step ScenarioStep) (StepResult, error) {
	cfg := step.Apply(r.Base)
	if err := cfg.Validate(); err != nil {
		return StepResult{}, err
	}
	temps, err := cfg.Temperatures()
	if err != nil {
		return StepResult{}, err
	}
	base, err := cfg.SweepBase()
	if err != nil {
		return StepResult{}, err
	}

	opts := []dynamo.SweepOption{dynamo.WithSweepLogger(r.Log)}
	if r.Observer != nil {
		opts = append(opts, dynamo.WithObserver(r.Observer))
	}

	start := time.Now()
	series, err := dynamo.NewSweep(base, cfg.Sweep.Workers, opts...).Run(ctx, temps)
	if err != nil {
		return StepResult{}, err
	}

	res := StepResult{
		Rows:    cfg.Lattice.Rows,
		Cols:    cfg.Lattice.Cols,
		Series:  series,
		Elapsed: time.Since(start),
	}
	res.Estimate, res.EstimateErr = cfg.NewEstimator().Estimate(series)

	if step.Save && r.Store != nil {
		meta := storage.RunMetadata{
			Rows:           cfg.Lattice.Rows,
			Cols:           cfg.Lattice.Cols,
			Steps:          cfg.Sweep.Steps,
			Workers:        cfg.Sweep.Workers,
			Seed:           cfg.Seed,
			Coupling:       cfg.Lattice.Coupling,
			Boltzmann:      cfg.Lattice.Boltzmann,
			Init:           cfg.Sweep.Init,
			ElapsedSeconds: res.Elapsed.Seconds(),
		}
		if res.Estimate != nil {
			tc := res.Estimate.CriticalTemperature
			meta.CriticalTemperature = &tc
		}
		if res.RunID, err = r.Store.Save(meta, series); err != nil {
			return StepResult{}, err
		}
	}
	return res, nil
}
