package automation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/ising/internal/config"
	"github.com/san-kum/ising/internal/errs"
	"github.com/san-kum/ising/internal/metrics"
	"github.com/san-kum/ising/internal/storage"
)

const scenarioYAML = `name: finite-size
description: Tc against lattice size
steps:
  - name: tiny
    rows: 4
    cols: 4
  - rows: 6
    cols: 6
    simulations: 22
    save: true
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func baseConfig() *config.Config {
	cfg := config.GetPreset("quick")
	cfg.Sweep.Steps = 100
	cfg.Sweep.Simulations = 20
	cfg.Sweep.Workers = 2
	return cfg
}

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	require.NoError(t, err)
	assert.Equal(t, "finite-size", sc.Name)
	require.Len(t, sc.Steps, 2)
	assert.Equal(t, 4, sc.Steps[0].Rows)
	assert.True(t, sc.Steps[1].Save)

	_, err = LoadScenario(writeScenario(t, "name: empty\n"))
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestStepApply(t *testing.T) {
	base := baseConfig()
	cfg := ScenarioStep{Rows: 8, Init: "random", Seed: 3}.Apply(base)

	assert.Equal(t, 8, cfg.Lattice.Rows)
	assert.Equal(t, base.Lattice.Cols, cfg.Lattice.Cols)
	assert.Equal(t, "random", cfg.Sweep.Init)
	assert.Equal(t, int64(3), cfg.Seed)
	assert.Equal(t, 16, base.Lattice.Rows, "base must not change")
}

func TestRunScenario(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, scenarioYAML))
	require.NoError(t, err)

	store := storage.New(t.TempDir())
	summary := metrics.NewSummary()
	r := &Runner{Base: baseConfig(), Store: store, Observer: summary}

	results, err := r.RunScenario(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "tiny", results[0].Name)
	assert.Equal(t, "step-2", results[1].Name)
	assert.Len(t, results[0].Series, 20)
	assert.Len(t, results[1].Series, 22)
	for _, res := range results {
		require.NoError(t, res.EstimateErr)
		assert.Contains(t, res.Series.Temperatures(), res.Estimate.CriticalTemperature)
	}

	assert.Empty(t, results[0].RunID)
	require.NotEmpty(t, results[1].RunID)
	meta, err := store.Load(results[1].RunID)
	require.NoError(t, err)
	assert.Equal(t, 6, meta.Rows)

	assert.Equal(t, 42, summary.Value().Runs)
}

func TestRunScenarioStopsOnInvalidStep(t *testing.T) {
	sc := &Scenario{Name: "bad", Steps: []ScenarioStep{{Name: "ok"}, {Name: "broken", Init: "sideways"}}}
	r := &Runner{Base: baseConfig()}

	results, err := r.RunScenario(context.Background(), sc)
	assert.ErrorIs(t, err, errs.ErrInvalidParameter)
	assert.Len(t, results, 1)
}
