package dynamo

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/san-kum/ising/internal/errs"
	"github.com/san-kum/ising/internal/lattice"
)

// Source drives site selection and acceptance draws. *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
	Float64() float64
}

// NewSource returns a deterministic PCG source for seed.
func NewSource(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), 0))
}

// Config holds the parameters of one run. It must not change once the run starts.
type Config struct {
	Rows        int
	Cols        int
	Temperature float64
	Steps       int
	CouplingJ   float64
	BoltzmannK  float64
	Moment      float64
	Init        lattice.InitMode
	Snapshots   int // lattice copies to capture, zero disables capture
	Seed        int64
}

func DefaultConfig() Config {
	return Config{
		Rows:        100,
		Cols:        100,
		Temperature: 2.269,
		Steps:       100000,
		CouplingJ:   1,
		BoltzmannK:  1,
		Moment:      1,
		Init:        lattice.AllUp,
	}
}

// Beta returns 1/(k·T).
func (c Config) Beta() float64 {
	return 1 / (c.BoltzmannK * c.Temperature)
}

func (c Config) Validate() error {
	if c.Rows <= 0 || c.Cols <= 0 {
		return errs.E("dynamo", "Validate", errs.ErrInvalidParameter, "dimensions must be positive, got %dx%d", c.Rows, c.Cols)
	}
	if !(c.Temperature > 0) || math.IsInf(c.Temperature, 0) {
		return errs.E("dynamo", "Validate", errs.ErrInvalidParameter, "temperature must be positive, got %g", c.Temperature)
	}
	if !(c.BoltzmannK > 0) || math.IsInf(c.BoltzmannK, 0) {
		return errs.E("dynamo", "Validate", errs.ErrInvalidParameter, "boltzmann constant must be positive, got %g", c.BoltzmannK)
	}
	if !(c.Moment > 0) || math.IsInf(c.Moment, 0) {
		return errs.E("dynamo", "Validate", errs.ErrInvalidParameter, "magnetic moment must be positive, got %g", c.Moment)
	}
	if math.IsNaN(c.CouplingJ) || math.IsInf(c.CouplingJ, 0) {
		return errs.E("dynamo", "Validate", errs.ErrInvalidParameter, "coupling must be finite, got %g", c.CouplingJ)
	}
	if c.Steps < 0 {
		return errs.E("dynamo", "Validate", errs.ErrInvalidParameter, "steps must be non-negative, got %d", c.Steps)
	}
	if c.Snapshots < 0 {
		return errs.E("dynamo", "Validate", errs.ErrInvalidParameter, "snapshots must be non-negative, got %d", c.Snapshots)
	}
	return nil
}

// NewLattice builds the lattice described by c, drawing from src for Random.
func (c Config) NewLattice(src lattice.Source) (*lattice.Lattice, error) {
	return lattice.New(c.Rows, c.Cols, c.Init, src,
		lattice.WithCoupling(c.CouplingJ),
		lattice.WithMoment(c.Moment),
	)
}

// RunResult is the raw outcome of one completed run. Energy and
// Magnetization are lattice totals; PerSite normalizes them.
type RunResult struct {
	Temperature   float64
	Energy        float64
	Magnetization float64
	Sites         int
	Steps         int
	Accepted      int
}

// PerSite returns energy and magnetization divided by the number of sites.
func (r RunResult) PerSite() (energy, magnetization float64) {
	if r.Sites == 0 {
		return 0, 0
	}
	n := float64(r.Sites)
	return r.Energy / n, r.Magnetization / n
}

// AcceptanceRatio is the fraction of trial flips that were accepted.
func (r RunResult) AcceptanceRatio() float64 {
	if r.Steps == 0 {
		return 0
	}
	return float64(r.Accepted) / float64(r.Steps)
}

// Observer is notified about the lifecycle of each run in a sweep. Methods
// are called from worker goroutines and must be safe for concurrent use.
type Observer interface {
	RunStarted(temperature float64)
	RunFinished(res RunResult, elapsed time.Duration)
	RunFailed(temperature float64, err error)
}

type nopObserver struct{}

func (nopObserver) RunStarted(float64)                   {}
func (nopObserver) RunFinished(RunResult, time.Duration) {}
func (nopObserver) RunFailed(float64, error)             {}
