package dynamo

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/san-kum/ising/internal/errs"
	"github.com/san-kum/ising/internal/lattice"
)

// cancelCheckInterval is how many steps run between context checks.
const cancelCheckInterval = 1024

type Simulator struct {
	cfg       Config
	lat       *lattice.Lattice
	src       Source
	beta      float64
	log       *zap.Logger
	steps     int
	accepted  int
	snapshots []lattice.Snapshot
}

type Option func(*Simulator)

func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.log = l
		}
	}
}

// New binds a simulator to lat. The lattice is mutated in place by Run.
func New(cfg Config, lat *lattice.Lattice, src Source, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if lat == nil {
		return nil, errs.E("dynamo", "New", errs.ErrInvalidParameter, "nil lattice")
	}
	if lat.Rows() != cfg.Rows || lat.Cols() != cfg.Cols {
		return nil, errs.E("dynamo", "New", errs.ErrInvalidParameter,
			"lattice is %dx%d, config wants %dx%d", lat.Rows(), lat.Cols(), cfg.Rows, cfg.Cols)
	}
	if src == nil {
		return nil, errs.E("dynamo", "New", errs.ErrInvalidParameter, "nil random source")
	}

	s := &Simulator{
		cfg:  cfg,
		lat:  lat,
		src:  src,
		beta: cfg.Beta(),
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Simulator) Config() Config                { return s.cfg }
func (s *Simulator) Lattice() *lattice.Lattice     { return s.lat }
func (s *Simulator) Snapshots() []lattice.Snapshot { return s.snapshots }

// Step performs one Metropolis trial: pick a site uniformly, flip it outright
// when that lowers the energy, otherwise flip with probability exp(-ΔE·β).
func (s *Simulator) Step() error {
	i := s.src.IntN(s.cfg.Rows)
	j := s.src.IntN(s.cfg.Cols)

	s.steps++
	e := s.lat.LocalEnergy(i, j)
	if e < 0 || s.src.Float64() < math.Exp(-e*s.beta) {
		if err := s.lat.Flip(i, j); err != nil {
			return err
		}
		s.accepted++
	}
	return nil
}

// SnapshotInterval returns how many steps separate two captured snapshots,
// or 0 when capture is disabled.
func SnapshotInterval(steps, snapshots int) int {
	if snapshots <= 0 {
		return 0
	}
	every := steps / snapshots
	if every < 1 {
		every = 1
	}
	return every
}

// Run executes exactly cfg.Steps trial moves and returns the mutated
// lattice. A snapshot is taken after step i whenever i is a multiple of the
// snapshot interval.
func (s *Simulator) Run(ctx context.Context) (*lattice.Lattice, error) {
	every := SnapshotInterval(s.cfg.Steps, s.cfg.Snapshots)
	if every > 0 && s.snapshots == nil {
		s.snapshots = make([]lattice.Snapshot, 0, s.cfg.Steps/every+1)
	}

	s.log.Debug("run started",
		zap.Float64("temperature", s.cfg.Temperature),
		zap.Int("steps", s.cfg.Steps),
		zap.Int("rows", s.cfg.Rows),
		zap.Int("cols", s.cfg.Cols),
	)

	for i := 0; i < s.cfg.Steps; i++ {
		if i%cancelCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return nil, &canceledError{step: i, cause: ctx.Err()}
			default:
			}
		}

		if err := s.Step(); err != nil {
			return nil, err
		}

		if every > 0 && i%every == 0 {
			s.snapshots = append(s.snapshots, s.lat.Snapshot())
		}
	}

	s.log.Debug("run finished",
		zap.Float64("temperature", s.cfg.Temperature),
		zap.Int("accepted", s.accepted),
	)
	return s.lat, nil
}

// Result reports the lattice totals as they stand now.
func (s *Simulator) Result() RunResult {
	return RunResult{
		Temperature:   s.cfg.Temperature,
		Energy:        s.lat.TotalEnergy(),
		Magnetization: s.lat.Magnetization(),
		Sites:         s.lat.Sites(),
		Steps:         s.steps,
		Accepted:      s.accepted,
	}
}

// Outcome is everything a single visualized run produces.
type Outcome struct {
	Lattice   *lattice.Lattice
	Result    RunResult
	Snapshots []lattice.Snapshot
}

// Simulate builds a lattice and a seeded source from cfg, runs to completion
// and returns the final state together with the captured snapshots.
func Simulate(ctx context.Context, cfg Config, opts ...Option) (*Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	src := NewSource(cfg.Seed)
	lat, err := cfg.NewLattice(src)
	if err != nil {
		return nil, err
	}
	s, err := New(cfg, lat, src, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := s.Run(ctx); err != nil {
		return nil, err
	}
	return &Outcome{
		Lattice:   s.lat,
		Result:    s.Result(),
		Snapshots: s.Snapshots(),
	}, nil
}
