package dynamo

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/ising/internal/errs"
)

// Sweep runs one independent simulation per temperature on a bounded pool of
// workers. Every run gets its own lattice, simulator and source seeded with
// Base.Seed plus the temperature's submission index, so a sweep is
// reproducible regardless of scheduling.
type Sweep struct {
	Base     Config
	Workers  int
	observer Observer
	log      *zap.Logger
}

type SweepOption func(*Sweep)

func WithObserver(o Observer) SweepOption {
	return func(s *Sweep) {
		if o != nil {
			s.observer = o
		}
	}
}

func WithSweepLogger(l *zap.Logger) SweepOption {
	return func(s *Sweep) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSweep prepares a sweep. base.Temperature is ignored.
func NewSweep(base Config, workers int, opts ...SweepOption) *Sweep {
	s := &Sweep{
		Base:     base,
		Workers:  workers,
		observer: nopObserver{},
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sweep) preflight(temps []float64) error {
	if s.Workers <= 0 {
		return errs.E("dynamo", "Sweep", errs.ErrInvalidParameter, "workers must be positive, got %d", s.Workers)
	}
	if len(temps) == 0 {
		return errs.E("dynamo", "Sweep", errs.ErrInvalidParameter, "no temperatures")
	}
	probe := s.Base
	probe.Temperature = 1
	if err := probe.Validate(); err != nil {
		return err
	}
	seen := make(map[float64]struct{}, len(temps))
	for _, t := range temps {
		if _, dup := seen[t]; dup {
			return errs.E("dynamo", "Sweep", errs.ErrInvalidParameter, "duplicate temperature %g", t)
		}
		seen[t] = struct{}{}
	}
	return nil
}

// Run simulates every temperature and returns the per-site results sorted by
// ascending temperature. The first failing run cancels the others and the
// whole sweep fails with a *WorkerFailure; no partial series is returned.
// Run returns only after every worker has exited.
func (s *Sweep) Run(ctx context.Context, temps []float64) (Series, error) {
	if err := s.preflight(temps); err != nil {
		return nil, err
	}

	start := time.Now()
	s.log.Info("sweep started",
		zap.Int("temperatures", len(temps)),
		zap.Int("workers", s.Workers),
		zap.Int("rows", s.Base.Rows),
		zap.Int("cols", s.Base.Cols),
		zap.Int("steps", s.Base.Steps),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)

	// Filled in completion order.
	done := make(chan RunResult, len(temps))

	for idx, t := range temps {
		if gctx.Err() != nil {
			break
		}
		cfg := s.Base
		cfg.Temperature = t
		cfg.Seed = s.Base.Seed + int64(idx)
		cfg.Snapshots = 0

		g.Go(func() error {
			res, err := s.runOne(gctx, cfg)
			if err != nil {
				s.observer.RunFailed(t, err)
				s.log.Error("run failed", zap.Float64("temperature", t), zap.Error(err))
				return &WorkerFailure{Temperature: t, Err: err}
			}
			done <- res
			return nil
		})
	}

	err := g.Wait()
	close(done)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, &canceledError{cause: ctx.Err()}
	}

	series := make(Series, 0, len(temps))
	for res := range done {
		e, m := res.PerSite()
		series = append(series, SeriesPoint{
			Temperature:   res.Temperature,
			Energy:        e,
			Magnetization: m,
		})
	}
	sort.Sort(series)

	s.log.Info("sweep finished",
		zap.Int("runs", len(series)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return series, nil
}

func (s *Sweep) runOne(ctx context.Context, cfg Config) (res RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dynamo: panic in run: %v\n%s", r, debug.Stack())
		}
	}()

	s.observer.RunStarted(cfg.Temperature)
	start := time.Now()

	src := NewSource(cfg.Seed)
	lat, err := cfg.NewLattice(src)
	if err != nil {
		return RunResult{}, err
	}
	sim, err := New(cfg, lat, src, WithLogger(s.log))
	if err != nil {
		return RunResult{}, err
	}
	if _, err := sim.Run(ctx); err != nil {
		return RunResult{}, err
	}

	res = sim.Result()
	s.observer.RunFinished(res, time.Since(start))
	return res, nil
}
