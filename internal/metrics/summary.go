package metrics

import (
	"sync"
	"time"

	"github.com/san-kum/ising/internal/dynamo"
)

// Summary accumulates completed runs of a sweep. It is safe for concurrent
// use and implements dynamo.Observer.
type Summary struct {
	mu       sync.Mutex
	runs     int
	failed   int
	steps    int
	accepted int
	busy     time.Duration
}

func NewSummary() *Summary { return &Summary{} }

func (s *Summary) RunStarted(float64) {}

func (s *Summary) RunFinished(res dynamo.RunResult, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	s.steps += res.Steps
	s.accepted += res.Accepted
	s.busy += elapsed
}

func (s *Summary) RunFailed(float64, error) {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
}

// Snapshot is a point-in-time copy of a Summary.
type Snapshot struct {
	Runs       int
	Failed     int
	Steps      int
	Acceptance float64
	Busy       time.Duration
}

func (s *Summary) Value() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{Runs: s.runs, Failed: s.failed, Steps: s.steps, Busy: s.busy}
	if s.steps > 0 {
		snap.Acceptance = float64(s.accepted) / float64(s.steps)
	}
	return snap
}

func (s *Summary) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs, s.failed, s.steps, s.accepted, s.busy = 0, 0, 0, 0, 0
}

// Tee fans observer callbacks out to every non-nil observer.
func Tee(observers ...dynamo.Observer) dynamo.Observer {
	live := make(tee, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			live = append(live, o)
		}
	}
	return live
}

type tee []dynamo.Observer

func (t tee) RunStarted(temp float64) {
	for _, o := range t {
		o.RunStarted(temp)
	}
}

func (t tee) RunFinished(res dynamo.RunResult, elapsed time.Duration) {
	for _, o := range t {
		o.RunFinished(res, elapsed)
	}
}

func (t tee) RunFailed(temp float64, err error) {
	for _, o := range t {
		o.RunFailed(temp, err)
	}
}
