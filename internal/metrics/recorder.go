// Package metrics exports sweep progress to Prometheus and keeps running
// summaries of completed runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/ising/internal/dynamo"
)

// Recorder implements dynamo.Observer on top of Prometheus collectors.
type Recorder struct {
	runs       *prometheus.CounterVec
	inFlight   prometheus.Gauge
	duration   prometheus.Histogram
	acceptance prometheus.Histogram
	steps      prometheus.Counter
}

var _ dynamo.Observer = (*Recorder)(nil)

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ising",
			Name:      "runs_total",
			Help:      "Monte Carlo runs by outcome.",
		}, []string{"status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ising",
			Name:      "runs_in_flight",
			Help:      "Runs currently executing.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ising",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one completed run.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		acceptance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ising",
			Name:      "acceptance_ratio",
			Help:      "Fraction of accepted flips per completed run.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ising",
			Name:      "steps_total",
			Help:      "Metropolis steps taken by completed runs.",
		}),
	}

	for _, c := range []prometheus.Collector{r.runs, r.inFlight, r.duration, r.acceptance, r.steps} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) RunStarted(float64) {
	r.inFlight.Inc()
}

func (r *Recorder) RunFinished(res dynamo.RunResult, elapsed time.Duration) {
	r.inFlight.Dec()
	r.runs.WithLabelValues("ok").Inc()
	r.duration.Observe(elapsed.Seconds())
	r.acceptance.Observe(res.AcceptanceRatio())
	r.steps.Add(float64(res.Steps))
}

func (r *Recorder) RunFailed(float64, error) {
	r.inFlight.Dec()
	r.runs.WithLabelValues("failed").Inc()
}
