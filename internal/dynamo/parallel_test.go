package dynamo_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/ising/internal/dynamo"
	"github.com/san-kum/ising/internal/errs"
)

type countingObserver struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	finished    int
	failed      []float64
}

func (o *countingObserver) RunStarted(float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight++
	if o.inFlight > o.maxInFlight {
		o.maxInFlight = o.inFlight
	}
}

func (o *countingObserver) RunFinished(dynamo.RunResult, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight--
	o.finished++
}

func (o *countingObserver) RunFailed(t float64, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight--
	o.failed = append(o.failed, t)
}

var _ = Describe("Sweep", func() {
	var (
		ctx  context.Context
		base dynamo.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		base = smallConfig(8, 8, 1, 2000)
		base.Seed = 7
	})

	It("returns results sorted by temperature whatever the submission order", func() {
		series, err := dynamo.NewSweep(base, 3).Run(ctx, []float64{3.0, 1.0, 2.0})
		Expect(err).NotTo(HaveOccurred())
		Expect(series.Temperatures()).To(Equal([]float64{1.0, 2.0, 3.0}))
		Expect(series.Validate()).To(Succeed())
	})

	It("normalizes energy and magnetization per site", func() {
		cold := smallConfig(6, 6, 1, 0)
		series, err := dynamo.NewSweep(cold, 1).Run(ctx, []float64{0.5})
		Expect(err).NotTo(HaveOccurred())
		Expect(series).To(HaveLen(1))
		Expect(series[0].Magnetization).To(Equal(1.0))
		Expect(series[0].Energy).To(Equal(8.0))
	})

	It("never runs more workers than the bound", func() {
		obs := &countingObserver{}
		heavy := smallConfig(16, 16, 1, 30000)
		temps, _ := dynamo.Linspace(1.0, 4.0, 8)

		series, err := dynamo.NewSweep(heavy, 2, dynamo.WithObserver(obs)).Run(ctx, temps)
		Expect(err).NotTo(HaveOccurred())
		Expect(series).To(HaveLen(8))
		Expect(obs.maxInFlight).To(BeNumerically(">=", 1))
		Expect(obs.maxInFlight).To(BeNumerically("<=", 2))
		Expect(obs.finished).To(Equal(8))
		Expect(obs.inFlight).To(Equal(0))
	})

	It("is reproducible and matches standalone runs seeded by submission index", func() {
		temps := []float64{2.5, 1.5, 3.5}
		a, err := dynamo.NewSweep(base, 3).Run(ctx, temps)
		Expect(err).NotTo(HaveOccurred())
		b, err := dynamo.NewSweep(base, 1).Run(ctx, temps)
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(b))

		single := base
		single.Temperature = 1.5
		single.Seed = base.Seed + 1
		out, err := dynamo.Simulate(ctx, single)
		Expect(err).NotTo(HaveOccurred())
		e, m := out.Result.PerSite()
		Expect(a[0].Temperature).To(Equal(1.5))
		Expect(a[0].Energy).To(Equal(e))
		Expect(a[0].Magnetization).To(Equal(m))
	})

	It("fails the whole sweep and names the offending temperature", func() {
		obs := &countingObserver{}
		series, err := dynamo.NewSweep(base, 2, dynamo.WithObserver(obs)).Run(ctx, []float64{1.0, -1.0, 2.0})
		Expect(series).To(BeNil())
		Expect(err).To(MatchError(errs.ErrInvalidParameter))

		var wf *dynamo.WorkerFailure
		Expect(errors.As(err, &wf)).To(BeTrue())
		Expect(wf.Temperature).To(Equal(-1.0))
		Expect(obs.failed).To(ContainElement(-1.0))
	})

	DescribeTable("rejects bad sweeps before starting any worker",
		func(workers int, temps []float64, mutate func(*dynamo.Config)) {
			cfg := base
			if mutate != nil {
				mutate(&cfg)
			}
			obs := &countingObserver{}
			_, err := dynamo.NewSweep(cfg, workers, dynamo.WithObserver(obs)).Run(ctx, temps)
			Expect(err).To(MatchError(errs.ErrInvalidParameter))
			Expect(obs.maxInFlight).To(Equal(0))
		},
		Entry("no workers", 0, []float64{1}, nil),
		Entry("no temperatures", 2, []float64{}, nil),
		Entry("duplicate temperature", 2, []float64{1, 2, 1}, nil),
		Entry("bad dimensions", 2, []float64{1, 2}, func(c *dynamo.Config) { c.Rows = 0 }),
	)

	It("drains and fails when the context is canceled", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := dynamo.NewSweep(smallConfig(8, 8, 1, 100000), 2).Run(cctx, []float64{1, 2, 3})
		Expect(err).To(MatchError(dynamo.ErrCanceled))
	})
})

var _ = Describe("Series helpers", func() {
	It("builds evenly spaced temperatures", func() {
		temps, err := dynamo.Linspace(0.1, 4.0, 100)
		Expect(err).NotTo(HaveOccurred())
		Expect(temps).To(HaveLen(100))
		Expect(temps[0]).To(Equal(0.1))
		Expect(temps[99]).To(BeNumerically("~", 4.0, 1e-12))
		Expect(temps[1] - temps[0]).To(BeNumerically("~", 3.9/99, 1e-12))

		one, err := dynamo.Linspace(2, 3, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(one).To(Equal([]float64{2}))

		_, err = dynamo.Linspace(1, 2, 0)
		Expect(err).To(MatchError(errs.ErrInvalidParameter))
	})

	It("zips and validates columns", func() {
		s, err := dynamo.NewSeries([]float64{1, 2}, []float64{-2, -1}, []float64{0.9, 0.1})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Energies()).To(Equal([]float64{-2, -1}))
		Expect(s.Magnetizations()).To(Equal([]float64{0.9, 0.1}))

		_, err = dynamo.NewSeries([]float64{1}, nil, nil)
		Expect(err).To(MatchError(errs.ErrInvalidParameter))

		bad := dynamo.Series{{Temperature: 2}, {Temperature: 2}}
		Expect(bad.Validate()).To(MatchError(errs.ErrInvalidParameter))
	})
})
