package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/ising/internal/dynamo"
	"github.com/san-kum/ising/internal/errs"
)

const (
	DefaultWindow = 20
	DefaultOrder  = 3
)

type Estimator struct {
	Window int
	Order  int
}

func DefaultEstimator() Estimator {
	return Estimator{Window: DefaultWindow, Order: DefaultOrder}
}

// Estimate is the outcome of a critical temperature search. Every slice is
// aligned with Temperatures.
type Estimate struct {
	CriticalTemperature float64   `json:"critical_temperature"`
	Index               int       `json:"index"`
	Temperatures        []float64 `json:"temperatures"`
	Magnetization       []float64 `json:"magnetization"`
	Smoothed            []float64 `json:"smoothed_magnetization"`
	Derivative          []float64 `json:"derivative"`
}

// Estimate smooths the magnetization of series, differentiates it with
// respect to temperature and returns the sampled temperature with the
// largest |dM/dT|. Ties resolve to the lowest temperature.
func (e Estimator) Estimate(series dynamo.Series) (*Estimate, error) {
	return e.EstimateColumns(series.Temperatures(), series.Magnetizations())
}

func (e Estimator) EstimateColumns(temps, mags []float64) (*Estimate, error) {
	if len(temps) != len(mags) {
		return nil, errs.E("analysis", "Estimate", errs.ErrInvalidParameter,
			"%d temperatures, %d magnetizations", len(temps), len(mags))
	}
	if len(temps) < e.Window {
		return nil, errs.E("analysis", "Estimate", errs.ErrInsufficientData,
			"%d points, smoothing window needs %d", len(temps), e.Window)
	}
	for i, m := range mags {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return nil, errs.E("analysis", "Estimate", errs.ErrInvalidParameter, "magnetization %d is %g", i, m)
		}
	}

	smoothed, err := SavitzkyGolay(mags, e.Window, e.Order)
	if err != nil {
		return nil, err
	}
	deriv, err := Gradient(smoothed, temps)
	if err != nil {
		return nil, err
	}
	for i := range deriv {
		deriv[i] = math.Abs(deriv[i])
	}

	idx := floats.MaxIdx(deriv)
	return &Estimate{
		CriticalTemperature: temps[idx],
		Index:               idx,
		Temperatures:        append([]float64(nil), temps...),
		Magnetization:       append([]float64(nil), mags...),
		Smoothed:            smoothed,
		Derivative:          deriv,
	}, nil
}
