package dynamo

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/ising/internal/errs"
)

// SeriesPoint is one row of a sweep: per-site energy and magnetization at a
// temperature.
type SeriesPoint struct {
	Temperature   float64 `json:"temperature"`
	Energy        float64 `json:"energy"`
	Magnetization float64 `json:"magnetization"`
}

// Series is a sweep table ordered by ascending, distinct temperature.
type Series []SeriesPoint

func (s Series) Len() int           { return len(s) }
func (s Series) Less(i, j int) bool { return s[i].Temperature < s[j].Temperature }
func (s Series) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

func (s Series) Temperatures() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Temperature
	}
	return out
}

func (s Series) Energies() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Energy
	}
	return out
}

func (s Series) Magnetizations() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Magnetization
	}
	return out
}

// Validate checks that temperatures are strictly ascending.
func (s Series) Validate() error {
	for i := 1; i < len(s); i++ {
		if !(s[i].Temperature > s[i-1].Temperature) {
			return errs.E("dynamo", "Series.Validate", errs.ErrInvalidParameter,
				"temperatures not strictly ascending at index %d (%g after %g)", i, s[i].Temperature, s[i-1].Temperature)
		}
	}
	return nil
}

// NewSeries zips parallel columns into a series.
func NewSeries(temps, energies, mags []float64) (Series, error) {
	if len(temps) != len(energies) || len(temps) != len(mags) {
		return nil, errs.E("dynamo", "NewSeries", errs.ErrInvalidParameter,
			"column lengths differ: %d, %d, %d", len(temps), len(energies), len(mags))
	}
	s := make(Series, len(temps))
	for i := range temps {
		s[i] = SeriesPoint{Temperature: temps[i], Energy: energies[i], Magnetization: mags[i]}
	}
	return s, nil
}

// Linspace returns n evenly spaced temperatures from lo to hi inclusive.
func Linspace(lo, hi float64, n int) ([]float64, error) {
	switch {
	case n <= 0:
		return nil, errs.E("dynamo", "Linspace", errs.ErrInvalidParameter, "count must be positive, got %d", n)
	case n == 1:
		return []float64{lo}, nil
	}
	return floats.Span(make([]float64, n), lo, hi), nil
}
