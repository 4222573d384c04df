package analysis

import "github.com/san-kum/ising/internal/errs"

// Gradient returns dy/dx sampled at x, which must be strictly increasing but
// need not be evenly spaced. Interior points use second-order central
// differences; the two end points use one-sided first differences.
func Gradient(y, x []float64) ([]float64, error) {
	n := len(y)
	if len(x) != n {
		return nil, errs.E("analysis", "Gradient", errs.ErrInvalidParameter, "len(y)=%d, len(x)=%d", n, len(x))
	}
	if n < 2 {
		return nil, errs.E("analysis", "Gradient", errs.ErrInsufficientData, "need at least 2 points, got %d", n)
	}
	for i := 1; i < n; i++ {
		if !(x[i] > x[i-1]) {
			return nil, errs.E("analysis", "Gradient", errs.ErrInvalidParameter, "x not strictly increasing at %d", i)
		}
	}

	d := make([]float64, n)
	d[0] = (y[1] - y[0]) / (x[1] - x[0])
	d[n-1] = (y[n-1] - y[n-2]) / (x[n-1] - x[n-2])
	for i := 1; i < n-1; i++ {
		hs := x[i] - x[i-1]
		hd := x[i+1] - x[i]
		d[i] = (hs*hs*y[i+1] + (hd*hd-hs*hs)*y[i] - hd*hd*y[i-1]) / (hs * hd * (hd + hs))
	}
	return d, nil
}
