package analysis

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/ising/internal/errs"
)

// SavitzkyGolay smooths y with a least-squares polynomial of the given order
// fitted over a sliding window, matching scipy's savgol_filter in interp
// mode.
//
// Interior output i is the polynomial fitted to samples
// [i-(window-1)/2, i+window/2] evaluated at the centre of that window. For an
// even window the centre lies half a sample above i. The first and last
// window/2 outputs are the first and last full-window fits evaluated at their
// own indices.
func SavitzkyGolay(y []float64, window, order int) ([]float64, error) {
	if window < 1 || order < 0 || order >= window {
		return nil, errs.E("analysis", "SavitzkyGolay", errs.ErrInvalidParameter,
			"need 0 <= order < window, got order %d window %d", order, window)
	}
	n := len(y)
	if n < window {
		return nil, errs.E("analysis", "SavitzkyGolay", errs.ErrInsufficientData,
			"%d points, window needs %d", n, window)
	}

	// Local abscissae centered on the window keep the Vandermonde matrix well
	// conditioned; the same factorization serves every window.
	center := float64(window-1) / 2
	v := mat.NewDense(window, order+1, nil)
	for r := 0; r < window; r++ {
		x := float64(r) - center
		p := 1.0
		for c := 0; c <= order; c++ {
			v.Set(r, c, p)
			p *= x
		}
	}
	var qr mat.QR
	qr.Factorize(v)

	fit := func(start int) (*mat.VecDense, error) {
		var coef mat.VecDense
		b := mat.NewVecDense(window, append([]float64(nil), y[start:start+window]...))
		if err := qr.SolveVecTo(&coef, false, b); err != nil {
			return nil, errs.E("analysis", "SavitzkyGolay", errs.ErrInvalidParameter, "least squares: %v", err)
		}
		return &coef, nil
	}

	out := make([]float64, n)
	half := window / 2

	head, err := fit(0)
	if err != nil {
		return nil, err
	}
	tail, err := fit(n - window)
	if err != nil {
		return nil, err
	}
	for i := 0; i < half; i++ {
		out[i] = horner(head, float64(i)-center)
		j := n - half + i
		out[j] = horner(tail, float64(j-(n-window))-center)
	}

	for i := half; i < n-half; i++ {
		coef, err := fit(i - (window-1)/2)
		if err != nil {
			return nil, err
		}
		out[i] = horner(coef, 0)
	}
	return out, nil
}

func horner(coef *mat.VecDense, x float64) float64 {
	v := 0.0
	for c := coef.Len() - 1; c >= 0; c-- {
		v = v*x + coef.AtVec(c)
	}
	return v
}
