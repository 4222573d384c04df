package analysis

import "math"

// OnsagerTc is the exact critical temperature 2/ln(1+√2) for J = k = 1.
var OnsagerTc = 2 / math.Log(1+math.Sqrt2)

// Onsager returns the spontaneous magnetization per site of the infinite 2D
// lattice, (1 - sinh(2/T)^-4)^(1/8) below tc and 0 at or above it.
func Onsager(tc, t float64) float64 {
	if t >= tc {
		return 0
	}
	if t <= 0 {
		return 1
	}
	inner := 1 - math.Pow(math.Sinh(2/t), -4)
	if inner <= 0 {
		return 0
	}
	return math.Pow(inner, 1.0/8)
}

// OnsagerCurve evaluates Onsager at every temperature.
func OnsagerCurve(tc float64, temps []float64) []float64 {
	out := make([]float64, len(temps))
	for i, t := range temps {
		out[i] = Onsager(tc, t)
	}
	return out
}
