// Package analysis post-processes sweep results to locate the critical
// temperature of the Ising model.
//
// The package provides:
//
//   - [SavitzkyGolay]: local polynomial smoothing of a noisy curve
//   - [Gradient]: numerical derivative on a non-uniform grid
//   - [Estimator]: smoothed magnetization, |dM/dT| and its arg-max
//   - [Onsager]: exact zero-field magnetization of the infinite lattice
//
// # Critical Temperature
//
// The critical temperature is the sampled temperature where the smoothed
// magnetization changes fastest:
//
//	est, err := analysis.DefaultEstimator().Estimate(series)
//	if err == nil {
//	    fmt.Printf("Tc ≈ %.3f\n", est.CriticalTemperature)
//	}
package analysis
