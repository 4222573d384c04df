// Package dynamo runs Metropolis Monte Carlo simulations of the 2D Ising
// model and sweeps them across temperatures.
//
// The package provides:
//
//   - [Config]: immutable parameters of a single run
//   - [Simulator]: single-spin-flip Metropolis chain over a lattice
//   - [Simulate]: one-shot run returning the final lattice and snapshots
//   - [Sweep]: bounded worker pool running one Simulator per temperature
//   - [Series]: temperature-ordered (T, energy, magnetization) table
//
// # Example
//
//	cfg := dynamo.DefaultConfig()
//	cfg.Rows, cfg.Cols, cfg.Steps = 32, 32, 200000
//	temps, _ := dynamo.Linspace(1.0, 4.0, 60)
//	sweep := dynamo.NewSweep(cfg, runtime.NumCPU())
//	series, err := sweep.Run(ctx, temps)
//
// # Thread Safety
//
// A Simulator owns its lattice and random source and is NOT safe for
// concurrent use. Steps within a run are strictly sequential. A Sweep gives
// every temperature a private lattice, simulator and source.
package dynamo
