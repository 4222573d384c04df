// Package viz renders Ising lattices and sweep results in the terminal.
//
//   - [RenderLattice]: half-block rendering of a spin configuration
//   - [PlotSweep]: magnetization against temperature with the Onsager curve
//   - [Player]: Bubble Tea model that runs a simulation live
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	Up/Dn - Raise/lower temperature
//	+/-   - More/fewer steps per frame
//	[ ]   - Scrub through captured history
//	T     - Cycle color themes
//	G     - Toggle GIF recording
//	R     - Reset to the initial lattice
//
// # Recording
//
// Recordings are written as ising.gif in the current directory.
package viz
