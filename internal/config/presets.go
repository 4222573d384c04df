package config

import "sort"

// Presets adjust the defaults for common study sizes.
var Presets = map[string]func(*Config){
	// reference is the full study: 100x100 lattice, 100 temperatures.
	"reference": func(c *Config) {},
	"small": func(c *Config) {
		c.Lattice.Rows, c.Lattice.Cols = 32, 32
		c.Sweep.MinTemperature, c.Sweep.MaxTemperature = 1.0, 3.5
		c.Sweep.Simulations = 40
		c.Sweep.Steps = 50000
		c.Sweep.Workers = 4
		c.Run.Steps = 50000
	},
	"quick": func(c *Config) {
		c.Lattice.Rows, c.Lattice.Cols = 16, 16
		c.Sweep.MinTemperature, c.Sweep.MaxTemperature = 1.5, 3.0
		c.Sweep.Simulations = 24
		c.Sweep.Steps = 5000
		c.Sweep.Workers = 4
		c.Run.Steps = 5000
		c.Run.Frames = 50
	},
}

// GetPreset returns a fresh configuration for name, or nil if it is unknown.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
