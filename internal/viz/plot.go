package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/ising/internal/analysis"
	"github.com/san-kum/ising/internal/dynamo"
)

// PlotSweep charts magnetization per site against temperature together with
// the Onsager curve for tc. When est is not nil its smoothed curve is drawn
// too and the estimate is reported in the caption.
func PlotSweep(series dynamo.Series, est *analysis.Estimate, tc float64, width, height int) string {
	if len(series) == 0 {
		return ""
	}
	temps := series.Temperatures()

	data := [][]float64{series.Magnetizations(), analysis.OnsagerCurve(tc, temps)}
	colors := []asciigraph.AnsiColor{asciigraph.Green, asciigraph.Gray}
	caption := fmt.Sprintf("|M| per site (green), Onsager (gray), T in [%.3g, %.3g]", temps[0], temps[len(temps)-1])
	if est != nil {
		data = append(data, est.Smoothed)
		colors = append(colors, asciigraph.Blue)
		caption += fmt.Sprintf(", smoothed (blue), Tc ≈ %.3f", est.CriticalTemperature)
	}

	return asciigraph.PlotMany(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.LowerBound(0),
		asciigraph.UpperBound(1),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption(caption),
	)
}

// PlotEnergy charts energy per site against temperature.
func PlotEnergy(series dynamo.Series, width, height int) string {
	if len(series) == 0 {
		return ""
	}
	temps := series.Temperatures()
	return asciigraph.Plot(series.Energies(),
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(fmt.Sprintf("energy per site, T in [%.3g, %.3g]", temps[0], temps[len(temps)-1])),
	)
}
