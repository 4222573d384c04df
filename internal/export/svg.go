// Package export renders simulation output to files: lattice animations as
// GIF and magnetization curves as SVG.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/ising/internal/analysis"
)

// Curve is one polyline of a plot. Points with non-finite coordinates are
// skipped.
type Curve struct {
	Name   string
	Color  string
	X, Y   []float64
	Dashed bool
}

// Plot describes an SVG chart. Markers are vertical lines at the given x.
type Plot struct {
	Width, Height int
	Title         string
	Curves        []Curve
	Markers       []float64
}

// SVG draws the plot with shared axes scaled to fit every curve.
func (p Plot) SVG() string {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, c := range p.Curves {
		for i := range c.X {
			if i >= len(c.Y) || !finite(c.X[i]) || !finite(c.Y[i]) {
				continue
			}
			minX, maxX = math.Min(minX, c.X[i]), math.Max(maxX, c.X[i])
			minY, maxY = math.Min(minY, c.Y[i]), math.Max(maxY, c.Y[i])
		}
	}
	if math.IsInf(minX, 1) {
		return ""
	}

	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.05
	rangeY *= 1.1

	w, h := float64(p.Width), float64(p.Height)
	px := func(x float64) float64 { return (x - minX) / rangeX * w }
	py := func(y float64) float64 { return h - (y-minY)/rangeY*h }

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, p.Width, p.Height, p.Width, p.Height)
	if p.Title != "" {
		fmt.Fprintf(&sb, "<text x=\"8\" y=\"16\" fill=\"#cccccc\" font-size=\"12\">%s</text>\n", escape(p.Title))
	}

	for _, m := range p.Markers {
		if !finite(m) {
			continue
		}
		fmt.Fprintf(&sb, "<line x1=\"%.1f\" y1=\"0\" x2=\"%.1f\" y2=\"%d\" stroke=\"#ff5555\" stroke-dasharray=\"4 3\"/>\n",
			px(m), px(m), p.Height)
	}

	for _, c := range p.Curves {
		var d strings.Builder
		for i := range c.X {
			if i >= len(c.Y) || !finite(c.X[i]) || !finite(c.Y[i]) {
				continue
			}
			if d.Len() == 0 {
				fmt.Fprintf(&d, "M%.1f,%.1f", px(c.X[i]), py(c.Y[i]))
			} else {
				fmt.Fprintf(&d, " L%.1f,%.1f", px(c.X[i]), py(c.Y[i]))
			}
		}
		if d.Len() == 0 {
			continue
		}
		dash := ""
		if c.Dashed {
			dash = ` stroke-dasharray="6 4"`
		}
		fmt.Fprintf(&sb, "<path fill=\"none\" stroke=\"%s\" stroke-width=\"1.5\"%s d=\"%s\"><title>%s</title></path>\n",
			c.Color, dash, d.String(), escape(c.Name))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// EstimateToSVG plots measured and smoothed magnetization, |dM/dT| scaled to
// the unit interval, the Onsager curve for tc and a marker at the estimate.
func EstimateToSVG(est *analysis.Estimate, tc float64, width, height int) string {
	if est == nil || len(est.Temperatures) == 0 {
		return ""
	}

	deriv := make([]float64, len(est.Derivative))
	peak := 0.0
	for _, d := range est.Derivative {
		peak = math.Max(peak, d)
	}
	for i, d := range est.Derivative {
		if peak > 0 {
			deriv[i] = d / peak
		}
	}

	plot := Plot{
		Width:  width,
		Height: height,
		Title:  fmt.Sprintf("Tc = %.3f", est.CriticalTemperature),
		Curves: []Curve{
			{Name: "magnetization", Color: "#00ff00", X: est.Temperatures, Y: est.Magnetization},
			{Name: "smoothed", Color: "#55aaff", X: est.Temperatures, Y: est.Smoothed},
			{Name: "|dM/dT|", Color: "#ffaa00", X: est.Temperatures, Y: deriv},
			{Name: "onsager", Color: "#aaaaaa", X: est.Temperatures, Y: analysis.OnsagerCurve(tc, est.Temperatures), Dashed: true},
		},
		Markers: []float64{est.CriticalTemperature},
	}
	return plot.SVG()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
