package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/ising/internal/lattice"
)

// RenderLattice draws snap with two lattice rows per text line using upper
// half blocks. Lattices larger than maxRows x maxCols are subsampled. A
// non-positive bound leaves that dimension unscaled.
func RenderLattice(snap lattice.Snapshot, theme Theme, maxRows, maxCols int) string {
	rows, cols := snap.Rows(), snap.Cols()
	if rows == 0 || cols == 0 {
		return ""
	}
	rowIdx := sampleIndices(rows, maxRows)
	colIdx := sampleIndices(cols, maxCols)

	cell := map[[2]bool]string{}
	style := func(top, bottom bool) string {
		key := [2]bool{top, bottom}
		if s, ok := cell[key]; ok {
			return s
		}
		s := lipgloss.NewStyle().
			Foreground(spinColor(theme, top)).
			Background(spinColor(theme, bottom)).
			Render("▀")
		cell[key] = s
		return s
	}

	var sb strings.Builder
	for r := 0; r < len(rowIdx); r += 2 {
		top := snap[rowIdx[r]]
		bottom := top
		if r+1 < len(rowIdx) {
			bottom = snap[rowIdx[r+1]]
		}
		for _, c := range colIdx {
			sb.WriteString(style(top[c] == lattice.Up, bottom[c] == lattice.Up))
		}
		if r+2 < len(rowIdx) {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func spinColor(theme Theme, up bool) lipgloss.Color {
	if up {
		return theme.Up
	}
	return theme.Down
}

// sampleIndices picks at most limit evenly spread indices out of n.
func sampleIndices(n, limit int) []int {
	if limit <= 0 || n <= limit {
		limit = n
	}
	idx := make([]int, limit)
	for k := range idx {
		idx[k] = k * n / limit
	}
	return idx
}

// SnapshotMagnetization returns |Σs| / sites for snap.
func SnapshotMagnetization(snap lattice.Snapshot) float64 {
	sum, sites := 0, 0
	for _, row := range snap {
		for _, s := range row {
			sum += int(s)
		}
		sites += len(row)
	}
	if sites == 0 {
		return 0
	}
	if sum < 0 {
		sum = -sum
	}
	return float64(sum) / float64(sites)
}
