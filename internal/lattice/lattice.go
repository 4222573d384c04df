// Package lattice holds the spin grid of a square Ising lattice with periodic
// boundary conditions.
package lattice

import (
	"strings"

	"github.com/san-kum/ising/internal/errs"
)

// Spin is a site state, +1 or -1.
type Spin int8

const (
	Up   Spin = 1
	Down Spin = -1
)

// InitMode selects how New fills the grid.
type InitMode int

const (
	AllUp InitMode = iota
	AllDown
	Random
)

func (m InitMode) String() string {
	switch m {
	case AllUp:
		return "up"
	case AllDown:
		return "down"
	case Random:
		return "random"
	default:
		return "unknown"
	}
}

// ParseInitMode accepts "up", "down", "random" and the numeric forms "1" and "-1".
func ParseInitMode(s string) (InitMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "allup", "all_up", "1", "+1":
		return AllUp, nil
	case "down", "alldown", "all_down", "-1":
		return AllDown, nil
	case "random", "rand":
		return Random, nil
	}
	return 0, errs.E("lattice", "ParseInitMode", errs.ErrInvalidParameter, "unknown init mode %q", s)
}

// Source supplies the randomness for Random initialization.
type Source interface {
	IntN(n int) int
}

// Lattice is a rows x cols toroidal grid of spins stored in row-major order.
// Dimensions never change after construction.
type Lattice struct {
	rows, cols int
	coupling   float64
	moment     float64
	spins      []Spin
}

type Option func(*Lattice)

// WithCoupling sets the nearest-neighbor coupling J (default 1).
func WithCoupling(j float64) Option {
	return func(l *Lattice) { l.coupling = j }
}

// WithMoment sets the magnetic-moment unit that scales magnetization (default 1).
func WithMoment(mu float64) Option {
	return func(l *Lattice) { l.moment = mu }
}

// New allocates a lattice and fills it according to mode. src is only
// consulted for Random and must be non-nil in that case.
func New(rows, cols int, mode InitMode, src Source, opts ...Option) (*Lattice, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errs.E("lattice", "New", errs.ErrInvalidParameter, "dimensions must be positive, got %dx%d", rows, cols)
	}
	l := &Lattice{
		rows:     rows,
		cols:     cols,
		coupling: 1,
		moment:   1,
		spins:    make([]Spin, rows*cols),
	}
	for _, opt := range opts {
		opt(l)
	}
	if !(l.moment > 0) {
		return nil, errs.E("lattice", "New", errs.ErrInvalidParameter, "magnetic moment must be positive, got %g", l.moment)
	}
	if err := l.Initialize(mode, src); err != nil {
		return nil, err
	}
	return l, nil
}

// Initialize refills every cell.
func (l *Lattice) Initialize(mode InitMode, src Source) error {
	switch mode {
	case AllUp:
		l.fill(Up)
	case AllDown:
		l.fill(Down)
	case Random:
		if src == nil {
			return errs.E("lattice", "Initialize", errs.ErrInvalidParameter, "random init requires a source")
		}
		for i := range l.spins {
			if src.IntN(2) == 0 {
				l.spins[i] = Up
			} else {
				l.spins[i] = Down
			}
		}
	default:
		return errs.E("lattice", "Initialize", errs.ErrInvalidParameter, "unknown init mode %d", int(mode))
	}
	return nil
}

func (l *Lattice) fill(s Spin) {
	for i := range l.spins {
		l.spins[i] = s
	}
}

func (l *Lattice) Rows() int         { return l.rows }
func (l *Lattice) Cols() int         { return l.cols }
func (l *Lattice) Sites() int        { return l.rows * l.cols }
func (l *Lattice) Coupling() float64 { return l.coupling }
func (l *Lattice) Moment() float64   { return l.moment }

func (l *Lattice) inBounds(i, j int) bool {
	return i >= 0 && i < l.rows && j >= 0 && j < l.cols
}

// Wrap maps any (i, j) onto the torus.
func (l *Lattice) Wrap(i, j int) (int, int) {
	i = (i%l.rows + l.rows) % l.rows
	j = (j%l.cols + l.cols) % l.cols
	return i, j
}

func (l *Lattice) at(i, j int) Spin {
	i, j = l.Wrap(i, j)
	return l.spins[i*l.cols+j]
}

// At returns the spin at (i, j).
func (l *Lattice) At(i, j int) (Spin, error) {
	if !l.inBounds(i, j) {
		return 0, l.outOfRange("At", i, j)
	}
	return l.spins[i*l.cols+j], nil
}

// LocalEnergy returns 2·J·s(i,j)·(sum of the four neighbors), the energy
// change of flipping (i, j). Indices are taken modulo the lattice size.
func (l *Lattice) LocalEnergy(i, j int) float64 {
	i, j = l.Wrap(i, j)
	neighbors := int(l.at(i+1, j)) + int(l.at(i, j+1)) + int(l.at(i-1, j)) + int(l.at(i, j-1))
	return 2 * l.coupling * float64(l.spins[i*l.cols+j]) * float64(neighbors)
}

// TotalEnergy sums LocalEnergy over every site. Each bond is counted from
// both endpoints and the factor 2 of LocalEnergy is kept, so this is four
// times the usual -J·Σ s_i s_j bond energy with the opposite sign convention.
func (l *Lattice) TotalEnergy() float64 {
	var e float64
	for i := 0; i < l.rows; i++ {
		for j := 0; j < l.cols; j++ {
			e += l.LocalEnergy(i, j)
		}
	}
	return e
}

// Sum returns the signed sum of all spins.
func (l *Lattice) Sum() int {
	s := 0
	for _, v := range l.spins {
		s += int(v)
	}
	return s
}

// Magnetization returns |Σ s|·moment.
func (l *Lattice) Magnetization() float64 {
	s := l.Sum()
	if s < 0 {
		s = -s
	}
	return float64(s) * l.moment
}

// Flip negates the spin at (i, j).
func (l *Lattice) Flip(i, j int) error {
	if !l.inBounds(i, j) {
		return l.outOfRange("Flip", i, j)
	}
	l.spins[i*l.cols+j] = -l.spins[i*l.cols+j]
	return nil
}

func (l *Lattice) outOfRange(op string, i, j int) error {
	return errs.E("lattice", op, errs.ErrIndexOutOfRange, "(%d, %d) outside %dx%d", i, j, l.rows, l.cols)
}

// Clone returns an independent copy.
func (l *Lattice) Clone() *Lattice {
	c := *l
	c.spins = make([]Spin, len(l.spins))
	copy(c.spins, l.spins)
	return &c
}

// Snapshot copies the grid into a fresh rows x cols matrix.
func (l *Lattice) Snapshot() Snapshot {
	s := make(Snapshot, l.rows)
	for i := range s {
		row := make([]Spin, l.cols)
		copy(row, l.spins[i*l.cols:(i+1)*l.cols])
		s[i] = row
	}
	return s
}

// Equal reports whether both lattices have the same shape and spins.
func (l *Lattice) Equal(o *Lattice) bool {
	if o == nil || l.rows != o.rows || l.cols != o.cols {
		return false
	}
	for i := range l.spins {
		if l.spins[i] != o.spins[i] {
			return false
		}
	}
	return true
}

// Snapshot is a detached copy of a lattice's spins, indexed [row][col].
type Snapshot [][]Spin

func (s Snapshot) Rows() int { return len(s) }

func (s Snapshot) Cols() int {
	if len(s) == 0 {
		return 0
	}
	return len(s[0])
}
