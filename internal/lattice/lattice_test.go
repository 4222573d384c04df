package lattice

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/san-kum/ising/internal/errs"
)

func newSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

func TestNewAlignedMagnetization(t *testing.T) {
	tests := []struct {
		name       string
		rows, cols int
		mode       InitMode
	}{
		{"up 4x4", 4, 4, AllUp},
		{"down 4x4", 4, 4, AllDown},
		{"up 3x7", 3, 7, AllUp},
		{"down 1x1", 1, 1, AllDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.rows, tt.cols, tt.mode, nil)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if got, want := l.Magnetization(), float64(tt.rows*tt.cols); got != want {
				t.Errorf("Magnetization() = %v, want %v", got, want)
			}
		})
	}
}

func TestNewInvalid(t *testing.T) {
	tests := []struct {
		name       string
		rows, cols int
		mode       InitMode
		src        Source
	}{
		{"zero rows", 0, 4, AllUp, nil},
		{"negative cols", 4, -1, AllUp, nil},
		{"unknown mode", 4, 4, InitMode(42), nil},
		{"random without source", 4, 4, Random, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.rows, tt.cols, tt.mode, tt.src)
			if !errors.Is(err, errs.ErrInvalidParameter) {
				t.Errorf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}

	for _, mu := range []float64{0, -1} {
		if _, err := New(2, 2, AllUp, nil, WithMoment(mu)); !errors.Is(err, errs.ErrInvalidParameter) {
			t.Errorf("moment %g: expected ErrInvalidParameter, got %v", mu, err)
		}
	}
}

func TestRandomInitOnlyPlusMinusOne(t *testing.T) {
	l, err := New(16, 16, Random, newSource(7))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ups, downs := 0, 0
	for i := 0; i < l.Rows(); i++ {
		for j := 0; j < l.Cols(); j++ {
			s, err := l.At(i, j)
			if err != nil {
				t.Fatalf("At(%d, %d): %v", i, j, err)
			}
			switch s {
			case Up:
				ups++
			case Down:
				downs++
			default:
				t.Fatalf("spin at (%d, %d) is %d", i, j, s)
			}
		}
	}
	if ups == 0 || downs == 0 {
		t.Errorf("expected both orientations, got %d up and %d down", ups, downs)
	}
}

func TestParseInitMode(t *testing.T) {
	tests := []struct {
		in   string
		want InitMode
	}{
		{"up", AllUp},
		{"1", AllUp},
		{"down", AllDown},
		{"-1", AllDown},
		{"Random", Random},
	}
	for _, tt := range tests {
		got, err := ParseInitMode(tt.in)
		if err != nil {
			t.Errorf("ParseInitMode(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseInitMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseInitMode("sideways"); !errors.Is(err, errs.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestFlipChangesMagnetizationByTwo(t *testing.T) {
	l, _ := New(4, 4, AllUp, nil)

	before := l.Sum()
	if err := l.Flip(1, 2); err != nil {
		t.Fatalf("Flip failed: %v", err)
	}
	after := l.Sum()

	if d := before - after; d != 2 {
		t.Errorf("sum changed by %d, want 2", d)
	}
	if got := l.Magnetization(); got != 14 {
		t.Errorf("Magnetization() = %v, want 14", got)
	}

	r, _ := New(6, 5, Random, newSource(3))
	for _, site := range [][2]int{{0, 0}, {5, 4}, {2, 3}} {
		before := r.Sum()
		_ = r.Flip(site[0], site[1])
		d := before - r.Sum()
		if d != 2 && d != -2 {
			t.Errorf("flip at %v changed sum by %d", site, d)
		}
	}
}

func TestFlipOutOfRange(t *testing.T) {
	l, _ := New(4, 4, AllUp, nil)

	for _, site := range [][2]int{{-1, 0}, {4, 0}, {0, 4}, {0, -1}} {
		err := l.Flip(site[0], site[1])
		if !errors.Is(err, errs.ErrIndexOutOfRange) {
			t.Errorf("Flip(%d, %d): expected ErrIndexOutOfRange, got %v", site[0], site[1], err)
		}
	}
	if _, err := l.At(9, 9); !errors.Is(err, errs.ErrIndexOutOfRange) {
		t.Errorf("At(9, 9): expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestLocalEnergy(t *testing.T) {
	l, _ := New(4, 4, AllUp, nil)

	if got := l.LocalEnergy(0, 0); got != 8 {
		t.Errorf("LocalEnergy(0, 0) = %v, want 8", got)
	}

	_ = l.Flip(0, 0)
	if got := l.LocalEnergy(0, 0); got != -8 {
		t.Errorf("flipped LocalEnergy(0, 0) = %v, want -8", got)
	}
	// (3, 0) wraps onto (0, 0) from below.
	if got := l.LocalEnergy(3, 0); got != 4 {
		t.Errorf("LocalEnergy(3, 0) = %v, want 4", got)
	}
	if got := l.LocalEnergy(0, 3); got != 4 {
		t.Errorf("LocalEnergy(0, 3) = %v, want 4", got)
	}

	c, _ := New(4, 4, AllUp, nil, WithCoupling(0.5))
	if got := c.LocalEnergy(2, 2); got != 4 {
		t.Errorf("LocalEnergy with J=0.5 = %v, want 4", got)
	}
}

func TestLocalEnergyPeriodic(t *testing.T) {
	l, _ := New(4, 4, Random, newSource(11))

	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := l.LocalEnergy(i, j)
			if got := l.LocalEnergy(i+4, j+4); got != want {
				t.Errorf("LocalEnergy(%d, %d) = %v, want %v", i+4, j+4, got, want)
			}
			if got := l.LocalEnergy(i-4, j-8); got != want {
				t.Errorf("LocalEnergy(%d, %d) = %v, want %v", i-4, j-8, got, want)
			}
		}
	}
}

func TestTotalEnergy(t *testing.T) {
	l, _ := New(4, 4, AllUp, nil)
	if got := l.TotalEnergy(); got != 128 {
		t.Errorf("TotalEnergy() = %v, want 128", got)
	}

	d, _ := New(3, 5, AllDown, nil, WithCoupling(2))
	if got := d.TotalEnergy(); got != 15*16 {
		t.Errorf("TotalEnergy() = %v, want %v", got, 15*16)
	}
}

func TestMomentScaling(t *testing.T) {
	l, _ := New(2, 5, AllDown, nil, WithMoment(0.5))
	if got := l.Magnetization(); got != 5 {
		t.Errorf("Magnetization() = %v, want 5", got)
	}
}

func TestCloneAndSnapshotAreIndependent(t *testing.T) {
	l, _ := New(3, 3, AllUp, nil)
	c := l.Clone()
	snap := l.Snapshot()

	_ = l.Flip(1, 1)

	if s, _ := c.At(1, 1); s != Up {
		t.Error("Clone shares storage with original")
	}
	if snap[1][1] != Up {
		t.Error("Snapshot shares storage with original")
	}
	if l.Equal(c) {
		t.Error("expected lattices to differ after flip")
	}
	if snap.Rows() != 3 || snap.Cols() != 3 {
		t.Errorf("snapshot shape %dx%d, want 3x3", snap.Rows(), snap.Cols())
	}
}
