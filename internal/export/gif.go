package export

import (
	"image"
	"image/color"
	"image/gif"
	"io"

	"github.com/san-kum/ising/internal/errs"
	"github.com/san-kum/ising/internal/lattice"
)

var spinPalette = color.Palette{color.Black, color.White}

// SnapshotFrame draws one snapshot with each site as a scale x scale block,
// up spins white and down spins black.
func SnapshotFrame(snap lattice.Snapshot, scale int) *image.Paletted {
	if scale < 1 {
		scale = 1
	}
	img := image.NewPaletted(image.Rect(0, 0, snap.Cols()*scale, snap.Rows()*scale), spinPalette)
	for i, row := range snap {
		for j, s := range row {
			if s != lattice.Up {
				continue
			}
			for py := 0; py < scale; py++ {
				for px := 0; px < scale; px++ {
					img.SetColorIndex(j*scale+px, i*scale+py, 1)
				}
			}
		}
	}
	return img
}

// SnapshotsToGIF encodes snaps as a looping animation. delay is the time
// between frames in hundredths of a second.
func SnapshotsToGIF(w io.Writer, snaps []lattice.Snapshot, scale, delay int) error {
	if len(snaps) == 0 {
		return errs.E("export", "SnapshotsToGIF", errs.ErrInsufficientData, "no snapshots")
	}
	rows, cols := snaps[0].Rows(), snaps[0].Cols()
	if rows == 0 || cols == 0 {
		return errs.E("export", "SnapshotsToGIF", errs.ErrInvalidParameter, "empty snapshot")
	}

	anim := gif.GIF{LoopCount: 0}
	for k, snap := range snaps {
		if snap.Rows() != rows || snap.Cols() != cols {
			return errs.E("export", "SnapshotsToGIF", errs.ErrInvalidParameter,
				"frame %d is %dx%d, want %dx%d", k, snap.Rows(), snap.Cols(), rows, cols)
		}
		anim.Image = append(anim.Image, SnapshotFrame(snap, scale))
		anim.Delay = append(anim.Delay, delay)
	}
	return gif.EncodeAll(w, &anim)
}
