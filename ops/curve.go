package ops

import (
	"github.com/cockroachdb/errors"

	"github.com/gogpu/tilefx/internal/lut"
	"github.com/gogpu/tilefx/pixel"
)

// LUTSize returns the curve table size matching the precision of f.
func LUTSize(f pixel.Format) int { return lut.Size(f) }

// CurveLUT returns the n-entry lookup table of the curve through points,
// for use with AdjustBrightnessCurve. Tables are cached and shared; callers
// must not modify them.
func CurveLUT(points []pixel.PointF, n int) ([]float32, error) {
	t, err := lut.Curve(points, n)
	if err != nil {
		return nil, errors.Mark(err, ErrPrecondition)
	}
	return t, nil
}
