package filter

import (
	"slices"

	"github.com/gogpu/tilefx"
	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/ops"
	"github.com/gogpu/tilefx/pixel"
)

// Curves maps the color channels of an image through a tone curve.
//
// The curve is given by control points in normalized coordinates: one point
// is a constant, two points a line and more points a smooth curve through
// them. The lookup table is derived per pixel format and cached.
type Curves struct {
	base
	points []pixel.PointF
}

// NewCurves returns an identity curve running on id.
func NewCurves(id backend.ID) *Curves {
	return &Curves{
		base:   base{name: "Curves", owner: id},
		points: []pixel.PointF{{X: 0, Y: 0}, {X: 1, Y: 1}},
	}
}

// Points returns a copy of the control points sorted by X.
func (f *Curves) Points() []pixel.PointF { return slices.Clone(f.points) }

// SetPoints replaces the control points.
func (f *Curves) SetPoints(points []pixel.PointF) {
	f.points = slices.Clone(points)
	sortCurve(f.points)
}

// AddPoint inserts p keeping the points sorted by X.
func (f *Curves) AddPoint(p pixel.PointF) {
	f.points = append(f.points, p)
	sortCurve(f.points)
}

// RemovePoint deletes the i-th point.
func (f *Curves) RemovePoint(i int) bool {
	if i < 0 || i >= len(f.points) {
		return false
	}
	f.points = slices.Delete(f.points, i, i+1)
	return true
}

// ResetCurve removes every point. Processing fails until points are added.
func (f *Curves) ResetCurve() { f.points = nil }

func (f *Curves) Process(dst, src *tilefx.Layer) bool { return f.ProcessOn(f.owner, dst, src) }

func (f *Curves) ProcessOn(id backend.ID, dst, src *tilefx.Layer) bool {
	if !prepare(f.name, id, dst, src) {
		return false
	}
	return finish(f.name, id, ops.Curve(dst, src, src.Bounds(), f.points))
}

func (f *Curves) Clone() Filter {
	c := *f
	c.points = slices.Clone(f.points)
	return &c
}

func (f *Curves) ToPreset() *Preset {
	p := f.preset()
	storeCurve(p, f.points)
	return p
}

func (f *Curves) FromPreset(p *Preset) bool {
	points, ok := loadCurve(p)
	if ok {
		f.points = points
	}
	return ok
}
