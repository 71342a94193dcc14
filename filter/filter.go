package filter

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/gogpu/tilefx"
	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/ops"
	"github.com/gogpu/tilefx/pixel"
)

// Filter is a parameterized image operation.
//
// Process runs the filter on the filter's own backend. ProcessOn runs it on
// id: src must be valid there, and dst is reshaped to src when needed. Both
// return false, and never panic, for nil layers, operands not valid on the
// backend, or a failed operation. A failed filter may leave dst partially
// written.
type Filter interface {
	Name() string
	Backend() backend.ID
	Process(dst, src *tilefx.Layer) bool
	ProcessOn(id backend.ID, dst, src *tilefx.Layer) bool

	// Clone returns an independent filter with the same parameters.
	Clone() Filter

	// ToPreset captures every parameter in a preset named CurrentPreset.
	ToPreset() *Preset

	// FromPreset applies the values of p that the filter recognizes. It
	// reports whether at least one value was applied.
	FromPreset(p *Preset) bool
}

// base holds the identity shared by every filter.
type base struct {
	name  string
	owner backend.ID
}

func (b *base) Name() string        { return b.name }
func (b *base) Backend() backend.ID { return b.owner }

// SetBackend selects the backend Process runs on.
func (b *base) SetBackend(id backend.ID) { b.owner = id }

func (b *base) preset() *Preset { return NewPreset(b.name, CurrentPreset) }

// prepare checks the operands of a run on id and gives dst a writable copy
// shaped like src there.
func prepare(name string, id backend.ID, dst, src *tilefx.Layer) bool {
	log := tilefx.Logger()
	if dst == nil || src == nil || src.Empty() {
		log.Debug("filter: missing operand", "filter", name)
		return false
	}
	if !src.ContainsDataForBackend(id) {
		log.Debug("filter: source not valid on backend", "filter", name, "src", src.Name(), "backend", id)
		return false
	}
	if dst == src {
		return true
	}
	switch {
	case !dst.SameShape(src) || dst.State(id) == tilefx.Absent:
		if err := dst.Reset(id, src.Format(), src.Width(), src.Height()); err != nil {
			log.Warn("filter: reset destination", "filter", name, "dst", dst.Name(), "backend", id, "error", err)
			return false
		}
	case dst.State(id) == tilefx.Stale:
		if err := dst.UpdateInternalState(id); err != nil {
			log.Warn("filter: claim destination", "filter", name, "dst", dst.Name(), "backend", id, "error", err)
			return false
		}
	}
	return true
}

// finish reports whether res succeeded and ran on id.
func finish(name string, id backend.ID, res ops.Result) bool {
	if !res.OK() {
		tilefx.Logger().Debug("filter: operation failed", "filter", name, "backend", id, "result", res.String())
		return false
	}
	return res.Fired.Has(id)
}

// loadFloats copies the preset floats named by the keys of fields into
// their targets and reports whether any was found.
func loadFloats(p *Preset, fields map[string]*float32) bool {
	found := false
	for key, dst := range fields {
		if v, ok := p.Float(key); ok {
			*dst = v
			found = true
		}
	}
	return found
}

func storeFloats(p *Preset, fields map[string]*float32) {
	for key, v := range fields {
		p.SetFloat(key, *v)
	}
}

func rgbFields(fields map[string]*float32, prefix string, v *[3]float32) map[string]*float32 {
	fields[prefix+".R"] = &v[0]
	fields[prefix+".G"] = &v[1]
	fields[prefix+".B"] = &v[2]
	return fields
}

// pointKey names the i-th curve point of a preset.
func pointKey(i int) string { return "Point" + strconv.Itoa(i) }

// storeCurve records points as Point0..PointN-1 and their count as Length.
func storeCurve(p *Preset, points []pixel.PointF) {
	p.SetInt("Length", len(points))
	for i, pt := range points {
		p.SetPoint(pointKey(i), pt)
	}
}

// loadCurve returns the points stored by storeCurve sorted by X. Without a
// Length it reads Point0, Point1, ... up to the first missing key.
func loadCurve(p *Preset) ([]pixel.PointF, bool) {
	n, counted := p.Int("Length")
	var points []pixel.PointF
	for i := 0; !counted || i < n; i++ {
		pt, ok := p.Point(pointKey(i))
		if !ok {
			if counted {
				return nil, false
			}
			break
		}
		points = append(points, pt)
	}
	if len(points) == 0 {
		return nil, false
	}
	sortCurve(points)
	return points, true
}

func sortCurve(points []pixel.PointF) {
	slices.SortStableFunc(points, func(a, b pixel.PointF) int { return cmp.Compare(a.X, b.X) })
}
