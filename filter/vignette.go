package filter

import (
	"github.com/gogpu/tilefx"
	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/ops"
	"github.com/gogpu/tilefx/pixel"
)

// Vignette darkens an image towards its border.
type Vignette struct {
	base

	// Center in percent of the image width and height.
	Center pixel.PointF
	// Radius in percent of the image height.
	Radius float32
	// Strength in percent.
	Strength float32
}

func NewVignette(id backend.ID) *Vignette {
	return &Vignette{
		base:     base{name: "Vignette", owner: id},
		Center:   pixel.PointF{X: 50, Y: 50},
		Radius:   1,
		Strength: 1,
	}
}

func (f *Vignette) Process(dst, src *tilefx.Layer) bool { return f.ProcessOn(f.owner, dst, src) }

func (f *Vignette) ProcessOn(id backend.ID, dst, src *tilefx.Layer) bool {
	if !prepare(f.name, id, dst, src) {
		return false
	}
	return finish(f.name, id, ops.Vignette(dst, src, src.Bounds(), f.Center, f.Radius, f.Strength))
}

func (f *Vignette) Clone() Filter {
	c := *f
	return &c
}

func (f *Vignette) fields() map[string]*float32 {
	return map[string]*float32{
		"X":        &f.Center.X,
		"Y":        &f.Center.Y,
		"Strength": &f.Strength,
		"Radius":   &f.Radius,
	}
}

func (f *Vignette) ToPreset() *Preset {
	p := f.preset()
	storeFloats(p, f.fields())
	return p
}

func (f *Vignette) FromPreset(p *Preset) bool { return loadFloats(p, f.fields()) }
