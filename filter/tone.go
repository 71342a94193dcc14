package filter

import (
	"github.com/gogpu/tilefx"
	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/ops"
)

// SplitTone tints the highlights and shadows of an RGB image. A factor of
// 0.5 leaves its channel unchanged.
type SplitTone struct {
	base
	Highlights [3]float32
	Shadows    [3]float32
	Balance    float32
}

func NewSplitTone(id backend.ID) *SplitTone {
	return &SplitTone{
		base:       base{name: "SplitTone", owner: id},
		Highlights: [3]float32{0.5, 0.5, 0.5},
		Shadows:    [3]float32{0.5, 0.5, 0.5},
	}
}

func (f *SplitTone) Process(dst, src *tilefx.Layer) bool { return f.ProcessOn(f.owner, dst, src) }

func (f *SplitTone) ProcessOn(id backend.ID, dst, src *tilefx.Layer) bool {
	if !prepare(f.name, id, dst, src) {
		return false
	}
	return finish(f.name, id, ops.SplitTone(dst, src, src.Bounds(), f.Highlights, f.Shadows, f.Balance))
}

func (f *SplitTone) Clone() Filter {
	c := *f
	return &c
}

func (f *SplitTone) fields() map[string]*float32 {
	m := map[string]*float32{"Balance": &f.Balance}
	rgbFields(m, "HighlightsFactor", &f.Highlights)
	return rgbFields(m, "ShadowsFactor", &f.Shadows)
}

func (f *SplitTone) ToPreset() *Preset {
	p := f.preset()
	storeFloats(p, f.fields())
	return p
}

func (f *SplitTone) FromPreset(p *Preset) bool { return loadFloats(p, f.fields()) }

// BWMixer converts an image to gray as a weighted sum of its color
// channels.
type BWMixer struct {
	base
	Red, Green, Blue float32
}

func NewBWMixer(id backend.ID) *BWMixer {
	f := &BWMixer{base: base{name: "BWMixer", owner: id}}
	f.ResetToUniform()
	return f
}

// ResetToUniform weighs every channel equally.
func (f *BWMixer) ResetToUniform() {
	f.Red, f.Green, f.Blue = 1.0/3, 1.0/3, 1.0/3
}

func (f *BWMixer) Process(dst, src *tilefx.Layer) bool { return f.ProcessOn(f.owner, dst, src) }

func (f *BWMixer) ProcessOn(id backend.ID, dst, src *tilefx.Layer) bool {
	if !prepare(f.name, id, dst, src) {
		return false
	}
	return finish(f.name, id, ops.ConvertToMonochrome(dst, src, src.Bounds(), f.Red, f.Green, f.Blue))
}

func (f *BWMixer) Clone() Filter {
	c := *f
	return &c
}

func (f *BWMixer) fields() map[string]*float32 {
	return map[string]*float32{
		"RedSensitivity":   &f.Red,
		"GreenSensitivity": &f.Green,
		"BlueSensitivity":  &f.Blue,
	}
}

func (f *BWMixer) ToPreset() *Preset {
	p := f.preset()
	storeFloats(p, f.fields())
	return p
}

func (f *BWMixer) FromPreset(p *Preset) bool { return loadFloats(p, f.fields()) }

// AdaptiveBWMixer converts an image to gray with separate channel weights
// for bright and dark pixels. Balance shifts the luma that mixes the two.
type AdaptiveBWMixer struct {
	base
	Highlights [3]float32
	Shadows    [3]float32
	Balance    float32
}

func NewAdaptiveBWMixer(id backend.ID) *AdaptiveBWMixer {
	uniform := [3]float32{1.0 / 3, 1.0 / 3, 1.0 / 3}
	return &AdaptiveBWMixer{
		base:       base{name: "BWAdaptiveMixer", owner: id},
		Highlights: uniform,
		Shadows:    uniform,
		Balance:    1,
	}
}

func (f *AdaptiveBWMixer) Process(dst, src *tilefx.Layer) bool {
	return f.ProcessOn(f.owner, dst, src)
}

func (f *AdaptiveBWMixer) ProcessOn(id backend.ID, dst, src *tilefx.Layer) bool {
	if !prepare(f.name, id, dst, src) {
		return false
	}
	return finish(f.name, id, ops.AdaptiveBWMixer(dst, src, src.Bounds(), f.Highlights, f.Shadows, f.Balance))
}

func (f *AdaptiveBWMixer) Clone() Filter {
	c := *f
	return &c
}

func (f *AdaptiveBWMixer) fields() map[string]*float32 {
	m := map[string]*float32{"Balance": &f.Balance}
	rgbFields(m, "HighlightWeights", &f.Highlights)
	return rgbFields(m, "ShadowWeights", &f.Shadows)
}

func (f *AdaptiveBWMixer) ToPreset() *Preset {
	p := f.preset()
	storeFloats(p, f.fields())
	return p
}

func (f *AdaptiveBWMixer) FromPreset(p *Preset) bool { return loadFloats(p, f.fields()) }
