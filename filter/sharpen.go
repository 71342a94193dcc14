package filter

import (
	"slices"
	"strconv"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/tilefx"
	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/ops"
)

// blurCache is a Gaussian blur of a source layer, kept until the source
// pixels, the radius or the backend change.
type blurCache struct {
	layer   *tilefx.Layer
	radius  float32
	src     *tilefx.Layer
	version uint64
}

func (b *blurCache) current(id backend.ID, src *tilefx.Layer, radius float32) bool {
	return b.layer != nil && b.src == src && b.version == src.Version() && b.radius == radius &&
		b.layer.SameShape(src) && b.layer.ContainsDataForBackend(id)
}

func (b *blurCache) update(name string, id backend.ID, src *tilefx.Layer, radius float32) error {
	if b.current(id, src, radius) {
		return nil
	}
	version := src.Version()
	if b.layer == nil {
		l, err := src.Like(name, backend.SetOf(id))
		if err != nil {
			return err
		}
		b.layer = l
	} else if !prepare(name, id, b.layer, src) {
		return errors.Newf("filter: %s: buffer not usable on %v", name, id)
	}
	res := ops.GaussianBlur(b.layer, src, src.Bounds(), radius)
	if err := res.Err(); err != nil {
		return err
	}
	if !res.Fired.Has(id) {
		return errors.Newf("filter: %s: blur did not run on %v", name, id)
	}
	b.radius, b.src, b.version = radius, src, version
	return nil
}

func (b *blurCache) invalidate() { b.src = nil }

func (b *blurCache) release() {
	if b.layer != nil {
		b.layer.Release()
	}
	*b = blurCache{}
}

// Cascade is one level of a cascaded sharpen.
type Cascade struct {
	BlurRadius float32
	// Strength in percent.
	Strength float32
}

// DefaultCascade is the level added by SetCascadeCount.
var DefaultCascade = Cascade{BlurRadius: 1, Strength: 1}

// CascadedSharpen sharpens an image by the detail between successive blur
// levels. The blurred copies of the source are kept between runs and
// rebuilt in parallel when a radius, the source or the backend changes.
type CascadedSharpen struct {
	base
	// Threshold in percent keeps low-contrast detail from being sharpened.
	Threshold float32

	cascades []Cascade
	blurs    []blurCache
}

func NewCascadedSharpen(id backend.ID) *CascadedSharpen {
	return &CascadedSharpen{base: base{name: "CascadedSharpen", owner: id}}
}

// Cascades returns a copy of the levels.
func (f *CascadedSharpen) Cascades() []Cascade { return slices.Clone(f.cascades) }

// SetCascades replaces the levels.
func (f *CascadedSharpen) SetCascades(c []Cascade) {
	f.cascades = slices.Clone(c)
	f.resize()
}

// SetCascadeCount truncates the levels or extends them with DefaultCascade.
func (f *CascadedSharpen) SetCascadeCount(n int) {
	for len(f.cascades) < n {
		f.cascades = append(f.cascades, DefaultCascade)
	}
	f.cascades = f.cascades[:max(n, 0)]
	f.resize()
}

// SetCascade replaces the i-th level.
func (f *CascadedSharpen) SetCascade(i int, c Cascade) bool {
	if i < 0 || i >= len(f.cascades) {
		return false
	}
	f.cascades[i] = c
	return true
}

// UpdateCascades forces the blur levels to be rebuilt on the next run.
func (f *CascadedSharpen) UpdateCascades() {
	for i := range f.blurs {
		f.blurs[i].invalidate()
	}
}

// Release frees the cached blur levels.
func (f *CascadedSharpen) Release() {
	for i := range f.blurs {
		f.blurs[i].release()
	}
}

func (f *CascadedSharpen) resize() {
	for i := len(f.cascades); i < len(f.blurs); i++ {
		f.blurs[i].release()
	}
	if len(f.blurs) > len(f.cascades) {
		f.blurs = f.blurs[:len(f.cascades)]
	}
	for len(f.blurs) < len(f.cascades) {
		f.blurs = append(f.blurs, blurCache{})
	}
}

func (f *CascadedSharpen) Process(dst, src *tilefx.Layer) bool { return f.ProcessOn(f.owner, dst, src) }

func (f *CascadedSharpen) ProcessOn(id backend.ID, dst, src *tilefx.Layer) bool {
	if len(f.cascades) == 0 || !prepare(f.name, id, dst, src) {
		return false
	}
	if src == dst {
		tmp, err := src.Duplicate("cascaded-sharpen-source")
		if err != nil {
			tilefx.Logger().Warn("filter: copy source", "filter", f.name, "error", err)
			return false
		}
		defer tmp.Release()
		src = tmp
	}
	f.resize()

	var g errgroup.Group
	for i, c := range f.cascades {
		b := &f.blurs[i]
		name := "cascade-" + strconv.Itoa(i)
		g.Go(func() error { return b.update(name, id, src, c.BlurRadius) })
	}
	if err := g.Wait(); err != nil {
		tilefx.Logger().Warn("filter: blur cascades", "filter", f.name, "backend", id, "error", err)
		return false
	}

	levels := make([]ops.Cascade, len(f.cascades))
	for i, c := range f.cascades {
		levels[i] = ops.Cascade{Blurred: f.blurs[i].layer, Strength: c.Strength}
	}
	return finish(f.name, id, ops.CascadedSharpen(dst, src, src.Bounds(), levels, f.Threshold))
}

// Clone copies the parameters. The clone builds its own blur levels.
func (f *CascadedSharpen) Clone() Filter {
	c := &CascadedSharpen{base: f.base, Threshold: f.Threshold}
	c.SetCascades(f.cascades)
	return c
}

func (f *CascadedSharpen) ToPreset() *Preset {
	p := f.preset()
	p.SetInt("NumberOfCascades", len(f.cascades))
	p.SetFloat("Threshold", f.Threshold)
	for i, c := range f.cascades {
		n := strconv.Itoa(i)
		p.SetFloat("Strength"+n, c.Strength)
		p.SetFloat("BlurRadius"+n, c.BlurRadius)
	}
	return p
}

// FromPreset applies the threshold and every level of p. It fails unless
// p holds the level count and both values of every level.
func (f *CascadedSharpen) FromPreset(p *Preset) bool {
	if t, ok := p.Float("Threshold"); ok {
		f.Threshold = t
	}
	n, ok := p.Int("NumberOfCascades")
	if !ok || n < 0 {
		return false
	}
	cascades := make([]Cascade, n)
	for i := range cascades {
		s := strconv.Itoa(i)
		strength, ok1 := p.Float("Strength" + s)
		radius, ok2 := p.Float("BlurRadius" + s)
		if !ok1 || !ok2 {
			return false
		}
		cascades[i] = Cascade{BlurRadius: radius, Strength: strength}
	}
	f.SetCascades(cascades)
	return true
}

// UnsharpMask sharpens an image by its difference to a blurred copy.
type UnsharpMask struct {
	base
	Strength   float32
	BlurRadius float32

	blur blurCache
}

func NewUnsharpMask(id backend.ID) *UnsharpMask {
	return &UnsharpMask{
		base:       base{name: "UnsharpMask", owner: id},
		Strength:   1,
		BlurRadius: 1,
	}
}

// Release frees the cached blur.
func (f *UnsharpMask) Release() { f.blur.release() }

func (f *UnsharpMask) Process(dst, src *tilefx.Layer) bool { return f.ProcessOn(f.owner, dst, src) }

func (f *UnsharpMask) ProcessOn(id backend.ID, dst, src *tilefx.Layer) bool {
	if !prepare(f.name, id, dst, src) {
		return false
	}
	if err := f.blur.update("unsharp-blur", id, src, f.BlurRadius); err != nil {
		tilefx.Logger().Warn("filter: blur", "filter", f.name, "backend", id, "error", err)
		return false
	}
	return finish(f.name, id, ops.UnsharpMask(dst, src, f.blur.layer, src.Bounds(), f.Strength))
}

func (f *UnsharpMask) Clone() Filter {
	return &UnsharpMask{base: f.base, Strength: f.Strength, BlurRadius: f.BlurRadius}
}

func (f *UnsharpMask) fields() map[string]*float32 {
	return map[string]*float32{"Strength": &f.Strength, "BlurRadius": &f.BlurRadius}
}

func (f *UnsharpMask) ToPreset() *Preset {
	p := f.preset()
	storeFloats(p, f.fields())
	return p
}

func (f *UnsharpMask) FromPreset(p *Preset) bool { return loadFloats(p, f.fields()) }
