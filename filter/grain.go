package filter

import (
	"math/rand/v2"
	"slices"

	"github.com/gogpu/tilefx"
	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/ops"
	"github.com/gogpu/tilefx/pixel"
)

// minGrainBlur is the smallest radius the grain is blurred with.
const minGrainBlur = 0.05

// FilmGrain overlays random grain on an image. The curve maps source
// brightness to grain weight.
//
// The grain layer is generated from Seed and kept until the image shape,
// the backend, Seed or Mono change.
type FilmGrain struct {
	base
	// Mono puts the same grain value in every channel.
	Mono bool
	// BlurRadius softens the grain; radii below 0.05 keep it sharp.
	BlurRadius float32
	Seed       uint64

	points    []pixel.PointF
	grain     *tilefx.Layer
	grainMono bool
	grainSeed uint64
	blur      blurCache
}

func NewFilmGrain(id backend.ID) *FilmGrain {
	return &FilmGrain{
		base:       base{name: "FilmGrain", owner: id},
		Mono:       true,
		BlurRadius: 1,
		Seed:       0x5eed,
		points:     []pixel.PointF{{X: 0, Y: 0}, {X: 0.5, Y: 0.5}, {X: 1, Y: 0}},
	}
}

// Points returns a copy of the weight curve.
func (f *FilmGrain) Points() []pixel.PointF { return slices.Clone(f.points) }

// SetPoints replaces the weight curve.
func (f *FilmGrain) SetPoints(points []pixel.PointF) {
	f.points = slices.Clone(points)
	sortCurve(f.points)
}

// AddPoint inserts p keeping the curve sorted by X.
func (f *FilmGrain) AddPoint(p pixel.PointF) {
	f.points = append(f.points, p)
	sortCurve(f.points)
}

// RemovePoint deletes the i-th point of the curve.
func (f *FilmGrain) RemovePoint(i int) bool {
	if i < 0 || i >= len(f.points) {
		return false
	}
	f.points = slices.Delete(f.points, i, i+1)
	return true
}

// Release frees the grain layers.
func (f *FilmGrain) Release() {
	f.blur.release()
	if f.grain != nil {
		f.grain.Release()
		f.grain = nil
	}
}

func (f *FilmGrain) Process(dst, src *tilefx.Layer) bool { return f.ProcessOn(f.owner, dst, src) }

func (f *FilmGrain) ProcessOn(id backend.ID, dst, src *tilefx.Layer) bool {
	if !prepare(f.name, id, dst, src) {
		return false
	}
	log := tilefx.Logger()
	weights, err := ops.CurveLUT(f.points, ops.LUTSize(src.Format()))
	if err != nil {
		log.Debug("filter: weight curve", "filter", f.name, "error", err)
		return false
	}
	if err := f.updateGrain(id, src); err != nil {
		log.Warn("filter: generate grain", "filter", f.name, "backend", id, "error", err)
		return false
	}
	grain := f.grain
	if f.BlurRadius >= minGrainBlur {
		if err := f.blur.update("film-grain-blur", id, f.grain, f.BlurRadius); err != nil {
			log.Warn("filter: blur grain", "filter", f.name, "backend", id, "error", err)
			return false
		}
		grain = f.blur.layer
	}
	return finish(f.name, id, ops.FilmGrain(dst, src, grain, src.Bounds(), weights))
}

func (f *FilmGrain) updateGrain(id backend.ID, src *tilefx.Layer) error {
	g := f.grain
	if g != nil && g.SameShape(src) && g.ContainsDataForBackend(id) &&
		f.grainMono == f.Mono && f.grainSeed == f.Seed {
		return nil
	}
	if g != nil {
		g.Release()
		f.grain = nil
	}
	g, err := src.Like("film-grain", backend.SetOf(id))
	if err != nil {
		return err
	}
	if err := g.Upload(grainData(src.Format(), src.Width(), src.Height(), f.Seed, f.Mono), g.Bounds()); err != nil {
		g.Release()
		return err
	}
	tilefx.Logger().Debug("filter: grain generated", "filter", f.name, "backend", id, "format", src.Format(), "mono", f.Mono)
	f.grain, f.grainMono, f.grainSeed = g, f.Mono, f.Seed
	return nil
}

// grainData returns uniform noise in 0..1. Mono noise repeats one value in
// every channel of a pixel, alpha included.
func grainData(format pixel.Format, w, h int, seed uint64, mono bool) []byte {
	c := pixel.CodecFor(format)
	buf := make([]byte, pixel.BufferSize(format, w, h))
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for px := 0; px < w*h; px++ {
		v := r.Float32()
		for ch := 0; ch < c.Channels(); ch++ {
			if !mono && ch > 0 {
				v = r.Float32()
			}
			c.Set(buf, px, ch, v)
		}
	}
	return buf
}

// Clone copies the parameters. The clone generates its own grain.
func (f *FilmGrain) Clone() Filter {
	return &FilmGrain{
		base:       f.base,
		Mono:       f.Mono,
		BlurRadius: f.BlurRadius,
		Seed:       f.Seed,
		points:     slices.Clone(f.points),
	}
}

func (f *FilmGrain) ToPreset() *Preset {
	p := f.preset()
	storeCurve(p, f.points)
	mono := 0
	if f.Mono {
		mono = 1
	}
	p.SetInt("MonoGrain", mono)
	p.SetFloat("GrainBlurRadius", f.BlurRadius)
	return p
}

func (f *FilmGrain) FromPreset(p *Preset) bool {
	found := false
	if points, ok := loadCurve(p); ok {
		f.points = points
		found = true
	}
	if v, ok := p.Int("MonoGrain"); ok {
		f.Mono = v == 1
		found = true
	}
	if v, ok := p.Float("GrainBlurRadius"); ok {
		f.BlurRadius = v
		found = true
	}
	return found
}
