package ops

import (
	"github.com/cockroachdb/errors"

	"github.com/gogpu/tilefx"
	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/backend/cpu"
	"github.com/gogpu/tilefx/backend/gpu"
	"github.com/gogpu/tilefx/internal/parallel"
	"github.com/gogpu/tilefx/pixel"
)

// surface is a packed host view of a whole image. Destination and sources
// of one call share width and height, so a pixel index addresses the same
// position in all of them.
type surface struct {
	data []byte
	w, h int
	c    pixel.Codec
}

func newSurface(data []byte, f pixel.Format, w, h int) surface {
	return surface{data: data, w: w, h: h, c: pixel.CodecFor(f)}
}

func (s surface) index(x, y int) int { return y*s.w + x }

func (s surface) format() pixel.Format { return s.c.Format() }

// runner runs a tile kernel over area and waits for it.
type runner func(area pixel.Rect, k parallel.Kernel) error

// serial runs the kernel once over the whole area.
func serial(area pixel.Rect, k parallel.Kernel) error {
	if !area.Empty() {
		k(area)
	}
	return nil
}

func tiled(dev *cpu.Device) runner {
	return func(area pixel.Rect, k parallel.Kernel) error {
		if area.Empty() {
			return nil
		}
		_, err := dev.Execute(area, k, false)
		return err
	}
}

// hostFunc processes packed host surfaces. It is the CPU kernel of an
// operation and, on the GPU, the host-assisted fallback.
type hostFunc func(run runner, dst surface, srcs []surface, area pixel.Rect) error

// gpuFunc is a dedicated GPU implementation.
type gpuFunc func(dst *gpu.Image, srcs []*gpu.Image, area pixel.Rect) error

// Op describes one operation: the formats it accepts and its kernels.
//
// Apply fires the operation on every backend holding valid copies of all
// operands and commits the outcome to the destination: copies written by a
// kernel stay valid, every other resident copy turns stale.
type Op struct {
	Name string

	// Formats limits the destination formats. Nil accepts every format.
	Formats func(pixel.Format) bool

	// MixedFormats lets sources differ in format from the destination.
	// Sizes must always match.
	MixedFormats bool

	// Host is the CPU kernel.
	Host hostFunc

	// GPU is the dedicated GPU kernel. Without one, GPU copies are processed
	// by Host through a host round trip.
	GPU gpuFunc
}

// Plan checks the operands and returns the backends the operation will read
// and write.
func (op *Op) Plan(dst *tilefx.Layer, area pixel.Rect, srcs ...*tilefx.Layer) (tilefx.Plan, Result) {
	if dst == nil || dst.Empty() {
		return tilefx.Plan{}, failf(Precondition, "%s: empty destination", op.Name)
	}
	f, w, h := dst.Format(), dst.Width(), dst.Height()
	if !area.In(w, h) {
		return tilefx.Plan{}, failf(Precondition, "%s: area %v outside %dx%d", op.Name, area, w, h)
	}
	if op.Formats != nil && !op.Formats(f) {
		return tilefx.Plan{}, failf(UnsupportedFormat, "%s: format %v", op.Name, f)
	}

	set := dst.ValidBackends()
	for i, src := range srcs {
		if src == nil || src.Empty() {
			return tilefx.Plan{}, failf(Precondition, "%s: empty source %d", op.Name, i)
		}
		if src.Width() != w || src.Height() != h {
			return tilefx.Plan{}, fail(errors.Wrapf(tilefx.ErrMismatch,
				"%s: source %d is %dx%d, destination %dx%d", op.Name, i, src.Width(), src.Height(), w, h), 0)
		}
		if !op.MixedFormats && src.Format() != f {
			return tilefx.Plan{}, fail(errors.Wrapf(tilefx.ErrMismatch,
				"%s: source %d is %v, destination %v", op.Name, i, src.Format(), f), 0)
		}
		set = set.Intersect(src.ValidBackends())
	}
	if op.Host == nil {
		set = set.Without(backend.CPU)
		if op.GPU == nil {
			set = set.Without(backend.GPU)
		}
	}
	if set.Empty() {
		return tilefx.Plan{}, failf(Precondition, "%s: no backend holds valid copies of every operand", op.Name)
	}
	return tilefx.Plan{Read: set, Write: set}, ok(0)
}

// Apply runs the operation over area of dst.
func (op *Op) Apply(dst *tilefx.Layer, area pixel.Rect, srcs ...*tilefx.Layer) Result {
	plan, res := op.Plan(dst, area, srcs...)
	if !res.OK() {
		return res
	}
	var fired backend.Set
	for _, id := range plan.Write.IDs() {
		if err := op.run(id, dst, area, srcs); err != nil {
			err = errors.Wrapf(err, "ops: %s on %v", op.Name, id)
			// The copies already written hold the new pixels; the others,
			// the failed one included, turn stale.
			if !fired.Empty() {
				err = errors.CombineErrors(err, dst.Commit(tilefx.Plan{Read: plan.Read, Write: fired}))
			}
			return fail(err, fired)
		}
		fired = fired.With(id)
	}
	if err := dst.Commit(tilefx.Plan{Read: plan.Read, Write: fired}); err != nil {
		return fail(err, fired)
	}
	tilefx.Logger().Debug("op applied", "op", op.Name, "layer", dst.Name(), "area", area, "fired", fired.String())
	return ok(fired)
}

func (op *Op) run(id backend.ID, dst *tilefx.Layer, area pixel.Rect, srcs []*tilefx.Layer) error {
	d, err := dst.InternalImageForBackend(id)
	if err != nil {
		return err
	}
	s := make([]backend.Image, len(srcs))
	for i, src := range srcs {
		if s[i], err = src.InternalImageForBackend(id); err != nil {
			return err
		}
	}
	switch id {
	case backend.CPU:
		return op.runCPU(d, s, area)
	case backend.GPU:
		return op.runGPU(d, s, area)
	}
	return errors.Wrapf(backend.ErrBackendNotAvailable, "%v", id)
}

func (op *Op) runCPU(d backend.Image, s []backend.Image, area pixel.Rect) error {
	dst, ok := d.(*cpu.Image)
	if !ok {
		return errors.Wrapf(backend.ErrWrongBackend, "%s destination", op.Name)
	}
	srcs := make([]surface, len(s))
	for i, img := range s {
		c, ok := img.(*cpu.Image)
		if !ok {
			return errors.Wrapf(backend.ErrWrongBackend, "%s source %d", op.Name, i)
		}
		srcs[i] = cpuSurface(c)
	}
	return op.Host(tiled(dst.Device()), cpuSurface(dst), srcs, area)
}

func cpuSurface(img *cpu.Image) surface {
	return newSurface(img.Bytes(), img.Format(), img.Width(), img.Height())
}

func (op *Op) runGPU(d backend.Image, s []backend.Image, area pixel.Rect) error {
	dst, ok := d.(*gpu.Image)
	if !ok {
		return errors.Wrapf(backend.ErrWrongBackend, "%s destination", op.Name)
	}
	srcs := make([]*gpu.Image, len(s))
	for i, img := range s {
		g, ok := img.(*gpu.Image)
		if !ok {
			return errors.Wrapf(backend.ErrWrongBackend, "%s source %d", op.Name, i)
		}
		srcs[i] = g
	}
	if op.GPU != nil {
		return op.GPU(dst, srcs, area)
	}
	return hostAssisted(op, dst, srcs, area)
}

// hostAssisted reads the GPU operands into host memory, runs the host
// kernel there and uploads the area of the destination.
func hostAssisted(op *Op, dst *gpu.Image, srcs []*gpu.Image, area pixel.Rect) error {
	if area.Empty() {
		return nil
	}
	full := dst.Bounds()
	read := func(img *gpu.Image) (surface, error) {
		buf := make([]byte, pixel.BufferSize(img.Format(), img.Width(), img.Height()))
		if err := img.Retrieve(buf, full); err != nil {
			return surface{}, err
		}
		return newSurface(buf, img.Format(), img.Width(), img.Height()), nil
	}
	ds, err := read(dst)
	if err != nil {
		return err
	}
	ss := make([]surface, len(srcs))
	for i, img := range srcs {
		if img == dst {
			ss[i] = ds
			continue
		}
		if ss[i], err = read(img); err != nil {
			return err
		}
	}
	if err := op.Host(serial, ds, ss, area); err != nil {
		return err
	}
	tilefx.Logger().Debug("host-assisted gpu op", "op", op.Name, "area", area)
	return dst.Upload(pack(ds, area), area)
}

// pack copies the area rows of s into a tight buffer.
func pack(s surface, r pixel.Rect) []byte {
	px := s.c.Size()
	n := r.W * px
	out := make([]byte, r.H*n)
	for y := 0; y < r.H; y++ {
		o := s.index(r.X, r.Y+y) * px
		copy(out[y*n:(y+1)*n], s.data[o:o+n])
	}
	return out
}

// effect returns a GPU kernel rendering op over the destination tiles.
// Zero sources render from the destination, two sources merge.
func effect(op gpu.Operation) gpuFunc {
	return func(dst *gpu.Image, srcs []*gpu.Image, area pixel.Rect) error {
		r := dst.Device().Renderer()
		switch len(srcs) {
		case 0:
			return r.RenderTiled(dst, nil, area, op)
		case 1:
			return r.RenderTiled(dst, srcs[0], area, op)
		default:
			return r.RenderTiledMerge(dst, srcs[0], srcs[1], area, op)
		}
	}
}

// pointwise builds a host kernel calling fn once per pixel with the
// normalized channels of the destination and of every source. fn writes its
// result into d.
func pointwise(fn func(d []float32, s [][]float32)) hostFunc {
	return func(run runner, dst surface, srcs []surface, area pixel.Rect) error {
		return run(area, func(tile pixel.Rect) {
			var dpx [4]float32
			spx := make([][4]float32, len(srcs))
			sv := make([][]float32, len(srcs))
			d := dpx[:dst.c.Channels()]
			for i := range srcs {
				sv[i] = spx[i][:srcs[i].c.Channels()]
			}
			for y := tile.Y; y < tile.Bottom(); y++ {
				for x := tile.X; x < tile.Right(); x++ {
					p := dst.index(x, y)
					dst.c.Load(dst.data, p, d)
					for i, s := range srcs {
						s.c.Load(s.data, p, sv[i])
					}
					fn(d, sv)
					dst.c.Store(dst.data, p, d)
				}
			}
		})
	}
}

// colorChannels returns the number of leading non-alpha channels.
func colorChannels(n int) int {
	if n == 4 {
		return 3
	}
	return n
}

func rgbFormats(f pixel.Format) bool {
	return f.Family() == pixel.FamilyRGB || f.Family() == pixel.FamilyRGBA
}
