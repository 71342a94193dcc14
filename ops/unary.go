package ops

import (
	"math"

	"github.com/gogpu/tilefx"
	"github.com/gogpu/tilefx/backend/gpu"
	"github.com/gogpu/tilefx/internal/convolve"
	"github.com/gogpu/tilefx/pixel"
)

// Fill sets every byte of the area to value.
func Fill(dst *tilefx.Layer, area pixel.Rect, value uint8) Result {
	v := float32(value) / 255
	op := &Op{
		Name: "fill",
		Host: func(run runner, d surface, _ []surface, area pixel.Rect) error {
			px := make([]byte, d.c.Size())
			for i := range px {
				px[i] = value
			}
			return run(area, fillKernel(d, px))
		},
		GPU: effect(gpu.Operation{Effect: gpu.EffectFill, Values: [4][4]float32{{v, v, v, v}}}),
	}
	return op.Apply(dst, area)
}

// FillColor sets every pixel of the area to color, given as normalized
// channels. Mono layers take color[0], RGB layers ignore color[3].
func FillColor(dst *tilefx.Layer, area pixel.Rect, color [4]float32) Result {
	op := &Op{
		Name: "fill-color",
		Host: func(run runner, d surface, _ []surface, area pixel.Rect) error {
			px := make([]byte, d.c.Size())
			d.c.Store(px, 0, color[:d.c.Channels()])
			return run(area, fillKernel(d, px))
		},
		GPU: effect(gpu.Operation{Effect: gpu.EffectFill, Values: [4][4]float32{color}}),
	}
	return op.Apply(dst, area)
}

func fillKernel(d surface, px []byte) func(pixel.Rect) {
	return func(tile pixel.Rect) {
		n := len(px)
		for y := tile.Y; y < tile.Bottom(); y++ {
			row := d.data[d.index(tile.X, y)*n : d.index(tile.Right(), y)*n]
			for o := 0; o < len(row); o += n {
				copy(row[o:o+n], px)
			}
		}
	}
}

// FillChannel sets channel ch of every pixel of the area to the normalized
// value v.
func FillChannel(dst *tilefx.Layer, area pixel.Rect, ch int, v float32) Result {
	if dst != nil && (ch < 0 || ch >= dst.Format().Channels()) {
		return failf(Precondition, "fill-channel: channel %d of %v", ch, dst.Format())
	}
	op := &Op{
		Name: "fill-channel",
		Host: pointwise(func(d []float32, _ [][]float32) { d[ch] = v }),
		GPU: effect(gpu.Operation{
			Effect:  gpu.EffectFillChannel,
			Values:  [4][4]float32{{v}},
			Channel: uint32(ch),
		}),
	}
	return op.Apply(dst, area)
}

// Negate writes 1-s for every channel, alpha included.
func Negate(dst, src *tilefx.Layer, area pixel.Rect) Result {
	op := &Op{
		Name: "negate",
		Host: pointwise(func(d []float32, s [][]float32) {
			for i, c := range s[0] {
				d[i] = 1 - c
			}
		}),
		GPU: effect(gpu.Operation{Effect: gpu.EffectNegate}),
	}
	return op.Apply(dst, area, src)
}

// AdjustBrightness scales the color channels by factor. Alpha is kept.
func AdjustBrightness(dst, src *tilefx.Layer, area pixel.Rect, factor float32) Result {
	op := &Op{
		Name: "brightness",
		Host: pointwise(func(d []float32, s [][]float32) {
			n := colorChannels(len(d))
			for i, c := range s[0] {
				if i < n {
					c = min(c*factor, 1)
				}
				d[i] = c
			}
		}),
		GPU: effect(gpu.Operation{Effect: gpu.EffectBrightness, Values: [4][4]float32{{factor}}}),
	}
	return op.Apply(dst, area, src)
}

// AdjustBrightnessCurve maps the color channels through lut. The value s of
// a channel selects entry round(s*(len(lut)-1)). Alpha is kept.
func AdjustBrightnessCurve(dst, src *tilefx.Layer, area pixel.Rect, lut []float32) Result {
	if len(lut) < 2 {
		return failf(Precondition, "brightness-curve: lookup table of %d entries", len(lut))
	}
	last := float32(len(lut) - 1)
	op := &Op{
		Name: "brightness-curve",
		Host: pointwise(func(d []float32, s [][]float32) {
			n := colorChannels(len(d))
			for i, c := range s[0] {
				if i < n {
					c = lut[int(pixel.Clamp(c, 0, 1)*last+0.5)]
				}
				d[i] = c
			}
		}),
	}
	return op.Apply(dst, area, src)
}

// Curve maps the color channels through the curve interpolating points.
// The lookup table matches the precision of the source format.
func Curve(dst, src *tilefx.Layer, area pixel.Rect, points []pixel.PointF) Result {
	if src == nil || src.Empty() {
		return failf(Precondition, "curve: empty source")
	}
	lut, err := CurveLUT(points, LUTSize(src.Format()))
	if err != nil {
		return fail(err, 0)
	}
	return AdjustBrightnessCurve(dst, src, area, lut)
}

// ConvertToMonochrome writes r*fr + g*fg + b*fb to every color channel.
// Mono sources read their single channel as r, g and b.
func ConvertToMonochrome(dst, src *tilefx.Layer, area pixel.Rect, fr, fg, fb float32) Result {
	m := convolve.Monochrome(fr, fg, fb)
	op := &Op{
		Name: "monochrome",
		Host: pointwise(func(d []float32, s [][]float32) {
			copy(d, s[0])
			m.Apply(d)
		}),
		GPU: effect(gpu.Operation{Effect: gpu.EffectMonochrome, Values: [4][4]float32{{fr, fg, fb}}}),
	}
	return op.Apply(dst, area, src)
}

// GaussianBlur blurs src with a Gaussian of the given radius. Samples past
// the image edge repeat the edge pixel.
func GaussianBlur(dst, src *tilefx.Layer, area pixel.Rect, radius float32) Result {
	op := &Op{Name: "gaussian-blur", Host: separable(convolve.CachedGaussianKernel(float64(radius)))}
	return op.Apply(dst, area, src)
}

// BoxBlur blurs src with a box of 2*radius+1 pixels per axis.
func BoxBlur(dst, src *tilefx.Layer, area pixel.Rect, radius int) Result {
	op := &Op{Name: "box-blur", Host: separable(convolve.BoxKernel(radius))}
	return op.Apply(dst, area, src)
}

// separable runs a horizontal then a vertical pass of kernel. The
// horizontal pass covers the rows the vertical pass reads, so every tile of
// the area sees the same input as a single pass over the whole area.
func separable(kernel []float32) hostFunc {
	return func(run runner, dst surface, srcs []surface, area pixel.Rect) error {
		if area.Empty() {
			return nil
		}
		src := srcs[0]
		half := len(kernel) / 2
		ch := src.c.Channels()
		f := src.format()

		rows := pixel.R(area.X, area.Y-half, area.W, area.H+2*half).Clip(src.w, src.h)
		read := pixel.R(rows.X-half, rows.Y, rows.W+2*half, rows.H).Clip(src.w, src.h)

		in := convolve.NewPlane(src.w, src.h, ch)
		if err := run(read, func(t pixel.Rect) { in.Decode(src.data, f, t) }); err != nil {
			return err
		}
		mid := convolve.NewPlane(src.w, src.h, ch)
		if err := run(rows, func(t pixel.Rect) { convolve.Horizontal(in, mid, t, kernel) }); err != nil {
			return err
		}
		out := in
		return run(area, func(t pixel.Rect) {
			convolve.Vertical(mid, out, t, kernel)
			out.Encode(dst.data, dst.format(), t)
		})
	}
}

// Vignette darkens the color channels towards the image border. center is
// given in percent of width and height, radius in percent of the height
// and strength in percent.
func Vignette(dst, src *tilefx.Layer, area pixel.Rect, center pixel.PointF, radius, strength float32) Result {
	if dst == nil || dst.Empty() {
		return failf(Precondition, "vignette: empty destination")
	}
	w, h := float32(dst.Width()), float32(dst.Height())
	cx, cy := center.X*0.01*w, center.Y*0.01*h
	maxDist := max(radius*0.01*h, 1)
	k := strength * 0.01
	op := &Op{
		Name: "vignette",
		Host: func(run runner, d surface, s []surface, area pixel.Rect) error {
			return run(area, func(tile pixel.Rect) {
				var dpx, spx [4]float32
				dv, sv := dpx[:d.c.Channels()], spx[:s[0].c.Channels()]
				n := colorChannels(len(dv))
				for y := tile.Y; y < tile.Bottom(); y++ {
					for x := tile.X; x < tile.Right(); x++ {
						dist := float32(math.Hypot(float64(float32(x)-cx), float64(float32(y)-cy)))
						v := min(dist/maxDist, 1) * k
						p := d.index(x, y)
						s[0].c.Load(s[0].data, p, sv)
						for i, c := range sv {
							if i < n {
								c = (1-v)*c + v*c*c
							}
							dv[i] = c
						}
						d.c.Store(d.data, p, dv)
					}
				}
			})
		},
		GPU: effect(gpu.Operation{Effect: gpu.EffectVignette, Values: [4][4]float32{{cx, cy, maxDist, k}}}),
	}
	return op.Apply(dst, area, src)
}

func overlay(i, m float32) float32 { return i * (i + 2*m*(1-i)) }

func luma(c []float32) float32 { return 0.299*c[0] + 0.587*c[1] + 0.114*c[2] }

// SplitTone tints highlights and shadows. Each pixel is blended from the
// overlay of its color with highlights, weighted by luma*balance, the
// overlay with shadows, weighted by the squared remainder, and its luma.
// Destination alpha is kept.
func SplitTone(dst, src *tilefx.Layer, area pixel.Rect, highlights, shadows [3]float32, balance float32) Result {
	op := &Op{
		Name:    "split-tone",
		Formats: rgbFormats,
		Host: pointwise(func(d []float32, s [][]float32) {
			c := s[0]
			l := luma(c)
			hi := l * balance
			rest := 1 - hi
			sh := rest * rest
			orig := 1 - hi - sh
			for i := 0; i < 3; i++ {
				d[i] = pixel.Clamp(overlay(c[i], highlights[i])*hi+overlay(c[i], shadows[i])*sh+l*orig, 0, 1)
			}
		}),
		GPU: effect(gpu.Operation{Effect: gpu.EffectSplitTone, Values: [4][4]float32{
			{highlights[0], highlights[1], highlights[2], balance},
			{shadows[0], shadows[1], shadows[2]},
		}}),
	}
	return op.Apply(dst, area, src)
}

// AdaptiveBWMixer converts to gray with separate channel weights for
// bright and dark pixels, mixed by luma shifted by balance. Alpha is kept.
func AdaptiveBWMixer(dst, src *tilefx.Layer, area pixel.Rect, bright, dark [3]float32, balance float32) Result {
	op := &Op{
		Name:    "adaptive-bw",
		Formats: rgbFormats,
		Host: pointwise(func(d []float32, s [][]float32) {
			c := s[0]
			l := pixel.Clamp(balance+luma(c), 0, 1)
			b := c[0]*bright[0] + c[1]*bright[1] + c[2]*bright[2]
			k := c[0]*dark[0] + c[1]*dark[1] + c[2]*dark[2]
			v := k*(1-l) + b*l
			d[0], d[1], d[2] = v, v, v
			if len(d) == 4 {
				d[3] = c[3]
			}
		}),
		GPU: effect(gpu.Operation{Effect: gpu.EffectAdaptiveBW, Values: [4][4]float32{
			{bright[0], bright[1], bright[2], balance},
			{dark[0], dark[1], dark[2]},
		}}),
	}
	return op.Apply(dst, area, src)
}

// Normalize writes the Euclidean norm of the source channels to every
// channel, clamped to 1.
func Normalize(dst, src *tilefx.Layer, area pixel.Rect) Result {
	op := &Op{
		Name: "normalize",
		Host: pointwise(func(d []float32, s [][]float32) {
			var sum float32
			for _, c := range s[0] {
				sum += c * c
			}
			v := min(float32(math.Sqrt(float64(sum))), 1)
			for i := range d {
				d[i] = v
			}
		}),
		GPU: effect(gpu.Operation{Effect: gpu.EffectNormalize}),
	}
	return op.Apply(dst, area, src)
}

// Copy copies the area of src into dst.
func Copy(dst, src *tilefx.Layer, area pixel.Rect) Result {
	op := &Op{
		Name: "copy",
		Host: func(run runner, d surface, s []surface, area pixel.Rect) error {
			return run(area, func(t pixel.Rect) {
				px := d.c.Size()
				for y := t.Y; y < t.Bottom(); y++ {
					o := d.index(t.X, y) * px
					copy(d.data[o:o+t.W*px], s[0].data[o:o+t.W*px])
				}
			})
		},
		GPU: effect(gpu.Operation{Effect: gpu.EffectCopy}),
	}
	return op.Apply(dst, area, src)
}

// CopyChannel copies channel srcCh of src into channel dstCh of dst. The
// layers may differ in format.
func CopyChannel(dst, src *tilefx.Layer, area pixel.Rect, dstCh, srcCh int) Result {
	if dst != nil && src != nil {
		if dstCh < 0 || dstCh >= dst.Format().Channels() || srcCh < 0 || srcCh >= src.Format().Channels() {
			return failf(Precondition, "copy-channel: channel %d of %v from %d of %v",
				dstCh, dst.Format(), srcCh, src.Format())
		}
	}
	op := &Op{
		Name:         "copy-channel",
		MixedFormats: true,
		Host:         pointwise(func(d []float32, s [][]float32) { d[dstCh] = s[0][srcCh] }),
		GPU: effect(gpu.Operation{
			Effect:        gpu.EffectCopyChannel,
			Channel:       uint32(dstCh),
			SourceChannel: uint32(srcCh),
		}),
	}
	return op.Apply(dst, area, src)
}

// quantizeUp rounds v up to the next value representable in f.
func quantizeUp(f pixel.Format, v float32) float32 {
	if f.IsFloat() {
		return v
	}
	m := float32(f.Max())
	return float32(math.Ceil(float64(pixel.Clamp(v, -1, 1)*m))) / m
}

// MinThreshold zeroes every channel below v.
func MinThreshold(dst, src *tilefx.Layer, area pixel.Rect, v float32) Result {
	return threshold("min-threshold", gpu.EffectThresholdMin, dst, src, area, v, func(c, t float32) bool { return c < t })
}

// MaxThreshold zeroes every channel above v.
func MaxThreshold(dst, src *tilefx.Layer, area pixel.Rect, v float32) Result {
	return threshold("max-threshold", gpu.EffectThresholdMax, dst, src, area, v, func(c, t float32) bool { return c > t })
}

func threshold(name string, kind gpu.EffectKind, dst, src *tilefx.Layer, area pixel.Rect, v float32, cut func(c, t float32) bool) Result {
	if dst == nil || dst.Empty() {
		return failf(Precondition, "%s: empty destination", name)
	}
	t := quantizeUp(dst.Format(), v)
	op := &Op{
		Name: name,
		Host: pointwise(func(d []float32, s [][]float32) {
			for i, c := range s[0] {
				if cut(c, t) {
					c = 0
				}
				d[i] = c
			}
		}),
		GPU: effect(gpu.Operation{Effect: kind, Values: [4][4]float32{{t}}}),
	}
	return op.Apply(dst, area, src)
}

// GrainMultiply scales the distance of every channel from mid gray by v.
func GrainMultiply(dst, src *tilefx.Layer, area pixel.Rect, v float32) Result {
	op := &Op{
		Name: "grain-multiply",
		Host: pointwise(func(d []float32, s [][]float32) {
			for i, c := range s[0] {
				d[i] = (c-0.5)*v + 0.5
			}
		}),
	}
	return op.Apply(dst, area, src)
}
