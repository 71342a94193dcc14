package ops

import (
	"github.com/gogpu/tilefx"
	"github.com/gogpu/tilefx/backend/gpu"
	"github.com/gogpu/tilefx/pixel"
)

// Blend writes mode(a, b) for every channel of the area to dst. dst may be
// a or b.
func Blend(dst, a, b *tilefx.Layer, area pixel.Rect, mode pixel.BlendMode) Result {
	return blend(dst, a, b, area, mode, 1)
}

func blend(dst, a, b *tilefx.Layer, area pixel.Rect, mode pixel.BlendMode, opacity float32) Result {
	op := &Op{
		Name: "blend-" + mode.String(),
		Host: pointwise(func(d []float32, s [][]float32) {
			for i := range d {
				d[i] = pixel.Blend(mode, s[0][i], s[1][i], opacity)
			}
		}),
		GPU: effect(gpu.Operation{
			Effect: gpu.EffectBlend,
			Values: [4][4]float32{{opacity}, {float32(mode)}},
		}),
	}
	return op.Apply(dst, area, a, b)
}

// Add writes a + b.
func Add(dst, a, b *tilefx.Layer, area pixel.Rect) Result {
	return Blend(dst, a, b, area, pixel.BlendAdd)
}

// Sub writes a - b.
func Sub(dst, a, b *tilefx.Layer, area pixel.Rect) Result {
	return Blend(dst, a, b, area, pixel.BlendSubtract)
}

// Multiply writes a * b.
func Multiply(dst, a, b *tilefx.Layer, area pixel.Rect) Result {
	return Blend(dst, a, b, area, pixel.BlendMultiply)
}

// Divide writes a / b, or a where b is zero.
func Divide(dst, a, b *tilefx.Layer, area pixel.Rect) Result {
	return Blend(dst, a, b, area, pixel.BlendDivide)
}

func Screen(dst, a, b *tilefx.Layer, area pixel.Rect) Result {
	return Blend(dst, a, b, area, pixel.BlendScreen)
}

func Overlay(dst, a, b *tilefx.Layer, area pixel.Rect) Result {
	return Blend(dst, a, b, area, pixel.BlendOverlay)
}

func Dodge(dst, a, b *tilefx.Layer, area pixel.Rect) Result {
	return Blend(dst, a, b, area, pixel.BlendDodge)
}

func Burn(dst, a, b *tilefx.Layer, area pixel.Rect) Result {
	return Blend(dst, a, b, area, pixel.BlendBurn)
}

func HardLight(dst, a, b *tilefx.Layer, area pixel.Rect) Result {
	return Blend(dst, a, b, area, pixel.BlendHardLight)
}

// GrainMerge writes a + b - 0.5.
func GrainMerge(dst, a, b *tilefx.Layer, area pixel.Rect) Result {
	return Blend(dst, a, b, area, pixel.BlendGrainMerge)
}

// GrainExtract writes a - b + 0.5.
func GrainExtract(dst, a, b *tilefx.Layer, area pixel.Rect) Result {
	return Blend(dst, a, b, area, pixel.BlendGrainExtract)
}

func Difference(dst, a, b *tilefx.Layer, area pixel.Rect) Result {
	return Blend(dst, a, b, area, pixel.BlendDifference)
}

func Min(dst, a, b *tilefx.Layer, area pixel.Rect) Result {
	return Blend(dst, a, b, area, pixel.BlendMin)
}

func Max(dst, a, b *tilefx.Layer, area pixel.Rect) Result {
	return Blend(dst, a, b, area, pixel.BlendMax)
}

// AlphaBlend writes a + (b-a)*opacity.
func AlphaBlend(dst, a, b *tilefx.Layer, area pixel.Rect, opacity float32) Result {
	return blend(dst, a, b, area, pixel.BlendAlpha, pixel.Clamp(opacity, 0, 1))
}

// AlphaOver composites b over a using the alpha channel of b scaled by
// opacity. The result keeps the alpha of a. Layers without alpha blend
// with opacity alone.
func AlphaOver(dst, a, b *tilefx.Layer, area pixel.Rect, opacity float32) Result {
	opacity = pixel.Clamp(opacity, 0, 1)
	op := &Op{
		Name: "alpha-over",
		Host: pointwise(func(d []float32, s [][]float32) {
			n := colorChannels(len(d))
			k := opacity
			if n < len(d) {
				k *= s[1][n]
			}
			for i := range d {
				if i < n {
					d[i] = s[0][i] + (s[1][i]-s[0][i])*k
				} else {
					d[i] = s[0][i]
				}
			}
		}),
	}
	return op.Apply(dst, area, a, b)
}

// BlendValue writes mode(s, color) for every channel of the area. Mono
// layers use color[0], RGB layers ignore color[3].
func BlendValue(dst, src *tilefx.Layer, area pixel.Rect, mode pixel.BlendMode, color [4]float32) Result {
	op := &Op{
		Name: "blend-value-" + mode.String(),
		Host: pointwise(func(d []float32, s [][]float32) {
			for i, c := range s[0] {
				d[i] = pixel.Blend(mode, c, color[i], 1)
			}
		}),
		GPU: effect(gpu.Operation{
			Effect: gpu.EffectBlendValue,
			Values: [4][4]float32{{1}, {float32(mode)}, color},
		}),
	}
	return op.Apply(dst, area, src)
}

func splat(v float32) [4]float32 { return [4]float32{v, v, v, v} }

// AddValue adds v to every channel.
func AddValue(dst, src *tilefx.Layer, area pixel.Rect, v float32) Result {
	return BlendValue(dst, src, area, pixel.BlendAdd, splat(v))
}

// SubValue subtracts v from every channel.
func SubValue(dst, src *tilefx.Layer, area pixel.Rect, v float32) Result {
	return BlendValue(dst, src, area, pixel.BlendSubtract, splat(v))
}

// MultiplyValue multiplies every channel by v.
func MultiplyValue(dst, src *tilefx.Layer, area pixel.Rect, v float32) Result {
	return BlendValue(dst, src, area, pixel.BlendMultiply, splat(v))
}

// DivideValue divides every channel by v. A zero v leaves the source as is.
func DivideValue(dst, src *tilefx.Layer, area pixel.Rect, v float32) Result {
	return BlendValue(dst, src, area, pixel.BlendDivide, splat(v))
}

// MinThresholdBy zeroes every channel of a that is below the matching
// channel of t.
func MinThresholdBy(dst, a, t *tilefx.Layer, area pixel.Rect) Result {
	return thresholdBy("min-threshold-by", dst, a, t, area, func(c, t float32) bool { return c < t })
}

// MaxThresholdBy zeroes every channel of a that is above the matching
// channel of t.
func MaxThresholdBy(dst, a, t *tilefx.Layer, area pixel.Rect) Result {
	return thresholdBy("max-threshold-by", dst, a, t, area, func(c, t float32) bool { return c > t })
}

func thresholdBy(name string, dst, a, t *tilefx.Layer, area pixel.Rect, cut func(c, t float32) bool) Result {
	op := &Op{
		Name: name,
		Host: pointwise(func(d []float32, s [][]float32) {
			for i, c := range s[0] {
				if cut(c, s[1][i]) {
					c = 0
				}
				d[i] = c
			}
		}),
	}
	return op.Apply(dst, area, a, t)
}
