package ops

import (
	"image"

	"github.com/cockroachdb/errors"
	"golang.org/x/image/draw"

	"github.com/gogpu/tilefx"
	"github.com/gogpu/tilefx/pixel"
)

// The operations in this file are compositions of other operations. They
// run wherever their operands are valid and need no kernels of their own.

// scratch returns temporary layers shaped like src and resident on every
// backend where both src and dst are valid.
func scratch(dst, src *tilefx.Layer, names ...string) ([]*tilefx.Layer, func(), Result) {
	if dst == nil || dst.Empty() || src == nil || src.Empty() {
		return nil, nil, failf(Precondition, "scratch: empty operand")
	}
	set := src.ValidBackends().Intersect(dst.ValidBackends())
	if set.Empty() {
		return nil, nil, failf(Precondition, "scratch: %q and %q share no valid backend", dst.Name(), src.Name())
	}
	out := make([]*tilefx.Layer, 0, len(names))
	release := func() {
		for _, l := range out {
			l.Release()
		}
	}
	for _, name := range names {
		l, err := src.Like(name, set)
		if err != nil {
			release()
			return nil, nil, fail(err, 0)
		}
		out = append(out, l)
	}
	return out, release, ok(set)
}

// chainKeepingAlpha runs steps and then restores the alpha of src in dst.
// The blend steps of a composition work on every channel, alpha included.
// When dst is src, the alpha is saved before the first step.
func chainKeepingAlpha(dst, src *tilefx.Layer, area pixel.Rect, steps ...func() Result) Result {
	if !dst.Format().HasAlpha() || !src.Format().HasAlpha() {
		return Chain(steps...)
	}
	a := dst.Format().Channels() - 1
	from := src
	if dst == src {
		tmp, release, res := scratch(dst, src, "saved-alpha")
		if !res.OK() {
			return res
		}
		defer release()
		from = tmp[0]
		steps = append([]func() Result{func() Result { return Copy(from, src, area) }}, steps...)
	}
	steps = append(steps, func() Result { return CopyChannel(dst, from, area, a, a) })
	return Chain(steps...)
}

// Cascade is one blur level of a cascaded sharpen.
type Cascade struct {
	// Blurred is the source blurred with the cascade's radius.
	Blurred *tilefx.Layer

	// Strength is the sharpening strength in percent.
	Strength float32
}

// CascadedSharpen sharpens src by adding the detail between consecutive
// blur levels, each scaled by its strength. threshold, in percent, keeps
// low-contrast areas from being sharpened.
func CascadedSharpen(dst, src *tilefx.Layer, area pixel.Rect, cascades []Cascade, threshold float32) Result {
	if len(cascades) == 0 {
		return failf(Precondition, "cascaded-sharpen: no cascades")
	}
	tmp, release, res := scratch(dst, src,
		"sharpen-front", "sharpen-back", "sharpen-usm", "sharpen-usm-last",
		"sharpen-blur-front", "sharpen-blur-back", "sharpen-composite")
	if !res.OK() {
		return res
	}
	defer release()
	front, back, usm, usmLast := tmp[0], tmp[1], tmp[2], tmp[3]
	blurFront, blurBack, composite := tmp[4], tmp[5], tmp[6]

	mid := splat(0.5)
	steps := make([]func() Result, 0, len(tmp)+5*len(cascades)+6)
	for _, l := range tmp {
		steps = append(steps, func() Result { return FillColor(l, area, mid) })
	}
	for _, c := range cascades {
		if c.Blurred == nil {
			return failf(Precondition, "cascaded-sharpen: missing blur level")
		}
		fr, bk, u, ul, bf, bb := front, back, usm, usmLast, blurFront, blurBack
		steps = append(steps,
			func() Result { return GrainExtract(u, c.Blurred, src, area) },
			func() Result { return Max(bb, u, bf, area) },
			func() Result { return GrainExtract(composite, u, ul, area) },
			func() Result { return GrainMultiply(composite, composite, area, c.Strength/100) },
			func() Result { return GrainMerge(bk, fr, composite, area) },
		)
		front, back = back, front
		usm, usmLast = usmLast, usm
		blurFront, blurBack = blurBack, blurFront
	}

	factor := 1 - max(threshold/100, 0.01)
	tmap, diff, upper := back, usm, usmLast
	steps = append(steps,
		func() Result { return MultiplyValue(tmap, blurFront, area, factor) },
		func() Result { return GrainExtract(diff, src, front, area) },
		func() Result { return Multiply(diff, diff, tmap, area) },
		func() Result { return Negate(tmap, tmap, area) },
		func() Result { return Multiply(upper, src, tmap, area) },
		func() Result { return Add(dst, diff, upper, area) },
	)
	return chainKeepingAlpha(dst, src, area, steps...)
}

// UnsharpMask sharpens src by the detail between src and blurred, scaled
// by strength.
func UnsharpMask(dst, src, blurred *tilefx.Layer, area pixel.Rect, strength float32) Result {
	tmp, release, res := scratch(dst, src, "unsharp-mask")
	if !res.OK() {
		return res
	}
	defer release()
	mask := tmp[0]
	return chainKeepingAlpha(dst, src, area,
		func() Result { return GrainExtract(mask, src, blurred, area) },
		func() Result { return GrainMultiply(mask, mask, area, strength) },
		func() Result { return GrainMerge(dst, src, mask, area) },
	)
}

// FilmGrain overlays grain on src. weights maps source brightness to the
// grain weight: 0 keeps the source, 1 shows the full overlay.
func FilmGrain(dst, src, grain *tilefx.Layer, area pixel.Rect, weights []float32) Result {
	tmp, release, res := scratch(dst, src, "grain-weight", "grain-overlay")
	if !res.OK() {
		return res
	}
	defer release()
	w, ov := tmp[0], tmp[1]
	return chainKeepingAlpha(dst, src, area,
		func() Result { return AdjustBrightnessCurve(w, src, area, weights) },
		func() Result { return Overlay(ov, src, grain, area) },
		func() Result { return Multiply(ov, ov, w, area) },
		func() Result { return Negate(w, w, area) },
		func() Result { return Multiply(w, src, w, area) },
		func() Result { return Add(dst, w, ov, area) },
	)
}

// Sampler selects the resampling filter of SampleWeighted.
type Sampler uint8

const (
	SampleNearest Sampler = iota
	SampleApproxBilinear
	SampleBilinear
	SampleCatmullRom
)

func (s Sampler) interpolator() draw.Interpolator {
	switch s {
	case SampleNearest:
		return draw.NearestNeighbor
	case SampleApproxBilinear:
		return draw.ApproxBiLinear
	case SampleBilinear:
		return draw.BiLinear
	}
	return draw.CatmullRom
}

// SampleWeighted resamples src to w x h pixels into dst, which is reset to
// the new size on every backend where src is valid.
func SampleWeighted(dst, src *tilefx.Layer, w, h int, s Sampler) Result {
	if dst == nil || src == nil || src.Empty() {
		return failf(Precondition, "sample-weighted: empty operand")
	}
	if w <= 0 || h <= 0 {
		return failf(Precondition, "sample-weighted: size %dx%d", w, h)
	}
	set := src.ValidBackends()
	bm, err := src.Bitmap()
	if err != nil {
		return fail(err, 0)
	}
	in := bm.Image()
	r := image.Rect(0, 0, w, h)
	var out draw.Image
	if src.Format().ChannelSize() > 1 {
		out = image.NewNRGBA64(r)
	} else {
		out = image.NewNRGBA(r)
	}
	s.interpolator().Scale(out, r, in, in.Bounds(), draw.Src, nil)

	res, err := tilefx.BitmapFromImage(out, src.Format())
	if err != nil {
		return fail(err, 0)
	}
	for _, id := range set.IDs() {
		if err := dst.ResetFromBitmap(id, res); err != nil {
			return fail(errors.Wrapf(err, "ops: sample-weighted on %v", id), 0)
		}
	}
	if err := dst.Commit(tilefx.Plan{Read: set, Write: set}); err != nil {
		return fail(err, set)
	}
	tilefx.Logger().Debug("op applied", "op", "sample-weighted", "layer", dst.Name(),
		"size", pixel.Full(w, h), "fired", set.String())
	return ok(set)
}
