// Package lut generates the lookup tables behind tone curves.
//
// A table maps n evenly spaced inputs in [0, 1] to normalized outputs.
// Tables are shared through a process-wide LRU cache and must not be
// modified by callers.
package lut

import (
	"encoding/binary"
	"math"
	"slices"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru"

	"github.com/gogpu/tilefx/pixel"
)

// ErrNoPoints is returned for a curve without control points.
var ErrNoPoints = errors.New("lut: curve has no points")

// ErrSize is returned for a table of fewer than two entries.
var ErrSize = errors.New("lut: table size")

const (
	// oversample is the number of curve samples per table entry.
	oversample = 4

	// tension scales the tangent of a segment's control points.
	tension = 0.2
)

type key struct {
	points string
	n      int
}

var tables, _ = lru.New(64)

// SetCacheSize resizes the table cache to n entries.
func SetCacheSize(n int) {
	if n > 0 {
		tables.Resize(n)
	}
}

// Size returns the table size matching the precision of f: one entry per
// value for unsigned integer formats up to 16 bits, 4096 otherwise.
func Size(f pixel.Format) int {
	if f.IsFloat() || f.IsSigned() || f.Max() > math.MaxUint16 {
		return 4096
	}
	return int(f.Max()) + 1
}

func cacheKey(points []pixel.PointF, n int) key {
	b := make([]byte, 0, len(points)*8)
	for _, p := range points {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(p.X))
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(p.Y))
	}
	return key{points: string(b), n: n}
}

// Curve returns the n-entry table of the curve through points. The points
// need not be sorted. Two points give a straight line, more give a smooth
// curve through every point. Inputs outside the points' x range take the
// value of the nearest endpoint.
func Curve(points []pixel.PointF, n int) ([]float32, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	if n < 2 {
		return nil, errors.Wrapf(ErrSize, "%d entries", n)
	}
	k := cacheKey(points, n)
	if t, ok := tables.Get(k); ok {
		return t.([]float32), nil
	}

	pts := slices.Clone(points)
	slices.SortStableFunc(pts, func(a, b pixel.PointF) int {
		switch {
		case a.X < b.X:
			return -1
		case a.X > b.X:
			return 1
		}
		return 0
	})
	var t []float32
	switch len(pts) {
	case 1:
		t = constant(pts[0].Y, n)
	case 2:
		t = linear(pts[0], pts[1], n)
	default:
		t = bezier(pts, n)
	}
	tables.Add(k, t)
	return t, nil
}

func clamp01(v float32) float32 { return pixel.Clamp(v, 0, 1) }

func constant(y float32, n int) []float32 {
	t := make([]float32, n)
	y = clamp01(y)
	for i := range t {
		t[i] = y
	}
	return t
}

func linear(a, b pixel.PointF, n int) []float32 {
	t := make([]float32, n)
	last := float32(n - 1)
	for i := range t {
		x := float32(i) / last
		var y float32
		switch {
		case x <= a.X:
			y = a.Y
		case x >= b.X:
			y = b.Y
		default:
			y = a.Y + (x-a.X)*(b.Y-a.Y)/(b.X-a.X)
		}
		t[i] = clamp01(y)
	}
	return t
}

// bezier joins consecutive points with cubic segments whose control points
// follow the neighbouring points. The ends use reflected phantom points.
func bezier(pts []pixel.PointF, n int) []float32 {
	t := make([]float32, n)
	set := make([]bool, n)
	last := n - 1

	at := func(i int) pixel.PointF {
		switch {
		case i < 0:
			return reflect(pts[0], pts[1])
		case i >= len(pts):
			return reflect(pts[len(pts)-1], pts[len(pts)-2])
		}
		return pts[i]
	}

	for i := 0; i+1 < len(pts); i++ {
		a, b, c, d := at(i-1), at(i), at(i+1), at(i+2)
		b2 := pixel.PointF{X: b.X + (c.X-a.X)*tension, Y: clamp01(b.Y + (c.Y-a.Y)*tension)}
		c2 := pixel.PointF{X: c.X + (b.X-d.X)*tension, Y: clamp01(c.Y + (b.Y-d.Y)*tension)}
		// Keep the segment a function of x.
		b2.X = pixel.Clamp(b2.X, b.X, c.X)
		c2.X = pixel.Clamp(c2.X, b2.X, c.X)

		steps := max(int(math.Ceil(float64((c.X-b.X)*float32(last))))*oversample, 1)
		for s := 0; s <= steps; s++ {
			p := cubic(b, b2, c2, c, float32(s)/float32(steps))
			pos := int(clamp01(p.X)*float32(last) + 0.5)
			t[pos] = clamp01(p.Y)
			set[pos] = true
		}
	}
	// The curve passes through its control points even where a neighboring
	// sample rounds onto the same entry.
	for _, p := range pts {
		pos := int(clamp01(p.X)*float32(last) + 0.5)
		t[pos] = clamp01(p.Y)
		set[pos] = true
	}

	// Entries the samples skipped carry the previous value forward.
	first := clamp01(pts[0].Y)
	lo := int(math.Ceil(float64(clamp01(pts[0].X) * float32(last))))
	hi := int(clamp01(pts[len(pts)-1].X) * float32(last))
	v := first
	for i := range t {
		switch {
		case i < lo:
			t[i] = first
		case i > hi:
			t[i] = clamp01(pts[len(pts)-1].Y)
		case set[i]:
			v = t[i]
		default:
			t[i] = v
		}
	}
	return t
}

func reflect(p, q pixel.PointF) pixel.PointF {
	return pixel.PointF{X: 2*p.X - q.X, Y: 2*p.Y - q.Y}
}

func cubic(p0, p1, p2, p3 pixel.PointF, t float32) pixel.PointF {
	u := 1 - t
	a, b, c, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
	return pixel.PointF{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}
