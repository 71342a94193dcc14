package convolve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gogpu/tilefx/pixel"
)

func sum(k []float32) float32 {
	var s float32
	for _, v := range k {
		s += v
	}
	return s
}

func TestGaussianKernel(t *testing.T) {
	tests := []struct {
		radius float64
		size   int
	}{
		{0, 1},
		{-1, 1},
		{1, 7},
		{2.5, 17},
	}
	for _, tt := range tests {
		k := GaussianKernel(tt.radius)
		require.Len(t, k, tt.size)
		require.Equal(t, tt.size, KernelSize(tt.radius))
		require.InDelta(t, 1.0, sum(k), 1e-5)
		for i := 0; i < len(k)/2; i++ {
			require.InDelta(t, k[i], k[len(k)-1-i], 1e-7, "kernel must be symmetric")
		}
	}
}

func TestBoxKernel(t *testing.T) {
	require.Equal(t, []float32{1}, BoxKernel(0))
	k := BoxKernel(2)
	require.Len(t, k, 5)
	require.InDelta(t, 1.0, sum(k), 1e-6)
}

func TestCachedGaussianKernel(t *testing.T) {
	a := CachedGaussianKernel(1.5)
	b := CachedGaussianKernel(1.501)
	require.Same(t, &a[0], &b[0])
	require.Equal(t, GaussianKernel(1.5), a)
}

func TestSeparableConstantPlane(t *testing.T) {
	src := NewPlane(9, 7, 3)
	for i := range src.Data {
		src.Data[i] = 0.25
	}
	tmp := NewPlane(9, 7, 3)
	dst := NewPlane(9, 7, 3)
	k := GaussianKernel(2)
	Horizontal(src, tmp, src.Bounds(), k)
	Vertical(tmp, dst, dst.Bounds(), k)
	for _, v := range dst.Data {
		require.InDelta(t, 0.25, v, 1e-5)
	}
}

func TestSeparableTilesMatchWhole(t *testing.T) {
	src := NewPlane(16, 12, 1)
	for i := range src.Data {
		src.Data[i] = float32(i%7) / 7
	}
	k := GaussianKernel(1.3)
	whole := NewPlane(16, 12, 1)
	Horizontal(src, whole, whole.Bounds(), k)

	tiled := NewPlane(16, 12, 1)
	for _, r := range []pixel.Rect{pixel.R(0, 0, 5, 12), pixel.R(5, 0, 11, 7), pixel.R(5, 7, 11, 5)} {
		Horizontal(src, tiled, r, k)
	}
	require.Equal(t, whole.Data, tiled.Data)
}

func TestPlaneCodec(t *testing.T) {
	buf := []byte{0, 0, 0, 255, 255, 255, 255, 255, 128, 64, 32, 0}
	p := NewPlane(3, 1, 4)
	p.Decode(buf, pixel.RGBA8, p.Bounds())
	require.InDelta(t, 1.0, p.Data[3], 1e-6)
	require.InDelta(t, 128.0/255, p.Data[8], 1e-6)

	out := make([]byte, len(buf))
	p.Encode(out, pixel.RGBA8, p.Bounds())
	require.Equal(t, buf, out)

	c := NewPlane(3, 1, 4)
	Copy(p, c, pixel.R(1, 0, 2, 1))
	require.Equal(t, p.Data[4:], c.Data[4:])
	require.Zero(t, c.Data[3])
}

func TestMatrix(t *testing.T) {
	px := []float32{0.2, 0.4, 0.6, 0.5}
	id := Identity()
	id.Apply(px)
	require.Equal(t, []float32{0.2, 0.4, 0.6, 0.5}, px)

	m := Luma()
	m.Apply(px)
	want := float32(0.299*0.2 + 0.587*0.4 + 0.114*0.6)
	require.InDelta(t, want, px[0], 1e-6)
	require.InDelta(t, want, px[2], 1e-6)
	require.Equal(t, float32(0.5), px[3])

	mono := []float32{0.5}
	m.Apply(mono)
	require.InDelta(t, 0.5, mono[0], 1e-6)
}
