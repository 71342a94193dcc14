package ops

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gogpu/tilefx"
	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/pixel"
)

func TestBlendModes(t *testing.T) {
	e := newEngine(t, testConfig(false))
	a := newLayer(t, e, "a", pixel.RGB8, 4, 4, solid(pixel.RGB8, 4, 4, 200, 255, 60))
	b := newLayer(t, e, "b", pixel.RGB8, 4, 4, solid(pixel.RGB8, 4, 4, 50, 128, 0))

	tests := []struct {
		name string
		run  func(dst *tilefx.Layer) Result
		want []byte
	}{
		{"add", func(d *tilefx.Layer) Result { return Add(d, a, b, d.Bounds()) }, []byte{250, 255, 60}},
		{"sub", func(d *tilefx.Layer) Result { return Sub(d, a, b, d.Bounds()) }, []byte{150, 127, 60}},
		{"multiply", func(d *tilefx.Layer) Result { return Multiply(d, a, b, d.Bounds()) }, []byte{39, 128, 0}},
		{"divide", func(d *tilefx.Layer) Result { return Divide(d, b, a, d.Bounds()) }, []byte{64, 128, 0}},
		{"divide-zero", func(d *tilefx.Layer) Result { return Divide(d, a, b, d.Bounds()) }, []byte{255, 255, 60}},
		{"min", func(d *tilefx.Layer) Result { return Min(d, a, b, d.Bounds()) }, []byte{50, 128, 0}},
		{"max", func(d *tilefx.Layer) Result { return Max(d, a, b, d.Bounds()) }, []byte{200, 255, 60}},
		{"difference", func(d *tilefx.Layer) Result { return Difference(d, a, b, d.Bounds()) }, []byte{150, 127, 60}},
		{"alpha", func(d *tilefx.Layer) Result { return AlphaBlend(d, a, b, d.Bounds(), 0) }, []byte{200, 255, 60}},
		{"alpha-over", func(d *tilefx.Layer) Result { return AlphaOver(d, a, b, d.Bounds(), 1) }, []byte{50, 128, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := newLayer(t, e, tt.name, pixel.RGB8, 4, 4, nil)
			requireOK(t, tt.run(dst))
			require.Equal(t, solid(pixel.RGB8, 4, 4, tt.want...), retrieve(t, dst))
		})
	}
}

func TestAlphaOverUsesSourceAlpha(t *testing.T) {
	e := newEngine(t, testConfig(false))
	a := newLayer(t, e, "a", pixel.RGBA8, 2, 2, solid(pixel.RGBA8, 2, 2, 0, 0, 0, 255))
	b := newLayer(t, e, "b", pixel.RGBA8, 2, 2, solid(pixel.RGBA8, 2, 2, 255, 255, 255, 0))
	requireOK(t, AlphaOver(a, a, b, a.Bounds(), 1))
	require.Equal(t, solid(pixel.RGBA8, 2, 2, 0, 0, 0, 255), retrieve(t, a))
}

func TestThresholdBy(t *testing.T) {
	e := newEngine(t, testConfig(false))
	a := newLayer(t, e, "a", pixel.Mono8, 2, 1, []byte{10, 200})
	th := newLayer(t, e, "t", pixel.Mono8, 2, 1, []byte{100, 100})

	dst := newLayer(t, e, "min", pixel.Mono8, 2, 1, nil)
	requireOK(t, MinThresholdBy(dst, a, th, dst.Bounds()))
	require.Equal(t, []byte{0, 200}, retrieve(t, dst))

	requireOK(t, MaxThresholdBy(dst, a, th, dst.Bounds()))
	require.Equal(t, []byte{10, 0}, retrieve(t, dst))
}

func requireNear(t *testing.T, want, got []byte, delta float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.InDelta(t, want[i], got[i], delta, "byte %d", i)
	}
}

func TestCascadedSharpenFlat(t *testing.T) {
	e := newEngine(t, testConfig(false))
	data := solid(pixel.RGBA8, 20, 20, 100, 150, 200, 255)
	src := newLayer(t, e, "src", pixel.RGBA8, 20, 20, data)
	blurred := newLayer(t, e, "blur", pixel.RGBA8, 20, 20, nil)
	requireOK(t, GaussianBlur(blurred, src, src.Bounds(), 2))
	dst := newLayer(t, e, "dst", pixel.RGBA8, 20, 20, nil)

	cascades := []Cascade{{Blurred: blurred, Strength: 80}, {Blurred: blurred, Strength: 40}}
	res := CascadedSharpen(dst, src, dst.Bounds(), cascades, 10)
	requireOK(t, res)
	require.Equal(t, backend.SetOf(backend.CPU), res.Fired)
	requireNear(t, data, retrieve(t, dst), 2)

	require.Equal(t, Precondition, CascadedSharpen(dst, src, dst.Bounds(), nil, 10).Kind)
}

func TestCascadedSharpenEnhancesEdges(t *testing.T) {
	e := newEngine(t, testConfig(false))
	const w, h = 24, 8
	data := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x >= w/2 {
				data[y*w+x] = 160
			} else {
				data[y*w+x] = 96
			}
		}
	}
	src := newLayer(t, e, "src", pixel.Mono8, w, h, data)
	blurred := newLayer(t, e, "blur", pixel.Mono8, w, h, nil)
	requireOK(t, GaussianBlur(blurred, src, src.Bounds(), 1.5))
	dst := newLayer(t, e, "dst", pixel.Mono8, w, h, nil)

	requireOK(t, CascadedSharpen(dst, src, dst.Bounds(), []Cascade{{Blurred: blurred, Strength: 100}}, 0))
	got := retrieve(t, dst)
	require.Less(t, got[w/2-1], data[w/2-1], "dark side of the edge gets darker")
	require.Greater(t, got[w/2], data[w/2], "bright side of the edge gets brighter")
	require.InDelta(t, data[0], got[0], 2, "flat areas keep their value")
}

func TestUnsharpMask(t *testing.T) {
	e := newEngine(t, testConfig(false))
	data := solid(pixel.RGB8, 10, 10, 40, 90, 210)
	src := newLayer(t, e, "src", pixel.RGB8, 10, 10, data)
	dst := newLayer(t, e, "dst", pixel.RGB8, 10, 10, nil)

	requireOK(t, UnsharpMask(dst, src, src, dst.Bounds(), 1.5))
	requireNear(t, data, retrieve(t, dst), 1)
}

func TestFilmGrainZeroWeight(t *testing.T) {
	e := newEngine(t, testConfig(false))
	data := noise(11, pixel.BufferSize(pixel.RGBA8, 12, 12))
	grain := newLayer(t, e, "grain", pixel.RGBA8, 12, 12, noise(12, len(data)))
	weights, err := CurveLUT([]pixel.PointF{{X: 0, Y: 0}}, 256)
	require.NoError(t, err)

	t.Run("separate", func(t *testing.T) {
		src := newLayer(t, e, "src", pixel.RGBA8, 12, 12, data)
		dst := newLayer(t, e, "dst", pixel.RGBA8, 12, 12, nil)
		requireOK(t, FilmGrain(dst, src, grain, dst.Bounds(), weights))
		require.Equal(t, data, retrieve(t, dst))
	})
	t.Run("in place", func(t *testing.T) {
		src := newLayer(t, e, "src", pixel.RGBA8, 12, 12, data)
		requireOK(t, FilmGrain(src, src, grain, src.Bounds(), weights))
		require.Equal(t, data, retrieve(t, src))
	})
}

func TestCompositionsKeepAlpha(t *testing.T) {
	e := newEngine(t, testConfig(false))
	data := solid(pixel.RGBA8, 10, 10, 40, 90, 210, 77)
	src := newLayer(t, e, "src", pixel.RGBA8, 10, 10, data)
	blurred := newLayer(t, e, "blur", pixel.RGBA8, 10, 10, nil)
	requireOK(t, GaussianBlur(blurred, src, src.Bounds(), 1))

	dst := newLayer(t, e, "usm", pixel.RGBA8, 10, 10, nil)
	requireOK(t, UnsharpMask(dst, src, blurred, dst.Bounds(), 1.5))
	requireNear(t, data, retrieve(t, dst), 1)

	dst = newLayer(t, e, "cascade", pixel.RGBA8, 10, 10, nil)
	requireOK(t, CascadedSharpen(dst, src, dst.Bounds(), []Cascade{{Blurred: blurred, Strength: 60}}, 10))
	got := retrieve(t, dst)
	for i := 3; i < len(got); i += 4 {
		require.Equal(t, byte(77), got[i], "alpha of pixel %d", i/4)
	}
}

func TestSampleWeighted(t *testing.T) {
	e := newEngine(t, testConfig(false))
	src := newLayer(t, e, "src", pixel.RGBA8, 16, 12, solid(pixel.RGBA8, 16, 12, 30, 60, 90, 255))

	for _, s := range []Sampler{SampleNearest, SampleApproxBilinear, SampleBilinear, SampleCatmullRom} {
		dst := e.NewLayer("dst")
		t.Cleanup(dst.Release)
		res := SampleWeighted(dst, src, 8, 6, s)
		requireOK(t, res)
		require.Equal(t, backend.SetOf(backend.CPU), res.Fired)
		require.Equal(t, 8, dst.Width())
		require.Equal(t, 6, dst.Height())
		requireNear(t, solid(pixel.RGBA8, 8, 6, 30, 60, 90, 255), retrieve(t, dst), 1)
	}

	dst := e.NewLayer("bad")
	t.Cleanup(dst.Release)
	require.Equal(t, Precondition, SampleWeighted(dst, src, 0, 6, SampleNearest).Kind)
}
