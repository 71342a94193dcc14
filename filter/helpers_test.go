package filter

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gogpu/tilefx"
	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/config"
	"github.com/gogpu/tilefx/pixel"
)

func newEngine(t *testing.T) *tilefx.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.CPU.Workers = 2
	cfg.CPU.TileSize = 16
	cfg.GPU.Enabled = false
	e, err := tilefx.New(tilefx.WithConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func newLayer(t *testing.T, e *tilefx.Engine, name string, f pixel.Format, w, h int, data []byte) *tilefx.Layer {
	t.Helper()
	l := e.NewLayer(name)
	t.Cleanup(l.Release)
	if data == nil {
		require.NoError(t, l.Reset(backend.CPU, f, w, h))
	} else {
		require.NoError(t, l.ResetFromData(backend.CPU, f, w, h, data))
	}
	return l
}

func noise(seed uint64, n int) []byte {
	r := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(r.UintN(256))
	}
	return out
}

func solid(f pixel.Format, w, h int, px ...byte) []byte {
	out := make([]byte, pixel.BufferSize(f, w, h))
	for i := 0; i < len(out); i += len(px) {
		copy(out[i:], px)
	}
	return out
}

func retrieve(t *testing.T, l *tilefx.Layer) []byte {
	t.Helper()
	buf := make([]byte, pixel.BufferSize(l.Format(), l.Width(), l.Height()))
	require.NoError(t, l.Retrieve(buf))
	return buf
}

func requireNear(t *testing.T, want, got []byte, delta float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.InDelta(t, want[i], got[i], delta, "byte %d", i)
	}
}
