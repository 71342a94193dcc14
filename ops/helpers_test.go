package ops

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gogpu/tilefx"
	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/backend/cpu"
	"github.com/gogpu/tilefx/config"
	"github.com/gogpu/tilefx/pixel"
)

func testConfig(withGPU bool) *config.Config {
	cfg := config.Default()
	cfg.CPU.Workers = 4
	cfg.CPU.TileSize = 16
	cfg.GPU.Enabled = withGPU
	cfg.GPU.Backend = config.BackendNoop
	cfg.GPU.TileSize = 64
	return cfg
}

func newEngine(t *testing.T, cfg *config.Config) *tilefx.Engine {
	t.Helper()
	e, err := tilefx.New(tilefx.WithConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	if cfg.GPU.Enabled {
		require.True(t, e.Backends().Has(backend.GPU), "noop GPU device must open")
	}
	return e
}

func cpuDevice(t *testing.T, e *tilefx.Engine) *cpu.Device {
	t.Helper()
	d, ok := e.Device(backend.CPU)
	require.True(t, ok)
	dev, ok := d.(*cpu.Device)
	require.True(t, ok)
	return dev
}

// newLayer returns a CPU layer seeded with data, or zeroed for nil data.
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

func solid(f pixel.Format, w, h int, px ...byte) []byte {
	out := make([]byte, pixel.BufferSize(f, w, h))
	for i := 0; i < len(out); i += len(px) {
		copy(out[i:], px)
	}
	return out
}

func noise(seed uint64, n int) []byte {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(r.UintN(256))
	}
	return out
}

func retrieve(t *testing.T, l *tilefx.Layer) []byte {
	t.Helper()
	buf := make([]byte, pixel.BufferSize(l.Format(), l.Width(), l.Height()))
	require.NoError(t, l.Retrieve(buf))
	return buf
}

func requireOK(t *testing.T, r Result) {
	t.Helper()
	require.True(t, r.OK(), "result: %v", r)
}
