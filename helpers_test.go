package tilefx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.CPU.Workers = 4
	cfg.CPU.TileSize = 16
	cfg.GPU.Backend = config.BackendNoop
	cfg.GPU.TileSize = 64
	return cfg
}

// newTestEngine opens a CPU-only engine, or a CPU + noop GPU engine.
func newTestEngine(t *testing.T, withGPU bool) *Engine {
	t.Helper()
	cfg := testConfig()
	cfg.GPU.Enabled = withGPU
	e, err := New(WithConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	if withGPU {
		require.True(t, e.Backends().Has(backend.GPU), "noop GPU device must open")
	}
	return e
}

func newTestLayer(t *testing.T, e *Engine, name string) *Layer {
	t.Helper()
	l := e.NewLayer(name)
	t.Cleanup(l.Release)
	return l
}
