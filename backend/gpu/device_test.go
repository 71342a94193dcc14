// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/wgpu/hal"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/config"
	"github.com/gogpu/tilefx/pixel"
)

const testTileSize = 64

// newNoopDevice opens a device on the noop HAL backend.
func newNoopDevice(t *testing.T, opts ...Option) *Device {
	t.Helper()
	opts = append([]Option{WithBackend(config.BackendNoop), WithTileSize(testTileSize)}, opts...)
	d, err := New(opts...)
	require.NoError(t, err)
	require.NoError(t, d.Initialize())
	t.Cleanup(d.Shutdown)
	return d
}

func TestNewRejectsTileSize(t *testing.T) {
	for _, ts := range []int{0, -64, 100} {
		_, err := New(WithBackend(config.BackendNoop), WithTileSize(ts))
		require.True(t, errors.Is(err, ErrTileSize), "tile size %d", ts)
	}
}

func TestRegisteredFactory(t *testing.T) {
	cfg := config.Default()
	cfg.GPU.Backend = config.BackendNoop
	cfg.GPU.TileSize = 128
	cfg.GPU.Mode = config.ModeStreamlined
	dev, err := backend.Open(backend.GPU, cfg)
	require.NoError(t, err)
	defer dev.Shutdown()

	d := dev.(*Device)
	require.Equal(t, backend.GPU, d.ID())
	require.Equal(t, 128, d.TileSize())
	require.Equal(t, Streamlined, d.Mode())
	require.True(t, strings.HasPrefix(d.Name(), "GPU"))
}

func TestUseBeforeInitialize(t *testing.T) {
	d, err := New(WithBackend(config.BackendNoop), WithTileSize(testTileSize))
	require.NoError(t, err)
	_, err = d.CreateImage(pixel.RGBA8, 4, 4)
	require.True(t, errors.Is(err, backend.ErrNotInitialized))
}

func TestShutdownTwice(t *testing.T) {
	d := newNoopDevice(t)
	d.Shutdown()
	d.Shutdown()
	require.Error(t, d.Synchronize())
}

func TestEffectCacheCompilesOnce(t *testing.T) {
	d := newNoopDevice(t)
	c := d.Effects()

	e, err := c.Acquire(EffectNegate)
	require.NoError(t, err)
	require.True(t, e.Acquired())
	require.Equal(t, EffectNegate, e.Kind())
	e.Release()

	e2, err := c.Acquire(EffectNegate)
	require.NoError(t, err)
	require.Same(t, e, e2)
	e2.Release()

	require.Equal(t, uint64(1), c.Compiles())
	require.True(t, c.Contains(EffectNegate))
	require.False(t, c.Contains(EffectFill))
}

func TestEffectCacheUnknownKind(t *testing.T) {
	d := newNoopDevice(t)
	_, err := d.Effects().Acquire(effectCount)
	require.True(t, errors.Is(err, ErrUnknownEffect))
}

func TestEffectCleanUp(t *testing.T) {
	d := newNoopDevice(t)
	c := d.Effects()

	held, err := c.Acquire(EffectFill)
	require.NoError(t, err)
	free, err := c.Acquire(EffectNegate)
	require.NoError(t, err)
	free.Release()

	require.Equal(t, 1, d.CleanUp())
	require.Equal(t, 0, d.CleanUp())
	require.True(t, c.Contains(EffectFill))
	require.False(t, c.Contains(EffectNegate))

	held.Release()
	require.Equal(t, 1, d.CleanUp())
	require.Zero(t, c.Len())

	// Evicted effects are compiled again on demand.
	e, err := c.Acquire(EffectNegate)
	require.NoError(t, err)
	e.Release()
	require.Equal(t, uint64(3), c.Compiles())
}

func TestPrecompile(t *testing.T) {
	d := newNoopDevice(t)
	require.NoError(t, d.Effects().Precompile())
	require.Equal(t, len(Effects()), d.Effects().Len())
	require.Zero(t, d.EffectPool().CountAcquired(nil))
}

func TestImageGrid(t *testing.T) {
	d := newNoopDevice(t)
	img, err := d.CreateImage(pixel.RGBA8, 130, 70)
	require.NoError(t, err)
	g := img.(*Image)

	cols, rows := g.TileCount()
	require.Equal(t, 3, cols)
	require.Equal(t, 2, rows)
	require.Equal(t, pixel.R(128, 64, 2, 6), g.LogicalRect(2, 1))
	require.Equal(t, pixel.R(128, 64, 64, 64), g.PhysicalRect(2, 1))
	require.Equal(t, 6, g.Resident())

	area := 0
	for ny := 0; ny < rows; ny++ {
		for nx := 0; nx < cols; nx++ {
			area += g.LogicalRect(nx, ny).Area()
		}
	}
	require.Equal(t, 130*70, area)

	tex, err := g.TextureAtPosition(129, 69)
	require.NoError(t, err)
	require.Equal(t, uint32(testTileSize), tex.Size())

	rt, err := g.RenderTargetAtPosition(0, 0)
	require.NoError(t, err)
	require.True(t, rt.Target())
	rt.Release()

	_, err = g.TileTexture(3, 0)
	require.True(t, errors.Is(err, backend.ErrOutOfBounds))

	d.DestroyImage(img)
	require.Zero(t, d.TexturePool().CountAcquired(nil))
}

func TestImageRetrieveSizes(t *testing.T) {
	d := newNoopDevice(t)
	for _, f := range []pixel.Format{pixel.Mono8, pixel.RGB8, pixel.RGBA8} {
		for _, sz := range [][2]int{{1, 1}, {65, 3}, {64, 64}} {
			img, err := d.CreateImage(f, sz[0], sz[1])
			require.NoError(t, err)
			buf := make([]byte, sz[0]*sz[1]*f.Size())
			require.NoError(t, img.Retrieve(buf, pixel.Full(sz[0], sz[1])))
			require.Len(t, buf, sz[0]*sz[1]*f.Size())
			d.DestroyImage(img)
		}
	}
}

func TestImageUnsupportedFormat(t *testing.T) {
	d := newNoopDevice(t)
	for _, f := range []pixel.Format{pixel.Mono16, pixel.RGB32F, pixel.RGBA16S} {
		_, err := d.CreateImage(f, 4, 4)
		require.True(t, errors.Is(err, backend.ErrUnsupportedFormat), f.String())
	}
}

func TestImageIOChecks(t *testing.T) {
	d := newNoopDevice(t)
	img, err := d.CreateImage(pixel.RGB8, 8, 8)
	require.NoError(t, err)

	err = img.Retrieve(make([]byte, 3), pixel.R(0, 0, 2, 2))
	require.True(t, errors.Is(err, backend.ErrBufferSize))
	err = img.Upload(make([]byte, 300), pixel.R(4, 4, 8, 8))
	require.True(t, errors.Is(err, backend.ErrOutOfBounds))
	require.NoError(t, img.Upload(make([]byte, 12), pixel.R(1, 1, 2, 2)))

	other, err := d.CreateImage(pixel.RGBA8, 8, 8)
	require.NoError(t, err)
	err = img.Copy(other, pixel.R(0, 0, 2, 2), 0, 0)
	require.True(t, errors.Is(err, backend.ErrUnsupportedFormat))
	require.NoError(t, img.Copy(img, pixel.R(0, 0, 4, 4), 2, 2))
}

func TestRenderTiled(t *testing.T) {
	d := newNoopDevice(t)
	dst, err := d.CreateImage(pixel.RGBA8, 100, 100)
	require.NoError(t, err)
	src, err := d.CreateImage(pixel.RGBA8, 100, 100)
	require.NoError(t, err)

	r := d.Renderer()
	require.NoError(t, r.RenderTiled(dst.(*Image), src.(*Image), pixel.R(10, 10, 80, 80), Operation{Effect: EffectNegate}))
	require.NoError(t, r.RenderTiled(dst.(*Image), nil, pixel.Full(100, 100), Operation{
		Effect: EffectFill,
		Values: [4][4]float32{{0.5, 0.5, 0.5, 1}},
	}))
	require.NoError(t, r.RenderTiledMerge(dst.(*Image), dst.(*Image), src.(*Image), pixel.Full(100, 100), Operation{
		Effect: EffectBlend,
		Values: [4][4]float32{{1}, {float32(pixel.BlendMultiply)}},
	}))

	// Renders release every pooled object they acquired.
	require.Zero(t, d.EffectPool().CountAcquired(nil))
	require.Zero(t, d.RenderTargetPool().CountAcquired(nil))
	require.Equal(t, 3, d.Effects().Len())

	// Areas outside the image are a no-op.
	require.NoError(t, r.RenderTiled(dst.(*Image), nil, pixel.R(200, 200, 4, 4), Operation{Effect: EffectFill}))
}

func TestRenderTiledMismatch(t *testing.T) {
	d := newNoopDevice(t)
	dst, err := d.CreateImage(pixel.RGBA8, 16, 16)
	require.NoError(t, err)
	src, err := d.CreateImage(pixel.RGBA8, 8, 16)
	require.NoError(t, err)
	err = d.Renderer().RenderTiled(dst.(*Image), src.(*Image), pixel.Full(16, 16), Operation{Effect: EffectCopy})
	require.True(t, errors.Is(err, backend.ErrOutOfBounds))
	err = d.Renderer().RenderTiledMerge(dst.(*Image), src.(*Image), nil, pixel.Full(16, 16), Operation{Effect: EffectBlend})
	require.Error(t, err)
}

func TestStreamlinedEviction(t *testing.T) {
	d := newNoopDevice(t, WithMode(Streamlined))
	tileBytes := uint64(testTileSize * testTileSize * tileBytesPerPixel)
	require.NoError(t, d.Memory().setBudgetBytes(2*tileBytes))

	img, err := d.CreateImage(pixel.RGBA8, 3*testTileSize, testTileSize)
	require.NoError(t, err)
	g := img.(*Image)
	require.Zero(t, g.Resident())

	data := make([]byte, 3*testTileSize*testTileSize*4)
	require.NoError(t, img.Upload(data, g.Bounds()))

	stats := d.Memory().Stats()
	require.Equal(t, 2, stats.TileCount)
	require.Equal(t, uint64(1), stats.EvictionCount)
	require.Equal(t, 2, g.Resident())
	require.Equal(t, tileBytes, g.CPUMemory())
	require.Equal(t, tileBytes, d.ManagedMemory()-d.textures.CPUMemory()-d.targets.CPUMemory()-d.buffers.CPUMemory())

	// Rendering the evicted tile brings it back.
	require.NoError(t, d.Renderer().RenderTiled(g, g, pixel.R(0, 0, 8, 8), Operation{Effect: EffectNegate}))
	require.Equal(t, 2, g.Resident())
	require.Equal(t, uint64(2), d.Memory().Stats().EvictionCount)

	d.DestroyImage(img)
	require.Zero(t, d.Memory().Stats().TileCount)
	require.Zero(t, d.backupBytes.Load())
}

func TestPixelArray(t *testing.T) {
	d := newNoopDevice(t)
	a, err := d.CreatePixelArrayFromData(pixel.RGB8, 5, make([]byte, 15))
	require.NoError(t, err)
	require.Equal(t, 5, a.Len())
	require.Equal(t, uint64(16), a.(*PixelArray).Buffer().Size())

	require.NoError(t, a.Upload([]byte{1, 2, 3}, 2))
	buf := make([]byte, 6)
	require.NoError(t, a.Retrieve(buf, 1, 2))
	err = a.Retrieve(buf, 4, 2)
	require.True(t, errors.Is(err, backend.ErrOutOfBounds))

	d.DestroyPixelArray(a)
	require.Zero(t, d.buffers.CountAcquired(nil))
}

func TestStatsString(t *testing.T) {
	d := newNoopDevice(t)
	_, err := d.CreateImage(pixel.RGBA8, 70, 10)
	require.NoError(t, err)
	s := backend.BuildStatsString(d)
	require.Contains(t, s, `"gpu-textures"`)
	require.Contains(t, s, `"gpu-effects"`)
	require.Equal(t, uint64(2*testTileSize*testTileSize*4), d.BackendMemory())
}

func TestShaderSources(t *testing.T) {
	for _, k := range Effects() {
		src, err := ShaderSource(k)
		require.NoError(t, err, k.String())
		require.Contains(t, src, "fn fs_main")
		require.Contains(t, src, "fn apply(")
		require.Equal(t, 1, strings.Count(src, "fn apply("), k.String())
	}
	_, err := ShaderSource(effectCount)
	require.True(t, errors.Is(err, ErrUnknownEffect))
}

func TestCompileSPIRV(t *testing.T) {
	src, err := ShaderSource(EffectNegate)
	require.NoError(t, err)
	words, err := compileSPIRV(src)
	if err != nil {
		t.Skipf("naga cannot compile the tile prelude: %v", err)
	}
	require.NotEmpty(t, words)
	require.Equal(t, uint32(0x07230203), words[0])
}

func TestParamsBytes(t *testing.T) {
	p := Params{
		Area:   [4]int32{1, 2, 3, 4},
		Origin: [4]int32{64, 128},
		V:      [4][4]float32{{0.5}, {}, {}, {0, 0, 0, 2}},
		Misc:   [4]uint32{64, 1, 4, 2},
	}
	b := p.bytes()
	require.Len(t, b, paramsSize)
	require.Equal(t, uint32(3), binary.LittleEndian.Uint32(b[8:]))
	require.Equal(t, uint32(128), binary.LittleEndian.Uint32(b[20:]))
	require.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(b[32:])))
	require.Equal(t, float32(2), math.Float32frombits(binary.LittleEndian.Uint32(b[92:])))
	require.Equal(t, uint32(2), binary.LittleEndian.Uint32(b[108:]))
}

func TestAlignedRow(t *testing.T) {
	require.Equal(t, uint32(256), alignedRow(64))
	require.Equal(t, uint32(256), alignedRow(1))
	require.Equal(t, uint32(512), alignedRow(65))
}

// failingQueue rejects direct buffer and texture writes.
type failingQueue struct {
	hal.Queue
}

var errQueueWrite = errors.New("queue write rejected")

func (failingQueue) WriteBuffer(hal.Buffer, uint64, []byte) error { return errQueueWrite }

func (failingQueue) WriteTexture(*hal.ImageCopyTexture, []byte, *hal.ImageDataLayout, *hal.Extent3D) error {
	return errQueueWrite
}

func TestQueueWriteErrorsPropagate(t *testing.T) {
	d := newNoopDevice(t)
	img, err := d.CreateImage(pixel.RGBA8, 8, 8)
	require.NoError(t, err)
	defer d.DestroyImage(img)
	arr, err := d.CreatePixelArray(pixel.RGBA8, 4)
	require.NoError(t, err)
	defer d.DestroyPixelArray(arr)

	q := d.queue
	d.queue = failingQueue{q}
	defer func() { d.queue = q }()

	err = img.Upload(make([]byte, 8*8*4), pixel.R(0, 0, 8, 8))
	require.True(t, errors.Is(err, errQueueWrite), "image upload: %v", err)

	err = arr.Upload(make([]byte, 4*4), 0)
	require.True(t, errors.Is(err, errQueueWrite), "array upload: %v", err)

	_, err = d.CreatePixelArray(pixel.RGBA8, 4)
	require.True(t, errors.Is(err, errQueueWrite), "array create: %v", err)
}
