// Package cpu implements the CPU backend.
//
// Images are single packed row-major buffers taken from a pool of reusable
// byte buffers; pixel arrays and kernel scratch memory come from a slab
// allocator. Operations run through the tile executor: the target rectangle
// is cut into TileSize x TileSize tiles and each tile is one task on the
// device's worker pool.
package cpu

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/config"
	"github.com/gogpu/tilefx/internal/atomicx"
	"github.com/gogpu/tilefx/internal/handle"
	"github.com/gogpu/tilefx/internal/parallel"
	"github.com/gogpu/tilefx/internal/pool"
	"github.com/gogpu/tilefx/internal/slab"
	"github.com/gogpu/tilefx/pixel"
)

func init() {
	backend.Register(backend.CPU, func(cfg *config.Config) (backend.Device, error) {
		return New(FromConfig(cfg)...), nil
	})
}

// Option configures a Device.
type Option func(*options)

type options struct {
	workers        int
	tileSize       int
	slabRegionSize int
}

func defaultOptions() options {
	return options{
		tileSize:       parallel.DefaultTileSize,
		slabRegionSize: slab.DefaultRegionSize,
	}
}

// WithWorkers sets the worker count. Zero or less means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithTileSize sets the executor tile size. Non-positive values keep the default.
func WithTileSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.tileSize = n
		}
	}
}

// WithSlabRegionSize sets the slab allocation granularity.
func WithSlabRegionSize(n int) Option {
	return func(o *options) { o.slabRegionSize = n }
}

// FromConfig converts the [cpu] section into options.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithWorkers(cfg.CPU.Workers),
		WithTileSize(cfg.CPU.TileSize),
		WithSlabRegionSize(cfg.CPU.SlabRegionSize),
	}
}

// Buffer is a pooled host buffer backing one image.
type Buffer struct {
	pool.Claim
	data []byte
}

// Bytes returns the whole buffer.
func (b *Buffer) Bytes() []byte { return b.data }

// CPUMemory implements pool.Resource.
func (b *Buffer) CPUMemory() uint64 { return uint64(cap(b.data)) }

// GPUMemory implements pool.Resource.
func (b *Buffer) GPUMemory() uint64 { return 0 }

// Device is the CPU backend device.
//
// Thread safety: Device is safe for concurrent use.
type Device struct {
	opts options

	mu      sync.Mutex
	workers *parallel.WorkerPool

	buffers  *pool.Pool[*Buffer]
	slab     *slab.Allocator
	claimant uint64
}

// New creates a CPU device. The worker pool starts on Initialize.
func New(opts ...Option) *Device {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Device{
		opts:     o,
		buffers:  pool.New[*Buffer]("cpu-buffers", nil),
		slab:     slab.New(o.slabRegionSize),
		claimant: atomicx.NewClaimant(),
	}
}

// ID implements backend.Device.
func (d *Device) ID() backend.ID { return backend.CPU }

// Name implements backend.Device.
func (d *Device) Name() string { return "CPU" }

// Initialize starts the worker pool.
func (d *Device) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.workers != nil {
		return nil
	}
	d.workers = parallel.NewWorkerPool(d.opts.workers)
	slogger().Info("cpu device initialized", "workers", d.workers.Workers(), "tileSize", d.opts.tileSize)
	return nil
}

// Shutdown stops the worker pool and drops every pooled buffer.
func (d *Device) Shutdown() {
	d.mu.Lock()
	w := d.workers
	d.workers = nil
	d.mu.Unlock()

	if w != nil {
		w.Close()
	}
	d.buffers.Clear()
	d.slab.Trim()
	slogger().Info("cpu device shut down")
}

// Synchronize implements backend.Device. CPU work is synchronous.
func (d *Device) Synchronize() error { return nil }

// Workers returns the worker pool, starting it on first use.
func (d *Device) Workers() *parallel.WorkerPool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.workers == nil {
		d.workers = parallel.NewWorkerPool(d.opts.workers)
	}
	return d.workers
}

// TileSize returns the executor tile size.
func (d *Device) TileSize() int { return d.opts.tileSize }

// Execute runs kernel over area, one task per tile. Unless manualSync is set
// Execute waits for every tile; otherwise the caller waits on the batch.
func (d *Device) Execute(area pixel.Rect, kernel parallel.Kernel, manualSync bool) (*parallel.Batch, error) {
	return parallel.ExecuteTiles(d.Workers(), area, d.opts.tileSize, kernel, manualSync)
}

// Buffers returns the host buffer pool.
func (d *Device) Buffers() *pool.Pool[*Buffer] { return d.buffers }

// acquireBuffer returns an acquired buffer of exactly n bytes, reusing a
// pooled one whose capacity fits.
func (d *Device) acquireBuffer(n int) (*Buffer, error) {
	fits := func(b *Buffer) bool { return cap(b.data) >= n && cap(b.data) <= 2*n }
	b, isNew, err := d.buffers.AcquireOrCreate(fits, func() (*Buffer, error) {
		return &Buffer{data: make([]byte, n)}, nil
	})
	if err != nil {
		return nil, err
	}
	if isNew {
		slogger().Debug("cpu buffer pool grew", "bytes", n, "buffers", d.buffers.Len())
	} else {
		b.data = b.data[:n]
		clear(b.data)
	}
	return b, nil
}

// Scratch allocates n bytes of zeroed scratch memory from the slab.
// Release the handle when done.
func (d *Device) Scratch(n int) (*handle.Shared[slab.Blob], error) {
	return d.slab.Alloc(d.claimant, n)
}

// Slab returns the device slab allocator.
func (d *Device) Slab() *slab.Allocator { return d.slab }

// NewImage implements backend.Device.
func (d *Device) NewImage() backend.Image {
	return &Image{dev: d}
}

// CreateImage implements backend.Device.
func (d *Device) CreateImage(f pixel.Format, w, h int) (backend.Image, error) {
	img := &Image{dev: d}
	if err := img.Create(f, w, h); err != nil {
		return nil, err
	}
	return img, nil
}

// CreateImageFromData implements backend.Device.
func (d *Device) CreateImageFromData(f pixel.Format, w, h int, data []byte) (backend.Image, error) {
	img := &Image{dev: d}
	if err := img.CreateFromData(f, w, h, data); err != nil {
		return nil, err
	}
	return img, nil
}

// DestroyImage releases the storage of img.
func (d *Device) DestroyImage(img backend.Image) {
	if img != nil {
		img.DiscardBuffers()
	}
}

// NewPixelArray implements backend.Device.
func (d *Device) NewPixelArray() backend.PixelArray {
	return &PixelArray{dev: d}
}

// CreatePixelArray implements backend.Device.
func (d *Device) CreatePixelArray(f pixel.Format, n int) (backend.PixelArray, error) {
	a := &PixelArray{dev: d}
	if err := a.Create(f, n); err != nil {
		return nil, err
	}
	return a, nil
}

// CreatePixelArrayFromData implements backend.Device.
func (d *Device) CreatePixelArrayFromData(f pixel.Format, n int, data []byte) (backend.PixelArray, error) {
	a := &PixelArray{dev: d}
	if err := a.CreateFromData(f, n, data); err != nil {
		return nil, err
	}
	return a, nil
}

// DestroyPixelArray releases the slab region of a.
func (d *Device) DestroyPixelArray(a backend.PixelArray) {
	if a != nil {
		a.Release()
	}
}

// CleanUp destroys every free pooled buffer and trims free slab regions.
func (d *Device) CleanUp() int {
	n := d.buffers.CleanUp() + d.slab.Trim()
	if n > 0 {
		slogger().Debug("cpu cleanup", "reclaimed", n)
	}
	return n
}

// ManagedMemory returns the host bytes held by the buffer pool and slab.
func (d *Device) ManagedMemory() uint64 {
	return d.buffers.CPUMemory() + d.slab.Capacity()
}

// BackendMemory returns the same as ManagedMemory: CPU storage is host memory.
func (d *Device) BackendMemory() uint64 {
	return d.ManagedMemory()
}

// Stats implements backend.Device.
func (d *Device) Stats() backend.Stats {
	return backend.Stats{
		Backend:       backend.CPU,
		Name:          d.Name(),
		ManagedMemory: d.ManagedMemory(),
		BackendMemory: d.BackendMemory(),
		Pools: []backend.PoolStats{
			backend.StatsOf(d.buffers),
			{Name: "cpu-slab", Total: d.slab.Regions(), CPUMemory: d.slab.Capacity()},
		},
	}
}

func checkFormat(f pixel.Format, w, h int) error {
	if !f.IsValid() {
		return errors.Wrapf(backend.ErrUnsupportedFormat, "format %v", f)
	}
	if w < 0 || h < 0 {
		return errors.Wrapf(backend.ErrOutOfBounds, "size %dx%d", w, h)
	}
	return nil
}
