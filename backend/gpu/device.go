// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/config"
	"github.com/gogpu/tilefx/internal/atomicx"
	"github.com/gogpu/tilefx/internal/pool"
	"github.com/gogpu/tilefx/pixel"
)

func init() {
	backend.Register(backend.GPU, func(cfg *config.Config) (backend.Device, error) {
		return New(FromConfig(cfg)...)
	})
}

// Mode selects how images are materialized on the device. The mode is fixed
// when the device is created.
type Mode uint8

const (
	// Realtime creates every tile texture when an image is created.
	Realtime Mode = iota

	// Streamlined creates tile textures on first touch and evicts the least
	// recently used tiles to host memory when the memory budget is reached.
	// Used for images whose full footprint does not fit on the GPU.
	Streamlined
)

func (m Mode) String() string {
	if m == Streamlined {
		return config.ModeStreamlined
	}
	return config.ModeRealtime
}

// DefaultTileSize is the edge length of a tile texture.
const DefaultTileSize = 1024

// ErrTileSize is returned for tile sizes that are not a positive multiple
// of 64. Row copies of RGBA8 tiles need a 256-byte aligned pitch.
var ErrTileSize = errors.New("gpu: tile size must be a positive multiple of 64")

// Option configures a Device.
type Option func(*options)

type options struct {
	halBackend string
	tileSize   int
	mode       Mode
	budgetMB   int
	precompile bool
}

func defaultOptions() options {
	return options{
		halBackend: config.BackendVulkan,
		tileSize:   DefaultTileSize,
		mode:       Realtime,
		budgetMB:   DefaultMaxMemoryMB,
	}
}

// WithBackend selects the HAL backend opened by New: "vulkan" or "noop".
func WithBackend(name string) Option {
	return func(o *options) { o.halBackend = name }
}

// WithTileSize sets the tile edge length.
func WithTileSize(n int) Option {
	return func(o *options) { o.tileSize = n }
}

// WithMode sets the rendering mode.
func WithMode(m Mode) Option {
	return func(o *options) { o.mode = m }
}

// WithMemoryBudget sets the streamlined tile budget in megabytes.
func WithMemoryBudget(mb int) Option {
	return func(o *options) { o.budgetMB = mb }
}

// WithPrecompile compiles shaders to SPIR-V with naga and compiles every
// effect during Initialize.
func WithPrecompile(on bool) Option {
	return func(o *options) { o.precompile = on }
}

// FromConfig converts the [gpu] section into options.
func FromConfig(cfg *config.Config) []Option {
	mode := Realtime
	if cfg.GPU.Mode == config.ModeStreamlined {
		mode = Streamlined
	}
	return []Option{
		WithBackend(cfg.GPU.Backend),
		WithTileSize(cfg.GPU.TileSize),
		WithMode(mode),
		WithMemoryBudget(cfg.GPU.MemoryBudgetMB),
		WithPrecompile(cfg.GPU.PrecompileShaders),
	}
}

// Device is the GPU backend device.
//
// A Device either owns its HAL device (New) or borrows one from the host
// application (NewWithHAL, NewFromProvider). Borrowed devices are not
// destroyed on Shutdown.
type Device struct {
	opts options

	mu       sync.Mutex
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	owned    bool
	open     bool
	adapter  string

	textures *pool.Pool[*Texture]
	targets  *pool.Pool[*Texture]
	effects  *pool.Pool[*Effect]
	buffers  *pool.Pool[*Buffer]

	cache    *EffectCache
	memory   *MemoryManager
	renderer *Renderer

	// host bytes held by evicted tile backups
	backupBytes atomicx.Uint64
}

func newDevice(opts []Option) (*Device, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.tileSize <= 0 || o.tileSize%64 != 0 {
		return nil, errors.Wrapf(ErrTileSize, "got %d", o.tileSize)
	}
	d := &Device{opts: o}
	d.cache = newEffectCache(d)
	d.textures = pool.New[*Texture]("gpu-textures", d.destroyTexture)
	d.targets = pool.New[*Texture]("gpu-render-targets", d.destroyTexture)
	d.buffers = pool.New[*Buffer]("gpu-buffers", d.destroyBuffer)
	d.effects = pool.New[*Effect]("gpu-effects", func(e *Effect) {
		d.cache.evictLocked(e)
		d.destroyEffect(e)
	})
	d.memory = NewMemoryManager(o.budgetMB, d.evictTile)
	d.renderer = &Renderer{dev: d}
	return d, nil
}

// New creates a device that opens its own HAL device on Initialize.
func New(opts ...Option) (*Device, error) {
	d, err := newDevice(opts)
	if err != nil {
		return nil, err
	}
	d.owned = true
	return d, nil
}

// NewWithHAL creates a device on an existing HAL device and queue.
func NewWithHAL(device hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	if device == nil || queue == nil {
		return nil, errors.Wrap(backend.ErrBackendNotAvailable, "gpu: nil HAL device or queue")
	}
	d, err := newDevice(opts)
	if err != nil {
		return nil, err
	}
	d.device = device
	d.queue = queue
	d.adapter = "external"
	return d, nil
}

// NewFromProvider shares the HAL device of a host application. The provider
// must expose HalDevice() any and HalQueue() any returning hal.Device and
// hal.Queue.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, errors.Wrap(backend.ErrBackendNotAvailable, "gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, errors.Wrap(backend.ErrBackendNotAvailable, "gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, errors.Wrap(backend.ErrBackendNotAvailable, "gpu: provider HalQueue is not hal.Queue")
	}
	return NewWithHAL(device, queue, opts...)
}

// ID implements backend.Device.
func (d *Device) ID() backend.ID { return backend.GPU }

// Name implements backend.Device.
func (d *Device) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.adapter == "" {
		return "GPU"
	}
	return "GPU (" + d.adapter + ")"
}

// Initialize opens the HAL device when the Device owns it and compiles the
// effects when precompilation is enabled.
func (d *Device) Initialize() error {
	d.mu.Lock()
	if d.open {
		d.mu.Unlock()
		return nil
	}
	if d.owned && d.device == nil {
		if err := d.openLocked(); err != nil {
			d.mu.Unlock()
			return err
		}
	}
	d.open = true
	d.mu.Unlock()

	if d.opts.precompile {
		if err := d.cache.Precompile(); err != nil {
			return errors.Wrap(err, "precompile effects")
		}
	}
	slogger().Info("gpu device initialized",
		"adapter", d.adapter, "tileSize", d.opts.tileSize, "mode", d.opts.mode.String())
	return nil
}

func (d *Device) openLocked() error {
	var (
		instance hal.Instance
		err      error
	)
	switch d.opts.halBackend {
	case config.BackendNoop:
		instance, err = noop.API{}.CreateInstance(nil)
	case config.BackendVulkan, "":
		b, ok := hal.GetBackend(gputypes.BackendVulkan)
		if !ok {
			return errors.Wrap(backend.ErrBackendNotAvailable, "vulkan backend not available")
		}
		instance, err = b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	default:
		return errors.Wrapf(backend.ErrBackendNotAvailable, "unknown HAL backend %q", d.opts.halBackend)
	}
	if err != nil {
		return errors.Wrap(err, "create instance")
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return errors.Wrap(backend.ErrBackendNotAvailable, "no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return errors.Wrap(err, "open device")
	}
	d.instance = instance
	d.device = openDev.Device
	d.queue = openDev.Queue
	d.adapter = selected.Info.Name
	if d.adapter == "" {
		d.adapter = d.opts.halBackend
	}
	return nil
}

// Shutdown destroys every pooled resource and, for owned devices, the HAL
// device itself.
func (d *Device) Shutdown() {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return
	}
	d.open = false
	d.mu.Unlock()

	d.memory.Close()
	d.cache.sweep(d.effects.Clear)
	d.textures.Clear()
	d.targets.Clear()
	d.buffers.Clear()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.owned {
		if d.device != nil {
			d.device.Destroy()
		}
		if d.instance != nil {
			d.instance.Destroy()
		}
		d.device = nil
		d.queue = nil
		d.instance = nil
	}
	slogger().Info("gpu device shut down")
}

// Synchronize waits until the queue is idle.
func (d *Device) Synchronize() error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	return d.device.WaitIdle()
}

func (d *Device) checkOpen() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open || d.device == nil {
		return errors.Wrap(backend.ErrNotInitialized, "gpu device")
	}
	return nil
}

// HAL returns the HAL device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.device, d.queue
}

// TileSize returns the tile edge length.
func (d *Device) TileSize() int { return d.opts.tileSize }

// Mode returns the rendering mode.
func (d *Device) Mode() Mode { return d.opts.mode }

// Effects returns the per-device effect cache.
func (d *Device) Effects() *EffectCache { return d.cache }

// Renderer returns the tiled renderer of the device.
func (d *Device) Renderer() *Renderer { return d.renderer }

// Memory returns the streamlined tile memory manager.
func (d *Device) Memory() *MemoryManager { return d.memory }

// TexturePool returns the tile texture pool.
func (d *Device) TexturePool() *pool.Pool[*Texture] { return d.textures }

// RenderTargetPool returns the render target pool.
func (d *Device) RenderTargetPool() *pool.Pool[*Texture] { return d.targets }

// EffectPool returns the effect pool.
func (d *Device) EffectPool() *pool.Pool[*Effect] { return d.effects }

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

// DestroyImage releases every tile of img back to the pools.
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

// DestroyPixelArray releases the buffer of a.
func (d *Device) DestroyPixelArray(a backend.PixelArray) {
	if a != nil {
		a.Release()
	}
}

// CleanUp destroys every pooled texture, render target, buffer and effect
// nobody holds and returns how many were removed.
func (d *Device) CleanUp() int {
	n := d.textures.CleanUp() + d.targets.CleanUp() + d.buffers.CleanUp()
	d.cache.sweep(func() { n += d.effects.CleanUp() })
	if n > 0 {
		slogger().Debug("gpu cleanup", "reclaimed", n)
	}
	return n
}

// ManagedMemory returns the host bytes held for the device: the backups of
// evicted streamlined tiles.
func (d *Device) ManagedMemory() uint64 {
	return d.textures.CPUMemory() + d.targets.CPUMemory() + d.buffers.CPUMemory() + d.backupBytes.Load()
}

// BackendMemory returns the device bytes held by the pools.
func (d *Device) BackendMemory() uint64 {
	return d.textures.GPUMemory() + d.targets.GPUMemory() + d.buffers.GPUMemory() + d.effects.GPUMemory()
}

// Stats implements backend.Device.
func (d *Device) Stats() backend.Stats {
	return backend.Stats{
		Backend:       backend.GPU,
		Name:          d.Name(),
		ManagedMemory: d.ManagedMemory(),
		BackendMemory: d.BackendMemory(),
		Pools: []backend.PoolStats{
			backend.StatsOf(d.textures),
			backend.StatsOf(d.targets),
			backend.StatsOf(d.buffers),
			backend.StatsOf(d.effects),
		},
	}
}
