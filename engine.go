package tilefx

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/config"
	"github.com/gogpu/tilefx/internal/convolve"
	"github.com/gogpu/tilefx/internal/lut"
	"github.com/gogpu/tilefx/internal/pool"
)

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	cfg     *config.Config
	devices []backend.Device
}

// WithConfig sets the engine configuration. The default is config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(o *engineOptions) { o.cfg = cfg }
}

// WithDevice adds a device built by the caller, for example a GPU device
// sharing the host application's HAL device. It replaces the device the
// engine would open for the same backend. The engine initializes it and
// shuts it down on Close.
func WithDevice(dev backend.Device) Option {
	return func(o *engineOptions) { o.devices = append(o.devices, dev) }
}

// Engine owns the backend devices and creates layers on them.
//
// The CPU device is always opened. The GPU device is opened when the
// configuration enables it; if it cannot be opened the engine logs a
// warning and runs on the CPU only.
type Engine struct {
	cfg *config.Config

	mu      sync.Mutex
	devices [2]*backend.Shared
	closed  bool
}

// New opens the configured devices.
func New(opts ...Option) (*Engine, error) {
	o := engineOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cfg == nil {
		o.cfg = config.Default()
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	pool.SetPolicy(pool.Policy{
		Spins:         o.cfg.Pool.AcquireSpins,
		BackoffRounds: o.cfg.Pool.AcquireBackoffRounds,
		MaxBackoff:    o.cfg.Pool.BackoffMax(),
	})
	lut.SetCacheSize(o.cfg.Cache.CurveLUTs)
	convolve.SetCacheSize(o.cfg.Cache.Kernels)

	e := &Engine{cfg: o.cfg}
	for _, dev := range o.devices {
		i := slotIndex(dev.ID())
		if i < 0 {
			e.Close()
			return nil, errors.Wrapf(backend.ErrBackendNotAvailable, "device %v", dev.ID())
		}
		if err := dev.Initialize(); err != nil {
			e.Close()
			return nil, errors.Wrapf(err, "tilefx: initialize %s", dev.Name())
		}
		e.devices[i] = backend.Share(dev)
	}

	if e.devices[slotIndex(backend.CPU)] == nil {
		dev, err := backend.Open(backend.CPU, o.cfg)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.devices[slotIndex(backend.CPU)] = backend.Share(dev)
	}
	if o.cfg.GPU.Enabled && e.devices[slotIndex(backend.GPU)] == nil {
		dev, err := backend.Open(backend.GPU, o.cfg)
		if err != nil {
			Logger().Warn("GPU backend unavailable, running on CPU only", "error", err)
		} else {
			e.devices[slotIndex(backend.GPU)] = backend.Share(dev)
		}
	}
	Logger().Info("engine opened", "backends", e.Backends().String())
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// Backends returns the backends with an open device.
func (e *Engine) Backends() backend.Set {
	e.mu.Lock()
	defer e.mu.Unlock()
	var s backend.Set
	for _, id := range backend.All {
		if e.devices[slotIndex(id)] != nil {
			s = s.With(id)
		}
	}
	return s
}

// Device returns the device of id.
func (e *Engine) Device(id backend.ID) (backend.Device, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := slotIndex(id)
	if i < 0 || e.devices[i] == nil {
		return nil, false
	}
	return e.devices[i].Get(), true
}

// NewLayer returns an empty layer that may materialize on every engine
// device.
func (e *Engine) NewLayer(name string) *Layer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return NewLayer(name, e.devices[:]...)
}

// NewLayerFromBitmap returns a layer seeded with b on backend id.
func (e *Engine) NewLayerFromBitmap(name string, id backend.ID, b *Bitmap) (*Layer, error) {
	l := e.NewLayer(name)
	if err := l.ResetFromBitmap(id, b); err != nil {
		l.Release()
		return nil, err
	}
	return l, nil
}

func (e *Engine) each(fn func(backend.Device)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.devices {
		if s != nil {
			fn(s.Get())
		}
	}
}

// CleanUp sweeps the pools of every device and returns the number of
// destroyed objects. Call it periodically; nothing runs it automatically.
func (e *Engine) CleanUp() int {
	n := 0
	e.each(func(d backend.Device) { n += d.CleanUp() })
	return n
}

// ManagedMemory returns the host memory held by every device pool.
func (e *Engine) ManagedMemory() uint64 {
	var n uint64
	e.each(func(d backend.Device) { n += d.ManagedMemory() })
	return n
}

// BackendMemory returns the device memory held by every device pool.
func (e *Engine) BackendMemory() uint64 {
	var n uint64
	e.each(func(d backend.Device) { n += d.BackendMemory() })
	return n
}

// Stats returns the device statistics as JSON.
func (e *Engine) Stats() string {
	var devs []backend.Device
	e.each(func(d backend.Device) { devs = append(devs, d) })
	return backend.BuildStatsString(devs...)
}

// Close releases the engine's references to its devices. A device shuts
// down once no layer holds storage on it anymore.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for i, s := range e.devices {
		if s != nil {
			s.Release()
			e.devices[i] = nil
		}
	}
	Logger().Info("engine closed")
}
