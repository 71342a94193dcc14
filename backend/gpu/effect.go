// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tilefx/internal/pool"
)

// Effect is a compiled tile pipeline: shader module, bind group layout,
// pipeline layout and render pipeline of one EffectKind.
//
// Effects live in the device effect pool. A renderer acquires the effect for
// the duration of one operation so that CleanUp cannot destroy it mid-use.
type Effect struct {
	pool.Claim

	kind       EffectKind
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
}

// Kind returns the effect kind.
func (e *Effect) Kind() EffectKind { return e.kind }

// Pipeline returns the render pipeline.
func (e *Effect) Pipeline() hal.RenderPipeline { return e.pipeline }

// CPUMemory implements pool.Resource.
func (e *Effect) CPUMemory() uint64 { return 0 }

// GPUMemory implements pool.Resource. Pipeline memory is not tracked.
func (e *Effect) GPUMemory() uint64 { return 0 }

// EffectCache maps effect kinds to compiled effects of one device.
//
// Effects are compiled on first use and stay cached until the device effect
// pool destroys them, either in CleanUp when nobody holds them or at device
// shutdown.
type EffectCache struct {
	dev *Device

	mu       sync.Mutex
	effects  *swiss.Map[EffectKind, *Effect]
	compiles uint64
}

func newEffectCache(dev *Device) *EffectCache {
	return &EffectCache{
		dev:     dev,
		effects: swiss.NewMap[EffectKind, *Effect](uint32(effectCount)),
	}
}

// Acquire returns the compiled effect for kind, compiling it if needed, and
// acquires it for the caller.
func (c *EffectCache) Acquire(kind EffectKind) (*Effect, error) {
	if !kind.Valid() {
		return nil, errors.Wrapf(ErrUnknownEffect, "kind %d", kind)
	}
	for {
		c.mu.Lock()
		e, ok := c.effects.Get(kind)
		if !ok {
			var err error
			e, err = c.dev.compileEffect(kind)
			if err != nil {
				c.mu.Unlock()
				return nil, err
			}
			e.TryAcquire()
			c.effects.Put(kind, e)
			c.compiles++
			c.dev.effects.Add(e)
			c.mu.Unlock()
			return e, nil
		}
		if e.TryAcquire() {
			c.mu.Unlock()
			return e, nil
		}
		c.mu.Unlock()

		// Held by another renderer. Wait, then make sure the effect was not
		// swept while we were parked.
		e.Acquire()
		c.mu.Lock()
		cur, ok := c.effects.Get(kind)
		c.mu.Unlock()
		if ok && cur == e {
			return e, nil
		}
		e.Release()
	}
}

// sweep runs fn with the cache locked. Every removal from the device effect
// pool goes through sweep so that Acquire never claims an effect that is
// being destroyed.
func (c *EffectCache) sweep(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// Precompile compiles every effect ahead of first use.
func (c *EffectCache) Precompile() error {
	for _, k := range Effects() {
		e, err := c.Acquire(k)
		if err != nil {
			return err
		}
		e.Release()
	}
	return nil
}

// Contains reports whether kind is compiled.
func (c *EffectCache) Contains(kind EffectKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effects.Has(kind)
}

// Len returns the number of compiled effects.
func (c *EffectCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effects.Count()
}

// Compiles returns how many effects were compiled over the cache lifetime.
func (c *EffectCache) Compiles() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compiles
}

// evictLocked drops e from the cache. Called by the effect pool, under
// sweep, before it destroys the effect.
func (c *EffectCache) evictLocked(e *Effect) {
	if cur, ok := c.effects.Get(e.kind); ok && cur == e {
		c.effects.Delete(e.kind)
	}
}

func (d *Device) compileEffect(kind EffectKind) (*Effect, error) {
	src, err := ShaderSource(kind)
	if err != nil {
		return nil, err
	}
	label := "tilefx_" + kind.String()

	var source hal.ShaderSource
	if d.opts.precompile {
		words, err := compileSPIRV(src)
		if err != nil {
			return nil, errors.Wrapf(err, "effect %s", kind)
		}
		source.SPIRV = words
	} else {
		source.WGSL = src
	}

	e := &Effect{kind: kind}
	e.shader, err = d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: source,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create shader module %s", kind)
	}

	storage := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		}
	}
	e.bindLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: label + "_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			storage(1),
			storage(2),
			storage(3),
		},
	})
	if err != nil {
		d.destroyEffect(e)
		return nil, errors.Wrapf(err, "create bind group layout %s", kind)
	}

	e.pipeLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_layout",
		BindGroupLayouts: []hal.BindGroupLayout{e.bindLayout},
	})
	if err != nil {
		d.destroyEffect(e)
		return nil, errors.Wrapf(err, "create pipeline layout %s", kind)
	}

	e.pipeline, err = d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label + "_pipeline",
		Layout: e.pipeLayout,
		Vertex: hal.VertexState{
			Module:     e.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     e.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{Format: tileFormat, WriteMask: gputypes.ColorWriteMaskAll},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		d.destroyEffect(e)
		return nil, errors.Wrapf(err, "create render pipeline %s", kind)
	}

	slogger().Debug("effect compiled", "effect", kind.String(), "spirv", d.opts.precompile)
	return e, nil
}

func (d *Device) destroyEffect(e *Effect) {
	if e.pipeline != nil {
		d.device.DestroyRenderPipeline(e.pipeline)
		e.pipeline = nil
	}
	if e.pipeLayout != nil {
		d.device.DestroyPipelineLayout(e.pipeLayout)
		e.pipeLayout = nil
	}
	if e.bindLayout != nil {
		d.device.DestroyBindGroupLayout(e.bindLayout)
		e.bindLayout = nil
	}
	if e.shader != nil {
		d.device.DestroyShaderModule(e.shader)
		e.shader = nil
	}
}
