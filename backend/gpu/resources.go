// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tilefx/internal/pool"
)

// tileFormat is the texture format of every tile and render target.
const tileFormat = gputypes.TextureFormatRGBA8Unorm

// tileBytesPerPixel is the size of one tileFormat texel.
const tileBytesPerPixel = 4

// Texture is a pooled square texture. Tile textures and render targets share
// the type; Target tells them apart.
type Texture struct {
	pool.Claim

	tex    hal.Texture
	view   hal.TextureView
	size   uint32
	target bool
}

// Raw returns the HAL texture.
func (t *Texture) Raw() hal.Texture { return t.tex }

// View returns the default view of the texture.
func (t *Texture) View() hal.TextureView { return t.view }

// Size returns the edge length in pixels.
func (t *Texture) Size() uint32 { return t.size }

// Target reports whether the texture is a render target.
func (t *Texture) Target() bool { return t.target }

// CPUMemory implements pool.Resource.
func (t *Texture) CPUMemory() uint64 { return 0 }

// GPUMemory implements pool.Resource.
func (t *Texture) GPUMemory() uint64 {
	return uint64(t.size) * uint64(t.size) * tileBytesPerPixel
}

// Buffer is a pooled device buffer.
type Buffer struct {
	pool.Claim

	buf   hal.Buffer
	size  uint64
	usage gputypes.BufferUsage
}

// Raw returns the HAL buffer.
func (b *Buffer) Raw() hal.Buffer { return b.buf }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Usage returns the usage flags the buffer was created with.
func (b *Buffer) Usage() gputypes.BufferUsage { return b.usage }

// CPUMemory implements pool.Resource.
func (b *Buffer) CPUMemory() uint64 { return 0 }

// GPUMemory implements pool.Resource.
func (b *Buffer) GPUMemory() uint64 { return b.size }

// Buffer usages of the renderer.
const (
	usageOperand  = gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	usageStaging  = gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
	usageUniform  = gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	usageArray    = gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
	textureUsage  = gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc | gputypes.TextureUsageTextureBinding
	targetUsage   = gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc
	copyAlignment = 256
)

func (d *Device) createTexture(size uint32, target bool) (*Texture, error) {
	label := "tilefx_tile"
	usage := textureUsage
	if target {
		label = "tilefx_target"
		usage = targetUsage
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: size, Height: size, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        tileFormat,
		Usage:         usage,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create %s texture %d", label, size)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: label + "_view"})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, errors.Wrapf(err, "create %s view", label)
	}
	slogger().Debug("texture created", "label", label, "size", size)
	return &Texture{tex: tex, view: view, size: size, target: target}, nil
}

func (d *Device) destroyTexture(t *Texture) {
	if t.view != nil {
		d.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		d.device.DestroyTexture(t.tex)
		t.tex = nil
	}
}

func (d *Device) createBuffer(size uint64, usage gputypes.BufferUsage) (*Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "tilefx_buffer",
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create buffer %d", size)
	}
	return &Buffer{buf: buf, size: size, usage: usage}, nil
}

func (d *Device) destroyBuffer(b *Buffer) {
	if b.buf != nil {
		d.device.DestroyBuffer(b.buf)
		b.buf = nil
	}
}

// AcquireTexture returns a free tile texture of the given size, creating one
// when the pool has no match. The caller releases it.
func (d *Device) AcquireTexture(size uint32) (*Texture, error) {
	return d.acquireTexture(d.textures, size, false)
}

// AcquireRenderTarget returns a free render target of the given size.
func (d *Device) AcquireRenderTarget(size uint32) (*Texture, error) {
	return d.acquireTexture(d.targets, size, true)
}

func (d *Device) acquireTexture(p *pool.Pool[*Texture], size uint32, target bool) (*Texture, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	t, created, err := p.AcquireOrCreate(
		func(t *Texture) bool { return t.size == size },
		func() (*Texture, error) { return d.createTexture(size, target) },
	)
	if err != nil {
		return nil, err
	}
	if created {
		slogger().Debug("pool grew", "pool", p.Name(), "len", p.Len())
	}
	return t, nil
}

// acquireBuffer returns a free buffer with the exact size and usage.
func (d *Device) acquireBuffer(size uint64, usage gputypes.BufferUsage) (*Buffer, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	b, _, err := d.buffers.AcquireOrCreate(
		func(b *Buffer) bool { return b.size == size && b.usage == usage },
		func() (*Buffer, error) { return d.createBuffer(size, usage) },
	)
	return b, err
}

// alignedRow returns bytes per row rounded up to the copy pitch alignment.
func alignedRow(width uint32) uint32 {
	row := width * tileBytesPerPixel
	return (row + copyAlignment - 1) &^ (copyAlignment - 1)
}
