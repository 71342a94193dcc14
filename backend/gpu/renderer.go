// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/pixel"
)

// Operation describes one tiled effect invocation.
type Operation struct {
	// Effect selects the compiled pipeline.
	Effect EffectKind

	// Values are the effect parameters v0..v3.
	Values [4][4]float32

	// Channel is the destination channel of channel effects.
	Channel uint32

	// SourceChannel is the source channel of CopyChannel.
	SourceChannel uint32
}

// Renderer runs effects over tiled images, one full-tile draw per
// destination tile.
type Renderer struct {
	dev *Device
}

// RenderTiled applies op to every tile of dst that intersects area, reading
// from src. src may be nil for effects that only read dst, and may be dst
// itself.
func (r *Renderer) RenderTiled(dst, src *Image, area pixel.Rect, op Operation) error {
	return r.render(dst, src, nil, area, op)
}

// RenderTiledMerge is RenderTiled with two sources per tile, used by the
// blend effects.
func (r *Renderer) RenderTiledMerge(dst, a, b *Image, area pixel.Rect, op Operation) error {
	if a == nil || b == nil {
		return errors.Wrap(backend.ErrEmpty, "gpu: merge needs two sources")
	}
	return r.render(dst, a, b, area, op)
}

// tileFrame holds the pooled resources shared by every tile of one render.
type tileFrame struct {
	effect   *Effect
	uniform  *Buffer
	operands [3]*Buffer
	staging  *Buffer
	target   *Texture
}

func (f *tileFrame) release() {
	for _, b := range append(f.operands[:], f.uniform, f.staging) {
		if b != nil {
			b.Release()
		}
	}
	if f.target != nil {
		f.target.Release()
	}
	if f.effect != nil {
		f.effect.Release()
	}
}

func (r *Renderer) render(dst, src, src2 *Image, area pixel.Rect, op Operation) error {
	if dst == nil || dst.Empty() {
		return errors.Wrap(backend.ErrEmpty, "gpu: render destination")
	}
	for _, s := range []*Image{src, src2} {
		if s == nil {
			continue
		}
		if s.Empty() {
			return errors.Wrap(backend.ErrEmpty, "gpu: render source")
		}
		if s.w != dst.w || s.h != dst.h {
			return errors.Wrapf(backend.ErrOutOfBounds, "gpu: source %dx%d, destination %dx%d", s.w, s.h, dst.w, dst.h)
		}
	}
	area = area.Intersect(dst.Bounds())
	if area.Empty() {
		return nil
	}

	frame, err := r.acquireFrame(dst.tileSize, op.Effect)
	if err != nil {
		return err
	}
	defer frame.release()

	params := Params{
		Area: [4]int32{int32(area.X), int32(area.Y), int32(area.Right()), int32(area.Bottom())},
		V:    op.Values,
		Misc: [4]uint32{
			alignedRow(uint32(dst.tileSize)) / tileBytesPerPixel,
			op.Channel,
			uint32(dst.format.Channels()),
			op.SourceChannel,
		},
	}

	tiles := 0
	for i, t := range dst.tiles {
		if t.logical.Intersect(area).Empty() {
			continue
		}
		operands := [3]*tile{t, t, t}
		if src != nil {
			operands[1], operands[2] = src.tiles[i], src.tiles[i]
		}
		if src2 != nil {
			operands[2] = src2.tiles[i]
		}
		params.Origin = [4]int32{int32(t.physical.X), int32(t.physical.Y)}
		if err := r.renderTile(dst, operands, frame, &params); err != nil {
			return errors.Wrapf(err, "gpu: %s tile %v", op.Effect, t.logical)
		}
		tiles++
	}
	slogger().Debug("tiled render", "effect", op.Effect.String(), "area", area, "tiles", tiles)
	return nil
}

func (r *Renderer) acquireFrame(tileSize int, kind EffectKind) (*tileFrame, error) {
	d := r.dev
	f := &tileFrame{}
	var err error
	if f.effect, err = d.cache.Acquire(kind); err != nil {
		return nil, err
	}
	size := uint64(alignedRow(uint32(tileSize))) * uint64(tileSize)
	if f.uniform, err = d.acquireBuffer(paramsSize, usageUniform); err != nil {
		f.release()
		return nil, err
	}
	for i := range f.operands {
		if f.operands[i], err = d.acquireBuffer(size, usageOperand); err != nil {
			f.release()
			return nil, err
		}
	}
	if f.staging, err = d.acquireBuffer(size, usageStaging); err != nil {
		f.release()
		return nil, err
	}
	if f.target, err = d.AcquireRenderTarget(uint32(tileSize)); err != nil {
		f.release()
		return nil, err
	}
	return f, nil
}

// renderTile copies the operand tiles into storage buffers, draws the
// effect into the render target and writes the result into the destination
// tile. operands[0] is the destination tile.
func (r *Renderer) renderTile(dst *Image, operands [3]*tile, f *tileFrame, params *Params) error {
	d := r.dev
	for _, t := range operands {
		t.pinned.Inc()
	}
	defer func() {
		for _, t := range operands {
			t.pinned.Dec()
		}
	}()
	// Sources are not materialized for the render; a source tile without a
	// texture is staged from its backup instead.
	if err := dst.materialize(operands[0]); err != nil {
		return err
	}

	if err := d.queue.WriteBuffer(f.uniform.buf, 0, params.bytes()); err != nil {
		return errors.Wrap(err, "write effect parameters")
	}

	bind := func(b *Buffer) gputypes.BufferBinding {
		return gputypes.BufferBinding{Buffer: b.buf.NativeHandle(), Offset: 0, Size: b.size}
	}
	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "tilefx_tile_bind",
		Layout: f.effect.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: f.uniform.buf.NativeHandle(), Offset: 0, Size: paramsSize}},
			{Binding: 1, Resource: bind(f.operands[0])},
			{Binding: 2, Resource: bind(f.operands[1])},
			{Binding: 3, Resource: bind(f.operands[2])},
		},
	})
	if err != nil {
		return errors.Wrap(err, "create bind group")
	}
	defer d.device.DestroyBindGroup(bg)

	// Operand tiles without a texture hold a host backup or zeros.
	for i, t := range operands {
		if t.tex == nil {
			if err := d.queue.WriteBuffer(f.operands[i].buf, 0, padRows(t.backup, uint32(dst.tileSize))); err != nil {
				return errors.Wrapf(err, "stage operand %d", i)
			}
		}
	}

	size := f.target.size
	err = d.submit("tilefx_tile", func(enc hal.CommandEncoder) {
		for i, t := range operands {
			if t.tex != nil {
				copyTextureToBuffer(enc, t.tex, f.operands[i].buf)
			}
		}
		rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "tilefx_tile_pass",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:       f.target.view,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{},
			}},
		})
		rp.SetPipeline(f.effect.pipeline)
		rp.SetBindGroup(0, bg, nil)
		rp.Draw(3, 1, 0, 0)
		rp.End()
		copyTextureToBuffer(enc, f.target, f.staging.buf)
	})
	if err != nil {
		return err
	}

	texels, err := d.readStaging(f.staging, size)
	if err != nil {
		return err
	}
	target := operands[0]
	if dst.dev.Mode() == Streamlined {
		d.memory.Touch(target)
	}
	return d.writeTexture(target.tex, texels)
}

// padRows expands tight RGBA8 texels to copy-aligned rows. A nil backup
// yields zeros.
func padRows(tight []byte, size uint32) []byte {
	aligned := alignedRow(size)
	out := make([]byte, uint64(aligned)*uint64(size))
	if tight == nil {
		return out
	}
	row := size * tileBytesPerPixel
	for y := uint32(0); y < size; y++ {
		copy(out[y*aligned:y*aligned+row], tight[y*row:(y+1)*row])
	}
	return out
}
