// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// fenceTimeout bounds every wait on submitted tile work.
const fenceTimeout = 5 * time.Second

// ErrGPUTimeout is returned when submitted work does not finish in time.
var ErrGPUTimeout = errors.New("gpu: timed out waiting for the queue")

// submit records commands with record, submits them and waits for the queue
// to finish them.
func (d *Device) submit(label string, record func(enc hal.CommandEncoder)) error {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return errors.Wrap(err, "create command encoder")
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return errors.Wrap(err, "begin encoding")
	}
	record(encoder)

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return errors.Wrap(err, "end encoding")
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return errors.Wrap(err, "create fence")
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return errors.Wrap(err, "submit")
	}
	ok, err := d.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return errors.Wrap(err, "wait for GPU")
	}
	if !ok {
		return errors.Wrapf(ErrGPUTimeout, "%s", label)
	}
	return nil
}

// copyTextureToBuffer records a copy of the whole texture into buf with
// copy-aligned rows. The texture is transitioned around the copy and left in
// its resting state.
func copyTextureToBuffer(enc hal.CommandEncoder, t *Texture, buf hal.Buffer) {
	rest := gputypes.TextureUsageCopyDst
	if t.target {
		rest = gputypes.TextureUsageRenderAttachment
	}
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage:   hal.TextureUsageTransition{OldUsage: rest, NewUsage: gputypes.TextureUsageCopySrc},
	}})
	enc.CopyTextureToBuffer(t.tex, buf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedRow(t.size), RowsPerImage: t.size},
		TextureBase:  hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: t.size, Height: t.size, DepthOrArrayLayers: 1},
	}})
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage:   hal.TextureUsageTransition{OldUsage: gputypes.TextureUsageCopySrc, NewUsage: rest},
	}})
}

// readTexture reads the texels of t back to the host as tightly packed RGBA8.
func (d *Device) readTexture(t *Texture) ([]byte, error) {
	size := uint64(alignedRow(t.size)) * uint64(t.size)
	staging, err := d.acquireBuffer(size, usageStaging)
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	if err := d.submit("tilefx_readback", func(enc hal.CommandEncoder) {
		copyTextureToBuffer(enc, t, staging.buf)
	}); err != nil {
		return nil, errors.Wrap(err, "read texture")
	}
	return d.readStaging(staging, t.size)
}

// readStaging copies a mapped staging buffer holding one size x size tile
// to the host, dropping row padding.
func (d *Device) readStaging(staging *Buffer, size uint32) ([]byte, error) {
	aligned := alignedRow(size)
	raw := make([]byte, uint64(aligned)*uint64(size))
	if err := d.queue.ReadBuffer(staging.buf, 0, raw); err != nil {
		return nil, errors.Wrap(err, "readback")
	}
	row := size * tileBytesPerPixel
	if aligned == row {
		return raw, nil
	}
	tight := make([]byte, uint64(row)*uint64(size))
	for y := uint32(0); y < size; y++ {
		copy(tight[y*row:(y+1)*row], raw[y*aligned:y*aligned+row])
	}
	return tight, nil
}

// writeTexture uploads tightly packed RGBA8 texels into the whole texture.
func (d *Device) writeTexture(t *Texture, data []byte) error {
	err := d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  t.size * tileBytesPerPixel,
			RowsPerImage: t.size,
		},
		&hal.Extent3D{Width: t.size, Height: t.size, DepthOrArrayLayers: 1},
	)
	return errors.Wrap(err, "gpu: write texture")
}
