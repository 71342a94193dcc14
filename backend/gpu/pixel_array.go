// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/pixel"
)

// PixelArray is a 1-D run of pixels in a storage buffer. Pixels keep their
// host layout; the buffer size is rounded up to a multiple of four bytes.
type PixelArray struct {
	dev    *Device
	format pixel.Format
	n      int
	buf    *Buffer
}

var _ backend.PixelArray = (*PixelArray)(nil)

// Backend implements backend.PixelArray.
func (a *PixelArray) Backend() backend.ID { return backend.GPU }

// Len returns the number of pixels.
func (a *PixelArray) Len() int { return a.n }

// Format implements backend.PixelArray.
func (a *PixelArray) Format() pixel.Format { return a.format }

// Buffer returns the storage buffer, or nil when empty.
func (a *PixelArray) Buffer() *Buffer { return a.buf }

func arraySize(f pixel.Format, n int) uint64 {
	return (uint64(n*f.Size()) + 3) &^ 3
}

// Create implements backend.PixelArray.
func (a *PixelArray) Create(f pixel.Format, n int) error {
	if err := checkFormat(f, n, 1); err != nil {
		return err
	}
	a.Release()
	a.format, a.n = f, n
	if n == 0 {
		return nil
	}
	buf, err := a.dev.acquireBuffer(arraySize(f, n), usageArray)
	if err != nil {
		return errors.Wrapf(err, "gpu: pixel array of %d %v", n, f)
	}
	a.buf = buf
	if err := a.dev.queue.WriteBuffer(buf.buf, 0, make([]byte, buf.size)); err != nil {
		a.Release()
		return errors.Wrapf(err, "gpu: clear pixel array of %d %v", n, f)
	}
	return nil
}

// CreateFromData implements backend.PixelArray.
func (a *PixelArray) CreateFromData(f pixel.Format, n int, data []byte) error {
	if err := a.Create(f, n); err != nil {
		return err
	}
	return a.Upload(data, 0)
}

// Retrieve copies n pixels starting at offset into buf.
func (a *PixelArray) Retrieve(buf []byte, offset, n int) error {
	if err := a.check(buf, offset, n); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	d := a.dev
	staging, err := d.acquireBuffer(a.buf.size, usageStaging)
	if err != nil {
		return err
	}
	defer staging.Release()

	if err := d.submit("tilefx_array_readback", func(enc hal.CommandEncoder) {
		enc.CopyBufferToBuffer(a.buf.buf, staging.buf, []hal.BufferCopy{{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      a.buf.size,
		}})
	}); err != nil {
		return errors.Wrap(err, "gpu: read pixel array")
	}
	raw := make([]byte, a.buf.size)
	if err := d.queue.ReadBuffer(staging.buf, 0, raw); err != nil {
		return errors.Wrap(err, "gpu: read pixel array")
	}
	s := a.format.Size()
	copy(buf, raw[offset*s:(offset+n)*s])
	return nil
}

// Upload copies data to the pixels starting at offset. The write is padded
// to a four-byte boundary with the current buffer contents.
func (a *PixelArray) Upload(data []byte, offset int) error {
	s := a.format.Size()
	if s == 0 {
		return backend.ErrEmpty
	}
	n := len(data) / s
	if err := a.check(data, offset, n); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	start := uint64(offset*s) &^ 3
	end := (uint64((offset+n)*s) + 3) &^ 3
	chunk := make([]byte, end-start)
	if start != uint64(offset*s) || end != uint64((offset+n)*s) {
		all := make([]byte, a.n*s)
		if err := a.Retrieve(all, 0, a.n); err != nil {
			return err
		}
		copy(chunk, all[start:min(end, uint64(len(all)))])
	}
	copy(chunk[uint64(offset*s)-start:], data[:n*s])
	return errors.Wrap(a.dev.queue.WriteBuffer(a.buf.buf, start, chunk), "gpu: upload pixel array")
}

func (a *PixelArray) check(buf []byte, offset, n int) error {
	if n == 0 {
		return nil
	}
	if a.buf == nil {
		return backend.ErrEmpty
	}
	if offset < 0 || n < 0 || offset+n > a.n {
		return errors.Wrapf(backend.ErrOutOfBounds, "pixels [%d,%d) of %d", offset, offset+n, a.n)
	}
	if len(buf) < n*a.format.Size() {
		return errors.Wrapf(backend.ErrBufferSize, "have %d bytes, need %d", len(buf), n*a.format.Size())
	}
	return nil
}

// Release returns the buffer to the device pool.
func (a *PixelArray) Release() {
	if a.buf != nil {
		a.buf.Release()
		a.buf = nil
	}
}
