package cpu

import (
	"github.com/cockroachdb/errors"

	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/internal/handle"
	"github.com/gogpu/tilefx/internal/slab"
	"github.com/gogpu/tilefx/pixel"
)

// PixelArray is a 1-D run of pixels stored in a slab region.
type PixelArray struct {
	dev    *Device
	format pixel.Format
	n      int
	blob   *handle.Shared[slab.Blob]
}

var _ backend.PixelArray = (*PixelArray)(nil)

// Backend implements backend.PixelArray.
func (a *PixelArray) Backend() backend.ID { return backend.CPU }

// Len returns the number of pixels.
func (a *PixelArray) Len() int { return a.n }

// Format implements backend.PixelArray.
func (a *PixelArray) Format() pixel.Format { return a.format }

// Bytes returns the pixel bytes, or nil when empty.
func (a *PixelArray) Bytes() []byte {
	if a.blob == nil {
		return nil
	}
	return a.blob.Get().Bytes()
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
	blob, err := a.dev.slab.Alloc(a.dev.claimant, n*f.Size())
	if err != nil {
		return errors.Wrapf(err, "cpu: pixel array of %d %v", n, f)
	}
	a.blob = blob
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
	s := a.format.Size()
	copy(buf, a.Bytes()[offset*s:(offset+n)*s])
	return nil
}

// Upload copies data to the pixels starting at offset.
func (a *PixelArray) Upload(data []byte, offset int) error {
	s := a.format.Size()
	if s == 0 {
		return backend.ErrEmpty
	}
	n := len(data) / s
	if err := a.check(data, offset, n); err != nil {
		return err
	}
	copy(a.Bytes()[offset*s:], data[:n*s])
	return nil
}

func (a *PixelArray) check(buf []byte, offset, n int) error {
	if n == 0 {
		return nil
	}
	if a.blob == nil {
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

// Release gives the slab region back.
func (a *PixelArray) Release() {
	if a.blob != nil {
		a.blob.Release()
		a.blob = nil
	}
}
