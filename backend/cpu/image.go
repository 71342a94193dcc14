package cpu

import (
	"github.com/cockroachdb/errors"

	"github.com/gogpu/tilefx/backend"
	"github.com/gogpu/tilefx/pixel"
)

// Image is a packed row-major CPU image.
//
// The pixel (x, y) starts at byte ((y*width)+x)*format.Size(). Kernels get
// direct access through Bytes, Row and PixelAt and must pre-clip their
// rectangles; only the exported copy routines check bounds.
type Image struct {
	dev    *Device
	format pixel.Format
	w, h   int
	buf    *Buffer
}

var _ backend.Image = (*Image)(nil)

// Backend implements backend.Image.
func (img *Image) Backend() backend.ID { return backend.CPU }

// Device returns the owning device.
func (img *Image) Device() *Device { return img.dev }

// Width implements backend.Image.
func (img *Image) Width() int { return img.w }

// Height implements backend.Image.
func (img *Image) Height() int { return img.h }

// Format implements backend.Image.
func (img *Image) Format() pixel.Format { return img.format }

// Bounds returns the full image rectangle.
func (img *Image) Bounds() pixel.Rect { return pixel.Full(img.w, img.h) }

// Empty reports whether the image holds no pixels.
func (img *Image) Empty() bool { return img.buf == nil || img.w == 0 || img.h == 0 }

// Stride returns the row length in bytes.
func (img *Image) Stride() int { return img.w * img.format.Size() }

// Offset returns the byte offset of pixel (x, y).
func (img *Image) Offset(x, y int) int { return ((y * img.w) + x) * img.format.Size() }

// Bytes returns the pixel buffer.
func (img *Image) Bytes() []byte {
	if img.buf == nil {
		return nil
	}
	return img.buf.data
}

// Row returns row y.
func (img *Image) Row(y int) []byte {
	s := img.Stride()
	return img.buf.data[y*s : (y+1)*s]
}

// PixelAt returns the bytes of pixel (x, y).
func (img *Image) PixelAt(x, y int) []byte {
	o := img.Offset(x, y)
	return img.buf.data[o : o+img.format.Size()]
}

// Create implements backend.Image. The new storage is zeroed.
func (img *Image) Create(f pixel.Format, w, h int) error {
	if err := checkFormat(f, w, h); err != nil {
		return err
	}
	img.DiscardBuffers()
	img.format, img.w, img.h = f, w, h
	n := pixel.BufferSize(f, w, h)
	if n == 0 {
		return nil
	}
	buf, err := img.dev.acquireBuffer(n)
	if err != nil {
		return errors.Wrapf(err, "cpu: allocate %dx%d %v", w, h, f)
	}
	img.buf = buf
	return nil
}

// CreateFromData implements backend.Image.
func (img *Image) CreateFromData(f pixel.Format, w, h int, data []byte) error {
	if err := img.Create(f, w, h); err != nil {
		return err
	}
	if img.Empty() {
		return nil
	}
	return img.Upload(data, img.Bounds())
}

// Retrieve implements backend.Image.
func (img *Image) Retrieve(buf []byte, r pixel.Rect) error {
	if err := img.checkIO(buf, r); err != nil {
		return err
	}
	n := r.W * img.format.Size()
	for y := 0; y < r.H; y++ {
		o := img.Offset(r.X, r.Y+y)
		copy(buf[y*n:(y+1)*n], img.buf.data[o:o+n])
	}
	return nil
}

// Upload implements backend.Image.
func (img *Image) Upload(data []byte, r pixel.Rect) error {
	if err := img.checkIO(data, r); err != nil {
		return err
	}
	n := r.W * img.format.Size()
	if r.X == 0 && r.W == img.w {
		o := img.Offset(0, r.Y)
		copy(img.buf.data[o:o+n*r.H], data)
		return nil
	}
	for y := 0; y < r.H; y++ {
		o := img.Offset(r.X, r.Y+y)
		copy(img.buf.data[o:o+n], data[y*n:(y+1)*n])
	}
	return nil
}

func (img *Image) checkIO(buf []byte, r pixel.Rect) error {
	if r.Empty() {
		return nil
	}
	if img.Empty() {
		return backend.ErrEmpty
	}
	if err := backend.CheckRect(r, img.w, img.h); err != nil {
		return err
	}
	return backend.CheckBuffer(buf, img.format, r)
}

// Copy implements backend.Image. Overlapping copies within one image are
// handled.
func (img *Image) Copy(src backend.Image, r pixel.Rect, dx, dy int) error {
	s, ok := src.(*Image)
	if !ok {
		return errors.Wrapf(backend.ErrWrongBackend, "copy from %v", src.Backend())
	}
	if s.format != img.format {
		return errors.Wrapf(backend.ErrUnsupportedFormat, "copy %v into %v", s.format, img.format)
	}
	if r.Empty() {
		return nil
	}
	if s.Empty() || img.Empty() {
		return backend.ErrEmpty
	}
	if err := backend.CheckRect(r, s.w, s.h); err != nil {
		return err
	}
	if err := backend.CheckRect(pixel.R(dx, dy, r.W, r.H), img.w, img.h); err != nil {
		return err
	}

	n := r.W * img.format.Size()
	rows := make([]int, r.H)
	for i := range rows {
		rows[i] = i
	}
	// Walk bottom-up when copying downwards inside the same buffer.
	if s == img && dy > r.Y {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	for _, y := range rows {
		so := s.Offset(r.X, r.Y+y)
		do := img.Offset(dx, dy+y)
		copy(img.buf.data[do:do+n], s.buf.data[so:so+n])
	}
	return nil
}

// DiscardBuffers gives the buffer back to the device pool. Size and format
// are kept so the image can be recreated in place.
func (img *Image) DiscardBuffers() {
	if img.buf == nil {
		return
	}
	img.buf.Release()
	img.buf = nil
}

// Synchronize implements backend.Image.
func (img *Image) Synchronize() error { return nil }

// CPUMemory implements backend.Image.
func (img *Image) CPUMemory() uint64 {
	if img.buf == nil {
		return 0
	}
	return uint64(len(img.buf.data))
}

// GPUMemory implements backend.Image.
func (img *Image) GPUMemory() uint64 { return 0 }
