package tilefx

import (
	"image"

	"github.com/cockroachdb/errors"
	"golang.org/x/image/draw"

	"github.com/gogpu/tilefx/pixel"
)

// ErrInvalidBitmap is returned for bitmaps whose buffer does not match
// their format and size.
var ErrInvalidBitmap = errors.New("tilefx: invalid bitmap")

// Bitmap is a host image: packed rows of Width pixels in Format.
//
// Bitmaps seed layers and receive their contents. They own no backend
// resources.
type Bitmap struct {
	Format pixel.Format
	Width  int
	Height int
	Data   []byte
}

// NewBitmap returns a zeroed w x h bitmap.
func NewBitmap(f pixel.Format, w, h int) *Bitmap {
	return &Bitmap{Format: f, Width: w, Height: h, Data: make([]byte, pixel.BufferSize(f, w, h))}
}

// Stride returns the number of bytes per row.
func (b *Bitmap) Stride() int { return b.Width * b.Format.Size() }

// Bounds returns the full rectangle of b.
func (b *Bitmap) Bounds() pixel.Rect { return pixel.Full(b.Width, b.Height) }

// Validate checks that Data holds Width x Height pixels of Format.
func (b *Bitmap) Validate() error {
	if b == nil {
		return errors.Wrap(ErrInvalidBitmap, "nil bitmap")
	}
	if !b.Format.IsValid() {
		return errors.Wrapf(ErrInvalidBitmap, "format %v", b.Format)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return errors.Wrapf(ErrInvalidBitmap, "size %dx%d", b.Width, b.Height)
	}
	if need := pixel.BufferSize(b.Format, b.Width, b.Height); len(b.Data) < need {
		return errors.Wrapf(ErrInvalidBitmap, "have %d bytes, need %d", len(b.Data), need)
	}
	return nil
}

// Sub returns a copy of the r part of b.
func (b *Bitmap) Sub(r pixel.Rect) (*Bitmap, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if r.Empty() || !r.In(b.Width, b.Height) {
		return nil, errors.Wrapf(ErrInvalidBitmap, "area %v outside %dx%d", r, b.Width, b.Height)
	}
	out := NewBitmap(b.Format, r.W, r.H)
	s := b.Format.Size()
	n := r.W * s
	for y := 0; y < r.H; y++ {
		o := ((r.Y+y)*b.Width + r.X) * s
		copy(out.Data[y*n:(y+1)*n], b.Data[o:o+n])
	}
	return out, nil
}

// Convert returns b in format f. Mono expands into RGB, RGB collapses into
// mono by Rec. 601 luma and a missing alpha channel reads as opaque.
func (b *Bitmap) Convert(f pixel.Format) *Bitmap {
	if f == b.Format {
		out := *b
		out.Data = append([]byte(nil), b.Data...)
		return &out
	}
	out := NewBitmap(f, b.Width, b.Height)
	src, dst := pixel.CodecFor(b.Format), pixel.CodecFor(f)
	var in [4]float32
	for i := 0; i < b.Width*b.Height; i++ {
		src.Load(b.Data, i, in[:src.Channels()])
		rgba := expand(in, src.Channels())
		switch dst.Channels() {
		case 1:
			dst.Set(out.Data, i, 0, 0.299*rgba[0]+0.587*rgba[1]+0.114*rgba[2])
		default:
			dst.Store(out.Data, i, rgba[:dst.Channels()])
		}
	}
	return out
}

func expand(px [4]float32, channels int) [4]float32 {
	switch channels {
	case 1:
		return [4]float32{px[0], px[0], px[0], 1}
	case 3:
		px[3] = 1
	}
	return px
}

// Image returns b as a standard library image. 8-bit formats become
// *image.Gray or *image.NRGBA, wider formats *image.Gray16 or
// *image.NRGBA64.
func (b *Bitmap) Image() image.Image {
	wide := b.Format.ChannelSize() > 1
	r := image.Rect(0, 0, b.Width, b.Height)
	switch {
	case b.Format.Channels() == 1 && !wide:
		img := image.NewGray(r)
		copy(img.Pix, b.Data)
		return img
	case b.Format.Channels() == 1:
		m := b.Convert(pixel.Mono16)
		img := image.NewGray16(r)
		for i := 0; i < b.Width*b.Height; i++ {
			img.Pix[2*i], img.Pix[2*i+1] = m.Data[2*i+1], m.Data[2*i]
		}
		return img
	case !wide:
		m := b.Convert(pixel.RGBA8)
		img := image.NewNRGBA(r)
		copy(img.Pix, m.Data)
		return img
	default:
		m := b.Convert(pixel.RGBA16)
		img := image.NewNRGBA64(r)
		for i := 0; i < len(m.Data); i += 2 {
			img.Pix[i], img.Pix[i+1] = m.Data[i+1], m.Data[i]
		}
		return img
	}
}

// BitmapFromImage draws img into a new bitmap of format f.
func BitmapFromImage(img image.Image, f pixel.Format) (*Bitmap, error) {
	if !f.IsValid() {
		return nil, errors.Wrapf(ErrInvalidBitmap, "format %v", f)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, errors.Wrapf(ErrInvalidBitmap, "size %dx%d", w, h)
	}
	r := image.Rect(0, 0, w, h)
	if f.ChannelSize() == 1 {
		rgba := image.NewNRGBA(r)
		draw.Draw(rgba, r, img, bounds.Min, draw.Src)
		out := &Bitmap{Format: pixel.RGBA8, Width: w, Height: h, Data: rgba.Pix}
		return out.Convert(f), nil
	}
	rgba := image.NewNRGBA64(r)
	draw.Draw(rgba, r, img, bounds.Min, draw.Src)
	out := NewBitmap(pixel.RGBA16, w, h)
	for i := 0; i < len(out.Data); i += 2 {
		out.Data[i], out.Data[i+1] = rgba.Pix[i+1], rgba.Pix[i]
	}
	return out.Convert(f), nil
}
