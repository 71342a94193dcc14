package convolve

import "github.com/gogpu/tilefx/pixel"

// Plane is a w x h image of normalized float32 samples.
type Plane struct {
	W, H     int
	Channels int
	Data     []float32
}

// NewPlane allocates a zeroed plane.
func NewPlane(w, h, channels int) *Plane {
	return &Plane{W: w, H: h, Channels: channels, Data: make([]float32, w*h*channels)}
}

// Index returns the sample index of channel 0 of pixel (x, y).
func (p *Plane) Index(x, y int) int {
	return (y*p.W + x) * p.Channels
}

// Bounds returns the full plane rectangle.
func (p *Plane) Bounds() pixel.Rect {
	return pixel.Full(p.W, p.H)
}

// Decode converts the r part of a packed buffer into p.
// buf holds a plane of the same size in format f.
func (p *Plane) Decode(buf []byte, f pixel.Format, r pixel.Rect) {
	c := pixel.CodecFor(f)
	n := min(c.Channels(), p.Channels)
	for y := r.Y; y < r.Bottom(); y++ {
		for x := r.X; x < r.Right(); x++ {
			px := y*p.W + x
			base := px * p.Channels
			for ch := 0; ch < n; ch++ {
				p.Data[base+ch] = c.Get(buf, px, ch)
			}
		}
	}
}

// Encode writes the r part of p into a packed buffer of format f.
func (p *Plane) Encode(buf []byte, f pixel.Format, r pixel.Rect) {
	c := pixel.CodecFor(f)
	n := min(c.Channels(), p.Channels)
	for y := r.Y; y < r.Bottom(); y++ {
		for x := r.X; x < r.Right(); x++ {
			px := y*p.W + x
			base := px * p.Channels
			for ch := 0; ch < n; ch++ {
				c.Set(buf, px, ch, p.Data[base+ch])
			}
		}
	}
}
