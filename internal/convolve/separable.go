package convolve

import "github.com/gogpu/tilefx/pixel"

// Horizontal convolves the rows of src with kernel and writes the r part of
// dst. Samples outside src are clamped to the nearest edge.
func Horizontal(src, dst *Plane, r pixel.Rect, kernel []float32) {
	half := len(kernel) / 2
	ch := src.Channels
	for y := r.Y; y < r.Bottom(); y++ {
		row := y * src.W
		for x := r.X; x < r.Right(); x++ {
			o := dst.Index(x, y)
			for c := 0; c < ch; c++ {
				dst.Data[o+c] = 0
			}
			for k, w := range kernel {
				kx := pixel.Clamp(x+k-half, 0, src.W-1)
				s := (row + kx) * ch
				for c := 0; c < ch; c++ {
					dst.Data[o+c] += src.Data[s+c] * w
				}
			}
		}
	}
}

// Vertical convolves the columns of src with kernel and writes the r part of
// dst. Samples outside src are clamped to the nearest edge.
func Vertical(src, dst *Plane, r pixel.Rect, kernel []float32) {
	half := len(kernel) / 2
	ch := src.Channels
	for y := r.Y; y < r.Bottom(); y++ {
		for x := r.X; x < r.Right(); x++ {
			o := dst.Index(x, y)
			for c := 0; c < ch; c++ {
				dst.Data[o+c] = 0
			}
			for k, w := range kernel {
				ky := pixel.Clamp(y+k-half, 0, src.H-1)
				s := src.Index(x, ky)
				for c := 0; c < ch; c++ {
					dst.Data[o+c] += src.Data[s+c] * w
				}
			}
		}
	}
}

// Copy copies the r part of src into dst.
func Copy(src, dst *Plane, r pixel.Rect) {
	for y := r.Y; y < r.Bottom(); y++ {
		s := src.Index(r.X, y)
		d := dst.Index(r.X, y)
		n := r.W * src.Channels
		copy(dst.Data[d:d+n], src.Data[s:s+n])
	}
}
