package convolve

// Matrix is a 4x5 color transformation in row-major order operating on
// normalized RGBA samples:
//
//	[R']   [m0  m1  m2  m3  m4 ]   [R]
//	[G'] = [m5  m6  m7  m8  m9 ] * [G]
//	[B']   [m10 m11 m12 m13 m14]   [B]
//	[A']   [m15 m16 m17 m18 m19]   [A]
//	                               [1]
type Matrix [20]float32

// Identity returns the pass-through matrix.
func Identity() Matrix {
	return Matrix{
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Monochrome returns a matrix writing r*fr + g*fg + b*fb to every color
// channel and keeping alpha.
func Monochrome(fr, fg, fb float32) Matrix {
	return Matrix{
		fr, fg, fb, 0, 0,
		fr, fg, fb, 0, 0,
		fr, fg, fb, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// Luma returns the Rec. 601 grayscale matrix.
func Luma() Matrix {
	return Monochrome(0.299, 0.587, 0.114)
}

// Apply transforms one pixel in place. px holds 1, 3 or 4 channels; missing
// color channels are taken from the first channel and missing alpha is 1.
func (m *Matrix) Apply(px []float32) {
	var r, g, b, a float32
	switch len(px) {
	case 1:
		r, g, b, a = px[0], px[0], px[0], 1
	case 3:
		r, g, b, a = px[0], px[1], px[2], 1
	default:
		r, g, b, a = px[0], px[1], px[2], px[3]
	}
	nr := m[0]*r + m[1]*g + m[2]*b + m[3]*a + m[4]
	ng := m[5]*r + m[6]*g + m[7]*b + m[8]*a + m[9]
	nb := m[10]*r + m[11]*g + m[12]*b + m[13]*a + m[14]
	na := m[15]*r + m[16]*g + m[17]*b + m[18]*a + m[19]

	switch len(px) {
	case 1:
		px[0] = nr
	case 3:
		px[0], px[1], px[2] = nr, ng, nb
	default:
		px[0], px[1], px[2], px[3] = nr, ng, nb, na
	}
}
