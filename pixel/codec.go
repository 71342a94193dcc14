package pixel

import (
	"encoding/binary"
	"math"

	"golang.org/x/exp/constraints"
)

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Quantize rounds a value already scaled to an integer channel range.
func Quantize[T constraints.Integer](v float64, lo, hi float64) T {
	return T(math.Round(Clamp(v, lo, hi)))
}

// Codec reads and writes channels of a packed buffer as normalized floats.
//
// Unsigned channels map [0, Max] to [0, 1], signed channels map
// [-Max, Max] to [-1, 1] and float channels are stored as is.
// Set clamps to the representable range and rounds to nearest.
type Codec struct {
	format   Format
	size     int
	channels int
	max      float64
	min      float64
}

// CodecFor returns the codec for f.
func CodecFor(f Format) Codec {
	info := f.Info()
	return Codec{
		format:   f,
		size:     info.Size(),
		channels: info.Channels,
		max:      info.Max,
		min:      info.Min,
	}
}

// Format returns the format the codec was built for.
func (c Codec) Format() Format { return c.format }

// offset returns the byte offset of channel ch of pixel px.
func (c Codec) offset(px, ch int) int {
	return px*c.size + ch*(c.size/max(c.channels, 1))
}

// Get returns channel ch of pixel index px.
func (c Codec) Get(buf []byte, px, ch int) float32 {
	o := c.offset(px, ch)
	switch c.format {
	case Mono8, RGB8, RGBA8:
		return float32(buf[o]) / 255
	case Mono16, RGB16, RGBA16:
		return float32(binary.LittleEndian.Uint16(buf[o:])) / 65535
	case Mono16S, RGB16S, RGBA16S:
		return float32(int16(binary.LittleEndian.Uint16(buf[o:]))) / 32767
	case Mono32F, RGB32F, RGBA32F:
		return math.Float32frombits(binary.LittleEndian.Uint32(buf[o:]))
	}
	return 0
}

// Set stores v into channel ch of pixel index px.
func (c Codec) Set(buf []byte, px, ch int, v float32) {
	o := c.offset(px, ch)
	switch c.format {
	case Mono8, RGB8, RGBA8:
		buf[o] = Quantize[uint8](float64(v)*255, 0, 255)
	case Mono16, RGB16, RGBA16:
		binary.LittleEndian.PutUint16(buf[o:], Quantize[uint16](float64(v)*65535, 0, 65535))
	case Mono16S, RGB16S, RGBA16S:
		s := Quantize[int16](float64(v)*32767, -32767, 32767)
		binary.LittleEndian.PutUint16(buf[o:], uint16(s))
	case Mono32F, RGB32F, RGBA32F:
		binary.LittleEndian.PutUint32(buf[o:], math.Float32bits(v))
	}
}

// Round returns v as it would read back after Set.
func (c Codec) Round(v float32) float32 {
	if c.max == 0 {
		return v
	}
	switch c.format.Info().Class {
	case Unsigned:
		return float32(math.Round(Clamp(float64(v), 0, 1)*c.max) / c.max)
	case Signed:
		return float32(math.Round(Clamp(float64(v), -1, 1)*c.max) / c.max)
	}
	return v
}

// Encode writes one pixel whose channels are all v into dst.
func (c Codec) Encode(dst []byte, v float32) {
	for ch := 0; ch < c.channels; ch++ {
		c.Set(dst, 0, ch, v)
	}
}

// Channels returns the number of channels per pixel.
func (c Codec) Channels() int { return c.channels }

// Size returns the number of bytes per pixel.
func (c Codec) Size() int { return c.size }

// Load decodes pixel px into dst, which must hold Channels values.
func (c Codec) Load(buf []byte, px int, dst []float32) {
	for ch := 0; ch < c.channels; ch++ {
		dst[ch] = c.Get(buf, px, ch)
	}
}

// Store encodes src into pixel px.
func (c Codec) Store(buf []byte, px int, src []float32) {
	for ch := 0; ch < c.channels; ch++ {
		c.Set(buf, px, ch, src[ch])
	}
}
