// Package pixel defines the pixel formats, rectangles and channel codecs
// shared by every backend of tilefx.
//
// A Format fixes the channel count and the per-channel storage class of a
// packed pixel. All buffer sizes and strides in tilefx are derived from
// Format.Size, so the invariant Size == Channels * ChannelSize holds for
// every entry in the format table.
package pixel

import "math"

// Format represents a packed pixel storage format.
type Format uint8

const (
	// Empty is the format of an uninitialized image.
	Empty Format = iota

	// Mono8 is 8-bit grayscale.
	Mono8

	// Mono16 is 16-bit grayscale.
	Mono16

	// Mono16S is signed 16-bit grayscale in the range [-32767, 32767].
	Mono16S

	// Mono32F is 32-bit float grayscale in the range [0, 1].
	Mono32F

	// RGB8 is 24-bit RGB.
	RGB8

	// RGB16 is 48-bit RGB.
	RGB16

	// RGB16S is signed 16-bit per channel RGB.
	RGB16S

	// RGB32F is 32-bit float per channel RGB.
	RGB32F

	// RGBA8 is 32-bit RGBA with straight alpha.
	RGBA8

	// RGBA16 is 64-bit RGBA with straight alpha.
	RGBA16

	// RGBA16S is signed 16-bit per channel RGBA.
	RGBA16S

	// RGBA32F is 32-bit float per channel RGBA.
	RGBA32F

	formatCount
)

// Class is the numeric class of a channel.
type Class uint8

const (
	// Unsigned channels store integers in [0, Max].
	Unsigned Class = iota
	// Signed channels store integers in [-Max, Max].
	Signed
	// Float channels store float32 values, nominally in [0, 1].
	Float
)

// Family groups formats by channel layout.
type Family uint8

const (
	FamilyNone Family = iota
	FamilyMono
	FamilyRGB
	FamilyRGBA
)

// Info contains metadata about a pixel format.
type Info struct {
	// Name is the canonical name of the format.
	Name string

	// Channels is the number of channels per pixel.
	Channels int

	// ChannelSize is the number of bytes per channel.
	ChannelSize int

	// Class is the numeric class of every channel.
	Class Class

	// Family is the channel layout.
	Family Family

	// Max is the largest representable channel value (1 for float formats).
	Max float64

	// Min is the smallest representable channel value.
	Min float64
}

// Size returns the number of bytes per pixel.
func (i Info) Size() int {
	return i.Channels * i.ChannelSize
}

var infoTable = [formatCount]Info{
	Empty:   {Name: "Empty"},
	Mono8:   {Name: "Mono8", Channels: 1, ChannelSize: 1, Class: Unsigned, Family: FamilyMono, Max: math.MaxUint8},
	Mono16:  {Name: "Mono16", Channels: 1, ChannelSize: 2, Class: Unsigned, Family: FamilyMono, Max: math.MaxUint16},
	Mono16S: {Name: "Mono16S", Channels: 1, ChannelSize: 2, Class: Signed, Family: FamilyMono, Max: math.MaxInt16, Min: -math.MaxInt16},
	Mono32F: {Name: "Mono32F", Channels: 1, ChannelSize: 4, Class: Float, Family: FamilyMono, Max: 1},
	RGB8:    {Name: "RGB8", Channels: 3, ChannelSize: 1, Class: Unsigned, Family: FamilyRGB, Max: math.MaxUint8},
	RGB16:   {Name: "RGB16", Channels: 3, ChannelSize: 2, Class: Unsigned, Family: FamilyRGB, Max: math.MaxUint16},
	RGB16S:  {Name: "RGB16S", Channels: 3, ChannelSize: 2, Class: Signed, Family: FamilyRGB, Max: math.MaxInt16, Min: -math.MaxInt16},
	RGB32F:  {Name: "RGB32F", Channels: 3, ChannelSize: 4, Class: Float, Family: FamilyRGB, Max: 1},
	RGBA8:   {Name: "RGBA8", Channels: 4, ChannelSize: 1, Class: Unsigned, Family: FamilyRGBA, Max: math.MaxUint8},
	RGBA16:  {Name: "RGBA16", Channels: 4, ChannelSize: 2, Class: Unsigned, Family: FamilyRGBA, Max: math.MaxUint16},
	RGBA16S: {Name: "RGBA16S", Channels: 4, ChannelSize: 2, Class: Signed, Family: FamilyRGBA, Max: math.MaxInt16, Min: -math.MaxInt16},
	RGBA32F: {Name: "RGBA32F", Channels: 4, ChannelSize: 4, Class: Float, Family: FamilyRGBA, Max: 1},
}

// Info returns the Info for this format.
// Unknown formats report the Empty entry.
func (f Format) Info() Info {
	if f >= formatCount {
		return infoTable[Empty]
	}
	return infoTable[f]
}

// Size returns the number of bytes per pixel.
func (f Format) Size() int { return f.Info().Size() }

// Channels returns the number of channels per pixel.
func (f Format) Channels() int { return f.Info().Channels }

// ChannelSize returns the number of bytes per channel.
func (f Format) ChannelSize() int { return f.Info().ChannelSize }

// Family returns the channel layout of the format.
func (f Format) Family() Family { return f.Info().Family }

// Max returns the largest channel value.
func (f Format) Max() float64 { return f.Info().Max }

// HasAlpha reports whether the format carries an alpha channel.
func (f Format) HasAlpha() bool { return f.Family() == FamilyRGBA }

// IsFloat reports whether channels are stored as float32.
func (f Format) IsFloat() bool { return f != Empty && f.Info().Class == Float }

// IsSigned reports whether channels are stored as signed integers.
func (f Format) IsSigned() bool { return f != Empty && f.Info().Class == Signed }

// IsValid reports whether f is a known, non-empty format.
func (f Format) IsValid() bool { return f > Empty && f < formatCount }

// String returns the name of the format.
func (f Format) String() string {
	if f >= formatCount {
		return "Unknown"
	}
	return infoTable[f].Name
}

// AlphaFormat returns the format with an associated alpha channel.
// Formats that already have alpha map to themselves; monochrome formats
// have no alpha counterpart and map to Empty.
func (f Format) AlphaFormat() Format {
	switch f {
	case RGB8:
		return RGBA8
	case RGB16:
		return RGBA16
	case RGB16S:
		return RGBA16S
	case RGB32F:
		return RGBA32F
	case RGBA8, RGBA16, RGBA16S, RGBA32F:
		return f
	}
	return Empty
}

// SignedFormat returns a format able to hold signed differences of f
// without loss. Signed and float formats map to themselves.
func (f Format) SignedFormat() Format {
	switch f {
	case Mono8:
		return Mono16S
	case Mono16:
		return Mono32F
	case RGB8:
		return RGB16S
	case RGB16:
		return RGB32F
	case RGBA8:
		return RGBA16S
	case RGBA16:
		return RGBA32F
	case Mono16S, Mono32F, RGB16S, RGB32F, RGBA16S, RGBA32F:
		return f
	}
	return Empty
}

// Formats returns every valid format in table order.
func Formats() []Format {
	out := make([]Format, 0, formatCount-1)
	for f := Mono8; f < formatCount; f++ {
		out = append(out, f)
	}
	return out
}

// MegaPixels returns the plane size in millions of pixels.
func MegaPixels(w, h int) float64 {
	return float64(w) * float64(h) / 1e6
}

// BufferSize returns the number of bytes needed for a w x h plane of f.
func BufferSize(f Format, w, h int) int {
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h * f.Size()
}
