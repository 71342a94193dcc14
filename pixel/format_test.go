package pixel

import (
	"math"
	"testing"
)

func TestFormat_Size(t *testing.T) {
	tests := []struct {
		format   Format
		channels int
		size     int
	}{
		{Mono8, 1, 1},
		{Mono16, 1, 2},
		{Mono16S, 1, 2},
		{Mono32F, 1, 4},
		{RGB8, 3, 3},
		{RGB16, 3, 6},
		{RGB16S, 3, 6},
		{RGB32F, 3, 12},
		{RGBA8, 4, 4},
		{RGBA16, 4, 8},
		{RGBA16S, 4, 8},
		{RGBA32F, 4, 16},
		{Empty, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			if got := tt.format.Channels(); got != tt.channels {
				t.Errorf("Channels() = %d, want %d", got, tt.channels)
			}
			if got := tt.format.Size(); got != tt.size {
				t.Errorf("Size() = %d, want %d", got, tt.size)
			}
			if got := tt.format.Channels() * tt.format.ChannelSize(); got != tt.format.Size() {
				t.Errorf("Channels*ChannelSize = %d, Size = %d", got, tt.format.Size())
			}
		})
	}
}

func TestFormat_AlphaFormat(t *testing.T) {
	tests := []struct {
		in, want Format
	}{
		{RGB8, RGBA8},
		{RGB16, RGBA16},
		{RGB16S, RGBA16S},
		{RGB32F, RGBA32F},
		{RGBA8, RGBA8},
		{RGBA32F, RGBA32F},
		{Mono8, Empty},
		{Mono32F, Empty},
	}
	for _, tt := range tests {
		if got := tt.in.AlphaFormat(); got != tt.want {
			t.Errorf("%v.AlphaFormat() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormat_SignedFormat(t *testing.T) {
	tests := []struct {
		in, want Format
	}{
		{Mono8, Mono16S},
		{Mono16, Mono32F},
		{RGB8, RGB16S},
		{RGB16, RGB32F},
		{RGBA8, RGBA16S},
		{RGBA16, RGBA32F},
		{RGBA16S, RGBA16S},
		{Mono32F, Mono32F},
		{Empty, Empty},
	}
	for _, tt := range tests {
		if got := tt.in.SignedFormat(); got != tt.want {
			t.Errorf("%v.SignedFormat() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormat_Predicates(t *testing.T) {
	if !RGBA8.HasAlpha() || RGB8.HasAlpha() {
		t.Error("HasAlpha mismatch")
	}
	if !RGB32F.IsFloat() || RGB16.IsFloat() {
		t.Error("IsFloat mismatch")
	}
	if !Mono16S.IsSigned() || Mono16.IsSigned() {
		t.Error("IsSigned mismatch")
	}
	if Empty.IsValid() || !RGBA16.IsValid() || Format(200).IsValid() {
		t.Error("IsValid mismatch")
	}
	if Format(200).String() != "Unknown" {
		t.Errorf("String() = %q", Format(200).String())
	}
	if got := len(Formats()); got != 12 {
		t.Errorf("len(Formats()) = %d, want 12", got)
	}
}

func TestMegaPixels(t *testing.T) {
	if got := MegaPixels(2000, 1000); math.Abs(got-2) > 1e-9 {
		t.Errorf("MegaPixels = %v, want 2", got)
	}
	if got := BufferSize(RGBA16, 3, 5); got != 3*5*8 {
		t.Errorf("BufferSize = %d", got)
	}
	if got := BufferSize(RGBA8, 0, 5); got != 0 {
		t.Errorf("BufferSize empty = %d", got)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	values := []float32{0, 0.25, 0.5, 1}
	for _, f := range Formats() {
		t.Run(f.String(), func(t *testing.T) {
			c := CodecFor(f)
			buf := make([]byte, f.Size())
			for _, v := range values {
				for ch := 0; ch < f.Channels(); ch++ {
					c.Set(buf, 0, ch, v)
					got := c.Get(buf, 0, ch)
					want := c.Round(v)
					if math.Abs(float64(got-want)) > 1e-6 {
						t.Errorf("ch %d: Set(%v) read back %v, want %v", ch, v, got, want)
					}
				}
			}
		})
	}
}

func TestCodec_Clamps(t *testing.T) {
	c := CodecFor(RGBA8)
	buf := make([]byte, 4)
	c.Set(buf, 0, 0, 2)
	c.Set(buf, 0, 1, -1)
	if buf[0] != 255 || buf[1] != 0 {
		t.Errorf("clamp: got %v", buf[:2])
	}

	s := CodecFor(Mono16S)
	sbuf := make([]byte, 2)
	s.Set(sbuf, 0, 0, -2)
	if got := s.Get(sbuf, 0, 0); got != -1 {
		t.Errorf("signed clamp: got %v, want -1", got)
	}
}

func TestRect(t *testing.T) {
	r := R(10, 10, 20, 20)
	if got := r.Intersect(R(0, 0, 15, 15)); got != R(10, 10, 5, 5) {
		t.Errorf("Intersect = %v", got)
	}
	if got := r.Intersect(R(100, 100, 1, 1)); !got.Empty() {
		t.Errorf("disjoint Intersect = %v", got)
	}
	if got := R(-5, -5, 20, 20).Clip(10, 10); got != R(0, 0, 10, 10) {
		t.Errorf("Clip = %v", got)
	}
	if !r.Contains(Point{X: 10, Y: 29}) || r.Contains(Point{X: 30, Y: 10}) {
		t.Error("Contains mismatch")
	}
	if !R(0, 0, 4, 4).In(4, 4) || R(1, 0, 4, 4).In(4, 4) {
		t.Error("In mismatch")
	}
	if r.Area() != 400 || R(0, 0, -1, 5).Area() != 0 {
		t.Error("Area mismatch")
	}
}
