package tilefx

import (
	"image"
	"image/color"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/tilefx/pixel"
)

func TestBitmapValidate(t *testing.T) {
	tests := []struct {
		name string
		b    *Bitmap
		ok   bool
	}{
		{"nil", nil, false},
		{"empty format", &Bitmap{Width: 1, Height: 1, Data: []byte{0}}, false},
		{"zero size", &Bitmap{Format: pixel.Mono8}, false},
		{"short", &Bitmap{Format: pixel.RGB8, Width: 2, Height: 1, Data: make([]byte, 5)}, false},
		{"ok", NewBitmap(pixel.RGBA16, 3, 3), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.b.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, ErrInvalidBitmap))
		})
	}
}

func TestBitmapSub(t *testing.T) {
	b := NewBitmap(pixel.Mono8, 4, 3)
	for i := range b.Data {
		b.Data[i] = byte(i)
	}
	sub, err := b.Sub(pixel.R(1, 1, 2, 2))
	require.NoError(t, err)
	require.Equal(t, []byte{5, 6, 9, 10}, sub.Data)

	_, err = b.Sub(pixel.R(3, 0, 2, 1))
	require.True(t, errors.Is(err, ErrInvalidBitmap))
}

func TestBitmapConvert(t *testing.T) {
	mono := &Bitmap{Format: pixel.Mono8, Width: 1, Height: 1, Data: []byte{200}}
	rgba := mono.Convert(pixel.RGBA8)
	require.Equal(t, []byte{200, 200, 200, 255}, rgba.Data)

	back := rgba.Convert(pixel.Mono8)
	require.Equal(t, []byte{200}, back.Data)

	same := rgba.Convert(pixel.RGBA8)
	same.Data[0] = 1
	require.Equal(t, byte(200), rgba.Data[0], "convert to the same format copies")

	wide := rgba.Convert(pixel.RGB16)
	require.Equal(t, pixel.RGB16, wide.Format)
	require.InDelta(t, 200.0/255, pixel.CodecFor(pixel.RGB16).Get(wide.Data, 0, 1), 1e-4)
}

func TestBitmapImageRoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{G: 128, A: 255})
	src.SetNRGBA(0, 1, color.NRGBA{B: 64, A: 255})

	b, err := BitmapFromImage(src, pixel.RGBA8)
	require.NoError(t, err)
	require.Equal(t, []byte{255, 0, 0, 255}, b.Data[0:4])
	require.Equal(t, []byte{0, 128, 0, 255}, b.Data[4:8])

	img, ok := b.Image().(*image.NRGBA)
	require.True(t, ok)
	require.Equal(t, src.Pix, img.Pix)

	gray, err := BitmapFromImage(src, pixel.Mono8)
	require.NoError(t, err)
	require.Len(t, gray.Data, 4)
	_, ok = gray.Image().(*image.Gray)
	require.True(t, ok)

	wide, err := BitmapFromImage(src, pixel.RGBA16)
	require.NoError(t, err)
	img64, ok := wide.Image().(*image.NRGBA64)
	require.True(t, ok)
	require.Equal(t, color.NRGBA64{R: 0xffff, A: 0xffff}, img64.NRGBA64At(0, 0))

	_, err = BitmapFromImage(image.NewGray(image.Rect(0, 0, 0, 0)), pixel.Mono8)
	require.True(t, errors.Is(err, ErrInvalidBitmap))
}
