package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"leaf-detect/internal/domain/entity"
)

func solidOverlay(w, h int, c color.NRGBA) *entity.Overlay {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return &entity.Overlay{Drawing: img}
}

func near(t *testing.T, want color.NRGBA, got color.Color) {
	t.Helper()
	r, g, b, _ := got.RGBA()
	diff := func(a uint8, b uint32) int {
		d := int(a) - int(b>>8)
		if d < 0 {
			d = -d
		}
		return d
	}
	require.LessOrEqual(t, diff(want.R, r), 1)
	require.LessOrEqual(t, diff(want.G, g), 1)
	require.LessOrEqual(t, diff(want.B, b), 1)
}

func TestAppearanceFrames(t *testing.T) {
	green := color.NRGBA{R: 30, G: 160, B: 60, A: 255}
	o := solidOverlay(40, 120, green)

	frames, err := AppearanceFrames(o, entity.DefaultAppearance, 6)
	require.NoError(t, err)
	require.Len(t, frames, 6)

	for _, f := range frames {
		require.Equal(t, o.Drawing.Bounds(), f.Bounds())
	}

	// Первый кадр полностью прозрачен, последний совпадает с рисунком
	near(t, backgroundColor, frames[0].At(20, 100))
	near(t, green, frames[5].At(20, 10))
	near(t, green, frames[5].At(20, 119))
}

func TestAppearanceFrames_Errors(t *testing.T) {
	_, err := AppearanceFrames(nil, entity.DefaultAppearance, 4)
	require.Error(t, err)

	frames, err := AppearanceFrames(solidOverlay(4, 4, leafGray), entity.DefaultAppearance, 0)
	require.NoError(t, err)
	require.Len(t, frames, 2)
}

func TestEncodeGIF(t *testing.T) {
	o := solidOverlay(16, 16, leafGray)
	frames, err := AppearanceFrames(o, entity.DefaultAppearance, 4)
	require.NoError(t, err)

	data, err := EncodeGIF(frames, time.Second)
	require.NoError(t, err)

	anim, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, anim.Image, 4)
	require.Equal(t, []int{25, 25, 25, 25}, anim.Delay)

	_, err = EncodeGIF(nil, time.Second)
	require.Error(t, err)
}

func TestEncodePNG(t *testing.T) {
	o := solidOverlay(12, 7, leafGray)
	data, err := EncodePNG(o)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 12, 7), img.Bounds())

	_, err = EncodePNG(nil)
	require.Error(t, err)
}
