package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"math"
	"time"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"

	"leaf-detect/internal/domain/entity"
)

// DefaultFrameCount число кадров анимации появления по умолчанию.
const DefaultFrameCount = 12

// AppearanceFrames строит кадры появления рисунка: сдвиг снизу вверх и рост непрозрачности.
// Последний кадр совпадает с самим рисунком.
func AppearanceFrames(o *entity.Overlay, a entity.Appearance, n int) ([]image.Image, error) {
	if o == nil || o.Drawing == nil {
		return nil, errors.New("empty overlay")
	}
	if n < 2 {
		n = 2
	}

	w, h := o.Width(), o.Height()
	bg := imaging.New(w, h, backgroundColor)

	frames := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		opacity := a.FromOpacity + (1-a.FromOpacity)*t
		dy := int(math.Round(float64(a.FromOffsetY) * (1 - t)))

		fg := transform.Translate(o.Drawing, 0, dy)
		frames = append(frames, blend.Opacity(bg, fg, opacity))
	}

	return frames, nil
}

// EncodeGIF собирает кадры в анимацию, проигрываемую один раз за duration.
func EncodeGIF(frames []image.Image, duration time.Duration) ([]byte, error) {
	if len(frames) == 0 {
		return nil, errors.New("no frames")
	}

	// Задержка GIF измеряется в сотых долях секунды
	delay := int(duration / time.Duration(len(frames)) / (10 * time.Millisecond))
	if delay < 1 {
		delay = 1
	}

	anim := &gif.GIF{LoopCount: -1}
	for _, frame := range frames {
		bounds := frame.Bounds()
		paletted := image.NewPaletted(bounds, palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, bounds, frame, bounds.Min)
		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, delay)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("failed to encode animation: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNG кодирует рисунок в PNG.
func EncodePNG(o *entity.Overlay) ([]byte, error) {
	if o == nil || o.Drawing == nil {
		return nil, errors.New("empty overlay")
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, o.Drawing, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
