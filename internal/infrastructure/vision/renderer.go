package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"leaf-detect/internal/domain/entity"
	"leaf-detect/internal/domain/port"
)

const (
	strokeWidth = 3 // толщина рамки в пикселях
	labelOffset = 5 // базовая линия подписи над рамкой
)

// Renderer рисует детекции поверх исходного изображения без внешних библиотек компьютерного зрения.
type Renderer struct {
	handles port.HandleStore
}

// NewRenderer создаёт рендерер, читающий изображения из реестра handle-ов.
func NewRenderer(handles port.HandleStore) *Renderer {
	return &Renderer{handles: handles}
}

// Render рисует рамки и подписи в координатах исходного изображения.
// Повторный вызов с теми же данными даёт тот же рисунок.
func (r *Renderer) Render(img entity.SelectedImage, detections entity.DetectionSet) (*entity.Overlay, error) {
	src, err := r.decode(img)
	if err != nil {
		return nil, err
	}

	// Холст ровно (W, H) исходника, базовое изображение в нижнем слое.
	canvas := imaging.Clone(src)

	for _, d := range detections {
		c := StrokeColor(d.ClassName)
		strokeRect(canvas, d.Bounds(), c, strokeWidth)
		drawLabel(canvas, d, c)
	}

	return &entity.Overlay{
		Drawing:    canvas,
		HitRegions: HitRegions(detections),
	}, nil
}

// HitRegions строит по одной области подсказки на детекцию.
func HitRegions(detections entity.DetectionSet) []entity.HitRegion {
	if len(detections) == 0 {
		return nil
	}
	regions := make([]entity.HitRegion, 0, len(detections))
	for _, d := range detections {
		regions = append(regions, entity.NewHitRegion(d))
	}
	return regions
}

// decode превращает handle изображения в image.Image.
func (r *Renderer) decode(img entity.SelectedImage) (image.Image, error) {
	data, err := r.handles.Open(img.Handle)
	if err != nil {
		return nil, err
	}

	// Без поворота по EXIF: координаты сервиса заданы в пикселях файла.
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return src, nil
}

// strokeRect рисует рамку заданной толщины, центрированную по контуру прямоугольника.
func strokeRect(dst draw.Image, r image.Rectangle, c color.Color, width int) {
	half := width / 2
	src := image.NewUniform(c)

	x0, y0 := r.Min.X-half, r.Min.Y-half
	x1, y1 := r.Max.X-half, r.Max.Y-half

	bands := []image.Rectangle{
		image.Rect(x0, y0, x1+width, y0+width), // верх
		image.Rect(x0, y1, x1+width, y1+width), // низ
		image.Rect(x0, y0, x0+width, y1+width), // лево
		image.Rect(x1, y0, x1+width, y1+width), // право
	}
	for _, band := range bands {
		draw.Draw(dst, band, src, image.Point{}, draw.Src)
	}
}

// drawLabel пишет "{class} ({confidence}%)" над рамкой.
func drawLabel(dst draw.Image, d entity.Detection, c color.Color) {
	b := d.Bounds()
	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(b.Min.X, b.Min.Y-labelOffset),
	}
	drawer.DrawString(d.Label())
}

// Проверка реализации интерфейса
var _ port.OverlayRenderer = (*Renderer)(nil)
