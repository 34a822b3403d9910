//go:build gocv
// +build gocv

package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"leaf-detect/internal/domain/entity"
	"leaf-detect/internal/domain/port"
)

// GoCVAvailable сообщает, собран ли рендерер OpenCV.
const GoCVAvailable = true

// GoCVRenderer рисует детекции средствами OpenCV.
type GoCVRenderer struct {
	handles port.HandleStore
}

// NewGoCVRenderer создаёт рендерер на OpenCV.
func NewGoCVRenderer(handles port.HandleStore) *GoCVRenderer {
	return &GoCVRenderer{handles: handles}
}

// Render рисует рамки и подписи и возвращает картинку с областями подсказок.
func (r *GoCVRenderer) Render(img entity.SelectedImage, detections entity.DetectionSet) (*entity.Overlay, error) {
	data, err := r.handles.Open(img.Handle)
	if err != nil {
		return nil, err
	}

	mat, err := decodeToMat(data)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	for _, d := range detections {
		c := StrokeColor(d.ClassName)
		rgba := color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
		rect := d.Bounds()
		gocv.Rectangle(&mat, rect, rgba, strokeWidth)
		gocv.PutText(&mat, d.Label(), image.Pt(rect.Min.X, rect.Min.Y-labelOffset), gocv.FontHersheySimplex, 0.5, rgba, 1)
	}

	out, err := mat.ToImage()
	if err != nil {
		return nil, err
	}

	return &entity.Overlay{
		Drawing:    imaging.Clone(out),
		HitRegions: HitRegions(detections),
	}, nil
}

// decodeToMat превращает байты изображения в gocv.Mat.
func decodeToMat(imageData []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(imageData, gocv.IMReadColor|gocv.IMReadIgnoreOrientation)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to decode image: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), errors.New("failed to decode image")
	}
	return mat, nil
}

// Проверка реализации интерфейса
var _ port.OverlayRenderer = (*GoCVRenderer)(nil)
