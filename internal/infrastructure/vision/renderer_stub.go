//go:build !gocv
// +build !gocv

package vision

import (
	"errors"

	"leaf-detect/internal/domain/entity"
	"leaf-detect/internal/domain/port"
)

// GoCVAvailable сообщает, собран ли рендерер OpenCV.
const GoCVAvailable = false

// ErrGoCVDisabled возвращается рендерером OpenCV в сборке без тега gocv.
var ErrGoCVDisabled = errors.New("gocv build tag is not enabled")

// GoCVRenderer заглушка рендерера OpenCV.
type GoCVRenderer struct {
	handles port.HandleStore
}

// NewGoCVRenderer создаёт рендерер-заглушку (без OpenCV).
func NewGoCVRenderer(handles port.HandleStore) *GoCVRenderer {
	return &GoCVRenderer{handles: handles}
}

// Render возвращает ошибку, если сборка без тега gocv.
func (r *GoCVRenderer) Render(entity.SelectedImage, entity.DetectionSet) (*entity.Overlay, error) {
	return nil, ErrGoCVDisabled
}

// Проверка реализации интерфейса
var _ port.OverlayRenderer = (*GoCVRenderer)(nil)
