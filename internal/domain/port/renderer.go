package port

import "leaf-detect/internal/domain/entity"

// OverlayRenderer интерфейс отрисовки детекций поверх изображения
type OverlayRenderer interface {
	// Render рисует прямоугольники и подписи и возвращает области подсказок
	Render(img entity.SelectedImage, detections entity.DetectionSet) (*entity.Overlay, error)
}
