package port

import (
	"context"

	"leaf-detect/internal/domain/entity"
)

// DetectionClient интерфейс удалённого сервиса детекции
type DetectionClient interface {
	// Analyze загружает изображение и запрашивает предсказания одним действием
	Analyze(ctx context.Context, img entity.SelectedImage, threshold float64) (entity.DetectionSet, error)
}
