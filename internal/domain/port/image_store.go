package port

import "leaf-detect/internal/domain/entity"

// HandleStore интерфейс реестра handle-ов изображений
type HandleStore interface {
	// Create регистрирует байты и возвращает новый handle
	Create(data []byte) (entity.DisplayHandle, error)

	// Open возвращает байты по handle
	Open(handle entity.DisplayHandle) ([]byte, error)

	// Release освобождает handle
	Release(handle entity.DisplayHandle)
}

// ImageSelector интерфейс хранилища выбранного изображения
type ImageSelector interface {
	// Select заменяет текущее изображение, освобождая предыдущий handle
	Select(name string, data []byte) (entity.SelectedImage, error)

	// Current возвращает текущее изображение
	Current() (entity.SelectedImage, bool)

	// Release освобождает текущее изображение
	Release()
}
