package entity

// DisplayHandle непрозрачная ссылка на байты изображения в реестре (аналог blob URL).
type DisplayHandle string

// SelectedImage изображение, выбранное пользователем.
// Принадлежит контроллеру загрузки, при замене handle освобождается.
type SelectedImage struct {
	ID     string        // уникальная идентичность выбора
	Name   string        // исходное имя файла
	Raw    []byte        // байты файла
	Handle DisplayHandle // ссылка для отображения
}

// IsZero сообщает, что изображение не выбрано.
func (s SelectedImage) IsZero() bool {
	return s.ID == ""
}
