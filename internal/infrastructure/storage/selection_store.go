package storage

import (
	"sync"

	"github.com/google/uuid"

	"leaf-detect/internal/domain/entity"
	"leaf-detect/internal/domain/port"
)

// SelectionStore хранит одно текущее выбранное изображение
type SelectionStore struct {
	mu      sync.Mutex
	handles port.HandleStore
	current entity.SelectedImage
}

// NewSelectionStore создаёт хранилище поверх реестра handle-ов
func NewSelectionStore(handles port.HandleStore) *SelectionStore {
	return &SelectionStore{handles: handles}
}

// Select заменяет текущее изображение. Для пустого файла ErrInvalidSelection, состояние не меняется.
func (s *SelectionStore) Select(name string, data []byte) (entity.SelectedImage, error) {
	if len(data) == 0 {
		return entity.SelectedImage{}, entity.ErrInvalidSelection
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Старый handle освобождаем до создания нового
	if !s.current.IsZero() {
		s.handles.Release(s.current.Handle)
		s.current = entity.SelectedImage{}
	}

	handle, err := s.handles.Create(data)
	if err != nil {
		return entity.SelectedImage{}, err
	}

	// Raw разделяет буфер с реестром: копия байтов одна на изображение
	raw, err := s.handles.Open(handle)
	if err != nil {
		s.handles.Release(handle)
		return entity.SelectedImage{}, err
	}

	s.current = entity.SelectedImage{
		ID:     uuid.NewString(),
		Name:   name,
		Raw:    raw,
		Handle: handle,
	}

	return s.current, nil
}

// Current возвращает текущее изображение
func (s *SelectionStore) Current() (entity.SelectedImage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current, !s.current.IsZero()
}

// Release освобождает текущее изображение
func (s *SelectionStore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.IsZero() {
		return
	}
	s.handles.Release(s.current.Handle)
	s.current = entity.SelectedImage{}
}

// Проверка реализации интерфейса
var _ port.ImageSelector = (*SelectionStore)(nil)
