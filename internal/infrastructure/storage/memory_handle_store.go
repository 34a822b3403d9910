package storage

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"leaf-detect/internal/domain/entity"
	"leaf-detect/internal/domain/port"
)

const handlePrefix = "blob:"

// MemoryHandleStore in-memory реестр handle-ов изображений
type MemoryHandleStore struct {
	mu      sync.RWMutex
	handles map[entity.DisplayHandle][]byte
}

// NewMemoryHandleStore создаёт пустой реестр
func NewMemoryHandleStore() *MemoryHandleStore {
	return &MemoryHandleStore{
		handles: make(map[entity.DisplayHandle][]byte),
	}
}

// Create регистрирует копию байтов и возвращает новый handle
func (s *MemoryHandleStore) Create(data []byte) (entity.DisplayHandle, error) {
	if len(data) == 0 {
		return "", entity.ErrInvalidSelection
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	handle := entity.DisplayHandle(handlePrefix + uuid.NewString())

	s.mu.Lock()
	s.handles[handle] = buf
	s.mu.Unlock()

	return handle, nil
}

// Open возвращает байты по handle
func (s *MemoryHandleStore) Open(handle entity.DisplayHandle) ([]byte, error) {
	s.mu.RLock()
	data, exists := s.handles[handle]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("open %s: %w", handle, entity.ErrHandleReleased)
	}

	return data, nil
}

// Release освобождает handle. Повторный вызов ничего не делает.
func (s *MemoryHandleStore) Release(handle entity.DisplayHandle) {
	s.mu.Lock()
	delete(s.handles, handle)
	s.mu.Unlock()
}

// Len возвращает число живых handle-ов
func (s *MemoryHandleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.handles)
}

// Проверка реализации интерфейса
var _ port.HandleStore = (*MemoryHandleStore)(nil)
