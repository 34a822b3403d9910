package app

import (
	"context"
	"sync"
	"time"
)

// FlowFactory создаёт новый сценарий загрузки для чата.
type FlowFactory func() *UploadFlow

// SessionService хранит по одному сценарию загрузки на чат.
type SessionService struct {
	mu       sync.Mutex
	flows    map[int64]*UploadFlow
	lastUsed map[int64]time.Time
	factory  FlowFactory
	now      func() time.Time
}

func NewSessionService(factory FlowFactory) *SessionService {
	return &SessionService{
		flows:    make(map[int64]*UploadFlow),
		lastUsed: make(map[int64]time.Time),
		factory:  factory,
		now:      time.Now,
	}
}

// Flow возвращает сценарий чата, создавая его при первом обращении.
func (s *SessionService) Flow(chatID int64) (*UploadFlow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastUsed[chatID] = s.now()
	if flow, ok := s.flows[chatID]; ok {
		return flow, false
	}

	flow := s.factory()
	s.flows[chatID] = flow
	return flow, true
}

func (s *SessionService) Lookup(chatID int64) (*UploadFlow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flow, ok := s.flows[chatID]
	if ok {
		s.lastUsed[chatID] = s.now()
	}
	return flow, ok
}

// End закрывает сценарий чата и освобождает выбранное изображение.
func (s *SessionService) End(chatID int64) bool {
	s.mu.Lock()
	flow, ok := s.flows[chatID]
	delete(s.flows, chatID)
	delete(s.lastUsed, chatID)
	s.mu.Unlock()

	if ok {
		flow.Close()
	}
	return ok
}

// EvictIdle закрывает сценарии, к которым не обращались дольше maxIdle.
// Сценарий с незавершённым анализом не трогается.
func (s *SessionService) EvictIdle(maxIdle time.Duration) int {
	s.mu.Lock()
	now := s.now()
	var idle []*UploadFlow
	for chatID, flow := range s.flows {
		if now.Sub(s.lastUsed[chatID]) < maxIdle || flow.Snapshot().InFlight {
			continue
		}
		idle = append(idle, flow)
		delete(s.flows, chatID)
		delete(s.lastUsed, chatID)
	}
	s.mu.Unlock()

	for _, flow := range idle {
		flow.Close()
	}
	return len(idle)
}

// RunEviction периодически вызывает EvictIdle до отмены ctx.
func (s *SessionService) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle(maxIdle)
		}
	}
}

func (s *SessionService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.flows)
}

// Close завершает все сценарии.
func (s *SessionService) Close() {
	s.mu.Lock()
	flows := s.flows
	s.flows = make(map[int64]*UploadFlow)
	s.lastUsed = make(map[int64]time.Time)
	s.mu.Unlock()

	for _, flow := range flows {
		flow.Close()
	}
}
