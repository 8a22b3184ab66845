// Package presence считает активные WebSocket соединения пользователей.
// Пользователь онлайн, пока у него есть хотя бы одно соединение на любом экземпляре сервера.
package presence

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Store отслеживает соединения пользователей.
type Store interface {
	// Connect учитывает новое соединение и сообщает, было ли оно первым.
	Connect(ctx context.Context, userID uuid.UUID) (first bool, err error)
	// Disconnect снимает соединение и сообщает, было ли оно последним.
	Disconnect(ctx context.Context, userID uuid.UUID) (last bool, err error)
	IsOnline(ctx context.Context, userID uuid.UUID) (bool, error)
}

// MemoryStore хранит счётчики в памяти процесса. Используется без Redis.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[uuid.UUID]int)}
}

func (s *MemoryStore) Connect(_ context.Context, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[userID]++
	return s.counts[userID] == 1, nil
}

func (s *MemoryStore) Disconnect(_ context.Context, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.counts[userID]
	if !ok {
		return false, nil
	}
	if n <= 1 {
		delete(s.counts, userID)
		return true, nil
	}
	s.counts[userID] = n - 1
	return false, nil
}

func (s *MemoryStore) IsOnline(_ context.Context, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[userID] > 0, nil
}
