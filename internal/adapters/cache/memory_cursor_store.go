package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ofertascauca/senabot/internal/domain/entities"
	"github.com/ofertascauca/senabot/internal/domain/providers"
)

// MemoryCursorStore keeps cursors in process memory. The default backend;
// state does not survive restarts.
type MemoryCursorStore struct {
	mu      sync.RWMutex
	cursors map[string]*entities.Cursor
	ttl     time.Duration
}

// NewMemoryCursorStore creates an in-memory store. ttlSeconds <= 0 disables
// expiry.
func NewMemoryCursorStore(ttlSeconds int) *MemoryCursorStore {
	return &MemoryCursorStore{
		cursors: make(map[string]*entities.Cursor),
		ttl:     time.Duration(ttlSeconds) * time.Second,
	}
}

func (s *MemoryCursorStore) Get(ctx context.Context, conversationID string) (*entities.Cursor, error) {
	s.mu.RLock()
	cursor, ok := s.cursors[conversationID]
	s.mu.RUnlock()
	if !ok {
		return nil, providers.ErrCursorNotFound
	}
	if s.ttl > 0 && time.Since(cursor.UpdatedAt) > s.ttl {
		s.mu.Lock()
		delete(s.cursors, conversationID)
		s.mu.Unlock()
		return nil, providers.ErrCursorNotFound
	}
	copied := *cursor
	return &copied, nil
}

func (s *MemoryCursorStore) Put(ctx context.Context, conversationID string, cursor *entities.Cursor) error {
	copied := *cursor
	s.mu.Lock()
	s.cursors[conversationID] = &copied
	s.mu.Unlock()
	return nil
}

func (s *MemoryCursorStore) Delete(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	delete(s.cursors, conversationID)
	s.mu.Unlock()
	return nil
}
