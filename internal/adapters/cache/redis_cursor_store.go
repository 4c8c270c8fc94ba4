package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ofertascauca/senabot/internal/domain/entities"
	"github.com/ofertascauca/senabot/internal/domain/providers"
	redisclient "github.com/ofertascauca/senabot/internal/infrastructure/clients/redis"
)

// RedisCursorStore keeps cursors in Redis so pagination state survives
// restarts and is shared across replicas.
type RedisCursorStore struct {
	client *redisclient.Client
	ttl    time.Duration
}

func NewRedisCursorStore(client *redisclient.Client, ttlSeconds int) *RedisCursorStore {
	return &RedisCursorStore{
		client: client,
		ttl:    time.Duration(ttlSeconds) * time.Second,
	}
}

func cursorKey(conversationID string) string {
	return "cursor:" + conversationID
}

func (s *RedisCursorStore) Get(ctx context.Context, conversationID string) (*entities.Cursor, error) {
	data, err := s.client.Client().Get(ctx, cursorKey(conversationID)).Bytes()
	if err == redis.Nil {
		return nil, providers.ErrCursorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor: %w", err)
	}
	var cursor entities.Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("failed to decode cursor: %w", err)
	}
	return &cursor, nil
}

func (s *RedisCursorStore) Put(ctx context.Context, conversationID string, cursor *entities.Cursor) error {
	data, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("failed to encode cursor: %w", err)
	}
	if err := s.client.Client().Set(ctx, cursorKey(conversationID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cursor: %w", err)
	}
	return nil
}

func (s *RedisCursorStore) Delete(ctx context.Context, conversationID string) error {
	if err := s.client.Client().Del(ctx, cursorKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cursor: %w", err)
	}
	return nil
}
