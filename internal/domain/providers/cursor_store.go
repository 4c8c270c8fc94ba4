package providers

import (
	"context"
	"errors"

	"github.com/ofertascauca/senabot/internal/domain/entities"
)

// ErrCursorNotFound is returned when a conversation has no stored cursor.
var ErrCursorNotFound = errors.New("cursor not found")

// CursorStore persists per-conversation pagination state. Implementations
// must be safe for concurrent use; distinct conversations never share state.
type CursorStore interface {
	// Get returns the cursor for a conversation or ErrCursorNotFound.
	Get(ctx context.Context, conversationID string) (*entities.Cursor, error)

	// Put stores a cursor, replacing any previous one.
	Put(ctx context.Context, conversationID string, cursor *entities.Cursor) error

	// Delete drops a conversation's cursor. Missing cursors are not an error.
	Delete(ctx context.Context, conversationID string) error
}
