package repositories

import (
	"context"

	"github.com/ofertascauca/senabot/internal/domain/entities"
)

// UserRepository persists WhatsApp users and their consent state.
type UserRepository interface {
	// GetByWaNumber retrieves a user by WhatsApp number. Returns a not-found
	// error when the number is unknown.
	GetByWaNumber(ctx context.Context, waNumber string) (*entities.User, error)

	// Create inserts a new user in TERMS_PENDING state.
	Create(ctx context.Context, user *entities.User) error

	// UpdateSession updates consent flag and session state together.
	UpdateSession(ctx context.Context, user *entities.User) error

	// RecordConsent appends one consent event to the audit trail.
	RecordConsent(ctx context.Context, event *entities.ConsentEvent) error
}

// InteractionRepository stores the message log.
type InteractionRepository interface {
	// Log appends one inbound or outbound interaction.
	Log(ctx context.Context, interaction *entities.Interaction) error
}
