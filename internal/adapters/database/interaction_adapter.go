package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/ofertascauca/senabot/internal/domain/entities"
	"github.com/ofertascauca/senabot/internal/domain/repositories"
	"github.com/ofertascauca/senabot/internal/infrastructure/clients/postgres"
	apperrors "github.com/ofertascauca/senabot/pkg/errors"
)

const maxInteractionBody = 255

// InteractionAdapter implements the message log in Postgres.
type InteractionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewInteractionAdapter creates a new interaction adapter.
func NewInteractionAdapter(client *postgres.Client) repositories.InteractionRepository {
	return &InteractionAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Log appends one interaction row. Bodies are truncated so the log never
// stores full message payloads.
func (a *InteractionAdapter) Log(ctx context.Context, interaction *entities.Interaction) error {
	if interaction == nil {
		return apperrors.NewInternalError("interaction is nil", fmt.Errorf("interaction is nil"))
	}
	if interaction.ID == "" {
		interaction.ID = uuid.New().String()
	}
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = time.Now().UTC()
	}

	body := interaction.Body
	if runes := []rune(body); len(runes) > maxInteractionBody {
		body = string(runes[:maxInteractionBody])
	}

	metadata, err := marshalMetadata(interaction.Metadata)
	if err != nil {
		return apperrors.NewInternalError("failed to encode interaction metadata", err)
	}

	record := goqu.Record{
		"id":            interaction.ID,
		"user_id":       interaction.UserID,
		"direction":     interaction.Direction,
		"message_type":  interaction.MessageType,
		"body":          sql.NullString{String: body, Valid: body != ""},
		"intent":        sql.NullString{String: interaction.Intent, Valid: interaction.Intent != ""},
		"program_code":  sql.NullString{String: interaction.ProgramCode, Valid: interaction.ProgramCode != ""},
		"wa_message_id": sql.NullString{String: interaction.WaMessageID, Valid: interaction.WaMessageID != ""},
		"metadata":      metadata,
		"created_at":    interaction.CreatedAt,
	}

	query, args, err := a.db.Insert("interactions").Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build interaction insert query", err)
	}
	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to log interaction", err)
	}
	return nil
}
