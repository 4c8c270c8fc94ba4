package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"

	"github.com/ofertascauca/senabot/internal/domain/entities"
	"github.com/ofertascauca/senabot/internal/domain/repositories"
	"github.com/ofertascauca/senabot/internal/infrastructure/clients/postgres"
	apperrors "github.com/ofertascauca/senabot/pkg/errors"
)

// UserAdapter implements user persistence in Postgres.
type UserAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewUserAdapter creates a new user adapter.
func NewUserAdapter(client *postgres.Client) repositories.UserRepository {
	return &UserAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByWaNumber retrieves a user by WhatsApp number.
func (a *UserAdapter) GetByWaNumber(ctx context.Context, waNumber string) (*entities.User, error) {
	query, args, err := a.db.From("users").
		Prepared(true).
		Select("id", "wa_number", "name", "city", "consent_accepted", "session_state", "created_at", "updated_at").
		Where(goqu.C("wa_number").Eq(waNumber)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build user query", err)
	}

	var user entities.User
	var name, city sql.NullString
	row := a.client.DB().QueryRowContext(ctx, query, args...)
	err = row.Scan(&user.ID, &user.WaNumber, &name, &city,
		&user.ConsentAccepted, &user.SessionState, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("user %s not found", waNumber))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get user", err)
	}
	user.Name = name.String
	user.City = city.String
	return &user, nil
}

// Create inserts a new user.
func (a *UserAdapter) Create(ctx context.Context, user *entities.User) error {
	if user == nil {
		return apperrors.NewInternalError("user is nil", fmt.Errorf("user is nil"))
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.SessionState == "" {
		user.SessionState = entities.SessionTermsPending
	}

	record := goqu.Record{
		"id":               user.ID,
		"wa_number":        user.WaNumber,
		"name":             sql.NullString{String: user.Name, Valid: user.Name != ""},
		"city":             sql.NullString{String: user.City, Valid: user.City != ""},
		"consent_accepted": user.ConsentAccepted,
		"session_state":    user.SessionState,
		"created_at":       user.CreatedAt,
		"updated_at":       user.UpdatedAt,
	}

	query, args, err := a.db.Insert("users").Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build user insert query", err)
	}
	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create user", err)
	}
	return nil
}

// UpdateSession updates consent flag and session state.
func (a *UserAdapter) UpdateSession(ctx context.Context, user *entities.User) error {
	if user == nil {
		return apperrors.NewInternalError("user is nil", fmt.Errorf("user is nil"))
	}
	user.UpdatedAt = time.Now().UTC()

	query, args, err := a.db.Update("users").
		Prepared(true).
		Set(goqu.Record{
			"consent_accepted": user.ConsentAccepted,
			"session_state":    user.SessionState,
			"updated_at":       user.UpdatedAt,
		}).
		Where(goqu.C("id").Eq(user.ID)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build user update query", err)
	}
	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to update user session", err)
	}
	return nil
}

// RecordConsent appends one consent event.
func (a *UserAdapter) RecordConsent(ctx context.Context, event *entities.ConsentEvent) error {
	if event == nil {
		return apperrors.NewInternalError("consent event is nil", fmt.Errorf("consent event is nil"))
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	metadata, err := marshalMetadata(event.Metadata)
	if err != nil {
		return apperrors.NewInternalError("failed to encode consent metadata", err)
	}

	record := goqu.Record{
		"id":         event.ID,
		"user_id":    event.UserID,
		"decision":   event.Decision,
		"metadata":   metadata,
		"created_at": event.CreatedAt,
	}

	query, args, err := a.db.Insert("consent_events").Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build consent insert query", err)
	}
	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to record consent", err)
	}
	return nil
}

func marshalMetadata(metadata map[string]interface{}) (sql.NullString, error) {
	if len(metadata) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
