package entities

import (
	"time"
)

// Session states for the onboarding flow.
const (
	SessionTermsPending = "TERMS_PENDING"
	SessionCompleted    = "COMPLETED"
	SessionDeclined     = "DECLINED"
)

// User represents a WhatsApp contact known to the bot.
type User struct {
	ID              string    `json:"id" db:"id"`
	WaNumber        string    `json:"wa_number" db:"wa_number"`
	Name            string    `json:"name" db:"name"`
	City            string    `json:"city" db:"city"`
	ConsentAccepted bool      `json:"consent_accepted" db:"consent_accepted"`
	SessionState    string    `json:"session_state" db:"session_state"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// ConsentEvent records one consent decision for auditing.
type ConsentEvent struct {
	ID        string                 `json:"id" db:"id"`
	UserID    string                 `json:"user_id" db:"user_id"`
	Decision  string                 `json:"decision" db:"decision"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// Interaction is a lightweight log row for one inbound or outbound message.
// Only the truncated body and routing labels are persisted, never payloads.
type Interaction struct {
	ID          string                 `json:"id" db:"id"`
	UserID      string                 `json:"user_id" db:"user_id"`
	Direction   string                 `json:"direction" db:"direction"` // "in" or "out"
	MessageType string                 `json:"message_type" db:"message_type"`
	Body        string                 `json:"body" db:"body"` // truncated to 255
	Intent      string                 `json:"intent" db:"intent"`
	ProgramCode string                 `json:"program_code" db:"program_code"`
	WaMessageID string                 `json:"wa_message_id" db:"wa_message_id"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
}
