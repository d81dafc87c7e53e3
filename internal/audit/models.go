package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - actor and ip capture are best-effort; do not block call handling on audit failures.
//
// Storage (Postgres): table voice_audit_events, INSERT-only. See PostgresRepo.Migrate.
type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated API user causing the event (empty for provider webhooks).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress is the resolved client IP (the provider's edge for webhooks).
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers (optional, depending on the event type).
	CallSid      string `json:"call_sid,omitempty" db:"call_sid"`
	RecordingSid string `json:"recording_sid,omitempty" db:"recording_sid"`
	OverrideID   string `json:"override_id,omitempty" db:"override_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	// EventTypeWebhook is a provider callback that was accepted.
	EventTypeWebhook EventType = "webhook_received"
	// EventTypeCallAction is an outbound action requested through the API.
	EventTypeCallAction EventType = "call_action"
	EventTypeOverride   EventType = "ivr_override"
)
