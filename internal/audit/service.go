package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// There are no Update or Delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records internal audit information.
//
// Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.Type != EventTypeOverride && e.CallSid == "" && e.RecordingSid == "" && e.ActorUserID == "" {
		// Every non-override event must point at something or someone.
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogWebhook records an accepted provider callback.
func (s *Service) LogWebhook(ctx context.Context, kind, callSid, recordingSid, ip, metadata string) error {
	return s.Append(ctx, Event{
		Type:         EventTypeWebhook,
		IPAddress:    ip,
		CallSid:      callSid,
		RecordingSid: recordingSid,
		Message:      kind,
		Metadata:     metadata,
	})
}

// LogCallAction records an outbound action requested by an API user.
func (s *Service) LogCallAction(ctx context.Context, actorUserID, actorRole, ip, action, callSid, recordingSid, metadata string) error {
	return s.Append(ctx, Event{
		Type:         EventTypeCallAction,
		ActorUserID:  actorUserID,
		ActorRole:    actorRole,
		IPAddress:    ip,
		CallSid:      callSid,
		RecordingSid: recordingSid,
		Message:      action,
		Metadata:     metadata,
	})
}
