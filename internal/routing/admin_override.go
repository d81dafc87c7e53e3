package routing

import (
	"context"
	"errors"
	"sync"
	"time"

	"voice-platform/pkg/logger"
)

// OverrideEngine applies silent, expiry-based menu overrides.
//
// An operator can force every IVR input to one URL for a bounded time
// (outage announcement, closed-office voicemail). Requirements:
// - Silent routing: the caller hears the target flow, never a hint that an override is active.
// - Expiry based: overrides must be time-bounded.
// - Internal audit logging: every applied override is recorded.
type OverrideEngine struct {
	Store OverrideStore
	Audit AuditLogger
	Now   func() time.Time
}

// OverrideStore resolves the currently active override.
type OverrideStore interface {
	// GetActiveOverride returns (Override{}, false, nil) when none is set.
	GetActiveOverride(ctx context.Context, now time.Time) (Override, bool, error)
}

// AuditLogger records internal-only audit events.
type AuditLogger interface {
	LogOverrideApplied(ctx context.Context, e OverrideAuditEvent) error
}

type Override struct {
	// OverrideID is optional but recommended for correlating audit logs.
	OverrideID string `json:"override_id,omitempty"`

	// RedirectTo is the forced target URL.
	RedirectTo string `json:"redirect_to"`

	ExpiresAt time.Time `json:"expires_at"`

	// SetBy is the operator who created the override.
	SetBy string `json:"set_by,omitempty"`
}

type OverrideAuditEvent struct {
	OverrideID string

	CallSid   string
	From      string
	To        string
	IPAddress string

	RedirectTo string
	AppliedAt  time.Time
	ExpiresAt  time.Time
}

func NewOverrideEngine(store OverrideStore, audit AuditLogger) *OverrideEngine {
	return &OverrideEngine{Store: store, Audit: audit, Now: time.Now}
}

// Decide returns (decision, true, nil) if an active override was applied.
// Returns (Decision{}, false, nil) if no override applies.
func (e *OverrideEngine) Decide(ctx context.Context, in Input) (Decision, bool, error) {
	if e.Store == nil {
		return Decision{}, false, nil
	}
	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}

	o, ok, err := e.Store.GetActiveOverride(ctx, now)
	if err != nil {
		return Decision{}, false, err
	}
	if !ok {
		return Decision{}, false, nil
	}
	if !o.ExpiresAt.After(now) {
		// Treat as not found; store should ideally filter these out.
		return Decision{}, false, nil
	}
	if o.RedirectTo == "" {
		return Decision{}, false, errors.New("routing: override redirect_to empty")
	}

	// Silent routing: do NOT expose any special Reason.
	d := Decision{Action: ActionRedirect, URL: o.RedirectTo}

	if e.Audit != nil {
		err := e.Audit.LogOverrideApplied(ctx, OverrideAuditEvent{
			OverrideID: o.OverrideID,
			CallSid:    in.CallSid,
			From:       in.From,
			To:         in.To,
			IPAddress:  ClientIPFromContext(ctx),
			RedirectTo: o.RedirectTo,
			AppliedAt:  now,
			ExpiresAt:  o.ExpiresAt,
		})
		if err != nil {
			logger.From(ctx).Warn("audit override failed", "override_id", o.OverrideID, "call_sid", in.CallSid, "err", err)
		}
	}
	return d, true, nil
}

// MemoryOverrideStore holds at most one override in process memory.
type MemoryOverrideStore struct {
	mu  sync.RWMutex
	cur *Override
}

func NewMemoryOverrideStore() *MemoryOverrideStore { return &MemoryOverrideStore{} }

func (s *MemoryOverrideStore) GetActiveOverride(ctx context.Context, now time.Time) (Override, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur == nil || !s.cur.ExpiresAt.After(now) {
		return Override{}, false, nil
	}
	return *s.cur, true, nil
}

// Set replaces the current override.
func (s *MemoryOverrideStore) Set(o Override) error {
	if o.RedirectTo == "" {
		return errors.New("routing: override redirect_to required")
	}
	if o.ExpiresAt.IsZero() {
		return errors.New("routing: override expires_at required")
	}
	s.mu.Lock()
	s.cur = &o
	s.mu.Unlock()
	return nil
}

// Clear removes the current override. It reports whether one was set.
func (s *MemoryOverrideStore) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.cur != nil
	s.cur = nil
	return had
}
