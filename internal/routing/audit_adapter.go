package routing

import (
	"context"
	"encoding/json"

	"voice-platform/internal/audit"
)

// AuditAdapter bridges routing's override audit hook to the shared audit.Service.
type AuditAdapter struct {
	Audit *audit.Service
}

func (a AuditAdapter) LogOverrideApplied(ctx context.Context, e OverrideAuditEvent) error {
	if a.Audit == nil {
		return nil
	}
	meta, _ := json.Marshal(map[string]any{
		"redirect_to": e.RedirectTo,
		"expires_at":  e.ExpiresAt.UTC(),
		"from":        e.From,
		"to":          e.To,
	})
	return a.Audit.Append(ctx, audit.Event{
		Type:       audit.EventTypeOverride,
		IPAddress:  e.IPAddress,
		CallSid:    e.CallSid,
		OverrideID: e.OverrideID,
		Message:    "ivr override applied",
		Metadata:   string(meta),
	})
}
