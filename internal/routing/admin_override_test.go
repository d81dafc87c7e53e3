package routing

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"voice-platform/pkg/logger"
)

type memAudit struct {
	called bool
	event  OverrideAuditEvent
	err    error
}

func (m *memAudit) LogOverrideApplied(ctx context.Context, e OverrideAuditEvent) error {
	m.called = true
	m.event = e
	return m.err
}

func TestOverrideEngine_AppliesWhenActiveAndSilent(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()

	store := NewMemoryOverrideStore()
	if err := store.Set(Override{OverrideID: "o1", RedirectTo: "https://h/closed", ExpiresAt: now.Add(5 * time.Minute)}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	a := &memAudit{}
	e := NewOverrideEngine(store, a)
	e.Now = func() time.Time { return now }

	ctx := WithClientIP(context.Background(), "10.0.0.1")
	dec, applied, err := e.Decide(ctx, Input{CallSid: "CA1", From: "+1", To: "+2", Digits: "1"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !applied {
		t.Fatalf("expected applied")
	}
	if dec.Action != ActionRedirect || dec.URL != "https://h/closed" {
		t.Fatalf("unexpected decision: %+v", dec)
	}
	if dec.Reason != "" {
		t.Fatalf("expected silent decision (no reason), got %q", dec.Reason)
	}
	if !a.called || a.event.CallSid != "CA1" || a.event.IPAddress != "10.0.0.1" {
		t.Fatalf("expected audit with call and ip, got %+v", a.event)
	}
}

func TestOverrideEngine_IgnoresExpired(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	store := NewMemoryOverrideStore()
	_ = store.Set(Override{RedirectTo: "https://h/closed", ExpiresAt: now.Add(-1 * time.Second)})
	e := NewOverrideEngine(store, &memAudit{})
	e.Now = func() time.Time { return now }

	_, applied, err := e.Decide(context.Background(), Input{CallSid: "CA1"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if applied {
		t.Fatalf("expected not applied")
	}
}

func TestMemoryOverrideStore_SetValidatesAndClears(t *testing.T) {
	s := NewMemoryOverrideStore()
	if err := s.Set(Override{ExpiresAt: time.Now().Add(time.Hour)}); err == nil {
		t.Fatalf("expected missing redirect rejected")
	}
	if err := s.Set(Override{RedirectTo: "https://h/x"}); err == nil {
		t.Fatalf("expected missing expiry rejected")
	}
	_ = s.Set(Override{RedirectTo: "https://h/x", ExpiresAt: time.Now().Add(time.Hour)})
	if !s.Clear() {
		t.Fatalf("expected clear to report existing override")
	}
	if s.Clear() {
		t.Fatalf("expected nothing left to clear")
	}
}

func TestOverrideEngine_AuditFailureIsLoggedNotFatal(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	store := NewMemoryOverrideStore()
	_ = store.Set(Override{OverrideID: "o9", RedirectTo: "https://h/closed", ExpiresAt: now.Add(time.Minute)})
	e := NewOverrideEngine(store, &memAudit{err: errors.New("db down")})
	e.Now = func() time.Time { return now }

	var buf bytes.Buffer
	ctx := logger.With(context.Background(), logger.NewWithWriter(&buf, "local"))
	dec, applied, err := e.Decide(ctx, Input{CallSid: "CA1", Digits: "1"})
	if err != nil || !applied || dec.URL != "https://h/closed" {
		t.Fatalf("expected override applied despite audit failure, got %+v %v %v", dec, applied, err)
	}
	out := buf.String()
	if !strings.Contains(out, "audit override failed") || !strings.Contains(out, "db down") || !strings.Contains(out, `"level":"WARN"`) {
		t.Fatalf("expected warn log, got %s", out)
	}
}
