package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresTypeAndTarget(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{CallSid: "CA1"}); err == nil {
		t.Fatalf("expected error for missing type")
	}
	if err := svc.Append(context.Background(), Event{Type: EventTypeWebhook}); err == nil {
		t.Fatalf("expected error for missing target")
	}
	if err := svc.Append(context.Background(), Event{Type: EventTypeOverride}); err != nil {
		t.Fatalf("expected override without target accepted, got %v", err)
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogCallAction(context.Background(), "u", "operator", "1.2.3.4", "end_call", "CA1", "", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogWebhook(context.Background(), "recording", "CA1", "RE1", "5.6.7.8", ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].IPAddress != "1.2.3.4" || evs[0].Type != EventTypeCallAction || evs[0].Message != "end_call" {
		t.Fatalf("unexpected first event %+v", evs[0])
	}
	if evs[1].RecordingSid != "RE1" || evs[1].Type != EventTypeWebhook {
		t.Fatalf("unexpected second event %+v", evs[1])
	}
	if evs[0].ID == "" || evs[0].ID == evs[1].ID || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected ids and timestamps assigned")
	}

	// Mutating the returned copy must not change the log.
	evs[0].Message = "tampered"
	if repo.Events()[0].Message != "end_call" {
		t.Fatalf("expected events to be immutable")
	}
}
