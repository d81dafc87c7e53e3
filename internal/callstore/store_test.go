package callstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voice-platform/internal/calls"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rs, err := NewRedisStore(rdb, time.Hour)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  rs,
	}
}

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func ev(at time.Duration) Event {
	return Event{CallSid: "CA1", From: "+15551230000", To: "+15559998888", Direction: calls.DirectionInbound, At: t0.Add(at)}
}

func TestStore_GetUnknown(t *testing.T) {
	for name, s := range stores(t) {
		if _, err := s.Get(context.Background(), "CAnope"); !errors.Is(err, calls.ErrNotFound) {
			t.Fatalf("%s: expected not found, got %v", name, err)
		}
	}
}

func TestStore_FirstEventCreatesRecord(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		rec, err := s.ApplyStatus(ctx, ev(0), calls.CallStatusRinging, 0)
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", name, err)
		}
		if rec.CallSid != "CA1" || rec.From != "+15551230000" || rec.Status != calls.CallStatusRinging {
			t.Fatalf("%s: unexpected record %+v", name, rec)
		}
		if !rec.StartTime.Equal(t0) || rec.Direction != calls.DirectionInbound {
			t.Fatalf("%s: unexpected start/direction %+v", name, rec)
		}
		got, err := s.Get(ctx, "CA1")
		if err != nil || got.Status != calls.CallStatusRinging {
			t.Fatalf("%s: expected stored record, got %+v %v", name, got, err)
		}
	}
}

func TestStore_OutOfOrderThenTerminalFreeze(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		_, _ = s.ApplyStatus(ctx, ev(0), calls.CallStatusInProgress, 0)
		// A late "ringing" is still applied: no monotonic assumption.
		rec, _ := s.ApplyStatus(ctx, ev(time.Second), calls.CallStatusRinging, 0)
		if rec.Status != calls.CallStatusRinging {
			t.Fatalf("%s: expected behind status applied, got %q", name, rec.Status)
		}

		rec, _ = s.ApplyStatus(ctx, ev(time.Minute), calls.CallStatusCompleted, 60)
		if rec.Status != calls.CallStatusCompleted || rec.DurationSeconds != 60 || rec.EndTime == nil || !rec.EndTime.Equal(t0.Add(time.Minute)) {
			t.Fatalf("%s: unexpected terminal record %+v", name, rec)
		}

		// Duplicate and late events after terminal are ignored.
		_, _ = s.ApplyStatus(ctx, ev(2*time.Minute), calls.CallStatusInProgress, 0)
		rec, _ = s.ApplyStatus(ctx, ev(3*time.Minute), calls.CallStatusFailed, 5)
		if rec.Status != calls.CallStatusCompleted || rec.DurationSeconds != 60 || !rec.EndTime.Equal(t0.Add(time.Minute)) {
			t.Fatalf("%s: expected frozen record, got %+v", name, rec)
		}
	}
}

func TestStore_AttachmentsAfterTerminal(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		_, _ = s.ApplyStatus(ctx, ev(0), calls.CallStatusCompleted, 12)

		rec, err := s.AttachRecording(ctx, ev(time.Minute), "RE1", "https://media/RE1")
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", name, err)
		}
		if rec.RecordingSid != "RE1" || rec.RecordingURL != "https://media/RE1" {
			t.Fatalf("%s: expected recording attached, got %+v", name, rec)
		}
		rec, _ = s.AttachTranscription(ctx, ev(2*time.Minute), "call me back")
		if rec.Transcription != "call me back" || rec.RecordingSid != "RE1" || rec.Status != calls.CallStatusCompleted {
			t.Fatalf("%s: unexpected record %+v", name, rec)
		}
	}
}

func TestStore_AttachBeforeStatusCreatesRecord(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		rec, err := s.AttachTranscription(ctx, ev(0), "hello")
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", name, err)
		}
		if rec.CallSid != "CA1" || rec.To != "+15559998888" || rec.Status != calls.CallStatusQueued || rec.Transcription != "hello" {
			t.Fatalf("%s: unexpected record %+v", name, rec)
		}
	}
}

func TestStore_StatusAfterEarlyAttachment(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		if _, err := s.AttachRecording(ctx, ev(0), "RE1", "https://media/RE1"); err != nil {
			t.Fatalf("%s: unexpected err: %v", name, err)
		}
		rec, _ := s.ApplyStatus(ctx, ev(time.Second), "", 0)
		if rec.Status != calls.CallStatusQueued {
			t.Fatalf("%s: expected queued kept on empty status, got %q", name, rec.Status)
		}
		rec, _ = s.ApplyStatus(ctx, ev(time.Minute), calls.CallStatusCompleted, 42)
		if rec.Status != calls.CallStatusCompleted || rec.DurationSeconds != 42 || rec.RecordingSid != "RE1" {
			t.Fatalf("%s: unexpected record %+v", name, rec)
		}
	}
}

func TestStore_ConcurrentUpdatesSingleTerminal(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		terminals := []calls.CallStatus{calls.CallStatusCompleted, calls.CallStatusBusy, calls.CallStatusFailed, calls.CallStatusNoAnswer}
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _ = s.ApplyStatus(ctx, ev(time.Duration(i)*time.Second), terminals[i%len(terminals)], i+1)
			}(i)
		}
		wg.Wait()

		first, _ := s.Get(ctx, "CA1")
		if !first.Status.IsTerminal() {
			t.Fatalf("%s: expected terminal status, got %q", name, first.Status)
		}
		rec, _ := s.ApplyStatus(ctx, ev(time.Hour), calls.CallStatusCanceled, 99)
		if rec.Status != first.Status || rec.DurationSeconds != first.DurationSeconds {
			t.Fatalf("%s: expected first terminal kept, got %+v vs %+v", name, rec, first)
		}
	}
}

func TestRedisStore_SetsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s, _ := NewRedisStore(rdb, 0)

	if _, err := s.ApplyStatus(context.Background(), ev(0), calls.CallStatusQueued, 0); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ttl := mr.TTL(keyPrefix + "CA1"); ttl != DefaultTTL {
		t.Fatalf("expected default ttl, got %v", ttl)
	}
}
