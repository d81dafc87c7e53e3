package callstore

import (
	"context"
	"fmt"
	"sync"

	"voice-platform/internal/calls"
)

// MemoryStore is a process-local Store. State is lost on restart.
type MemoryStore struct {
	mu    sync.Mutex
	calls map[string]*calls.CallRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{calls: map[string]*calls.CallRecord{}}
}

func (s *MemoryStore) Get(ctx context.Context, callSid string) (calls.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.calls[callSid]
	if !ok {
		return calls.CallRecord{}, fmt.Errorf("callstore: call %s: %w", callSid, calls.ErrNotFound)
	}
	return *r, nil
}

func (s *MemoryStore) ApplyStatus(ctx context.Context, ev Event, status calls.CallStatus, durationSeconds int) (calls.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.touch(ev)
	if r.ApplyStatus(status, ev.At) && status.IsTerminal() && durationSeconds > 0 {
		r.DurationSeconds = durationSeconds
	}
	return *r, nil
}

func (s *MemoryStore) AttachRecording(ctx context.Context, ev Event, recordingSid, recordingURL string) (calls.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.touch(ev)
	r.RecordingSid = recordingSid
	r.RecordingURL = recordingURL
	return *r, nil
}

func (s *MemoryStore) AttachTranscription(ctx context.Context, ev Event, text string) (calls.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.touch(ev)
	r.Transcription = text
	return *r, nil
}

// touch returns the record for ev.CallSid, creating it as queued on first sight.
// Caller must hold s.mu.
func (s *MemoryStore) touch(ev Event) *calls.CallRecord {
	r, ok := s.calls[ev.CallSid]
	if !ok {
		r = &calls.CallRecord{CallSid: ev.CallSid, Status: calls.CallStatusQueued, StartTime: ev.At.UTC()}
		s.calls[ev.CallSid] = r
	}
	if r.From == "" {
		r.From = ev.From
	}
	if r.To == "" {
		r.To = ev.To
	}
	if r.Direction == "" {
		r.Direction = ev.Direction
	}
	return r
}
