package telephony

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"voice-platform/internal/calls"

	"github.com/google/uuid"
)

// MemoryProvider is an in-process Provider for local development and tests.
//
// Calls placed through it stay queued until UpdateCallStatus or SetStatus moves them.
// It never reaches a network and never rings anything.
type MemoryProvider struct {
	mu         sync.Mutex
	calls      map[string]calls.CallRecord
	recordings map[string]calls.Recording
	messages   map[string]MessageParams

	Now func() time.Time
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		calls:      map[string]calls.CallRecord{},
		recordings: map[string]calls.Recording{},
		messages:   map[string]MessageParams{},
		Now:        time.Now,
	}
}

func (p *MemoryProvider) Name() string { return "memory" }

func (p *MemoryProvider) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

func (p *MemoryProvider) CreateCall(ctx context.Context, params CreateCallParams) (CallHandle, error) {
	if err := ctx.Err(); err != nil {
		return CallHandle{}, err
	}
	if params.To == "" || params.From == "" {
		return CallHandle{}, fmt.Errorf("memory: to and from are required")
	}
	rec := calls.CallRecord{
		CallSid:   newSid("CA"),
		From:      params.From,
		To:        params.To,
		Direction: calls.DirectionOutboundAPI,
		Status:    calls.CallStatusQueued,
		StartTime: p.now(),
	}

	p.mu.Lock()
	p.calls[rec.CallSid] = rec
	p.mu.Unlock()

	return CallHandle{Sid: rec.CallSid, Status: rec.Status}, nil
}

func (p *MemoryProvider) FetchCall(ctx context.Context, callSid string) (calls.CallRecord, error) {
	if err := ctx.Err(); err != nil {
		return calls.CallRecord{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.calls[callSid]
	if !ok {
		return calls.CallRecord{}, fmt.Errorf("memory: call %s: %w", callSid, calls.ErrNotFound)
	}
	return rec, nil
}

func (p *MemoryProvider) UpdateCallStatus(ctx context.Context, callSid string, status calls.CallStatus) (calls.CallRecord, error) {
	if err := ctx.Err(); err != nil {
		return calls.CallRecord{}, err
	}
	if !status.Valid() {
		return calls.CallRecord{}, fmt.Errorf("memory: invalid status %q: %w", status, calls.ErrValidation)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.calls[callSid]
	if !ok {
		return calls.CallRecord{}, fmt.Errorf("memory: call %s: %w", callSid, calls.ErrNotFound)
	}
	if rec.Status.IsTerminal() {
		return calls.CallRecord{}, fmt.Errorf("memory: call %s is not in-progress (%s)", callSid, rec.Status)
	}
	now := p.now()
	rec.ApplyStatus(status, now)
	if rec.EndTime != nil {
		rec.DurationSeconds = int(rec.EndTime.Sub(rec.StartTime) / time.Second)
	}
	p.calls[callSid] = rec
	return rec, nil
}

func (p *MemoryProvider) ListRecordings(ctx context.Context, f RecordingFilter) ([]calls.Recording, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	out := make([]calls.Recording, 0)
	for _, r := range p.recordings {
		if f.CallSid == "" || r.CallSid == f.CallSid {
			out = append(out, r)
		}
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (p *MemoryProvider) DeleteRecording(ctx context.Context, recordingSid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.recordings[recordingSid]; !ok {
		return fmt.Errorf("memory: recording %s: %w", recordingSid, calls.ErrNotFound)
	}
	delete(p.recordings, recordingSid)
	return nil
}

func (p *MemoryProvider) CreateMessage(ctx context.Context, params MessageParams) (MessageHandle, error) {
	if err := ctx.Err(); err != nil {
		return MessageHandle{}, err
	}
	if !strings.HasPrefix(params.To, "+") {
		return MessageHandle{}, fmt.Errorf("memory: %q is not a valid phone number", params.To)
	}
	sid := newSid("SM")
	p.mu.Lock()
	p.messages[sid] = params
	p.mu.Unlock()
	return MessageHandle{Sid: sid, Status: "queued"}, nil
}

// ListCalls returns newest-first. StartTimeAfter is inclusive and StartTimeBefore exclusive.
func (p *MemoryProvider) ListCalls(ctx context.Context, f CallListFilter) ([]calls.CallRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	out := make([]calls.CallRecord, 0)
	for _, r := range p.calls {
		if f.To != "" && r.To != f.To {
			continue
		}
		if f.From != "" && r.From != f.From {
			continue
		}
		if f.StartTimeAfter != nil && r.StartTime.Before(*f.StartTimeAfter) {
			continue
		}
		if f.StartTimeBefore != nil && !r.StartTime.Before(*f.StartTimeBefore) {
			continue
		}
		out = append(out, r)
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Seed stores rec as if the provider had reported it. Used by tests and local tooling.
func (p *MemoryProvider) Seed(rec calls.CallRecord) {
	if rec.CallSid == "" {
		rec.CallSid = newSid("CA")
	}
	p.mu.Lock()
	p.calls[rec.CallSid] = rec
	p.mu.Unlock()
}

// SetStatus applies a provider-side transition, e.g. the callee hanging up.
func (p *MemoryProvider) SetStatus(callSid string, status calls.CallStatus) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.calls[callSid]
	if !ok {
		return false
	}
	changed := rec.ApplyStatus(status, p.now())
	p.calls[callSid] = rec
	return changed
}

// AddRecording attaches a finished recording to callSid and returns it.
func (p *MemoryProvider) AddRecording(callSid, url string, duration int) calls.Recording {
	r := calls.Recording{
		Sid:             newSid("RE"),
		CallSid:         callSid,
		URL:             url,
		DurationSeconds: duration,
		Status:          "completed",
		CreatedAt:       p.now(),
	}
	p.mu.Lock()
	p.recordings[r.Sid] = r
	p.mu.Unlock()
	return r
}

// Messages returns a copy of every message sent, keyed by sid.
func (p *MemoryProvider) Messages() map[string]MessageParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]MessageParams, len(p.messages))
	for k, v := range p.messages {
		out[k] = v
	}
	return out
}

func (p *MemoryProvider) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now().UTC()
}

// newSid mimics provider sids: a two-letter prefix and 32 hex characters.
func newSid(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
