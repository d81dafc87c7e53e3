package metrics

import (
	"context"
	"errors"
	"time"

	"voice-platform/internal/calls"
	"voice-platform/internal/telephony"
)

// Provider wraps a telephony.Provider and records one observation per request.
type Provider struct {
	next telephony.Provider
	m    *Metrics
}

func InstrumentProvider(next telephony.Provider, m *Metrics) *Provider {
	return &Provider{next: next, m: m}
}

var _ telephony.Provider = (*Provider)(nil)

func (p *Provider) Name() string { return p.next.Name() }

func (p *Provider) HealthCheck(ctx context.Context) (err error) {
	defer p.track("health_check", time.Now(), &err)
	return p.next.HealthCheck(ctx)
}

func (p *Provider) CreateCall(ctx context.Context, in telephony.CreateCallParams) (h telephony.CallHandle, err error) {
	defer p.track("create_call", time.Now(), &err)
	return p.next.CreateCall(ctx, in)
}

func (p *Provider) FetchCall(ctx context.Context, callSid string) (r calls.CallRecord, err error) {
	defer p.track("fetch_call", time.Now(), &err)
	return p.next.FetchCall(ctx, callSid)
}

func (p *Provider) UpdateCallStatus(ctx context.Context, callSid string, status calls.CallStatus) (r calls.CallRecord, err error) {
	defer p.track("update_call", time.Now(), &err)
	return p.next.UpdateCallStatus(ctx, callSid, status)
}

func (p *Provider) ListRecordings(ctx context.Context, f telephony.RecordingFilter) (out []calls.Recording, err error) {
	defer p.track("list_recordings", time.Now(), &err)
	return p.next.ListRecordings(ctx, f)
}

func (p *Provider) DeleteRecording(ctx context.Context, recordingSid string) (err error) {
	defer p.track("delete_recording", time.Now(), &err)
	return p.next.DeleteRecording(ctx, recordingSid)
}

func (p *Provider) CreateMessage(ctx context.Context, in telephony.MessageParams) (h telephony.MessageHandle, err error) {
	defer p.track("create_message", time.Now(), &err)
	return p.next.CreateMessage(ctx, in)
}

func (p *Provider) ListCalls(ctx context.Context, f telephony.CallListFilter) (out []calls.CallRecord, err error) {
	defer p.track("list_calls", time.Now(), &err)
	return p.next.ListCalls(ctx, f)
}

func (p *Provider) track(op string, start time.Time, errp *error) {
	outcome := "ok"
	if *errp != nil {
		outcome = "error"
		if errors.Is(*errp, calls.ErrNotFound) {
			outcome = "not_found"
		}
	}
	p.m.observeProvider(p.next.Name(), op, outcome, time.Since(start))
}
