// Package callstore keeps the latest known state of each call, keyed by CallSid.
//
// Webhook events may arrive duplicated or out of order. Stores serialize
// updates per call and freeze the status once it is terminal; recording and
// transcription attachments are still accepted after that.
package callstore

import (
	"context"
	"time"

	"voice-platform/internal/calls"
)

// Event identifies the call a webhook refers to. The first event seen for a
// CallSid creates the record with these values.
type Event struct {
	CallSid   string
	From      string
	To        string
	Direction calls.CallDirection
	At        time.Time
}

// Sink receives the state changes derived from webhooks.
type Sink interface {
	ApplyStatus(ctx context.Context, ev Event, status calls.CallStatus, durationSeconds int) (calls.CallRecord, error)
	AttachRecording(ctx context.Context, ev Event, recordingSid, recordingURL string) (calls.CallRecord, error)
	AttachTranscription(ctx context.Context, ev Event, text string) (calls.CallRecord, error)
}

// Store is a Sink that can also be read back.
type Store interface {
	Sink
	Get(ctx context.Context, callSid string) (calls.CallRecord, error)
}
