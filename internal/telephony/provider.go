package telephony

import (
	"context"
	"time"

	"voice-platform/internal/calls"
)

// Provider defines the provider-agnostic client used by the Service.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Unknown call or recording ids MUST be reported with calls.ErrNotFound in the chain.
// - Adapters do not retry; the caller decides.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	CreateCall(ctx context.Context, p CreateCallParams) (CallHandle, error)
	FetchCall(ctx context.Context, callSid string) (calls.CallRecord, error)
	UpdateCallStatus(ctx context.Context, callSid string, status calls.CallStatus) (calls.CallRecord, error)

	ListRecordings(ctx context.Context, f RecordingFilter) ([]calls.Recording, error)
	DeleteRecording(ctx context.Context, recordingSid string) error

	CreateMessage(ctx context.Context, p MessageParams) (MessageHandle, error)
	ListCalls(ctx context.Context, f CallListFilter) ([]calls.CallRecord, error)
}

// CreateCallParams is a fully resolved outbound call request. No field is defaulted by adapters.
type CreateCallParams struct {
	To   string
	From string
	URL  string

	StatusCallback       string
	StatusCallbackMethod string
	StatusCallbackEvents []string

	Record                  bool
	RecordingChannels       string
	RecordingStatusCallback string

	TimeoutSeconds int

	MachineDetection        string
	MachineDetectionTimeout int
}

// CallHandle is the provider's acknowledgment of a placed call.
type CallHandle struct {
	Sid    string           `json:"call_sid"`
	Status calls.CallStatus `json:"status"`
}

type RecordingFilter struct {
	CallSid string
	Limit   int
}

type MessageParams struct {
	To             string
	From           string
	Body           string
	MediaURLs      []string
	StatusCallback string
}

type MessageHandle struct {
	Sid    string `json:"message_sid"`
	Status string `json:"status"`
}

// CallListFilter is passed through to the provider. Zero values are unconstrained.
type CallListFilter struct {
	To              string
	From            string
	StartTimeAfter  *time.Time
	StartTimeBefore *time.Time
	Limit           int
}
