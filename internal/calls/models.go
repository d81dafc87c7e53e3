package calls

import (
	"strings"
	"time"
)

// CallRecord is a snapshot of one call as reported by the provider.
//
// Lifecycle:
// - Created when a call is placed or when the first webhook for an unknown CallSid arrives.
// - Mutated only by webhook events carrying the same CallSid.
// - Once Status is terminal, only recording/transcription attachment may change it.
type CallRecord struct {
	CallSid   string        `json:"call_sid"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	Direction CallDirection `json:"direction,omitempty"`
	Status    CallStatus    `json:"status"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// DurationSeconds is only meaningful once the call is terminal.
	DurationSeconds int `json:"duration,omitempty"`

	RecordingSid  string `json:"recording_sid,omitempty"`
	RecordingURL  string `json:"recording_url,omitempty"`
	Transcription string `json:"transcription,omitempty"`

	// Price is the provider-reported price as a decimal string, e.g. "-0.0130".
	Price     string `json:"price,omitempty"`
	PriceUnit string `json:"price_unit,omitempty"`
}

// ApplyStatus moves the record to status unless it is already terminal.
// Out-of-order non-terminal statuses are applied as received.
// Reports whether the status changed.
func (r *CallRecord) ApplyStatus(status CallStatus, at time.Time) bool {
	if r.Status.IsTerminal() || status == "" || r.Status == status {
		return false
	}
	r.Status = status
	if status.IsTerminal() && r.EndTime == nil && !at.IsZero() {
		end := at
		r.EndTime = &end
	}
	return true
}

type CallStatus string

// Wire values are the provider's hyphenated status names.
const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusBusy       CallStatus = "busy"
	CallStatusFailed     CallStatus = "failed"
	CallStatusNoAnswer   CallStatus = "no-answer"
	CallStatusCanceled   CallStatus = "canceled"
)

// IsTerminal reports whether no further transition is expected after s.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusBusy, CallStatusFailed, CallStatusNoAnswer, CallStatusCanceled:
		return true
	default:
		return false
	}
}

func (s CallStatus) Valid() bool {
	switch s {
	case CallStatusQueued, CallStatusRinging, CallStatusInProgress:
		return true
	default:
		return s.IsTerminal()
	}
}

// ParseStatus maps a raw status string to a CallStatus.
// Providers occasionally send "initiated" for freshly queued calls; it maps to queued.
func ParseStatus(raw string) (CallStatus, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "initiated" {
		return CallStatusQueued, true
	}
	s := CallStatus(v)
	return s, s.Valid()
}

type CallDirection string

const (
	DirectionInbound      CallDirection = "inbound"
	DirectionOutboundAPI  CallDirection = "outbound-api"
	DirectionOutboundDial CallDirection = "outbound-dial"
)

// ParseDirection returns the direction for raw, or "" when unknown.
func ParseDirection(raw string) CallDirection {
	switch d := CallDirection(strings.ToLower(strings.TrimSpace(raw))); d {
	case DirectionInbound, DirectionOutboundAPI, DirectionOutboundDial:
		return d
	default:
		return ""
	}
}

// Recording is a stored call recording.
type Recording struct {
	Sid             string    `json:"sid"`
	CallSid         string    `json:"call_sid"`
	URL             string    `json:"url,omitempty"`
	DurationSeconds int       `json:"duration,omitempty"`
	Status          string    `json:"status,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
