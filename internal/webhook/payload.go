package webhook

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"voice-platform/internal/calls"
	"voice-platform/internal/callstore"
)

// Payload is a provider voice callback. Field names on the wire are the
// provider's (CallSid, RecordingUrl, ...); providers send
// application/x-www-form-urlencoded by default.
//
// Only fields the handlers read are kept.
type Payload struct {
	CallSid    string
	AccountSid string
	From       string
	To         string
	CallStatus calls.CallStatus
	Direction  calls.CallDirection
	ApiVersion string
	CallerName string

	// CallDuration is only sent with the final status callback.
	CallDuration int

	RecordingURL      string
	RecordingSid      string
	RecordingStatus   string
	RecordingDuration int

	TranscriptionSid    string
	TranscriptionText   string
	TranscriptionStatus string

	Digits       string
	SpeechResult string
	Confidence   float64
}

// TranscriptionFailed is the TranscriptionStatus value for a transcription that produced no text.
const TranscriptionFailed = "failed"

// ParsePayload reads and validates form values.
// CallSid, From and To are required on every callback.
func ParsePayload(form url.Values) (Payload, error) {
	const op = "webhook.ParsePayload"

	get := func(k string) string { return strings.TrimSpace(form.Get(k)) }

	p := Payload{
		CallSid:             get("CallSid"),
		AccountSid:          get("AccountSid"),
		From:                get("From"),
		To:                  get("To"),
		Direction:           calls.ParseDirection(get("Direction")),
		ApiVersion:          get("ApiVersion"),
		CallerName:          get("CallerName"),
		RecordingURL:        get("RecordingUrl"),
		RecordingSid:        get("RecordingSid"),
		RecordingStatus:     get("RecordingStatus"),
		TranscriptionSid:    get("TranscriptionSid"),
		TranscriptionText:   get("TranscriptionText"),
		TranscriptionStatus: get("TranscriptionStatus"),
		Digits:              get("Digits"),
		SpeechResult:        get("SpeechResult"),
	}

	var missing []string
	for _, f := range []struct{ name, v string }{
		{"CallSid", p.CallSid},
		{"From", p.From},
		{"To", p.To},
	} {
		if f.v == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return Payload{}, calls.Validation(op, "missing required field(s): "+strings.Join(missing, ", "))
	}

	if raw := get("CallStatus"); raw != "" {
		st, ok := calls.ParseStatus(raw)
		if !ok {
			return Payload{}, calls.Validation(op, "unknown CallStatus "+strconv.Quote(raw))
		}
		p.CallStatus = st
	}

	var err error
	if p.CallDuration, err = optionalInt(form, "CallDuration"); err != nil {
		return Payload{}, calls.E(calls.ErrValidation, op, p.CallSid, err)
	}
	if p.RecordingDuration, err = optionalInt(form, "RecordingDuration"); err != nil {
		return Payload{}, calls.E(calls.ErrValidation, op, p.CallSid, err)
	}
	if raw := get("Confidence"); raw != "" {
		c, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Payload{}, calls.Validation(op, "Confidence must be a number")
		}
		p.Confidence = c
	}
	return p, nil
}

// ValidateRecording checks the fields a recording-complete callback must carry.
func (p Payload) ValidateRecording() error {
	const op = "webhook.HandleRecording"
	if p.RecordingSid == "" {
		return calls.E(calls.ErrValidation, op, p.CallSid, errMissing("RecordingSid"))
	}
	if p.RecordingURL == "" {
		return calls.E(calls.ErrValidation, op, p.CallSid, errMissing("RecordingUrl"))
	}
	return nil
}

// ValidateTranscription requires text unless the provider reports the transcription failed.
func (p Payload) ValidateTranscription() error {
	const op = "webhook.HandleTranscription"
	if p.TranscriptionText == "" && !strings.EqualFold(p.TranscriptionStatus, TranscriptionFailed) {
		return calls.E(calls.ErrValidation, op, p.CallSid, errMissing("TranscriptionText"))
	}
	return nil
}

// Event is the call-store view of the payload, stamped with the receive time.
func (p Payload) Event(at time.Time) callstore.Event {
	return callstore.Event{
		CallSid:   p.CallSid,
		From:      p.From,
		To:        p.To,
		Direction: p.Direction,
		At:        at,
	}
}

type missingFieldError string

func (e missingFieldError) Error() string { return "missing required field " + string(e) }

func errMissing(field string) error { return missingFieldError(field) }

func optionalInt(form url.Values, key string) (int, error) {
	raw := strings.TrimSpace(form.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &fieldError{Field: key, Value: raw}
	}
	return n, nil
}

type fieldError struct {
	Field string
	Value string
}

func (e *fieldError) Error() string {
	return e.Field + " must be a non-negative integer, got " + strconv.Quote(e.Value)
}
