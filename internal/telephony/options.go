package telephony

import (
	"strings"
	"time"

	"voice-platform/internal/calls"
	"voice-platform/internal/config"
)

// Outbound call defaults.
const (
	DefaultCallTimeout     = 60
	DefaultRecordingsLimit = 20
	DefaultHistoryLimit    = 50

	defaultVoicemailPrompt = "Please leave a message after the beep."
)

var defaultStatusEvents = []string{"initiated", "answered", "completed"}

type RecordingChannels string

const (
	RecordingMono RecordingChannels = "mono"
	RecordingDual RecordingChannels = "dual"
)

type MachineDetection string

const (
	MachineDetectionOff        MachineDetection = ""
	MachineDetectionEnable     MachineDetection = "Enable"
	MachineDetectionMessageEnd MachineDetection = "DetectMessageEnd"
)

// CallOptions describes an outbound call. Only To is mandatory.
type CallOptions struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	URL  string `json:"url,omitempty"`

	StatusCallback       string   `json:"status_callback,omitempty"`
	StatusCallbackMethod string   `json:"status_callback_method,omitempty"`
	StatusCallbackEvents []string `json:"status_callback_event,omitempty"`

	Record                  bool              `json:"record,omitempty"`
	RecordingChannels       RecordingChannels `json:"recording_channels,omitempty"`
	RecordingStatusCallback string            `json:"recording_status_callback,omitempty"`

	// TimeoutSeconds is how long to let the destination ring. 0 means DefaultCallTimeout.
	TimeoutSeconds int `json:"timeout,omitempty"`

	MachineDetection        MachineDetection `json:"machine_detection,omitempty"`
	MachineDetectionTimeout int              `json:"machine_detection_timeout,omitempty"`
}

// SMSOptions describes an outbound text message.
type SMSOptions struct {
	To             string   `json:"to"`
	From           string   `json:"from,omitempty"`
	Body           string   `json:"body"`
	MediaURLs      []string `json:"media_urls,omitempty"`
	StatusCallback string   `json:"status_callback,omitempty"`
}

// HistoryFilter bounds a call history query. StartTime is inclusive, EndTime exclusive.
type HistoryFilter struct {
	To        string     `json:"to,omitempty"`
	From      string     `json:"from,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Limit     int        `json:"limit,omitempty"`
}

// resolveCallOptions is the single place outbound call defaults are applied.
func resolveCallOptions(o CallOptions, voice config.VoiceConfig) (CreateCallParams, error) {
	const op = "telephony.PlaceCall"

	to, err := calls.NormalizeDestination(o.To)
	if err != nil {
		return CreateCallParams{}, err
	}
	if o.TimeoutSeconds < 0 {
		return CreateCallParams{}, calls.Validation(op, "timeout must not be negative")
	}
	if o.MachineDetectionTimeout < 0 {
		return CreateCallParams{}, calls.Validation(op, "machine detection timeout must not be negative")
	}

	p := CreateCallParams{
		To:                      to,
		From:                    firstNonEmpty(o.From, voice.OriginNumber),
		URL:                     firstNonEmpty(o.URL, voice.Link(config.PathOutboundAnswer)),
		StatusCallback:          firstNonEmpty(o.StatusCallback, voice.StatusCallbackURL),
		StatusCallbackMethod:    strings.ToUpper(firstNonEmpty(o.StatusCallbackMethod, "POST")),
		StatusCallbackEvents:    o.StatusCallbackEvents,
		Record:                  o.Record,
		RecordingChannels:       string(o.RecordingChannels),
		RecordingStatusCallback: o.RecordingStatusCallback,
		TimeoutSeconds:          o.TimeoutSeconds,
		MachineDetection:        string(o.MachineDetection),
		MachineDetectionTimeout: o.MachineDetectionTimeout,
	}
	if p.From == "" {
		return CreateCallParams{}, calls.Configuration(op, "no origin number configured")
	}
	if len(p.StatusCallbackEvents) == 0 {
		p.StatusCallbackEvents = append([]string(nil), defaultStatusEvents...)
	}
	switch RecordingChannels(p.RecordingChannels) {
	case "":
		p.RecordingChannels = string(RecordingMono)
	case RecordingMono, RecordingDual:
	default:
		return CreateCallParams{}, calls.Validation(op, "recording channels must be mono or dual")
	}
	switch MachineDetection(p.MachineDetection) {
	case MachineDetectionOff, MachineDetectionEnable, MachineDetectionMessageEnd:
	default:
		return CreateCallParams{}, calls.Validation(op, "machine detection must be Enable or DetectMessageEnd")
	}
	if p.TimeoutSeconds == 0 {
		p.TimeoutSeconds = DefaultCallTimeout
	}
	return p, nil
}

func resolveSMSOptions(o SMSOptions, voice config.VoiceConfig) (MessageParams, error) {
	const op = "telephony.SendMessage"

	to := strings.TrimSpace(o.To)
	if to == "" {
		return MessageParams{}, calls.Validation(op, "destination is required")
	}
	// Numbers we can parse are sent as E.164; anything else goes to the provider as given
	// and is rejected there.
	if n, err := calls.NormalizeDestination(to); err == nil {
		to = n
	}
	if strings.TrimSpace(o.Body) == "" && len(o.MediaURLs) == 0 {
		return MessageParams{}, calls.Validation(op, "body or media url is required")
	}
	p := MessageParams{
		To:             to,
		From:           firstNonEmpty(o.From, voice.OriginNumber),
		Body:           o.Body,
		MediaURLs:      o.MediaURLs,
		StatusCallback: o.StatusCallback,
	}
	if p.From == "" {
		return MessageParams{}, calls.Configuration(op, "no origin number configured")
	}
	return p, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
