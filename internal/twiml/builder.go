package twiml

import (
	"strings"

	"voice-platform/internal/calls"
)

// Builder defaults.
const (
	DefaultVoicemailMaxLength = 120
	DefaultInboundMaxLength   = 30
	DefaultMaxParticipants    = 250
	// MaxParticipantsCap is the provider's hard conference size limit.
	MaxParticipantsCap = 250

	DefaultHoldMusicURL = "http://com.twilio.sounds.music.s3.amazonaws.com/WeAreYoung.mp3"

	// LoopForever makes Play repeat until the call leaves the verb.
	LoopForever = 0
)

var defaultConferenceEvents = []string{"start", "end", "join", "leave"}

// MenuOption is one digit-selectable entry of an IVR menu.
type MenuOption struct {
	Digit       string `json:"digit"`
	Description string `json:"description"`
	Action      string `json:"action"`
}

// ConferenceOptions describes a conference join. Nil pointers take the documented defaults.
type ConferenceOptions struct {
	Name string `json:"name"`

	StartOnEnter *bool `json:"start_conference_on_enter,omitempty"` // default true
	EndOnExit    *bool `json:"end_conference_on_exit,omitempty"`    // default false
	Muted        *bool `json:"muted,omitempty"`                     // default false
	Beep         Beep  `json:"beep,omitempty"`                      // default true

	WaitURL         string `json:"wait_url,omitempty"`
	MaxParticipants *int   `json:"max_participants,omitempty"` // default 250, valid 1..250
	Record          bool   `json:"record,omitempty"`

	StatusCallback       string   `json:"status_callback,omitempty"`
	StatusCallbackEvents []string `json:"status_callback_event,omitempty"`
}

// GreetingAndRecord speaks prompt, then records up to maxLength seconds with transcription.
func GreetingAndRecord(prompt string, maxLength int, actionURL, transcribeCallbackURL string) (Document, error) {
	const op = "twiml.GreetingAndRecord"
	if strings.TrimSpace(prompt) == "" {
		return Document{}, calls.Validation(op, "prompt is required")
	}
	if maxLength <= 0 {
		return Document{}, calls.Validation(op, "maxLength must be a positive number of seconds")
	}
	return Document{Verbs: []Verb{
		Say{Text: prompt},
		Record{
			MaxLength:          maxLength,
			Action:             actionURL,
			Transcribe:         true,
			TranscribeCallback: transcribeCallbackURL,
		},
	}}, nil
}

// IVRMenu announces options in the given order inside a single-digit Gather,
// followed by a Redirect to menuURL so a silent caller hears the menu again.
func IVRMenu(greeting string, options []MenuOption, actionURL, menuURL string) (Document, error) {
	const op = "twiml.IVRMenu"
	if len(options) == 0 {
		return Document{}, calls.Configuration(op, "menu needs at least one option")
	}
	if strings.TrimSpace(menuURL) == "" {
		return Document{}, calls.Configuration(op, "menu url is required for the fallback redirect")
	}

	seen := make(map[string]struct{}, len(options))
	var prompt strings.Builder
	if g := strings.TrimSpace(greeting); g != "" {
		prompt.WriteString(g)
	}
	for _, o := range options {
		if !validDigit(o.Digit) {
			return Document{}, calls.Configuration(op, "menu digit must be a single key 0-9, * or #, got "+quote(o.Digit))
		}
		if _, dup := seen[o.Digit]; dup {
			return Document{}, calls.Configuration(op, "duplicate menu digit "+quote(o.Digit))
		}
		seen[o.Digit] = struct{}{}

		if prompt.Len() > 0 {
			prompt.WriteString(" ")
		}
		prompt.WriteString("Press ")
		prompt.WriteString(o.Digit)
		prompt.WriteString(" for ")
		prompt.WriteString(strings.TrimSuffix(strings.TrimSpace(o.Description), "."))
		prompt.WriteString(".")
	}

	return Document{Verbs: []Verb{
		Gather{
			NumDigits: 1,
			Action:    actionURL,
			Method:    "POST",
			Children:  []Verb{Say{Text: prompt.String()}},
		},
		Redirect{URL: menuURL, Method: "POST"},
	}}, nil
}

// ResolveConference applies defaults and validates bounds.
func ResolveConference(opts ConferenceOptions) (Conference, error) {
	const op = "twiml.Conference"
	if strings.TrimSpace(opts.Name) == "" {
		return Conference{}, calls.Validation(op, "conference name is required")
	}
	if !opts.Beep.Valid() {
		return Conference{}, calls.Configuration(op, "unknown beep mode "+quote(string(opts.Beep)))
	}

	maxP := DefaultMaxParticipants
	if opts.MaxParticipants != nil {
		maxP = *opts.MaxParticipants
	}
	if maxP <= 0 || maxP > MaxParticipantsCap {
		return Conference{}, calls.Configuration(op, "maxParticipants must be between 1 and 250")
	}

	events := opts.StatusCallbackEvents
	if len(events) == 0 {
		events = defaultConferenceEvents
	}
	record := DoNotRecord
	if opts.Record {
		record = RecordFromStart
	}

	return Conference{
		Name:                 opts.Name,
		StartOnEnter:         boolOr(opts.StartOnEnter, true),
		EndOnExit:            boolOr(opts.EndOnExit, false),
		WaitURL:              opts.WaitURL,
		MaxParticipants:      maxP,
		Record:               record,
		Muted:                boolOr(opts.Muted, false),
		Beep:                 opts.Beep.resolve(),
		StatusCallback:       opts.StatusCallback,
		StatusCallbackEvents: append([]string(nil), events...),
	}, nil
}

// JoinConference dials the caller into the conference described by opts.
func JoinConference(opts ConferenceOptions) (Document, error) {
	c, err := ResolveConference(opts)
	if err != nil {
		return Document{}, err
	}
	return Document{Verbs: []Verb{Dial{Conference: &c}}}, nil
}

// Transfer optionally announces, then dials target.
func Transfer(target, announcement string) (Document, error) {
	if strings.TrimSpace(target) == "" {
		return Document{}, calls.Validation("twiml.Transfer", "transfer target is required")
	}
	var d Document
	if strings.TrimSpace(announcement) != "" {
		d.Verbs = append(d.Verbs, Say{Text: announcement})
	}
	d.Verbs = append(d.Verbs, Dial{Target: strings.TrimSpace(target)})
	return d, nil
}

// Hold loops hold music until the call is redirected.
func Hold(holdAudioURL string) Document {
	u := strings.TrimSpace(holdAudioURL)
	if u == "" {
		u = DefaultHoldMusicURL
	}
	return Document{Verbs: []Verb{Play{URL: u, Loop: LoopForever}}}
}

func validDigit(d string) bool {
	if len(d) != 1 {
		return false
	}
	c := d[0]
	return (c >= '0' && c <= '9') || c == '*' || c == '#'
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func quote(s string) string { return "\"" + s + "\"" }
