package twiml

// Document is an ordered list of verbs returned to the provider.
// Verb order is execution order. An empty document is a valid no-op acknowledgment.
type Document struct {
	Verbs []Verb
}

// Empty returns the acknowledgment document.
func Empty() Document { return Document{} }

// Append returns a copy of d with v appended.
func (d Document) Append(v ...Verb) Document {
	out := make([]Verb, 0, len(d.Verbs)+len(v))
	out = append(out, d.Verbs...)
	out = append(out, v...)
	return Document{Verbs: out}
}

// Verb is implemented by every instruction a document can carry.
type Verb interface {
	verbName() string
}

// Say speaks text with the provider's text-to-speech engine.
type Say struct {
	Text     string
	Voice    string
	Language string
}

// Record records the caller and posts the result to Action.
type Record struct {
	MaxLength          int
	Action             string
	Method             string
	Transcribe         bool
	TranscribeCallback string
}

// Gather collects DTMF digits while playing its nested verbs.
type Gather struct {
	NumDigits int
	Action    string
	Method    string
	Timeout   int
	Children  []Verb
}

// Dial connects the call to a number, URI, or conference.
// Exactly one of Target and Conference is set.
type Dial struct {
	Target     string
	CallerID   string
	Timeout    int
	Conference *Conference
}

// Conference is the noun nested in a Dial that joins a named bridge.
type Conference struct {
	Name                 string
	StartOnEnter         bool
	EndOnExit            bool
	WaitURL              string
	MaxParticipants      int
	Record               RecordMode
	Muted                bool
	Beep                 Beep
	StatusCallback       string
	StatusCallbackEvents []string
}

// Play streams an audio file. Loop 0 plays until the call leaves the verb.
type Play struct {
	URL  string
	Loop int
}

// Redirect transfers control to the document served at URL.
type Redirect struct {
	URL    string
	Method string
}

// Hangup ends the call.
type Hangup struct{}

func (Say) verbName() string      { return "Say" }
func (Record) verbName() string   { return "Record" }
func (Gather) verbName() string   { return "Gather" }
func (Dial) verbName() string     { return "Dial" }
func (Play) verbName() string     { return "Play" }
func (Redirect) verbName() string { return "Redirect" }
func (Hangup) verbName() string   { return "Hangup" }

// RecordMode is the provider's conference recording flag.
type RecordMode string

const (
	RecordFromStart RecordMode = "record-from-start"
	DoNotRecord     RecordMode = "do-not-record"
)

// Beep controls the tone played when participants join or leave a conference.
// The zero value resolves to BeepTrue.
type Beep string

const (
	BeepDefault Beep = ""
	BeepTrue    Beep = "true"
	BeepFalse   Beep = "false"
	BeepOnEnter Beep = "onEnter"
	BeepOnExit  Beep = "onExit"
)

// Valid reports whether b is one of the known beep modes (including the default).
func (b Beep) Valid() bool {
	switch b {
	case BeepDefault, BeepTrue, BeepFalse, BeepOnEnter, BeepOnExit:
		return true
	default:
		return false
	}
}

func (b Beep) resolve() Beep {
	if b == BeepDefault {
		return BeepTrue
	}
	return b
}
