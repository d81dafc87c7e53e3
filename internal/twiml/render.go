package twiml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ContentType is the media type of a rendered document.
const ContentType = "text/xml; charset=utf-8"

type xmlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type xmlSay struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type xmlRecord struct {
	XMLName            xml.Name `xml:"Record"`
	MaxLength          int      `xml:"maxLength,attr,omitempty"`
	Action             string   `xml:"action,attr,omitempty"`
	Method             string   `xml:"method,attr,omitempty"`
	Transcribe         string   `xml:"transcribe,attr,omitempty"`
	TranscribeCallback string   `xml:"transcribeCallback,attr,omitempty"`
}

type xmlGather struct {
	XMLName   xml.Name `xml:"Gather"`
	NumDigits int      `xml:"numDigits,attr,omitempty"`
	Action    string   `xml:"action,attr,omitempty"`
	Method    string   `xml:"method,attr,omitempty"`
	Timeout   int      `xml:"timeout,attr,omitempty"`
	Children  []any    `xml:",any"`
}

type xmlDial struct {
	XMLName    xml.Name       `xml:"Dial"`
	CallerID   string         `xml:"callerId,attr,omitempty"`
	Timeout    int            `xml:"timeout,attr,omitempty"`
	Number     string         `xml:"Number,omitempty"`
	Sip        string         `xml:"Sip,omitempty"`
	Client     string         `xml:"Client,omitempty"`
	Conference *xmlConference `xml:"Conference,omitempty"`
}

type xmlConference struct {
	StartConferenceOnEnter bool   `xml:"startConferenceOnEnter,attr"`
	EndConferenceOnExit    bool   `xml:"endConferenceOnExit,attr"`
	WaitURL                string `xml:"waitUrl,attr,omitempty"`
	MaxParticipants        int    `xml:"maxParticipants,attr"`
	Record                 string `xml:"record,attr"`
	Muted                  bool   `xml:"muted,attr"`
	Beep                   string `xml:"beep,attr"`
	StatusCallback         string `xml:"statusCallback,attr,omitempty"`
	StatusCallbackEvent    string `xml:"statusCallbackEvent,attr,omitempty"`
	Name                   string `xml:",chardata"`
}

type xmlPlay struct {
	XMLName xml.Name `xml:"Play"`
	Loop    string   `xml:"loop,attr"`
	URL     string   `xml:",chardata"`
}

type xmlRedirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

type xmlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Render serializes d as a provider XML document.
func (d Document) Render() (string, error) {
	r := xmlResponse{Verbs: make([]any, 0, len(d.Verbs))}
	for i, v := range d.Verbs {
		x, err := toXML(v)
		if err != nil {
			return "", fmt.Errorf("twiml: verb %d: %w", i, err)
		}
		r.Verbs = append(r.Verbs, x)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// MustRenderEmpty returns the rendered acknowledgment document. It cannot fail.
func MustRenderEmpty() string {
	out, err := Empty().Render()
	if err != nil {
		panic(err)
	}
	return out
}

func toXML(v Verb) (any, error) {
	switch v := v.(type) {
	case Say:
		return xmlSay{Voice: v.Voice, Language: v.Language, Text: v.Text}, nil
	case Record:
		x := xmlRecord{MaxLength: v.MaxLength, Action: v.Action, Method: v.Method, TranscribeCallback: v.TranscribeCallback}
		if v.Transcribe {
			x.Transcribe = "true"
		}
		return x, nil
	case Gather:
		x := xmlGather{NumDigits: v.NumDigits, Action: v.Action, Method: v.Method, Timeout: v.Timeout}
		for _, c := range v.Children {
			switch c.(type) {
			case Say, Play:
			default:
				return nil, fmt.Errorf("%s cannot be nested in Gather", c.verbName())
			}
			cx, err := toXML(c)
			if err != nil {
				return nil, err
			}
			x.Children = append(x.Children, cx)
		}
		return x, nil
	case Dial:
		return dialXML(v)
	case Play:
		return xmlPlay{Loop: strconv.Itoa(v.Loop), URL: v.URL}, nil
	case Redirect:
		return xmlRedirect{Method: v.Method, URL: v.URL}, nil
	case Hangup:
		return xmlHangup{}, nil
	case nil:
		return nil, errors.New("nil verb")
	default:
		return nil, fmt.Errorf("unsupported verb %T", v)
	}
}

func dialXML(v Dial) (xmlDial, error) {
	x := xmlDial{CallerID: v.CallerID, Timeout: v.Timeout}
	target := strings.TrimSpace(v.Target)
	switch {
	case v.Conference != nil && target != "":
		return xmlDial{}, errors.New("dial has both target and conference")
	case v.Conference != nil:
		c := v.Conference
		x.Conference = &xmlConference{
			StartConferenceOnEnter: c.StartOnEnter,
			EndConferenceOnExit:    c.EndOnExit,
			WaitURL:                c.WaitURL,
			MaxParticipants:        c.MaxParticipants,
			Record:                 string(c.Record),
			Muted:                  c.Muted,
			Beep:                   string(c.Beep.resolve()),
			StatusCallback:         c.StatusCallback,
			StatusCallbackEvent:    strings.Join(c.StatusCallbackEvents, " "),
			Name:                   c.Name,
		}
	case target == "":
		return xmlDial{}, errors.New("dial target required")
	default:
		// sip: and client: targets use their own nouns; everything else is a PSTN number.
		lower := strings.ToLower(target)
		switch {
		case strings.HasPrefix(lower, "sip:"):
			x.Sip = target
		case strings.HasPrefix(lower, "client:"):
			x.Client = target[len("client:"):]
		default:
			x.Number = target
		}
	}
	return x, nil
}
