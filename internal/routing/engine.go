package routing

import (
	"context"
	"strings"
)

// Engine decides where an IVR input goes.
//
// Implementations return a Decision only: no provider calls, no store writes.
type Engine interface {
	Route(ctx context.Context, in Input) (Decision, error)
}

// Input is the caller's response to a menu.
type Input struct {
	CallSid string
	From    string
	To      string

	// Digits as pressed. Only the first key is considered by a single-digit menu.
	Digits string

	// SpeechResult is used when no digits were pressed; a spoken digit ("one", "2") is accepted.
	SpeechResult string
}

// key returns the single menu key carried by in, or "".
func (in Input) key() string {
	if d := strings.TrimSpace(in.Digits); d != "" {
		return d[:1]
	}
	return spokenDigit(in.SpeechResult)
}

var spokenDigits = map[string]string{
	"zero": "0", "oh": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
	"star": "*", "pound": "#", "hash": "#",
}

func spokenDigit(s string) string {
	s = strings.ToLower(strings.Trim(strings.TrimSpace(s), ".!?"))
	if s == "" {
		return ""
	}
	if len(s) == 1 && strings.ContainsAny(s, "0123456789*#") {
		return s
	}
	return spokenDigits[s]
}
