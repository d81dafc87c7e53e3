package routing

import (
	"context"
	"errors"

	"voice-platform/internal/twiml"
)

// MenuEngine routes a pressed key to the matching menu option's action.
//
// Priority:
//  1. Active override (if configured)
//  2. Option whose digit matches the first key
//  3. Replay the menu
type MenuEngine struct {
	Overrides *OverrideEngine

	options map[string]twiml.MenuOption
}

// NewMenuEngine indexes options by digit. Options are assumed to have passed menu validation.
// An empty menu is only allowed when overrides can still route the call.
func NewMenuEngine(options []twiml.MenuOption, overrides *OverrideEngine) (*MenuEngine, error) {
	if len(options) == 0 && overrides == nil {
		return nil, errors.New("routing: menu has no options")
	}
	idx := make(map[string]twiml.MenuOption, len(options))
	for _, o := range options {
		if _, dup := idx[o.Digit]; dup {
			return nil, errors.New("routing: duplicate menu digit " + o.Digit)
		}
		idx[o.Digit] = o
	}
	return &MenuEngine{Overrides: overrides, options: idx}, nil
}

func (e *MenuEngine) Route(ctx context.Context, in Input) (Decision, error) {
	if e.Overrides != nil {
		d, applied, err := e.Overrides.Decide(ctx, in)
		if err != nil {
			return Decision{}, err
		}
		if applied {
			return d, nil
		}
	}

	key := in.key()
	if key == "" {
		return Decision{Action: ActionReplay, Reason: "no_input"}, nil
	}
	o, ok := e.options[key]
	if !ok {
		return Decision{Action: ActionReplay, Digit: key, Reason: "unknown_digit"}, nil
	}
	if o.Action == "" {
		return Decision{Action: ActionReplay, Digit: key, Reason: "option_has_no_action"}, nil
	}
	return Decision{Action: ActionRedirect, URL: o.Action, Digit: key, Reason: "selected"}, nil
}
