package routing

// Decision is the outcome of routing one IVR input.
//
// It carries only what the webhook layer needs to answer the provider;
// it never contains document markup.
type Decision struct {
	Action Action `json:"action"`

	// URL is the redirect target when Action == ActionRedirect.
	URL string `json:"url,omitempty"`

	// Digit is the option that matched, if any.
	Digit string `json:"digit,omitempty"`

	// Reason is optional and intended for internal logs/metrics.
	Reason string `json:"reason,omitempty"`
}

type Action string

const (
	// ActionRedirect sends the call to URL.
	ActionRedirect Action = "redirect"
	// ActionReplay plays the menu again.
	ActionReplay Action = "replay"
)
