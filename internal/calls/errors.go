package calls

import (
	"errors"
	"strings"
)

// Error kinds. Match with errors.Is.
var (
	// ErrValidation marks malformed or missing input. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrProvider marks a rejection or failure reported by the telephony backend.
	ErrProvider = errors.New("provider error")
	// ErrNotFound marks an unknown call or recording id.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration marks a builder invariant violation, raised before any network call.
	ErrConfiguration = errors.New("configuration error")
)

// Error carries an error kind plus the operation and target id it happened on.
type Error struct {
	Kind error
	Op   string
	ID   string
	Err  error
}

// E builds an *Error wrapping err under kind.
func E(kind error, op, id string, err error) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Err: err}
}

// Validation returns an ErrValidation error with a message cause.
func Validation(op, msg string) *Error {
	return &Error{Kind: ErrValidation, Op: op, Err: errors.New(msg)}
}

// Configuration returns an ErrConfiguration error with a message cause.
func Configuration(op, msg string) *Error {
	return &Error{Kind: ErrConfiguration, Op: op, Err: errors.New(msg)}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.ID != "" {
			b.WriteString("(")
			b.WriteString(e.ID)
			b.WriteString(")")
		}
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		if e.Kind != nil {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// KindOf returns the first known kind found in err's chain, or nil.
func KindOf(err error) error {
	for _, k := range []error{ErrValidation, ErrConfiguration, ErrNotFound, ErrProvider} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
