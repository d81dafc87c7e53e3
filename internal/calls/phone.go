package calls

import (
	"errors"
	"strings"

	"github.com/ttacon/libphonenumber"
)

// DefaultRegion is used when a destination is written in national format.
const DefaultRegion = "US"

// NormalizeDestination validates a dial-able identifier and returns its canonical form.
//
// Accepted:
// - sip:... and client:... URIs, returned as-is (trimmed)
// - phone numbers in E.164 or national format, returned as E.164
func NormalizeDestination(raw string) (string, error) {
	const op = "calls.NormalizeDestination"

	v := strings.TrimSpace(raw)
	if v == "" {
		return "", Validation(op, "destination is required")
	}
	lower := strings.ToLower(v)
	if strings.HasPrefix(lower, "sip:") || strings.HasPrefix(lower, "client:") {
		if len(v) <= strings.Index(v, ":")+1 {
			return "", Validation(op, "destination uri has no target")
		}
		return v, nil
	}

	num, err := libphonenumber.Parse(v, DefaultRegion)
	if err != nil {
		return "", E(ErrValidation, op, v, err)
	}
	if !libphonenumber.IsPossibleNumber(num) {
		return "", E(ErrValidation, op, v, errBadNumber)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}

var errBadNumber = errors.New("destination is not a dialable phone number")
