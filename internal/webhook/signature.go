package webhook

import (
	"net/http"
	"strings"

	twclient "github.com/twilio/twilio-go/client"
)

const signatureHeader = "X-Twilio-Signature"

// SignatureVerifier checks the provider's request signature.
//
// The signed URL is the public one the provider called, so it is rebuilt from
// the configured webhook base rather than from the Host header.
type SignatureVerifier struct {
	baseURL   string
	validator twclient.RequestValidator
}

func NewSignatureVerifier(authToken, publicBaseURL string) *SignatureVerifier {
	return &SignatureVerifier{
		baseURL:   strings.TrimRight(publicBaseURL, "/"),
		validator: twclient.NewRequestValidator(authToken),
	}
}

// Verify reports whether r carries a valid signature. r.ParseForm must have run.
func (v *SignatureVerifier) Verify(r *http.Request) bool {
	sig := r.Header.Get(signatureHeader)
	if sig == "" {
		return false
	}
	params := make(map[string]string, len(r.PostForm))
	for k, vals := range r.PostForm {
		if len(vals) > 0 {
			params[k] = vals[0]
		}
	}
	return v.validator.Validate(v.baseURL+r.URL.RequestURI(), params, sig)
}
