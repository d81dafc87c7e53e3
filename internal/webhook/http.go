package webhook

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"voice-platform/internal/config"
	"voice-platform/internal/routing"
	"voice-platform/internal/twiml"
	"voice-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Outcome labels reported to the Observer.
const (
	OutcomeOK        = "ok"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
	OutcomeForbidden = "forbidden"
	OutcomeThrottled = "throttled"
)

// Observer receives one observation per callback. internal/metrics implements it.
type Observer interface {
	ObserveWebhook(kind, outcome string, elapsed time.Duration)
}

// Limiter reports whether another callback for key may be processed now.
// httpapi.RateLimiter implements it.
type Limiter interface {
	Allow(key string) bool
}

// HTTP exposes a Handler on gin.
//
// Except for a bad signature, every callback is answered 200 with a valid
// document, empty on failure, so a live call is never left waiting.
type HTTP struct {
	Handler  *Handler
	Verifier *SignatureVerifier // nil disables signature checks
	Limiter  Limiter            // nil disables throttling
	Observer Observer
}

type handleFunc func(context.Context, Payload) (twiml.Document, error)

// Register mounts the voice callback routes on r.
func (x *HTTP) Register(r gin.IRoutes) {
	h := x.Handler
	r.POST(config.PathVoiceWebhook, x.serve(KindInbound, h.HandleInboundCall))
	r.POST(config.PathVoiceWebhook+"/recording", x.serve(KindRecording, h.HandleRecording))
	r.POST(config.PathVoiceWebhook+"/transcription", x.serve(KindTranscription, h.HandleTranscription))
	r.POST(config.PathStatus, x.serve(KindStatus, h.HandleStatus))
	r.POST(config.PathOutboundAnswer, x.serve(KindOutbound, h.HandleOutboundAnswer))
	r.POST(config.PathIVRMenu, x.serve(KindIVRMenu, h.HandleIVRMenu))
	r.POST(config.PathIVRResponse, x.serve(KindIVRResponse, h.HandleIVRResponse))
	r.POST(config.PathVoicemailComplete, x.serve(KindRecording, h.HandleRecording))
	r.POST(config.PathVoicemailTranscribed, x.serve(KindTranscription, h.HandleTranscription))
}

func (x *HTTP) serve(kind string, fn handleFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		log := logger.FromGin(c).With("webhook", kind)

		if err := c.Request.ParseForm(); err != nil {
			log.Warn("webhook form parse failed", "err", err)
			x.observe(kind, OutcomeRejected, start)
			writeDocument(c, twiml.Empty())
			return
		}
		if x.Verifier != nil && !x.Verifier.Verify(c.Request) {
			log.Warn("webhook signature rejected", "ip", c.ClientIP())
			x.observe(kind, OutcomeForbidden, start)
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		if x.Limiter != nil {
			if key := throttleKey(c.Request.PostForm, c.ClientIP()); !x.Limiter.Allow(key) {
				log.Warn("webhook throttled", "key", key)
				x.observe(kind, OutcomeThrottled, start)
				writeDocument(c, twiml.Empty())
				return
			}
		}

		p, err := ParsePayload(c.Request.PostForm)
		if err != nil {
			log.Warn("webhook payload rejected", "err", err)
			x.observe(kind, OutcomeRejected, start)
			writeDocument(c, twiml.Empty())
			return
		}

		log = log.With("call_sid", p.CallSid)
		c.Set("logger", log)
		ctx := routing.WithClientIP(c.Request.Context(), c.ClientIP())
		ctx = logger.With(ctx, log)

		doc, err := fn(ctx, p)
		if err != nil {
			outcome := OutcomeError
			if IsValidation(err) {
				outcome = OutcomeRejected
				log.Warn("webhook rejected", "err", err)
			} else {
				log.Error("webhook failed", "err", err)
			}
			x.observe(kind, outcome, start)
			writeDocument(c, twiml.Empty())
			return
		}

		log.Debug("webhook handled", "status", p.CallStatus, "verbs", len(doc.Verbs))
		x.observe(kind, OutcomeOK, start)
		writeDocument(c, doc)
	}
}

// throttleKey buckets callbacks per call. Provider callbacks share a small pool
// of egress addresses, so the client IP is only a last resort.
func throttleKey(form url.Values, ip string) string {
	if sid := strings.TrimSpace(form.Get("CallSid")); sid != "" {
		return "call:" + sid
	}
	if sid := strings.TrimSpace(form.Get("AccountSid")); sid != "" {
		return "account:" + sid
	}
	return "ip:" + ip
}

func (x *HTTP) observe(kind, outcome string, start time.Time) {
	if x.Observer != nil {
		x.Observer.ObserveWebhook(kind, outcome, time.Since(start))
	}
}

func writeDocument(c *gin.Context, doc twiml.Document) {
	out, err := doc.Render()
	if err != nil {
		logger.FromGin(c).Error("twiml render failed", "err", err)
		out = twiml.MustRenderEmpty()
	}
	c.Data(http.StatusOK, twiml.ContentType, []byte(out))
}
