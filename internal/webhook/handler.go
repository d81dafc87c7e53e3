package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"voice-platform/internal/calls"
	"voice-platform/internal/callstore"
	"voice-platform/internal/config"
	"voice-platform/internal/routing"
	"voice-platform/internal/twiml"
	"voice-platform/pkg/logger"
)

const (
	// InboundGreeting is spoken to every inbound caller before recording starts.
	InboundGreeting = "Thank you for calling. Please leave a message after the beep."

	invalidOptionPrompt = "Sorry, that is not a valid option."
)

// Webhook kinds, used for logs, audit and metrics labels.
const (
	KindInbound       = "inbound"
	KindRecording     = "recording"
	KindTranscription = "transcription"
	KindStatus        = "status"
	KindOutbound      = "outbound_answer"
	KindIVRMenu       = "ivr_menu"
	KindIVRResponse   = "ivr_response"
)

// Auditor records accepted callbacks. *audit.Service satisfies it.
type Auditor interface {
	LogWebhook(ctx context.Context, kind, callSid, recordingSid, ip, metadata string) error
}

// Menu is the IVR served on the menu and outbound-answer routes.
type Menu struct {
	Greeting string
	Options  []twiml.MenuOption
}

// Deps are the collaborators of a Handler. Store, Audit and Router are optional.
type Deps struct {
	Store  callstore.Sink
	Audit  Auditor
	Router routing.Engine
	Menu   Menu
	Now    func() time.Time
}

// Handler turns validated callbacks into response documents.
//
// Every callback is forwarded to the store as it arrives; ordering and the
// terminal freeze are the store's job. Store and audit failures are logged
// and never change the document returned to the provider.
type Handler struct {
	voice  config.VoiceConfig
	store  callstore.Sink
	audit  Auditor
	router routing.Engine
	menu   Menu
	now    func() time.Time
}

func NewHandler(voice config.VoiceConfig, deps Deps) (*Handler, error) {
	h := &Handler{
		voice:  voice.Resolved(),
		store:  deps.Store,
		audit:  deps.Audit,
		router: deps.Router,
		menu:   deps.Menu,
		now:    deps.Now,
	}
	if h.now == nil {
		h.now = time.Now
	}
	if len(h.menu.Options) > 0 {
		// Reject a broken menu at startup rather than on the first call.
		if _, err := h.menuDocument(); err != nil {
			return nil, err
		}
		if h.router == nil {
			eng, err := routing.NewMenuEngine(h.menu.Options, nil)
			if err != nil {
				return nil, err
			}
			h.router = eng
		}
	}
	return h, nil
}

// HandleInboundCall greets the caller and records a message.
// A payload already in a terminal state gets an empty acknowledgment.
func (h *Handler) HandleInboundCall(ctx context.Context, p Payload) (twiml.Document, error) {
	if p.Direction == "" {
		p.Direction = calls.DirectionInbound
	}
	h.applyStatus(ctx, KindInbound, p)

	if p.CallStatus.IsTerminal() {
		return twiml.Empty(), nil
	}
	return twiml.GreetingAndRecord(
		InboundGreeting,
		twiml.DefaultInboundMaxLength,
		h.voice.RecordingURL(),
		h.voice.TranscriptionURL(),
	)
}

// HandleRecording attaches a finished recording to its call.
func (h *Handler) HandleRecording(ctx context.Context, p Payload) (twiml.Document, error) {
	if err := p.ValidateRecording(); err != nil {
		return twiml.Document{}, err
	}
	if h.store != nil {
		if _, err := h.store.AttachRecording(ctx, p.Event(h.now()), p.RecordingSid, p.RecordingURL); err != nil {
			logger.From(ctx).Error("attach recording failed", "err", err)
		}
	}
	h.record(ctx, KindRecording, p, map[string]any{
		"recording_url":      p.RecordingURL,
		"recording_status":   p.RecordingStatus,
		"recording_duration": p.RecordingDuration,
	})
	return twiml.Empty(), nil
}

// HandleTranscription attaches transcription text to its call.
// A failed transcription is acknowledged and only logged.
func (h *Handler) HandleTranscription(ctx context.Context, p Payload) (twiml.Document, error) {
	if err := p.ValidateTranscription(); err != nil {
		return twiml.Document{}, err
	}
	log := logger.From(ctx)
	if p.TranscriptionText == "" {
		log.Warn("transcription failed", "transcription_sid", p.TranscriptionSid, "recording_sid", p.RecordingSid)
	} else if h.store != nil {
		if _, err := h.store.AttachTranscription(ctx, p.Event(h.now()), p.TranscriptionText); err != nil {
			log.Error("attach transcription failed", "err", err)
		}
	}
	h.record(ctx, KindTranscription, p, map[string]any{
		"transcription_sid":    p.TranscriptionSid,
		"transcription_status": p.TranscriptionStatus,
	})
	return twiml.Empty(), nil
}

// HandleStatus applies a status callback. CallStatus is required.
func (h *Handler) HandleStatus(ctx context.Context, p Payload) (twiml.Document, error) {
	if p.CallStatus == "" {
		return twiml.Document{}, calls.E(calls.ErrValidation, "webhook.HandleStatus", p.CallSid, errMissing("CallStatus"))
	}
	h.applyStatus(ctx, KindStatus, p)
	return twiml.Empty(), nil
}

// HandleOutboundAnswer serves the IVR menu to the callee of a placed call.
func (h *Handler) HandleOutboundAnswer(ctx context.Context, p Payload) (twiml.Document, error) {
	if p.Direction == "" {
		p.Direction = calls.DirectionOutboundAPI
	}
	h.applyStatus(ctx, KindOutbound, p)
	if p.CallStatus.IsTerminal() {
		return twiml.Empty(), nil
	}
	return h.menuDocument()
}

// HandleIVRMenu renders the configured menu.
func (h *Handler) HandleIVRMenu(ctx context.Context, p Payload) (twiml.Document, error) {
	h.record(ctx, KindIVRMenu, p, nil)
	return h.menuDocument()
}

// HandleIVRResponse routes the caller's key press. Unknown or missing input replays the menu.
func (h *Handler) HandleIVRResponse(ctx context.Context, p Payload) (twiml.Document, error) {
	log := logger.From(ctx)
	if h.router == nil {
		log.Warn("ivr response without a configured menu")
		return twiml.Empty(), nil
	}

	d, err := h.router.Route(ctx, routing.Input{
		CallSid:      p.CallSid,
		From:         p.From,
		To:           p.To,
		Digits:       p.Digits,
		SpeechResult: p.SpeechResult,
	})
	if err != nil {
		// Routing failures fall back to the menu so the caller is not dropped.
		log.Error("ivr routing failed", "err", err)
		d = routing.Decision{Action: routing.ActionReplay, Reason: "routing_error"}
	}
	log.Info("ivr decision", "action", d.Action, "digit", d.Digit, "reason", d.Reason)
	h.record(ctx, KindIVRResponse, p, map[string]any{"action": d.Action, "digit": d.Digit, "reason": d.Reason})

	if d.Action == routing.ActionRedirect && d.URL != "" {
		return twiml.Empty().Append(twiml.Redirect{URL: d.URL, Method: "POST"}), nil
	}
	menu, err := h.menuDocument()
	if err != nil {
		return twiml.Document{}, err
	}
	return twiml.Empty().Append(twiml.Say{Text: invalidOptionPrompt}).Append(menu.Verbs...), nil
}

func (h *Handler) menuDocument() (twiml.Document, error) {
	if len(h.menu.Options) == 0 {
		greeting := h.menu.Greeting
		if greeting == "" {
			return twiml.Empty().Append(twiml.Hangup{}), nil
		}
		return twiml.Empty().Append(twiml.Say{Text: greeting}, twiml.Hangup{}), nil
	}
	return twiml.IVRMenu(
		h.menu.Greeting,
		h.menu.Options,
		h.voice.Link(config.PathIVRResponse),
		h.voice.Link(config.PathIVRMenu),
	)
}

func (h *Handler) applyStatus(ctx context.Context, kind string, p Payload) {
	if h.store != nil {
		rec, err := h.store.ApplyStatus(ctx, p.Event(h.now()), p.CallStatus, p.CallDuration)
		if err != nil {
			logger.From(ctx).Error("apply call status failed", "kind", kind, "err", err)
		} else if rec.Status != p.CallStatus && p.CallStatus != "" {
			logger.From(ctx).Debug("status ignored", "kind", kind, "status", p.CallStatus, "current", rec.Status)
		}
	}
	h.record(ctx, kind, p, map[string]any{
		"call_status":   p.CallStatus,
		"call_duration": p.CallDuration,
		"direction":     p.Direction,
	})
}

func (h *Handler) record(ctx context.Context, kind string, p Payload, meta map[string]any) {
	if h.audit == nil {
		return
	}
	raw := ""
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err == nil {
			raw = string(b)
		}
	}
	err := h.audit.LogWebhook(ctx, kind, p.CallSid, p.RecordingSid, routing.ClientIPFromContext(ctx), raw)
	if err != nil {
		logger.From(ctx).Warn("audit webhook failed", "kind", kind, "err", err)
	}
}

// IsValidation reports whether err is a rejected payload rather than an internal failure.
func IsValidation(err error) bool { return errors.Is(err, calls.ErrValidation) }
