package telephony

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"voice-platform/internal/calls"
	"voice-platform/internal/config"
	"voice-platform/internal/twiml"
)

// Service runs outbound call actions through a Provider and builds the
// call-flow documents served on the voice webhook routes.
//
// It holds no mutable state; one instance is shared by all request handlers.
type Service struct {
	provider Provider
	voice    config.VoiceConfig
	log      *slog.Logger
}

func NewService(provider Provider, voice config.VoiceConfig, log *slog.Logger) (*Service, error) {
	if provider == nil {
		return nil, errors.New("telephony: provider is nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{provider: provider, voice: voice.Resolved(), log: log}, nil
}

func (s *Service) ProviderName() string { return s.provider.Name() }

func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.provider.HealthCheck(ctx); err != nil {
		return providerErr("telephony.HealthCheck", "", err)
	}
	return nil
}

// PlaceCall starts an outbound call. Provider rejections are returned as ErrProvider and never retried.
func (s *Service) PlaceCall(ctx context.Context, opts CallOptions) (CallHandle, error) {
	const op = "telephony.PlaceCall"

	params, err := resolveCallOptions(opts, s.voice)
	if err != nil {
		return CallHandle{}, err
	}
	h, err := s.provider.CreateCall(ctx, params)
	if err != nil {
		return CallHandle{}, providerErr(op, params.To, err)
	}
	s.log.Info("outbound call placed", "call_sid", h.Sid, "to", params.To, "status", h.Status)
	return h, nil
}

func (s *Service) GetCallDetails(ctx context.Context, callSid string) (calls.CallRecord, error) {
	const op = "telephony.GetCallDetails"

	sid, err := requireSid(op, callSid)
	if err != nil {
		return calls.CallRecord{}, err
	}
	rec, err := s.provider.FetchCall(ctx, sid)
	if err != nil {
		return calls.CallRecord{}, providerErr(op, sid, err)
	}
	return rec, nil
}

// EndCall moves the call to completed. Ending a call that is already terminal
// returns the existing record without error.
func (s *Service) EndCall(ctx context.Context, callSid string) (calls.CallRecord, error) {
	const op = "telephony.EndCall"

	sid, err := requireSid(op, callSid)
	if err != nil {
		return calls.CallRecord{}, err
	}
	cur, err := s.provider.FetchCall(ctx, sid)
	if err != nil {
		return calls.CallRecord{}, providerErr(op, sid, err)
	}
	if cur.Status.IsTerminal() {
		return cur, nil
	}

	rec, err := s.provider.UpdateCallStatus(ctx, sid, calls.CallStatusCompleted)
	if err != nil {
		// The call may have ended on its own between fetch and update.
		if again, ferr := s.provider.FetchCall(ctx, sid); ferr == nil && again.Status.IsTerminal() {
			return again, nil
		}
		return calls.CallRecord{}, providerErr(op, sid, err)
	}
	s.log.Info("call ended", "call_sid", sid, "status", rec.Status)
	return rec, nil
}

// ListRecordings returns up to limit recordings in provider order (newest first).
func (s *Service) ListRecordings(ctx context.Context, callSid string, limit int) ([]calls.Recording, error) {
	const op = "telephony.ListRecordings"

	sid, err := requireSid(op, callSid)
	if err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, calls.Validation(op, "limit must not be negative")
	}
	if limit == 0 {
		limit = DefaultRecordingsLimit
	}
	recs, err := s.provider.ListRecordings(ctx, RecordingFilter{CallSid: sid, Limit: limit})
	if err != nil {
		return nil, providerErr(op, sid, err)
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// DeleteRecording removes a recording. Deleting an absent recording is ErrNotFound.
func (s *Service) DeleteRecording(ctx context.Context, recordingSid string) error {
	const op = "telephony.DeleteRecording"

	sid, err := requireSid(op, recordingSid)
	if err != nil {
		return err
	}
	if err := s.provider.DeleteRecording(ctx, sid); err != nil {
		return providerErr(op, sid, err)
	}
	s.log.Info("recording deleted", "recording_sid", sid)
	return nil
}

func (s *Service) SendMessage(ctx context.Context, opts SMSOptions) (MessageHandle, error) {
	const op = "telephony.SendMessage"

	params, err := resolveSMSOptions(opts, s.voice)
	if err != nil {
		return MessageHandle{}, err
	}
	h, err := s.provider.CreateMessage(ctx, params)
	if err != nil {
		return MessageHandle{}, providerErr(op, params.To, err)
	}
	s.log.Info("message sent", "message_sid", h.Sid, "to", params.To)
	return h, nil
}

// QueryCallHistory returns calls matching f. The filter is re-applied locally so the
// bounds hold whatever the provider's own date semantics are.
func (s *Service) QueryCallHistory(ctx context.Context, f HistoryFilter) ([]calls.CallRecord, error) {
	const op = "telephony.QueryCallHistory"

	if f.Limit < 0 {
		return nil, calls.Validation(op, "limit must not be negative")
	}
	if f.Limit == 0 {
		f.Limit = DefaultHistoryLimit
	}
	if f.StartTime != nil && f.EndTime != nil && !f.StartTime.Before(*f.EndTime) {
		return nil, calls.Validation(op, "start time must be before end time")
	}
	f.To = historyNumber(f.To)
	f.From = historyNumber(f.From)

	recs, err := s.provider.ListCalls(ctx, CallListFilter{
		To:              f.To,
		From:            f.From,
		StartTimeAfter:  f.StartTime,
		StartTimeBefore: f.EndTime,
		Limit:           f.Limit,
	})
	if err != nil {
		return nil, providerErr(op, "", err)
	}

	out := make([]calls.CallRecord, 0, min(len(recs), f.Limit))
	for _, r := range recs {
		if len(out) == f.Limit {
			break
		}
		if matchesHistory(r, f) {
			out = append(out, r)
		}
	}
	return out, nil
}

// historyNumber puts a filter number in the form PlaceCall stores. Values that
// do not parse are matched as given.
func historyNumber(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if n, err := calls.NormalizeDestination(v); err == nil {
		return n
	}
	return v
}

func matchesHistory(r calls.CallRecord, f HistoryFilter) bool {
	if f.To != "" && r.To != f.To {
		return false
	}
	if f.From != "" && r.From != f.From {
		return false
	}
	if f.StartTime != nil && r.StartTime.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && !r.StartTime.Before(*f.EndTime) {
		return false
	}
	return true
}

// IVRMenu builds the menu served on the IVR routes. Digits post back to the
// IVR response route; silence redirects to the menu route.
func (s *Service) IVRMenu(greeting string, options []twiml.MenuOption) (twiml.Document, error) {
	return twiml.IVRMenu(greeting, options, s.voice.Link(config.PathIVRResponse), s.voice.Link(config.PathIVRMenu))
}

func (s *Service) Conference(opts twiml.ConferenceOptions) (twiml.Document, error) {
	return twiml.JoinConference(opts)
}

// Transfer validates the target as a dial-able destination before building the document.
func (s *Service) Transfer(target, announcement string) (twiml.Document, error) {
	to, err := calls.NormalizeDestination(target)
	if err != nil {
		return twiml.Document{}, err
	}
	return twiml.Transfer(to, announcement)
}

func (s *Service) Hold(holdAudioURL string) twiml.Document {
	return twiml.Hold(holdAudioURL)
}

// Voicemail greets and records. maxLength 0 means DefaultVoicemailMaxLength.
func (s *Service) Voicemail(prompt string, maxLength int) (twiml.Document, error) {
	if strings.TrimSpace(prompt) == "" {
		prompt = defaultVoicemailPrompt
	}
	if maxLength == 0 {
		maxLength = twiml.DefaultVoicemailMaxLength
	}
	return twiml.GreetingAndRecord(
		prompt,
		maxLength,
		s.voice.Link(config.PathVoicemailComplete),
		s.voice.Link(config.PathVoicemailTranscribed),
	)
}

func requireSid(op, sid string) (string, error) {
	sid = strings.TrimSpace(sid)
	if sid == "" {
		return "", calls.Validation(op, "sid is required")
	}
	return sid, nil
}

// providerErr keeps a NotFound or Validation kind reported by the adapter; anything else is ErrProvider.
func providerErr(op, id string, err error) error {
	kind := calls.ErrProvider
	switch {
	case errors.Is(err, calls.ErrNotFound):
		kind = calls.ErrNotFound
	case errors.Is(err, calls.ErrValidation):
		kind = calls.ErrValidation
	}
	return calls.E(kind, op, id, err)
}
