package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"voice-platform/internal/calls"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// twilioAPI is the subset of the v2010 REST service used by TwilioProvider.
type twilioAPI interface {
	FetchAccount(sid string) (*openapi.ApiV2010Account, error)
	CreateCall(params *openapi.CreateCallParams) (*openapi.ApiV2010Call, error)
	FetchCall(sid string, params *openapi.FetchCallParams) (*openapi.ApiV2010Call, error)
	UpdateCall(sid string, params *openapi.UpdateCallParams) (*openapi.ApiV2010Call, error)
	ListRecording(params *openapi.ListRecordingParams) ([]openapi.ApiV2010Recording, error)
	DeleteRecording(sid string, params *openapi.DeleteRecordingParams) error
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
	ListCall(params *openapi.ListCallParams) ([]openapi.ApiV2010Call, error)
}

const twilioMediaBase = "https://api.twilio.com"

// TwilioProvider talks to the Twilio REST API.
//
// The SDK is not context-aware; ctx is checked before each request so a
// cancelled caller does not start new work.
type TwilioProvider struct {
	api        twilioAPI
	accountSID string
}

func NewTwilioProvider(accountSID, authToken string) (*TwilioProvider, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("telephony: twilio credentials are required")
	}
	c := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioProvider{api: c.Api, accountSID: accountSID}, nil
}

func (p *TwilioProvider) Name() string { return "twilio" }

func (p *TwilioProvider) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.api.FetchAccount(p.accountSID)
	return mapTwilioErr(err)
}

func (p *TwilioProvider) CreateCall(ctx context.Context, in CreateCallParams) (CallHandle, error) {
	if err := ctx.Err(); err != nil {
		return CallHandle{}, err
	}
	params := &openapi.CreateCallParams{}
	params.SetTo(in.To)
	params.SetFrom(in.From)
	params.SetUrl(in.URL)
	if in.StatusCallback != "" {
		params.SetStatusCallback(in.StatusCallback)
		params.SetStatusCallbackMethod(in.StatusCallbackMethod)
		params.SetStatusCallbackEvent(in.StatusCallbackEvents)
	}
	params.SetRecord(in.Record)
	if in.RecordingChannels != "" {
		params.SetRecordingChannels(in.RecordingChannels)
	}
	if in.RecordingStatusCallback != "" {
		params.SetRecordingStatusCallback(in.RecordingStatusCallback)
	}
	params.SetTimeout(in.TimeoutSeconds)
	if in.MachineDetection != "" {
		params.SetMachineDetection(in.MachineDetection)
		if in.MachineDetectionTimeout > 0 {
			params.SetMachineDetectionTimeout(in.MachineDetectionTimeout)
		}
	}

	resp, err := p.api.CreateCall(params)
	if err != nil {
		return CallHandle{}, mapTwilioErr(err)
	}
	status, _ := calls.ParseStatus(deref(resp.Status))
	return CallHandle{Sid: deref(resp.Sid), Status: status}, nil
}

func (p *TwilioProvider) FetchCall(ctx context.Context, callSid string) (calls.CallRecord, error) {
	if err := ctx.Err(); err != nil {
		return calls.CallRecord{}, err
	}
	resp, err := p.api.FetchCall(callSid, &openapi.FetchCallParams{})
	if err != nil {
		return calls.CallRecord{}, mapTwilioErr(err)
	}
	return toCallRecord(*resp), nil
}

func (p *TwilioProvider) UpdateCallStatus(ctx context.Context, callSid string, status calls.CallStatus) (calls.CallRecord, error) {
	if err := ctx.Err(); err != nil {
		return calls.CallRecord{}, err
	}
	params := &openapi.UpdateCallParams{}
	params.SetStatus(string(status))
	resp, err := p.api.UpdateCall(callSid, params)
	if err != nil {
		return calls.CallRecord{}, mapTwilioErr(err)
	}
	return toCallRecord(*resp), nil
}

func (p *TwilioProvider) ListRecordings(ctx context.Context, f RecordingFilter) ([]calls.Recording, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params := &openapi.ListRecordingParams{}
	if f.CallSid != "" {
		params.SetCallSid(f.CallSid)
	}
	if f.Limit > 0 {
		params.SetLimit(f.Limit)
	}
	resp, err := p.api.ListRecording(params)
	if err != nil {
		return nil, mapTwilioErr(err)
	}
	out := make([]calls.Recording, 0, len(resp))
	for _, r := range resp {
		out = append(out, toRecording(r))
	}
	return out, nil
}

func (p *TwilioProvider) DeleteRecording(ctx context.Context, recordingSid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapTwilioErr(p.api.DeleteRecording(recordingSid, &openapi.DeleteRecordingParams{}))
}

func (p *TwilioProvider) CreateMessage(ctx context.Context, in MessageParams) (MessageHandle, error) {
	if err := ctx.Err(); err != nil {
		return MessageHandle{}, err
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(in.To)
	params.SetFrom(in.From)
	if in.Body != "" {
		params.SetBody(in.Body)
	}
	if len(in.MediaURLs) > 0 {
		params.SetMediaUrl(in.MediaURLs)
	}
	if in.StatusCallback != "" {
		params.SetStatusCallback(in.StatusCallback)
	}
	resp, err := p.api.CreateMessage(params)
	if err != nil {
		return MessageHandle{}, mapTwilioErr(err)
	}
	return MessageHandle{Sid: deref(resp.Sid), Status: deref(resp.Status)}, nil
}

func (p *TwilioProvider) ListCalls(ctx context.Context, f CallListFilter) ([]calls.CallRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params := &openapi.ListCallParams{}
	if f.To != "" {
		params.SetTo(f.To)
	}
	if f.From != "" {
		params.SetFrom(f.From)
	}
	if f.StartTimeAfter != nil {
		params.SetStartTimeAfter(*f.StartTimeAfter)
	}
	if f.StartTimeBefore != nil {
		params.SetStartTimeBefore(*f.StartTimeBefore)
	}
	if f.Limit > 0 {
		params.SetLimit(f.Limit)
	}
	resp, err := p.api.ListCall(params)
	if err != nil {
		return nil, mapTwilioErr(err)
	}
	out := make([]calls.CallRecord, 0, len(resp))
	for _, c := range resp {
		out = append(out, toCallRecord(c))
	}
	return out, nil
}

func toCallRecord(c openapi.ApiV2010Call) calls.CallRecord {
	status, _ := calls.ParseStatus(deref(c.Status))
	rec := calls.CallRecord{
		CallSid:   deref(c.Sid),
		From:      deref(c.From),
		To:        deref(c.To),
		Direction: calls.ParseDirection(deref(c.Direction)),
		Status:    status,
		StartTime: parseTwilioTime(deref(c.StartTime)),
		Price:     deref(c.Price),
		PriceUnit: deref(c.PriceUnit),
	}
	if end := parseTwilioTime(deref(c.EndTime)); !end.IsZero() {
		rec.EndTime = &end
	}
	if d, err := strconv.Atoi(deref(c.Duration)); err == nil {
		rec.DurationSeconds = d
	}
	return rec
}

func toRecording(r openapi.ApiV2010Recording) calls.Recording {
	rec := calls.Recording{
		Sid:       deref(r.Sid),
		CallSid:   deref(r.CallSid),
		Status:    deref(r.Status),
		CreatedAt: parseTwilioTime(deref(r.DateCreated)),
	}
	if uri := deref(r.Uri); uri != "" {
		rec.URL = twilioMediaBase + strings.TrimSuffix(uri, ".json")
	}
	if d, err := strconv.Atoi(deref(r.Duration)); err == nil {
		rec.DurationSeconds = d
	}
	return rec
}

// mapTwilioErr keeps the REST error in the chain and marks 404s as calls.ErrNotFound.
func mapTwilioErr(err error) error {
	if err == nil {
		return nil
	}
	var rest *twclient.TwilioRestError
	if errors.As(err, &rest) && rest.Status == http.StatusNotFound {
		return fmt.Errorf("twilio: %w: %w", calls.ErrNotFound, err)
	}
	return fmt.Errorf("twilio: %w", err)
}

// Twilio renders timestamps in RFC 2822 form, e.g. "Tue, 31 Aug 2010 20:36:28 +0000".
func parseTwilioTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
