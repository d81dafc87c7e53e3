package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"voice-platform/internal/auth"
	"voice-platform/internal/calls"
	"voice-platform/internal/routing"
	"voice-platform/internal/telephony"
	"voice-platform/internal/twiml"
	"voice-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CallStateReader reads webhook-maintained call state. callstore.Store satisfies it.
type CallStateReader interface {
	Get(ctx context.Context, callSid string) (calls.CallRecord, error)
}

// ActionAuditor records outbound actions. *audit.Service satisfies it.
type ActionAuditor interface {
	LogCallAction(ctx context.Context, actorUserID, actorRole, ip, action, callSid, recordingSid, metadata string) error
}

// OverrideAdmin manages the IVR override. *routing.MemoryOverrideStore satisfies it.
type OverrideAdmin interface {
	GetActiveOverride(ctx context.Context, now time.Time) (routing.Override, bool, error)
	Set(o routing.Override) error
	Clear() bool
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Calls     *telephony.Service
	State     CallStateReader // optional
	Audit     ActionAuditor   // optional
	Overrides OverrideAdmin   // optional
	Now       func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- Identity ---

func (h Handlers) Me(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
}

// --- Calls ---

func (h Handlers) PlaceCall(c *gin.Context) {
	var req telephony.CallOptions
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	handle, err := h.Calls.PlaceCall(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	h.audit(c, "place_call", handle.Sid, "", gin.H{"to": req.To})
	c.JSON(http.StatusCreated, handle)
}

func (h Handlers) GetCall(c *gin.Context) {
	rec, err := h.Calls.GetCallDetails(c.Request.Context(), c.Param("call_sid"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetCallState returns the record maintained from webhooks, without a provider round trip.
func (h Handlers) GetCallState(c *gin.Context) {
	if h.State == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "call state store not configured"})
		return
	}
	rec, err := h.State.Get(c.Request.Context(), c.Param("call_sid"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h Handlers) EndCall(c *gin.Context) {
	sid := c.Param("call_sid")
	rec, err := h.Calls.EndCall(c.Request.Context(), sid)
	if err != nil {
		writeError(c, err)
		return
	}
	h.audit(c, "end_call", sid, "", gin.H{"status": rec.Status})
	c.JSON(http.StatusOK, rec)
}

func (h Handlers) QueryCallHistory(c *gin.Context) {
	var f telephony.HistoryFilter
	f.To = c.Query("to")
	f.From = c.Query("from")
	var err error
	if f.StartTime, err = queryTime(c, "start_time"); err != nil {
		badRequest(c, "start_time must be RFC3339")
		return
	}
	if f.EndTime, err = queryTime(c, "end_time"); err != nil {
		badRequest(c, "end_time must be RFC3339")
		return
	}
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		badRequest(c, "limit must be an integer")
		return
	}
	recs, err := h.Calls.QueryCallHistory(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": recs})
}

// --- Recordings ---

func (h Handlers) ListRecordings(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		badRequest(c, "limit must be an integer")
		return
	}
	recs, err := h.Calls.ListRecordings(c.Request.Context(), c.Param("call_sid"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recordings": recs})
}

func (h Handlers) DeleteRecording(c *gin.Context) {
	sid := c.Param("recording_sid")
	if err := h.Calls.DeleteRecording(c.Request.Context(), sid); err != nil {
		writeError(c, err)
		return
	}
	h.audit(c, "delete_recording", "", sid, nil)
	c.Status(http.StatusNoContent)
}

// --- Messages ---

func (h Handlers) SendMessage(c *gin.Context) {
	var req telephony.SMSOptions
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	msg, err := h.Calls.SendMessage(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	h.audit(c, "send_message", "", "", gin.H{"to": req.To, "message_sid": msg.Sid})
	c.JSON(http.StatusCreated, msg)
}

// --- Documents ---

type ivrMenuRequest struct {
	Greeting string             `json:"greeting"`
	Options  []twiml.MenuOption `json:"options"`
}

func (h Handlers) BuildIVRMenu(c *gin.Context) {
	var req ivrMenuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	h.document(c)(h.Calls.IVRMenu(req.Greeting, req.Options))
}

func (h Handlers) BuildConference(c *gin.Context) {
	var req twiml.ConferenceOptions
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	h.document(c)(h.Calls.Conference(req))
}

type transferRequest struct {
	Target       string `json:"target"`
	Announcement string `json:"announcement,omitempty"`
}

func (h Handlers) BuildTransfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	h.document(c)(h.Calls.Transfer(req.Target, req.Announcement))
}

type holdRequest struct {
	URL string `json:"url,omitempty"`
}

func (h Handlers) BuildHold(c *gin.Context) {
	var req holdRequest
	// An empty body means the default hold music.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid json")
			return
		}
	}
	h.document(c)(h.Calls.Hold(req.URL), nil)
}

type voicemailRequest struct {
	Prompt    string `json:"prompt,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
}

func (h Handlers) BuildVoicemail(c *gin.Context) {
	var req voicemailRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid json")
			return
		}
	}
	h.document(c)(h.Calls.Voicemail(req.Prompt, req.MaxLength))
}

// document renders a built document as text/xml.
func (h Handlers) document(c *gin.Context) func(twiml.Document, error) {
	return func(doc twiml.Document, err error) {
		if err != nil {
			writeError(c, err)
			return
		}
		out, err := doc.Render()
		if err != nil {
			writeError(c, err)
			return
		}
		c.Data(http.StatusOK, twiml.ContentType, []byte(out))
	}
}

// --- IVR override (admin) ---

func (h Handlers) GetIVROverride(c *gin.Context) {
	if h.Overrides == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "ivr overrides not configured"})
		return
	}
	o, ok, err := h.Overrides.GetActiveOverride(c.Request.Context(), h.now())
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no active override"})
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h Handlers) SetIVROverride(c *gin.Context) {
	if h.Overrides == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "ivr overrides not configured"})
		return
	}
	var o routing.Override
	if err := c.ShouldBindJSON(&o); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if o.OverrideID == "" {
		o.OverrideID = uuid.NewString()
	}
	if o.SetBy == "" {
		o.SetBy, _ = auth.UserID(c.Request.Context())
	}
	if !o.ExpiresAt.After(h.now()) {
		badRequest(c, "expires_at must be in the future")
		return
	}
	if err := h.Overrides.Set(o); err != nil {
		badRequest(c, err.Error())
		return
	}
	h.audit(c, "set_ivr_override", "", "", gin.H{"override_id": o.OverrideID, "redirect_to": o.RedirectTo, "expires_at": o.ExpiresAt})
	c.JSON(http.StatusOK, o)
}

func (h Handlers) ClearIVROverride(c *gin.Context) {
	if h.Overrides == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "ivr overrides not configured"})
		return
	}
	if !h.Overrides.Clear() {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no override set"})
		return
	}
	h.audit(c, "clear_ivr_override", "", "", nil)
	c.Status(http.StatusNoContent)
}

// --- helpers ---

// audit is best-effort: a failed audit write never fails the request.
func (h Handlers) audit(c *gin.Context, action, callSid, recordingSid string, meta gin.H) {
	if h.Audit == nil {
		return
	}
	ctx := c.Request.Context()
	uid, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	raw := ""
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			raw = string(b)
		}
	}
	if err := h.Audit.LogCallAction(ctx, uid, role, c.ClientIP(), action, callSid, recordingSid, raw); err != nil {
		logger.FromGin(c).Warn("audit call action failed", "action", action, "err", err)
	}
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func queryTime(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
