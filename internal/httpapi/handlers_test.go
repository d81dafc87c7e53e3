package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"voice-platform/internal/auth"
	"voice-platform/internal/calls"
	"voice-platform/internal/callstore"
	"voice-platform/internal/config"
	"voice-platform/internal/rbac"
	"voice-platform/internal/routing"
	"voice-platform/internal/telephony"

	"github.com/gin-gonic/gin"
)

type fakeAuditor struct {
	mu      sync.Mutex
	actions []string
}

func (f *fakeAuditor) LogCallAction(_ context.Context, _, _, _, action, _, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return nil
}

type apiFixture struct {
	router    *gin.Engine
	tokens    map[string]string
	provider  *telephony.MemoryProvider
	store     *callstore.MemoryStore
	audit     *fakeAuditor
	overrides *routing.MemoryOverrideStore
}

func newFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mgr, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Hour, RefreshTokenTTL: 24 * time.Hour})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	p := telephony.NewMemoryProvider()
	svc, err := telephony.NewService(p, config.VoiceConfig{
		OriginNumber:   "+15550001111",
		WebhookBaseURL: "https://voice.example.com",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	f := &apiFixture{
		tokens:    map[string]string{},
		provider:  p,
		store:     callstore.NewMemoryStore(),
		audit:     &fakeAuditor{},
		overrides: routing.NewMemoryOverrideStore(),
	}
	for _, role := range []string{rbac.RoleAdmin, rbac.RoleOperator, rbac.RoleViewer} {
		pair, err := mgr.IssuePair(time.Now(), "user-"+role, role)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		f.tokens[role] = pair.AccessToken
	}

	r := gin.New()
	v1 := r.Group("/v1", auth.RequireAccessToken(mgr))
	Handlers{Calls: svc, State: f.store, Audit: f.audit, Overrides: f.overrides}.Register(v1)
	f.router = r
	return f
}

func (f *apiFixture) do(role, method, path, body string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := f.tokens[role]; tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestPlaceCall_ThenGet(t *testing.T) {
	f := newFixture(t)

	w := f.do(rbac.RoleOperator, http.MethodPost, "/v1/calls", `{"to":"+14155552671"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", w.Code, w.Body.String())
	}
	h := decode[telephony.CallHandle](t, w)
	if h.Sid == "" {
		t.Fatalf("expected call sid")
	}

	w = f.do(rbac.RoleViewer, http.MethodGet, "/v1/calls/"+h.Sid, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if rec := decode[calls.CallRecord](t, w); rec.CallSid != h.Sid || rec.To != "+14155552671" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(f.audit.actions) != 1 || f.audit.actions[0] != "place_call" {
		t.Fatalf("expected audited place_call, got %v", f.audit.actions)
	}
}

func TestErrorKindsMapToStatus(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		role, method, path, body string
		want                     int
	}{
		{rbac.RoleOperator, http.MethodPost, "/v1/calls", `{"to":"not a number"}`, http.StatusBadRequest},
		{rbac.RoleOperator, http.MethodPost, "/v1/calls", `{`, http.StatusBadRequest},
		{rbac.RoleViewer, http.MethodGet, "/v1/calls/CAmissing", "", http.StatusNotFound},
		{rbac.RoleOperator, http.MethodPost, "/v1/twiml/conference", `{"name":"room","max_participants":251}`, http.StatusUnprocessableEntity},
		{rbac.RoleOperator, http.MethodPost, "/v1/messages", `{"to":"text-me","body":"hi"}`, http.StatusBadGateway},
		{rbac.RoleViewer, http.MethodGet, "/v1/calls?limit=ten", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		w := f.do(tc.role, tc.method, tc.path, tc.body)
		if w.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d %s", tc.method, tc.path, tc.want, w.Code, w.Body.String())
		}
	}
}

func TestRoleChecks(t *testing.T) {
	f := newFixture(t)

	if w := f.do(rbac.RoleViewer, http.MethodPost, "/v1/calls", `{"to":"+14155552671"}`); w.Code != http.StatusForbidden {
		t.Fatalf("viewer must not place calls, got %d", w.Code)
	}
	if w := f.do("", http.MethodGet, "/v1/calls", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := f.do(rbac.RoleOperator, http.MethodGet, "/v1/ivr/override", ""); w.Code != http.StatusForbidden {
		t.Fatalf("operator must not manage overrides, got %d", w.Code)
	}
	if w := f.do(rbac.RoleAdmin, http.MethodPost, "/v1/calls", `{"to":"+14155552671"}`); w.Code != http.StatusCreated {
		t.Fatalf("admin should bypass role checks, got %d", w.Code)
	}
}

func TestEndCall_Twice(t *testing.T) {
	f := newFixture(t)
	w := f.do(rbac.RoleOperator, http.MethodPost, "/v1/calls", `{"to":"+14155552671"}`)
	sid := decode[telephony.CallHandle](t, w).Sid

	for i := 0; i < 2; i++ {
		w = f.do(rbac.RoleOperator, http.MethodPost, "/v1/calls/"+sid+"/end", "")
		if w.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d %s", i, w.Code, w.Body.String())
		}
		if rec := decode[calls.CallRecord](t, w); rec.Status != calls.CallStatusCompleted {
			t.Fatalf("attempt %d: expected completed, got %q", i, rec.Status)
		}
	}
}

func TestRecordings_ListAndDelete(t *testing.T) {
	f := newFixture(t)
	rec := f.provider.AddRecording("CA1", "https://media/RE", 5)
	f.provider.AddRecording("CA1", "https://media/RE", 6)

	w := f.do(rbac.RoleViewer, http.MethodGet, "/v1/calls/CA1/recordings?limit=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	out := decode[struct {
		Recordings []calls.Recording `json:"recordings"`
	}](t, w)
	if len(out.Recordings) != 1 {
		t.Fatalf("expected limit applied, got %d", len(out.Recordings))
	}

	if w := f.do(rbac.RoleOperator, http.MethodDelete, "/v1/recordings/"+rec.Sid, ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := f.do(rbac.RoleOperator, http.MethodDelete, "/v1/recordings/"+rec.Sid, ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", w.Code)
	}
}

func TestCallState(t *testing.T) {
	f := newFixture(t)
	if w := f.do(rbac.RoleViewer, http.MethodGet, "/v1/calls/CA1/state", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	_, _ = f.store.ApplyStatus(context.Background(), callstore.Event{CallSid: "CA1", From: "+15551230000", To: "+15559998888", At: time.Now()}, calls.CallStatusRinging, 0)

	w := f.do(rbac.RoleViewer, http.MethodGet, "/v1/calls/CA1/state", "")
	if w.Code != http.StatusOK || decode[calls.CallRecord](t, w).Status != calls.CallStatusRinging {
		t.Fatalf("unexpected state response %d %s", w.Code, w.Body.String())
	}
}

func TestDocuments(t *testing.T) {
	f := newFixture(t)

	w := f.do(rbac.RoleOperator, http.MethodPost, "/v1/twiml/ivr-menu",
		`{"greeting":"Hi.","options":[{"digit":"1","description":"sales","action":"https://h/sales"}]}`)
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/xml") {
		t.Fatalf("unexpected response %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), "Press 1 for sales.") || !strings.Contains(w.Body.String(), "/api/voice/ivr-menu") {
		t.Fatalf("unexpected menu %s", w.Body.String())
	}

	w = f.do(rbac.RoleOperator, http.MethodPost, "/v1/twiml/ivr-menu",
		`{"options":[{"digit":"1","description":"a"},{"digit":"1","description":"b"}]}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for duplicate digits, got %d", w.Code)
	}

	w = f.do(rbac.RoleOperator, http.MethodPost, "/v1/twiml/hold", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `loop="0"`) {
		t.Fatalf("unexpected hold %d %s", w.Code, w.Body.String())
	}

	w = f.do(rbac.RoleOperator, http.MethodPost, "/v1/twiml/voicemail", `{"max_length":45}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `maxLength="45"`) {
		t.Fatalf("unexpected voicemail %d %s", w.Code, w.Body.String())
	}

	w = f.do(rbac.RoleOperator, http.MethodPost, "/v1/twiml/transfer", `{"target":"+14155552671","announcement":"Transferring."}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "+14155552671") {
		t.Fatalf("unexpected transfer %d %s", w.Code, w.Body.String())
	}
}

func TestIVROverrideLifecycle(t *testing.T) {
	f := newFixture(t)

	if w := f.do(rbac.RoleAdmin, http.MethodGet, "/v1/ivr/override", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before set, got %d", w.Code)
	}
	past := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
	if w := f.do(rbac.RoleAdmin, http.MethodPut, "/v1/ivr/override", `{"redirect_to":"https://h/closed","expires_at":"`+past+`"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for expired override, got %d", w.Code)
	}

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	w := f.do(rbac.RoleAdmin, http.MethodPut, "/v1/ivr/override", `{"redirect_to":"https://h/closed","expires_at":"`+future+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	o := decode[routing.Override](t, w)
	if o.OverrideID == "" || o.SetBy != "user-admin" {
		t.Fatalf("expected id and setter filled, got %+v", o)
	}

	if w := f.do(rbac.RoleAdmin, http.MethodGet, "/v1/ivr/override", ""); w.Code != http.StatusOK {
		t.Fatalf("expected active override, got %d", w.Code)
	}
	if w := f.do(rbac.RoleAdmin, http.MethodDelete, "/v1/ivr/override", ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := f.do(rbac.RoleAdmin, http.MethodDelete, "/v1/ivr/override", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after clear, got %d", w.Code)
	}
}

func TestQueryCallHistory(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		f.provider.Seed(calls.CallRecord{
			CallSid:   "CA" + string(rune('a'+i)),
			From:      "+15550001111",
			To:        "+14155552671",
			Status:    calls.CallStatusCompleted,
			StartTime: base.Add(time.Duration(i) * time.Minute),
		})
	}
	f.provider.Seed(calls.CallRecord{CallSid: "CAother", To: "+14155550000", Status: calls.CallStatusCompleted, StartTime: base})

	w := f.do(rbac.RoleViewer, http.MethodGet, "/v1/calls?to=%2B14155552671&limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	out := decode[struct {
		Calls []calls.CallRecord `json:"calls"`
	}](t, w)
	if len(out.Calls) != 10 {
		t.Fatalf("expected 10 calls, got %d", len(out.Calls))
	}
	for _, c := range out.Calls {
		if c.To != "+14155552671" {
			t.Fatalf("unexpected call %+v", c)
		}
	}
}
