package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"voice-platform/internal/audit"
	"voice-platform/internal/auth"
	"voice-platform/internal/callstore"
	"voice-platform/internal/config"
	"voice-platform/internal/metrics"
	"voice-platform/internal/telephony"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func testDeps(t *testing.T) (deps, *audit.MemoryRepo) {
	t.Helper()
	cfg := config.Config{
		App:    config.AppConfig{Env: "local", Port: 3000},
		Twilio: config.TwilioConfig{Provider: config.ProviderMemory},
		Voice:  config.VoiceConfig{OriginNumber: "+15550001111", WebhookBaseURL: "https://voice.example.com"},
		IVR: config.IVRConfig{
			Greeting: "Welcome.",
			Options:  []config.IVROption{{Digit: "1", Description: "sales", Action: "https://voice.example.com/sales"}},
		},
		Auth: config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Hour, RefreshTokenTTL: time.Hour},
	}
	mgr, err := auth.NewManager(cfg.Auth)
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	svc, err := telephony.NewService(telephony.NewMemoryProvider(), cfg.Voice, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	repo := audit.NewMemoryRepo()
	return deps{
		cfg:     cfg,
		svc:     svc,
		store:   callstore.NewMemoryStore(),
		audit:   audit.NewService(repo),
		metrics: metrics.New(prometheus.NewRegistry()),
		auth:    mgr,
	}, repo
}

func TestRegisterRoutes_EndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d, repo := testDeps(t)
	r := gin.New()
	cleanup, err := registerRoutes(r, d)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer cleanup()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected readyz 200, got %d %s", w.Code, w.Body.String())
	}

	form := url.Values{"CallSid": {"C1"}, "From": {"+15551230000"}, "To": {"+15559998888"}, "CallStatus": {"ringing"}}
	req := httptest.NewRequest(http.MethodPost, config.PathVoiceWebhook, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "https://voice.example.com/api/voice/webhook/transcription") {
		t.Fatalf("unexpected inbound response %d %s", w.Code, w.Body.String())
	}
	if len(repo.Events()) != 1 || repo.Events()[0].CallSid != "C1" {
		t.Fatalf("expected webhook audited, got %+v", repo.Events())
	}

	pair, _ := d.auth.IssuePair(time.Now(), "u1", "viewer")
	req = httptest.NewRequest(http.MethodGet, "/v1/calls/C1/state", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ringing"`) {
		t.Fatalf("unexpected state response %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "voice_webhooks_total") {
		t.Fatalf("expected webhook metrics exported")
	}
}

func TestRegisterRoutes_WebhookOverLimitAnswersTwiML(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d, _ := testDeps(t)
	d.cfg.App.WebhookRateLimit = 1
	r := gin.New()
	cleanup, err := registerRoutes(r, d)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer cleanup()

	form := url.Values{"CallSid": {"C1"}, "From": {"+15551230000"}, "To": {"+15559998888"}, "CallStatus": {"ringing"}}
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, config.PathVoiceWebhook, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/xml") {
			t.Fatalf("request %d: expected 200 text/xml, got %d %q %s", i, w.Code, w.Header().Get("Content-Type"), w.Body.String())
		}
		if !strings.Contains(w.Body.String(), "<Response") {
			t.Fatalf("request %d: expected a document, got %s", i, w.Body.String())
		}
	}
}

func TestMenuFromConfig(t *testing.T) {
	m := menuFromConfig(config.IVRConfig{Greeting: "Hi.", Options: []config.IVROption{{Digit: "2", Description: "support", Action: "https://h/s"}}})
	if m.Greeting != "Hi." || len(m.Options) != 1 || m.Options[0].Action != "https://h/s" {
		t.Fatalf("unexpected menu %+v", m)
	}
}
