package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voice-platform/internal/calls"
	"voice-platform/internal/telephony"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestProvider_RecordsOutcomes(t *testing.T) {
	m := New(prometheus.NewRegistry())
	mem := telephony.NewMemoryProvider()
	p := InstrumentProvider(mem, m)
	ctx := context.Background()

	h, err := p.CreateCall(ctx, telephony.CreateCallParams{To: "+15551230000", From: "+15550001111"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := p.FetchCall(ctx, h.Sid); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := p.FetchCall(ctx, "CAmissing"); !errors.Is(err, calls.ErrNotFound) {
		t.Fatalf("expected not found passthrough, got %v", err)
	}

	if got := testutil.ToFloat64(m.providerRequests.WithLabelValues("memory", "create_call", "ok")); got != 1 {
		t.Fatalf("expected 1 create_call, got %v", got)
	}
	if got := testutil.ToFloat64(m.providerRequests.WithLabelValues("memory", "fetch_call", "ok")); got != 1 {
		t.Fatalf("expected 1 ok fetch, got %v", got)
	}
	if got := testutil.ToFloat64(m.providerRequests.WithLabelValues("memory", "fetch_call", "not_found")); got != 1 {
		t.Fatalf("expected 1 not_found fetch, got %v", got)
	}
	if p.Name() != "memory" {
		t.Fatalf("expected wrapped name, got %q", p.Name())
	}
}

func TestObserveWebhookAndExposition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())
	m.ObserveWebhook("inbound", "ok", 5*time.Millisecond)
	m.ObserveWebhook("inbound", "rejected", time.Millisecond)

	if got := testutil.ToFloat64(m.webhooks.WithLabelValues("inbound", "ok")); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `voice_webhooks_total{kind="inbound",outcome="rejected"} 1`) {
		t.Fatalf("expected webhook counter in exposition, got:\n%s", w.Body.String())
	}
}
