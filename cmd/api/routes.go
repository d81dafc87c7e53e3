package main

import (
	"context"
	"net/http"
	"time"

	"voice-platform/internal/audit"
	"voice-platform/internal/auth"
	"voice-platform/internal/callstore"
	"voice-platform/internal/config"
	"voice-platform/internal/httpapi"
	"voice-platform/internal/metrics"
	"voice-platform/internal/routing"
	"voice-platform/internal/telephony"
	"voice-platform/internal/twiml"
	"voice-platform/internal/webhook"

	"github.com/gin-gonic/gin"
)

type readiness struct {
	name  string
	check func(ctx context.Context) error
}

// deps are the process-wide collaborators built in main.
type deps struct {
	cfg     config.Config
	svc     *telephony.Service
	store   callstore.Store
	audit   *audit.Service
	metrics *metrics.Metrics
	auth    *auth.Manager
	ready   []readiness
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
// The returned func releases background resources.
func registerRoutes(r *gin.Engine, d deps) (func(), error) {
	var stops []func()
	cleanup := func() {
		for _, stop := range stops {
			stop()
		}
	}

	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		checks := gin.H{"provider": "ok"}
		status := http.StatusOK
		if err := d.svc.HealthCheck(ctx); err != nil {
			checks["provider"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		for _, rc := range d.ready {
			checks[rc.name] = "ok"
			if err := rc.check(ctx); err != nil {
				checks[rc.name] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, checks)
	})
	r.GET("/metrics", gin.WrapH(d.metrics.Handler()))

	// IVR routing with admin overrides.
	overrides := routing.NewMemoryOverrideStore()
	menu := menuFromConfig(d.cfg.IVR)
	engine, err := routing.NewMenuEngine(menu.Options, routing.NewOverrideEngine(overrides, routing.AuditAdapter{Audit: d.audit}))
	if err != nil {
		return cleanup, err
	}

	// Provider webhooks (public, signature-checked when enabled).
	{
		h, err := webhook.NewHandler(d.cfg.Voice, webhook.Deps{
			Store:  d.store,
			Audit:  d.audit,
			Router: engine,
			Menu:   menu,
		})
		if err != nil {
			return cleanup, err
		}
		x := &webhook.HTTP{Handler: h, Observer: d.metrics}
		if d.cfg.Twilio.ValidateSignature {
			x.Verifier = webhook.NewSignatureVerifier(d.cfg.Twilio.AuthToken, d.cfg.Voice.WebhookBaseURL)
		}

		if d.cfg.App.WebhookRateLimit > 0 {
			rl := httpapi.NewRateLimiter(httpapi.PerSecondConfig(d.cfg.App.WebhookRateLimit))
			stops = append(stops, rl.Stop)
			x.Limiter = rl
		}
		x.Register(r)
	}

	// protected API group
	v1 := r.Group("/v1")
	if d.cfg.App.APIRateLimit > 0 {
		rl := httpapi.NewRateLimiter(httpapi.PerSecondConfig(d.cfg.App.APIRateLimit))
		stops = append(stops, rl.Stop)
		v1.Use(httpapi.RateLimit(rl))
	}
	v1.Use(auth.RequireAccessToken(d.auth))
	httpapi.Handlers{
		Calls:     d.svc,
		State:     d.store,
		Audit:     d.audit,
		Overrides: overrides,
	}.Register(v1)

	return cleanup, nil
}

func menuFromConfig(c config.IVRConfig) webhook.Menu {
	m := webhook.Menu{Greeting: c.Greeting}
	for _, o := range c.Options {
		m.Options = append(m.Options, twiml.MenuOption{Digit: o.Digit, Description: o.Description, Action: o.Action})
	}
	return m
}
