package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice-platform/internal/audit"
	"voice-platform/internal/auth"
	"voice-platform/internal/callstore"
	"voice-platform/internal/config"
	"voice-platform/internal/metrics"
	"voice-platform/internal/telephony"
	"voice-platform/pkg/logger"
	"voice-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	provider, err := newProvider(cfg.Twilio)
	if err != nil {
		log.Error("telephony provider init failed", "err", err)
		os.Exit(1)
	}
	svc, err := telephony.NewService(metrics.InstrumentProvider(provider, m), cfg.Voice, log)
	if err != nil {
		log.Error("telephony service init failed", "err", err)
		os.Exit(1)
	}

	d := deps{cfg: cfg, svc: svc, metrics: m, auth: authManager}

	// Call state: Redis when configured, process memory otherwise.
	if cfg.Redis.Host != "" {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		store, err := callstore.NewRedisStore(rdb, callstore.DefaultTTL)
		if err != nil {
			log.Error("call store init failed", "err", err)
			os.Exit(1)
		}
		d.store = store
		d.ready = append(d.ready, readiness{"redis", func(ctx context.Context) error {
			return utils.PingRedis(ctx, rdb, 2*time.Second)
		}})
	} else {
		log.Warn("REDIS_HOST not set; call state kept in memory")
		d.store = callstore.NewMemoryStore()
	}

	// Audit trail: Postgres when configured, process memory otherwise.
	if cfg.DB.Host != "" {
		db, err := utils.OpenPostgres(rootCtx, utils.PostgresConfig{DSN: cfg.PostgresDSN()})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		repo, err := audit.NewPostgresRepo(db)
		if err != nil {
			log.Error("audit repo init failed", "err", err)
			os.Exit(1)
		}
		if err := repo.Migrate(rootCtx); err != nil {
			log.Error("audit migrate failed", "err", err)
			os.Exit(1)
		}
		d.audit = audit.NewService(repo)
		d.ready = append(d.ready, readiness{"postgres", func(ctx context.Context) error {
			return utils.PingPostgres(ctx, db, 2*time.Second)
		}})
	} else {
		log.Warn("DB_HOST not set; audit trail kept in memory")
		d.audit = audit.NewService(audit.NewMemoryRepo())
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(m.Middleware())

	cleanup, err := registerRoutes(r, d)
	if err != nil {
		log.Error("route setup failed", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening",
			"addr", srv.Addr,
			"provider", svc.ProviderName(),
			"webhook_base_url", cfg.Voice.WebhookBaseURL,
			"signature_validation", cfg.Twilio.ValidateSignature,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

func newProvider(cfg config.TwilioConfig) (telephony.Provider, error) {
	switch cfg.Provider {
	case config.ProviderMemory:
		return telephony.NewMemoryProvider(), nil
	default:
		return telephony.NewTwilioProvider(cfg.AccountSID, cfg.AuthToken)
	}
}
