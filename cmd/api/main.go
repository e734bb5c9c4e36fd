package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/aicare/intake-platform/internal/api/router"
	appconfig "github.com/aicare/intake-platform/internal/config"
	"github.com/aicare/intake-platform/internal/events"
	"github.com/aicare/intake-platform/internal/http/handlers"
	"github.com/aicare/intake-platform/internal/identity"
	"github.com/aicare/intake-platform/internal/intake"
	"github.com/aicare/intake-platform/internal/observability/metrics"
	"github.com/aicare/intake-platform/internal/report"
	"github.com/aicare/intake-platform/internal/voice"
	"github.com/aicare/intake-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting intake-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy := report.TriagePolicy{
		PainRed:          cfg.TriagePainRed,
		BreathingRed:     cfg.TriageBreathingRed,
		PainYellowMin:    cfg.TriagePainYellowMin,
		PainYellowMax:    cfg.TriagePainYellowMax,
		OverallYellowMin: cfg.TriageOverallYelMin,
		OverallYellowMax: cfg.TriageOverallYelMax,
	}

	// Storage: Postgres when configured, in-memory for local development.
	var (
		repo     report.Repository
		resolver identity.Resolver
		deduper  events.Deduper
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		repo = report.NewPostgresRepository(pool, policy)
		resolver = identity.NewPostgresResolver(pool)
		deduper = events.NewProcessedStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
		repo = report.NewInMemoryRepository()
		resolver = identity.NewStaticResolver(nil)
		deduper = events.NewInMemoryProcessedStore()
	}

	// Transcripts are optional; without Redis the calls still work, the
	// readback endpoint just has nothing to serve.
	var transcripts *voice.TranscriptStore
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		transcripts = voice.NewTranscriptStore(rdb)
	} else {
		logger.Warn("REDIS_ADDR not set, call transcripts disabled")
	}

	intakeMetrics := metrics.NewIntakeMetrics(prometheus.DefaultRegisterer)
	intakeService := intake.NewService(repo, policy, intakeMetrics, logger)
	registry := voice.NewRegistry()
	machine := voice.NewMachine(cfg.VoiceRetryLimit)

	telephonyHandler := handlers.NewTelephonyWebhookHandler(handlers.TelephonyWebhookConfig{
		Registry:    registry,
		Machine:     machine,
		Intake:      intakeService,
		Resolver:    resolver,
		Deduper:     deduper,
		Transcripts: transcripts,
		Metrics:     intakeMetrics,
		Logger:      logger,
	})

	var transcriptHandler *handlers.TranscriptHandler
	if transcripts != nil {
		transcriptHandler = handlers.NewTranscriptHandler(transcripts, logger)
	}

	r := router.New(&router.Config{
		Logger:             logger,
		IntakeHandler:      intake.NewHandler(intakeService, logger),
		TelephonyWebhook:   telephonyHandler,
		TranscriptHandler:  transcriptHandler,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	// Calls that went silent are aborted and their partial reports handed
	// to the intake pipeline on the same path a hangup takes.
	go sweepIdleSessions(ctx, cfg, registry, intakeService, intakeMetrics, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func sweepIdleSessions(ctx context.Context, cfg *appconfig.Config, registry *voice.Registry, svc *intake.Service, m *metrics.IntakeMetrics, logger *logging.Logger) {
	log := logger.WithComponent("session_sweeper")
	ticker := time.NewTicker(cfg.SessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			swept := registry.SweepIdle(cfg.SessionIdleTimeout, now.UTC())
			for _, sess := range swept {
				log.Info("aborting idle call session",
					"session_id", sess.ID, "patient_id", sess.PatientID)
				if _, err := svc.FinalizeVoiceSession(ctx, sess); err != nil {
					log.Error("failed to finalize idle session",
						"error", err, "session_id", sess.ID)
				}
			}
			m.SetActiveSessions(registry.Len())
		}
	}
}
