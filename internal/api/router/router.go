package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aicare/intake-platform/internal/http/handlers"
	httpmiddleware "github.com/aicare/intake-platform/internal/http/middleware"
	"github.com/aicare/intake-platform/internal/intake"
	"github.com/aicare/intake-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	IntakeHandler      *intake.Handler
	TelephonyWebhook   *handlers.TelephonyWebhookHandler
	TranscriptHandler  *handlers.TranscriptHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handleHealth)

	if cfg.IntakeHandler != nil {
		r.Route("/intake", func(r chi.Router) {
			r.Post("/chat", cfg.IntakeHandler.SubmitChat)
			r.Post("/questionnaire", cfg.IntakeHandler.SubmitQuestionnaire)
		})
		r.Get("/reports/{patientID}/{date}", cfg.IntakeHandler.GetReport)
	}
	if cfg.TelephonyWebhook != nil {
		r.Post("/webhooks/telephony/voice", cfg.TelephonyWebhook.HandleEvent)
	}
	if cfg.TranscriptHandler != nil {
		r.Get("/sessions/{sessionID}/transcript", cfg.TranscriptHandler.GetTranscript)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
