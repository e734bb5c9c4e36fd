package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aicare/intake-platform/internal/events"
	"github.com/aicare/intake-platform/internal/identity"
	"github.com/aicare/intake-platform/internal/intake"
	"github.com/aicare/intake-platform/internal/observability/metrics"
	"github.com/aicare/intake-platform/internal/voice"
	"github.com/aicare/intake-platform/pkg/logging"
)

const telephonyProvider = "telephony"

// Telephony event types delivered by the call provider.
const (
	EventCallInitiated = "call.initiated"
	EventCallSpeech    = "call.speech"
	EventCallHangup    = "call.hangup"
)

// TelephonyEvent is the provider's webhook payload. One event arrives per
// call lifecycle step: call answered, one transcribed utterance, or hangup.
// Delivery is at least once; EventID dedupes retries.
type TelephonyEvent struct {
	// EventID uniquely identifies this delivery for dedup.
	EventID string `json:"event_id"`
	// EventType is one of call.initiated, call.speech, call.hangup.
	EventType string `json:"event_type"`
	// SessionID groups events within one call.
	SessionID string `json:"session_id"`
	// PatientID is set when the provider already knows the patient.
	PatientID string `json:"patient_id,omitempty"`
	// Phone is the caller's number (E.164), used to resolve the patient
	// when PatientID is absent.
	Phone string `json:"phone,omitempty"`
	// SpeechText is the transcribed utterance on call.speech events.
	SpeechText string `json:"speech_text,omitempty"`
}

// TelephonyResponse is returned to the provider. PromptToSpeak is converted
// to speech for the caller; Terminated tells the provider the call script
// is finished and the line can be released.
type TelephonyResponse struct {
	SessionID     string `json:"session_id"`
	PromptToSpeak string `json:"prompt_to_speak,omitempty"`
	Terminated    bool   `json:"terminated"`
}

// Spoken to the patient when processing fails; raw errors never reach the
// caller.
const (
	apologyRetryPrompt = "I'm sorry, something went wrong on our end. Could you say that again?"
	apologyClosePrompt = "I'm sorry, we're having technical trouble. A nurse will call you back. Goodbye."
)

// voiceFinalizer persists the report frozen from a terminal call session.
type voiceFinalizer interface {
	FinalizeVoiceSession(ctx context.Context, sess *voice.Session) (*intake.Result, error)
}

// TelephonyWebhookHandler drives voice call sessions from provider webhook
// events: it resumes the session, advances the question state machine, and
// hands terminal sessions to the intake pipeline.
type TelephonyWebhookHandler struct {
	registry    *voice.Registry
	machine     *voice.Machine
	intake      voiceFinalizer
	resolver    identity.Resolver
	deduper     events.Deduper
	transcripts *voice.TranscriptStore
	metrics     *metrics.IntakeMetrics
	logger      *logging.Logger
	now         func() time.Time
}

// TelephonyWebhookConfig configures the TelephonyWebhookHandler. Transcripts
// and Metrics are optional.
type TelephonyWebhookConfig struct {
	Registry    *voice.Registry
	Machine     *voice.Machine
	Intake      voiceFinalizer
	Resolver    identity.Resolver
	Deduper     events.Deduper
	Transcripts *voice.TranscriptStore
	Metrics     *metrics.IntakeMetrics
	Logger      *logging.Logger
}

// NewTelephonyWebhookHandler creates a new TelephonyWebhookHandler.
func NewTelephonyWebhookHandler(cfg TelephonyWebhookConfig) *TelephonyWebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &TelephonyWebhookHandler{
		registry:    cfg.Registry,
		machine:     cfg.Machine,
		intake:      cfg.Intake,
		resolver:    cfg.Resolver,
		deduper:     cfg.Deduper,
		transcripts: cfg.Transcripts,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger.WithComponent("telephony_webhook"),
		now:         time.Now,
	}
}

// HandleEvent is the HTTP handler for POST /webhooks/telephony/voice.
func (h *TelephonyWebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	started := h.now()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.logger.Error("telephony: failed to read body", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var event TelephonyEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("telephony: failed to parse event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if event.EventID == "" || event.SessionID == "" {
		http.Error(w, "missing event_id or session_id", http.StatusBadRequest)
		return
	}
	defer func() {
		h.metrics.ObserveWebhookLatency(event.EventType, h.now().Sub(started).Seconds())
		h.metrics.SetActiveSessions(h.registry.Len())
	}()

	seen, err := h.deduper.AlreadyProcessed(ctx, telephonyProvider, event.EventID)
	if err != nil {
		h.logger.Error("telephony: dedup check failed", "error", err, "event_id", event.EventID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if seen {
		h.logger.Info("telephony: duplicate event ignored",
			"event_id", event.EventID, "event_type", event.EventType, "session_id", event.SessionID)
		h.writeResponse(w, TelephonyResponse{SessionID: event.SessionID})
		return
	}

	var resp TelephonyResponse
	switch event.EventType {
	case EventCallInitiated:
		resp, err = h.handleInitiated(ctx, &event)
	case EventCallSpeech:
		resp, err = h.handleSpeech(ctx, &event)
	case EventCallHangup:
		resp, err = h.handleHangup(ctx, &event)
	default:
		h.logger.Warn("telephony: unknown event type",
			"event_type", event.EventType, "event_id", event.EventID)
		http.Error(w, "unknown event type", http.StatusBadRequest)
		return
	}
	if err != nil {
		// Deliberately not marked processed: the provider redelivers and
		// the next attempt retries the whole step.
		h.logger.Error("telephony: event handling failed",
			"error", err, "event_type", event.EventType, "session_id", event.SessionID)
		h.writeResponse(w, TelephonyResponse{
			SessionID:     event.SessionID,
			PromptToSpeak: apologyRetryPrompt,
		})
		return
	}

	if _, err := h.deduper.MarkProcessed(ctx, telephonyProvider, event.EventID); err != nil {
		h.logger.Error("telephony: failed to mark event processed",
			"error", err, "event_id", event.EventID)
	}
	h.writeResponse(w, resp)
}

func (h *TelephonyWebhookHandler) handleInitiated(ctx context.Context, event *TelephonyEvent) (TelephonyResponse, error) {
	patientID := event.PatientID
	if patientID == "" {
		resolved, err := h.resolver.ResolvePhone(ctx, event.Phone)
		if err != nil {
			if errors.Is(err, identity.ErrPatientNotFound) {
				h.logger.Warn("telephony: caller not enrolled",
					"phone", event.Phone, "session_id", event.SessionID)
				return TelephonyResponse{
					SessionID:     event.SessionID,
					PromptToSpeak: apologyClosePrompt,
					Terminated:    true,
				}, nil
			}
			return TelephonyResponse{}, err
		}
		patientID = resolved
	}

	if _, err := h.registry.Create(event.SessionID, patientID); err != nil {
		if errors.Is(err, voice.ErrDuplicateSession) {
			// Retried initiation for a live call: repeat the greeting.
			h.logger.Info("telephony: session already exists", "session_id", event.SessionID)
			return TelephonyResponse{SessionID: event.SessionID, PromptToSpeak: voice.GreetingPrompt()}, nil
		}
		return TelephonyResponse{}, err
	}

	h.logger.Info("telephony: call session created",
		"session_id", event.SessionID, "patient_id", patientID)
	h.appendTranscript(ctx, event.SessionID, "assistant", voice.GreetingPrompt())
	return TelephonyResponse{SessionID: event.SessionID, PromptToSpeak: voice.GreetingPrompt()}, nil
}

func (h *TelephonyWebhookHandler) handleSpeech(ctx context.Context, event *TelephonyEvent) (TelephonyResponse, error) {
	var (
		prompt   string
		snapshot *voice.Session
	)
	err := h.registry.WithSession(event.SessionID, func(s *voice.Session) error {
		question := s.State.String()
		answeredBefore := 5 - len(s.Report.MissingRequired())

		next, err := h.machine.Advance(s, event.SpeechText)
		if err != nil {
			return err
		}
		prompt = next

		// An utterance that produced no new answer on a question state was
		// a parse failure, whether it triggered a clarification or a skip.
		answeredAfter := 5 - len(s.Report.MissingRequired())
		if isQuestionState(question) && answeredAfter == answeredBefore {
			h.metrics.ObserveParseFailure(question)
		}

		snapshot = s.Snapshot()
		return nil
	})
	if err != nil {
		if errors.Is(err, voice.ErrSessionNotFound) {
			h.logger.Warn("telephony: speech for unknown session", "session_id", event.SessionID)
			return TelephonyResponse{
				SessionID:     event.SessionID,
				PromptToSpeak: apologyClosePrompt,
				Terminated:    true,
			}, nil
		}
		if errors.Is(err, voice.ErrSessionTerminated) {
			// Stale delivery after the call ended, or redelivery after a
			// failed persist. A terminal session still in the registry has
			// an unsaved report; store it before declaring the event done.
			if err := h.retryFinalize(ctx, event.SessionID); err != nil {
				return TelephonyResponse{}, err
			}
			h.logger.Info("telephony: speech after call ended", "session_id", event.SessionID)
			return TelephonyResponse{SessionID: event.SessionID, Terminated: true}, nil
		}
		return TelephonyResponse{}, err
	}

	h.appendTranscript(ctx, event.SessionID, "patient", event.SpeechText)
	h.appendTranscript(ctx, event.SessionID, "assistant", prompt)

	resp := TelephonyResponse{SessionID: event.SessionID, PromptToSpeak: prompt}
	if snapshot.Status.Terminal() {
		if err := h.finalize(ctx, snapshot); err != nil {
			return TelephonyResponse{}, err
		}
		resp.Terminated = true
	}
	return resp, nil
}

func (h *TelephonyWebhookHandler) handleHangup(ctx context.Context, event *TelephonyEvent) (TelephonyResponse, error) {
	var snapshot *voice.Session
	err := h.registry.WithSession(event.SessionID, func(s *voice.Session) error {
		if err := h.machine.Hangup(s); err != nil {
			return err
		}
		snapshot = s.Snapshot()
		return nil
	})
	if err != nil {
		if errors.Is(err, voice.ErrSessionNotFound) {
			// The session already finished and was removed, or was swept;
			// hangup is a no-op.
			h.logger.Info("telephony: hangup for finished session", "session_id", event.SessionID)
			return TelephonyResponse{SessionID: event.SessionID, Terminated: true}, nil
		}
		if errors.Is(err, voice.ErrSessionTerminated) {
			// The call already ended but the session is still registered,
			// meaning an earlier finalize failed; retry the persist before
			// this event is marked processed.
			if err := h.retryFinalize(ctx, event.SessionID); err != nil {
				return TelephonyResponse{}, err
			}
			h.logger.Info("telephony: hangup for finished session", "session_id", event.SessionID)
			return TelephonyResponse{SessionID: event.SessionID, Terminated: true}, nil
		}
		return TelephonyResponse{}, err
	}

	if err := h.finalize(ctx, snapshot); err != nil {
		return TelephonyResponse{}, err
	}
	return TelephonyResponse{SessionID: event.SessionID, Terminated: true}, nil
}

// finalize persists the terminal session's report and drops the session
// from the registry. Removal happens only after a successful persist so a
// redelivered event can retry the write.
func (h *TelephonyWebhookHandler) finalize(ctx context.Context, snapshot *voice.Session) error {
	res, err := h.intake.FinalizeVoiceSession(ctx, snapshot)
	if err != nil {
		return err
	}
	h.registry.Remove(snapshot.ID)
	h.logger.Info("telephony: call session finalized",
		"session_id", snapshot.ID,
		"patient_id", snapshot.PatientID,
		"status", snapshot.Status,
		"report_id", res.ReportID,
		"alert", res.Alert.String())
	return nil
}

// retryFinalize persists a terminal session that is still registered, which
// happens when an earlier finalize attempt failed and the provider
// redelivered the event. A missing session means the report was already
// stored and removed.
func (h *TelephonyWebhookHandler) retryFinalize(ctx context.Context, sessionID string) error {
	snapshot, err := h.registry.Get(sessionID)
	if err != nil {
		if errors.Is(err, voice.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	if !snapshot.Status.Terminal() {
		return nil
	}
	return h.finalize(ctx, snapshot)
}

func (h *TelephonyWebhookHandler) appendTranscript(ctx context.Context, sessionID, role, text string) {
	if h.transcripts == nil || text == "" {
		return
	}
	entry := voice.TranscriptEntry{Role: role, Text: text, Timestamp: h.now().UTC()}
	if err := h.transcripts.Append(ctx, sessionID, entry); err != nil {
		// Transcripts are best effort; the call flow never fails on them.
		h.logger.Warn("telephony: transcript append failed",
			"error", err, "session_id", sessionID)
	}
}

func (h *TelephonyWebhookHandler) writeResponse(w http.ResponseWriter, resp TelephonyResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func isQuestionState(state string) bool {
	switch state {
	case "ASK_OVERALL", "ASK_PAIN", "ASK_BREATHING", "ASK_FEVER", "ASK_WOUND":
		return true
	}
	return false
}

// TranscriptHandler serves stored call transcripts to clinic staff.
type TranscriptHandler struct {
	transcripts *voice.TranscriptStore
	logger      *logging.Logger
}

// NewTranscriptHandler creates a new TranscriptHandler.
func NewTranscriptHandler(transcripts *voice.TranscriptStore, logger *logging.Logger) *TranscriptHandler {
	return &TranscriptHandler{
		transcripts: transcripts,
		logger:      logger.WithComponent("transcript_handler"),
	}
}

// GetTranscript handles GET /sessions/{sessionID}/transcript.
func (h *TranscriptHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}
	if h.transcripts == nil {
		http.Error(w, "transcripts not configured", http.StatusNotFound)
		return
	}

	entries, err := h.transcripts.List(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to list transcript", "error", err, "session_id", sessionID)
		http.Error(w, "failed to fetch transcript", http.StatusInternalServerError)
		return
	}
	if len(entries) == 0 {
		http.Error(w, "no transcript for that session", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"session_id": sessionID,
		"entries":    entries,
	})
}
