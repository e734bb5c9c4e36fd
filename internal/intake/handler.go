package intake

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aicare/intake-platform/internal/report"
	"github.com/aicare/intake-platform/pkg/logging"
)

// Handler handles HTTP requests for chat and questionnaire intake and for
// report lookups.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new intake handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.WithComponent("intake_handler"),
	}
}

type intakeResponse struct {
	ReportID string                `json:"report_id"`
	Alert    string                `json:"alert"`
	Report   *report.SymptomReport `json:"report"`
}

// SubmitChat handles POST /intake/chat requests.
func (h *Handler) SubmitChat(w http.ResponseWriter, r *http.Request) {
	var sub ChatSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.logger.Error("failed to decode chat submission", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.SubmitChat(r.Context(), &sub)
	if err != nil {
		h.writeSubmitError(w, err, "chat")
		return
	}
	h.writeResult(w, res)
}

// SubmitQuestionnaire handles POST /intake/questionnaire requests.
func (h *Handler) SubmitQuestionnaire(w http.ResponseWriter, r *http.Request) {
	var sub QuestionnaireSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		h.logger.Error("failed to decode questionnaire submission", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.SubmitQuestionnaire(r.Context(), &sub)
	if err != nil {
		h.writeSubmitError(w, err, "questionnaire")
		return
	}
	h.writeResult(w, res)
}

// GetReport handles GET /reports/{patientID}/{date} requests. The date is
// a calendar day in YYYY-MM-DD form.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	if patientID == "" {
		http.Error(w, "missing patient id", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	rep, err := h.service.GetReport(r.Context(), patientID, date)
	if err != nil {
		if errors.Is(err, report.ErrReportNotFound) {
			http.Error(w, "no report for that day", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to fetch report", "error", err, "patient_id", patientID)
		http.Error(w, "failed to fetch report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(intakeResponse{
		ReportID: rep.ID,
		Alert:    h.service.Classify(rep).String(),
		Report:   rep,
	})
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, err error, channel string) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"error":  "validation_failed",
			"field":  verr.Field,
			"reason": verr.Reason,
		})
		return
	}
	h.logger.Error("intake submission failed", "error", err, "channel", channel)
	http.Error(w, "failed to record report", http.StatusInternalServerError)
}

func (h *Handler) writeResult(w http.ResponseWriter, res *Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(intakeResponse{
		ReportID: res.ReportID,
		Alert:    res.Alert.String(),
		Report:   res.Report,
	})
}
