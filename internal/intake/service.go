package intake

import (
	"context"
	"time"

	"github.com/aicare/intake-platform/internal/observability/metrics"
	"github.com/aicare/intake-platform/internal/report"
	"github.com/aicare/intake-platform/internal/voice"
	"github.com/aicare/intake-platform/pkg/logging"
)

// Service runs the shared intake pipeline: normalize to the canonical
// report, classify, persist, record metrics. All three channels converge
// here so persistence and triage behave identically regardless of how the
// answers arrived.
type Service struct {
	repo    report.Repository
	policy  report.TriagePolicy
	metrics *metrics.IntakeMetrics
	logger  *logging.Logger
	now     func() time.Time
}

// NewService creates the intake service. A nil metrics handle disables
// metric recording.
func NewService(repo report.Repository, policy report.TriagePolicy, m *metrics.IntakeMetrics, logger *logging.Logger) *Service {
	return &Service{
		repo:    repo,
		policy:  policy,
		metrics: m,
		logger:  logger.WithComponent("intake"),
		now:     time.Now,
	}
}

// SubmitChat ingests a chat submission.
func (s *Service) SubmitChat(ctx context.Context, sub *ChatSubmission) (*Result, error) {
	r, err := NormalizeChat(sub, s.now())
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, r)
}

// SubmitQuestionnaire ingests a questionnaire submission.
func (s *Service) SubmitQuestionnaire(ctx context.Context, sub *QuestionnaireSubmission) (*Result, error) {
	r, err := NormalizeQuestionnaire(sub, s.now())
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, r)
}

// FinalizeVoiceSession persists the report frozen from a terminal call
// session, complete or not.
func (s *Service) FinalizeVoiceSession(ctx context.Context, sess *voice.Session) (*Result, error) {
	r, err := NormalizeVoice(sess, s.now())
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, r)
}

// Classify applies the service's triage policy to a report.
func (s *Service) Classify(r *report.SymptomReport) report.AlertLevel {
	return s.policy.Classify(r)
}

// GetReport returns the effective report for a patient and day.
func (s *Service) GetReport(ctx context.Context, patientID string, date time.Time) (*report.SymptomReport, error) {
	return s.repo.FindReport(ctx, patientID, date)
}

func (s *Service) persist(ctx context.Context, r *report.SymptomReport) (*Result, error) {
	alert := s.policy.Classify(r)

	id, err := s.repo.AppendOrSupersedeReport(ctx, r)
	if err != nil {
		s.logger.Error("failed to persist symptom report",
			"error", err, "patient_id", r.PatientID, "channel", r.Channel)
		return nil, err
	}
	r.ID = id

	s.metrics.ObserveReport(string(r.Channel), alert.String())
	s.logger.Info("symptom report persisted",
		"report_id", id,
		"patient_id", r.PatientID,
		"channel", r.Channel,
		"alert", alert.String(),
		"complete", r.Complete)
	if alert == report.AlertRed {
		s.logger.Warn("red alert report",
			"report_id", id, "patient_id", r.PatientID, "missing", r.MissingRequired())
	}

	return &Result{ReportID: id, Alert: alert, Report: r}, nil
}
