package intake

import (
	"fmt"
	"time"

	"github.com/aicare/intake-platform/internal/report"
	"github.com/aicare/intake-platform/internal/voice"
)

// Normalization turns channel-specific payloads into the one canonical
// SymptomReport shape. Interactive channels (chat, questionnaire) must be
// complete and in range or the submission is rejected; the voice channel
// accepts whatever answers the call obtained.

// NormalizeChat validates a chat submission and produces a complete report.
func NormalizeChat(sub *ChatSubmission, now time.Time) (*report.SymptomReport, error) {
	return normalizeInteractive(report.ChannelChat, sub.PatientID, sub.Overall, sub.Pain, sub.Breathing, sub.Fever, sub.Wound, sub.Note, now)
}

// NormalizeQuestionnaire validates a questionnaire submission and produces
// a complete report.
func NormalizeQuestionnaire(sub *QuestionnaireSubmission, now time.Time) (*report.SymptomReport, error) {
	return normalizeInteractive(report.ChannelQuestionnaire, sub.PatientID, sub.Overall, sub.Pain, sub.Breathing, sub.Fever, sub.Wound, sub.Note, now)
}

func normalizeInteractive(channel report.Channel, patientID string, overall, pain, breathing *int, fever, wound *bool, note string, now time.Time) (*report.SymptomReport, error) {
	if patientID == "" {
		return nil, &ValidationError{Field: "patient_id", Reason: "required"}
	}
	for _, f := range []struct {
		name  string
		score *int
	}{
		{"overall", overall},
		{"pain", pain},
		{"breathing", breathing},
	} {
		if f.score == nil {
			return nil, &ValidationError{Field: f.name, Reason: "required"}
		}
		if *f.score < 0 || *f.score > 10 {
			return nil, &ValidationError{Field: f.name, Reason: fmt.Sprintf("must be between 0 and 10, got %d", *f.score)}
		}
	}
	if fever == nil {
		return nil, &ValidationError{Field: "fever", Reason: "required"}
	}
	if wound == nil {
		return nil, &ValidationError{Field: "wound", Reason: "required"}
	}

	now = now.UTC()
	return &report.SymptomReport{
		PatientID:  patientID,
		ReportDate: report.Day(now),
		ReportTime: now,
		Channel:    channel,
		Overall:    overall,
		Pain:       pain,
		Breathing:  breathing,
		Fever:      fever,
		Wound:      wound,
		Note:       note,
		Complete:   true,
	}, nil
}

// NormalizeVoice freezes a terminal call session into a report. A completed
// call with skipped questions yields a partial report; an aborted call
// yields whatever answers were obtained before the hangup. A still-active
// session is a programming error at the call site.
func NormalizeVoice(sess *voice.Session, now time.Time) (*report.SymptomReport, error) {
	if sess.PatientID == "" {
		return nil, report.ErrMissingPatientID
	}
	if !sess.Status.Terminal() {
		return nil, fmt.Errorf("voice session %s is still %s", sess.ID, sess.Status)
	}

	r := sess.Report.Clone()
	now = now.UTC()
	r.PatientID = sess.PatientID
	r.ReportDate = report.Day(now)
	r.ReportTime = now
	r.Channel = report.ChannelVoiceCall
	r.Complete = len(r.MissingRequired()) == 0
	return r, nil
}
