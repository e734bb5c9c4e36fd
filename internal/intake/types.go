package intake

import "github.com/aicare/intake-platform/internal/report"

// ChatSubmission is one structured turn-complete payload from the chat
// front end. The chat UI walks the patient through the same five questions
// as the call script and posts the collected answers in one request.
type ChatSubmission struct {
	PatientID string `json:"patient_id"`
	Overall   *int   `json:"overall"`
	Pain      *int   `json:"pain"`
	Breathing *int   `json:"breathing"`
	Fever     *bool  `json:"fever"`
	Wound     *bool  `json:"wound"`
	Note      string `json:"note,omitempty"`
}

// QuestionnaireSubmission is the daily self-service form payload. It is
// shaped like the chat payload; the channels differ in provenance, not
// content.
type QuestionnaireSubmission struct {
	PatientID string `json:"patient_id"`
	Overall   *int   `json:"overall"`
	Pain      *int   `json:"pain"`
	Breathing *int   `json:"breathing"`
	Fever     *bool  `json:"fever"`
	Wound     *bool  `json:"wound"`
	Note      string `json:"note,omitempty"`
}

// Result is what a successful intake returns to the caller: the stored
// report id, the canonical report, and the alert level it classified to.
type Result struct {
	ReportID string                `json:"report_id"`
	Alert    report.AlertLevel     `json:"-"`
	Report   *report.SymptomReport `json:"report"`
}
