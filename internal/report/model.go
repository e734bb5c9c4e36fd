package report

import (
	"time"
)

// Channel identifies the intake modality a report arrived through.
type Channel string

const (
	ChannelChat          Channel = "chat"
	ChannelQuestionnaire Channel = "questionnaire"
	ChannelVoiceCall     Channel = "voice_call"
)

// Valid reports whether the channel is one of the known intake modalities.
func (c Channel) Valid() bool {
	switch c {
	case ChannelChat, ChannelQuestionnaire, ChannelVoiceCall:
		return true
	}
	return false
}

// AlertLevel is the urgency tier driving clinical follow-up speed.
// The ordering GREEN < YELLOW < RED is load-bearing: escalation rules
// compare levels and must never de-escalate under ambiguity.
type AlertLevel int

const (
	AlertGreen AlertLevel = iota
	AlertYellow
	AlertRed
)

func (a AlertLevel) String() string {
	switch a {
	case AlertRed:
		return "RED"
	case AlertYellow:
		return "YELLOW"
	default:
		return "GREEN"
	}
}

// ParseAlertLevel maps a stored level label back to its AlertLevel.
func ParseAlertLevel(s string) AlertLevel {
	switch s {
	case "RED":
		return AlertRed
	case "YELLOW":
		return AlertYellow
	default:
		return AlertGreen
	}
}

// SymptomReport is the canonical record shared by all intake channels.
// Score and flag fields are pointers so a partial report (from an aborted
// call) preserves exactly which answers were obtained: nil means the
// question was never answered, which is different from a zero score or a
// "no" answer.
type SymptomReport struct {
	ID         string    `json:"id,omitempty"`
	PatientID  string    `json:"patient_id"`
	ReportDate time.Time `json:"report_date"`
	ReportTime time.Time `json:"report_time"`
	Channel    Channel   `json:"channel"`
	Overall    *int      `json:"overall"`
	Pain       *int      `json:"pain"`
	Breathing  *int      `json:"breathing"`
	Fever      *bool     `json:"fever"`
	Wound      *bool     `json:"wound"`
	Note       string    `json:"note,omitempty"`
	Complete   bool      `json:"complete"`
}

// requiredFields enumerates the fields a complete report must carry, in
// question order.
var requiredFields = []string{"overall", "pain", "breathing", "fever", "wound"}

// MissingRequired returns the names of required fields that were never
// answered, in question order.
func (r *SymptomReport) MissingRequired() []string {
	var missing []string
	for _, f := range requiredFields {
		switch f {
		case "overall":
			if r.Overall == nil {
				missing = append(missing, f)
			}
		case "pain":
			if r.Pain == nil {
				missing = append(missing, f)
			}
		case "breathing":
			if r.Breathing == nil {
				missing = append(missing, f)
			}
		case "fever":
			if r.Fever == nil {
				missing = append(missing, f)
			}
		case "wound":
			if r.Wound == nil {
				missing = append(missing, f)
			}
		}
	}
	return missing
}

// Clone returns a deep copy so callers can freeze an in-progress report
// without sharing pointer fields.
func (r *SymptomReport) Clone() *SymptomReport {
	cp := *r
	if r.Overall != nil {
		v := *r.Overall
		cp.Overall = &v
	}
	if r.Pain != nil {
		v := *r.Pain
		cp.Pain = &v
	}
	if r.Breathing != nil {
		v := *r.Breathing
		cp.Breathing = &v
	}
	if r.Fever != nil {
		v := *r.Fever
		cp.Fever = &v
	}
	if r.Wound != nil {
		v := *r.Wound
		cp.Wound = &v
	}
	return &cp
}

// Day truncates a timestamp to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IntPtr and BoolPtr build optional score/flag values.
func IntPtr(v int) *int { return &v }

func BoolPtr(v bool) *bool { return &v }
