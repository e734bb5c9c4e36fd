package voice

import (
	"time"

	"github.com/aicare/intake-platform/internal/report"
)

// Status tracks the lifecycle of a call session.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusAborted   Status = "ABORTED"
)

// State is the position of a session in the fixed question sequence.
type State int

const (
	StateGreeting State = iota
	StateAskOverall
	StateAskPain
	StateAskBreathing
	StateAskFever
	StateAskWound
	StateSummary
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateGreeting:
		return "GREETING"
	case StateAskOverall:
		return "ASK_OVERALL"
	case StateAskPain:
		return "ASK_PAIN"
	case StateAskBreathing:
		return "ASK_BREATHING"
	case StateAskFever:
		return "ASK_FEVER"
	case StateAskWound:
		return "ASK_WOUND"
	case StateSummary:
		return "SUMMARY"
	case StateCompleted:
		return "COMPLETED"
	case StateAborted:
		return "ABORTED"
	}
	return "UNKNOWN"
}

// Terminal reports whether no further answers are accepted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// Session is the live conversational state of one telephone call. It is
// owned by the Registry for its lifetime and mutated only through the
// Machine's Advance/Hangup under the registry's per-session lock.
type Session struct {
	ID        string
	PatientID string
	State     State
	Status    Status

	// Report accumulates answers as the call progresses. Date/time stamps
	// and completeness are filled in by the intake normalizer when the
	// session terminates.
	Report report.SymptomReport

	// Retries counts consecutive parse failures on the current question.
	Retries int

	CreatedAt      time.Time
	LastActivityAt time.Time
}

// NewSession creates an ACTIVE session positioned at the greeting.
func NewSession(id, patientID string, now time.Time) *Session {
	return &Session{
		ID:        id,
		PatientID: patientID,
		State:     StateGreeting,
		Status:    StatusActive,
		Report: report.SymptomReport{
			PatientID: patientID,
			Channel:   report.ChannelVoiceCall,
		},
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Snapshot returns a copy safe to hand outside the registry lock.
func (s *Session) Snapshot() *Session {
	cp := *s
	cp.Report = *s.Report.Clone()
	return &cp
}
