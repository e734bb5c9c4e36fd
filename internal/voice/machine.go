package voice

import "time"

// DefaultRetryLimit is the number of consecutive parse failures tolerated
// on one question before it is skipped and the call moves on.
const DefaultRetryLimit = 2

// Machine advances call sessions through the fixed question sequence:
//
//	GREETING -> ASK_OVERALL -> ASK_PAIN -> ASK_BREATHING ->
//	ASK_FEVER -> ASK_WOUND -> SUMMARY -> COMPLETED
//
// with ABORTED reachable from any non-terminal state on hangup. It is a
// pure reducer over Session: no I/O, no timers, no locking. Callers
// serialize invocations per session through the Registry.
type Machine struct {
	retryLimit int
	now        func() time.Time
}

// NewMachine creates a machine with the given retry limit; values below 1
// fall back to DefaultRetryLimit.
func NewMachine(retryLimit int) *Machine {
	if retryLimit < 1 {
		retryLimit = DefaultRetryLimit
	}
	return &Machine{retryLimit: retryLimit, now: time.Now}
}

// Advance consumes one spoken answer and mutates the session, returning the
// next prompt to speak. A parse failure is an ordinary outcome, not an
// error: the same question is re-issued as a clarification. Once the
// session is terminal, Advance fails with ErrSessionTerminated and leaves
// the session untouched.
func (m *Machine) Advance(s *Session, spoken string) (string, error) {
	if s.Status.Terminal() {
		return "", ErrSessionTerminated
	}
	s.LastActivityAt = m.now().UTC()

	switch s.State {
	case StateGreeting:
		// The greeting needs no answer; the first callback moves straight
		// to the first question.
		return m.enter(s, StateAskOverall), nil

	case StateAskOverall, StateAskPain, StateAskBreathing:
		score, ok := parseScore(spoken)
		if !ok {
			return m.parseFailed(s), nil
		}
		switch s.State {
		case StateAskOverall:
			s.Report.Overall = &score
		case StateAskPain:
			s.Report.Pain = &score
		case StateAskBreathing:
			s.Report.Breathing = &score
		}
		return m.enter(s, s.State+1), nil

	case StateAskFever, StateAskWound:
		answer, ok := parseYesNo(spoken)
		if !ok {
			return m.parseFailed(s), nil
		}
		if s.State == StateAskFever {
			s.Report.Fever = &answer
		} else {
			s.Report.Wound = &answer
		}
		return m.enter(s, s.State+1), nil

	case StateSummary:
		// The closing prompt was already spoken; the next event of any
		// kind finishes the call. No user input is required.
		s.State = StateCompleted
		s.Status = StatusCompleted
		return closingFarewell, nil
	}

	return "", ErrSessionTerminated
}

// Hangup records silence, hang-up, or an explicit decline-to-continue from
// any non-terminal state. The in-progress report is frozen as-is.
func (m *Machine) Hangup(s *Session) error {
	if s.Status.Terminal() {
		return ErrSessionTerminated
	}
	s.LastActivityAt = m.now().UTC()
	s.State = StateAborted
	s.Status = StatusAborted
	return nil
}

// enter moves the session to the given state, resets the per-question retry
// counter, and returns the state's opening prompt.
func (m *Machine) enter(s *Session, next State) string {
	s.State = next
	s.Retries = 0
	if next == StateSummary {
		return summaryPrompt(s)
	}
	return questionPrompt(next)
}

// parseFailed counts a consecutive parse failure on the current question.
// Below the retry limit the same question is re-issued as a clarification;
// at the limit the field stays unanswered and the call moves forward, so a
// call always makes progress and terminates.
func (m *Machine) parseFailed(s *Session) string {
	s.Retries++
	if s.Retries < m.retryLimit {
		return clarifyPrompt(s.State)
	}
	return m.enter(s, s.State+1)
}
