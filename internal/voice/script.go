package voice

import (
	"fmt"
	"strings"
)

// The call script mirrors the nurse-reviewed follow-up questionnaire: one
// fixed question per ASK_* state, each with a clarification variant spoken
// after an unintelligible answer.

const greetingPrompt = "Hello, this is the care team's health assistant calling to check on you after your surgery. " +
	"I have a few short questions; please answer each one when prompted."

const closingFarewell = "Thank you for your report. Your answers have been shared with your care team. Goodbye."

var questionPrompts = map[State]string{
	StateAskOverall: "First, how do you feel overall today? " +
		"Please say a number from zero to ten, where zero means no discomfort at all and ten means the worst possible.",
	StateAskPain: "How bad is the pain around your wound or chest? " +
		"Please say a number from zero to ten.",
	StateAskBreathing: "How much difficulty are you having with your breathing? " +
		"Please say a number from zero to ten.",
	StateAskFever: "Have you had a fever today? Please answer yes or no.",
	StateAskWound: "Is there any redness, swelling, or discharge around your wound? Please answer yes or no.",
}

var clarifyPrompts = map[State]string{
	StateAskOverall:   "Sorry, I didn't catch that. Using a single number from zero to ten, how do you feel overall today?",
	StateAskPain:      "Sorry, I didn't catch that. Using a single number from zero to ten, how bad is your pain?",
	StateAskBreathing: "Sorry, I didn't catch that. Using a single number from zero to ten, how difficult is your breathing?",
	StateAskFever:     "Sorry, I didn't catch that. Have you had a fever today, yes or no?",
	StateAskWound:     "Sorry, I didn't catch that. Does your wound look red, swollen, or have discharge, yes or no?",
}

// GreetingPrompt is spoken when the call is answered, before the first
// question.
func GreetingPrompt() string {
	return greetingPrompt
}

func questionPrompt(state State) string {
	return questionPrompts[state]
}

func clarifyPrompt(state State) string {
	return clarifyPrompts[state]
}

// summaryPrompt reads back the answers that were obtained and closes the
// call. Skipped questions are acknowledged so the patient knows the record
// is partial.
func summaryPrompt(s *Session) string {
	var parts []string
	if s.Report.Overall != nil {
		parts = append(parts, fmt.Sprintf("overall feeling %d out of ten", *s.Report.Overall))
	}
	if s.Report.Pain != nil {
		parts = append(parts, fmt.Sprintf("pain %d out of ten", *s.Report.Pain))
	}
	if s.Report.Breathing != nil {
		parts = append(parts, fmt.Sprintf("breathing difficulty %d out of ten", *s.Report.Breathing))
	}
	if s.Report.Fever != nil {
		parts = append(parts, "fever "+yesNoWord(*s.Report.Fever))
	}
	if s.Report.Wound != nil {
		parts = append(parts, "wound abnormality "+yesNoWord(*s.Report.Wound))
	}

	summary := "I recorded: " + strings.Join(parts, ", ") + "."
	if len(parts) == 0 {
		summary = "I wasn't able to record your answers this time."
	}
	if skipped := len(s.Report.MissingRequired()); skipped > 0 {
		summary += " Some questions were left unanswered, so a nurse will follow up with you."
	}
	return summary + " That's everything for today."
}

func yesNoWord(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
