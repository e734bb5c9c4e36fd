package intake

import "fmt"

// ValidationError reports a rejected submission field. Chat and
// questionnaire submissions are interactive, so validation failures are
// surfaced to the patient rather than silently coerced.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
