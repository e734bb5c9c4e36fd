package report

import "errors"

var (
	// ErrReportNotFound is returned when no report exists for a patient/date pair.
	ErrReportNotFound = errors.New("report not found")

	// ErrMissingPatientID is returned when a report carries no patient identifier.
	ErrMissingPatientID = errors.New("patient id is required")
)
