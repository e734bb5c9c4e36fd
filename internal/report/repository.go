package report

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence collaborator for symptom reports. The core
// depends only on this contract, not on any specific storage technology.
type Repository interface {
	// AppendOrSupersedeReport persists a report and returns its id. A
	// complete report for a (patient, date) pair that already holds one
	// supersedes the stored row when its report time is equal or later;
	// an older or identical re-delivery is a no-op returning the stored
	// row's id, never a duplicate.
	AppendOrSupersedeReport(ctx context.Context, r *SymptomReport) (string, error)

	// FindReport returns the report of record for a patient and date:
	// the complete report if one exists, otherwise the most recent
	// partial one. ErrReportNotFound when the day has no report.
	FindReport(ctx context.Context, patientID string, date time.Time) (*SymptomReport, error)
}

// InMemoryRepository keeps reports in memory. Used in tests and when no
// database is configured.
type InMemoryRepository struct {
	mu       sync.RWMutex
	complete map[string]*SymptomReport // patientID|date -> complete report
	partial  []*SymptomReport
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		complete: make(map[string]*SymptomReport),
	}
}

func dayKey(patientID string, date time.Time) string {
	return patientID + "|" + Day(date).Format("2006-01-02")
}

// AppendOrSupersedeReport implements Repository.
func (m *InMemoryRepository) AppendOrSupersedeReport(ctx context.Context, r *SymptomReport) (string, error) {
	if r.PatientID == "" {
		return "", ErrMissingPatientID
	}

	stored := r.Clone()
	stored.ReportDate = Day(r.ReportDate)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !stored.Complete {
		m.partial = append(m.partial, stored)
		return stored.ID, nil
	}

	key := dayKey(stored.PatientID, stored.ReportDate)
	if existing, ok := m.complete[key]; ok {
		// Last write wins by report time; an older write is dropped and
		// the stored row's id returned so retries stay idempotent.
		if stored.ReportTime.Before(existing.ReportTime) {
			return existing.ID, nil
		}
		stored.ID = existing.ID
	}
	m.complete[key] = stored
	return stored.ID, nil
}

// FindReport implements Repository.
func (m *InMemoryRepository) FindReport(ctx context.Context, patientID string, date time.Time) (*SymptomReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if r, ok := m.complete[dayKey(patientID, date)]; ok {
		return r.Clone(), nil
	}

	var latest *SymptomReport
	day := Day(date)
	for _, r := range m.partial {
		if r.PatientID != patientID || !r.ReportDate.Equal(day) {
			continue
		}
		if latest == nil || r.ReportTime.After(latest.ReportTime) {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrReportNotFound
	}
	return latest.Clone(), nil
}

// CountRows reports the total stored rows for a patient/date pair. Test
// helper for the one-complete-report-per-day invariant.
func (m *InMemoryRepository) CountRows(patientID string, date time.Time) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	if _, ok := m.complete[dayKey(patientID, date)]; ok {
		n++
	}
	day := Day(date)
	for _, r := range m.partial {
		if r.PatientID == patientID && r.ReportDate.Equal(day) {
			n++
		}
	}
	return n
}
