package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores symptom reports in the relational database.
// Rows carry the derived alert level and channel tag so external reporting
// tooling reads one shape without recomputing triage.
type PostgresRepository struct {
	pool   querier
	policy TriagePolicy
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool, policy TriagePolicy) *PostgresRepository {
	if pool == nil {
		panic("report: pgx pool required")
	}
	return &PostgresRepository{pool: pool, policy: policy}
}

func newPostgresRepositoryWithExec(q querier, policy TriagePolicy) *PostgresRepository {
	if q == nil {
		panic("report: exec required")
	}
	return &PostgresRepository{pool: q, policy: policy}
}

// AppendOrSupersedeReport implements Repository. Complete reports upsert
// against the partial unique index on (patient_id, report_date) WHERE
// complete; the update only applies when the incoming report time is equal
// or later, so concurrent complete reports resolve last-write-wins and an
// identical re-delivery leaves exactly one row.
func (r *PostgresRepository) AppendOrSupersedeReport(ctx context.Context, rep *SymptomReport) (string, error) {
	if rep.PatientID == "" {
		return "", ErrMissingPatientID
	}

	id := rep.ID
	if id == "" {
		id = uuid.NewString()
	}
	date := Day(rep.ReportDate)
	alert := r.policy.Classify(rep).String()

	if !rep.Complete {
		query := `
			INSERT INTO symptom_reports
				(id, patient_id, report_date, report_time, channel,
				 overall_score, pain_score, breathing_score, fever, wound_abnormal,
				 note, complete, alert_level)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, $12)
			RETURNING id
		`
		var out string
		if err := r.pool.QueryRow(ctx, query,
			id, rep.PatientID, date, rep.ReportTime, rep.Channel,
			rep.Overall, rep.Pain, rep.Breathing, rep.Fever, rep.Wound,
			rep.Note, alert,
		).Scan(&out); err != nil {
			return "", fmt.Errorf("report: insert partial failed: %w", err)
		}
		return out, nil
	}

	query := `
		INSERT INTO symptom_reports
			(id, patient_id, report_date, report_time, channel,
			 overall_score, pain_score, breathing_score, fever, wound_abnormal,
			 note, complete, alert_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true, $12)
		ON CONFLICT (patient_id, report_date) WHERE complete
		DO UPDATE SET
			report_time = EXCLUDED.report_time,
			channel = EXCLUDED.channel,
			overall_score = EXCLUDED.overall_score,
			pain_score = EXCLUDED.pain_score,
			breathing_score = EXCLUDED.breathing_score,
			fever = EXCLUDED.fever,
			wound_abnormal = EXCLUDED.wound_abnormal,
			note = EXCLUDED.note,
			alert_level = EXCLUDED.alert_level
		WHERE EXCLUDED.report_time >= symptom_reports.report_time
		RETURNING id
	`
	var out string
	err := r.pool.QueryRow(ctx, query,
		id, rep.PatientID, date, rep.ReportTime, rep.Channel,
		rep.Overall, rep.Pain, rep.Breathing, rep.Fever, rep.Wound,
		rep.Note, alert,
	).Scan(&out)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("report: upsert failed: %w", err)
	}

	// The stored row was newer; fetch its id so the superseded write stays
	// a deterministic no-op for the caller.
	var existing string
	if err := r.pool.QueryRow(ctx,
		`SELECT id FROM symptom_reports WHERE patient_id = $1 AND report_date = $2 AND complete`,
		rep.PatientID, date,
	).Scan(&existing); err != nil {
		return "", fmt.Errorf("report: lookup superseded row: %w", err)
	}
	return existing, nil
}

// FindReport implements Repository. Complete reports take precedence over
// partial ones for the same day.
func (r *PostgresRepository) FindReport(ctx context.Context, patientID string, date time.Time) (*SymptomReport, error) {
	query := `
		SELECT id, patient_id, report_date, report_time, channel,
		       overall_score, pain_score, breathing_score, fever, wound_abnormal,
		       note, complete
		FROM symptom_reports
		WHERE patient_id = $1 AND report_date = $2
		ORDER BY complete DESC, report_time DESC
		LIMIT 1
	`
	row := r.pool.QueryRow(ctx, query, patientID, Day(date))
	var rep SymptomReport
	if err := row.Scan(
		&rep.ID,
		&rep.PatientID,
		&rep.ReportDate,
		&rep.ReportTime,
		&rep.Channel,
		&rep.Overall,
		&rep.Pain,
		&rep.Breathing,
		&rep.Fever,
		&rep.Wound,
		&rep.Note,
		&rep.Complete,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("report: select failed: %w", err)
	}
	return &rep, nil
}
