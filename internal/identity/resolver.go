package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPatientNotFound is returned when no enrolled patient matches the
// lookup key.
var ErrPatientNotFound = errors.New("patient not found")

// Resolver maps a caller's phone number to an enrolled patient id. The
// telephony provider only knows the phone number; every report must be
// attributed to a patient before it can be persisted.
type Resolver interface {
	ResolvePhone(ctx context.Context, phone string) (string, error)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresResolver resolves patients from the enrollment table.
type PostgresResolver struct {
	pool rowQuerier
}

// NewPostgresResolver initializes a resolver backed by pgxpool.
func NewPostgresResolver(pool *pgxpool.Pool) *PostgresResolver {
	if pool == nil {
		panic("identity: pgx pool required")
	}
	return &PostgresResolver{pool: pool}
}

func newPostgresResolverWithExec(q rowQuerier) *PostgresResolver {
	if q == nil {
		panic("identity: exec required")
	}
	return &PostgresResolver{pool: q}
}

// ResolvePhone implements Resolver.
func (r *PostgresResolver) ResolvePhone(ctx context.Context, phone string) (string, error) {
	if phone == "" {
		return "", ErrPatientNotFound
	}
	var patientID string
	err := r.pool.QueryRow(ctx,
		`SELECT patient_id FROM patients WHERE phone = $1`, phone).Scan(&patientID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrPatientNotFound
	}
	if err != nil {
		return "", fmt.Errorf("identity: resolve phone: %w", err)
	}
	return patientID, nil
}

// StaticResolver resolves from a fixed phone-to-patient mapping. Used in
// development and tests when no database is configured.
type StaticResolver struct {
	patients map[string]string
}

// NewStaticResolver creates a resolver over a phone-to-patient-id map.
func NewStaticResolver(patients map[string]string) *StaticResolver {
	if patients == nil {
		patients = make(map[string]string)
	}
	return &StaticResolver{patients: patients}
}

// ResolvePhone implements Resolver.
func (r *StaticResolver) ResolvePhone(_ context.Context, phone string) (string, error) {
	id, ok := r.patients[phone]
	if !ok {
		return "", ErrPatientNotFound
	}
	return id, nil
}
