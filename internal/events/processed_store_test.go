package events

import (
	"context"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
)

func TestProcessedStoreFirstDelivery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newProcessedStoreWithExec(mock)

	mock.ExpectQuery("SELECT 1 FROM processed_events").
		WithArgs("telephony", "evt-1").
		WillReturnRows(pgxmock.NewRows([]string{"1"}))

	seen, err := store.AlreadyProcessed(context.Background(), "telephony", "evt-1")
	if err != nil {
		t.Fatalf("AlreadyProcessed: %v", err)
	}
	if seen {
		t.Error("fresh event reported as processed")
	}

	mock.ExpectExec("INSERT INTO processed_events").
		WithArgs("telephony", "evt-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, err := store.MarkProcessed(context.Background(), "telephony", "evt-1")
	if err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if !inserted {
		t.Error("first mark reported as duplicate")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProcessedStoreDuplicateDelivery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newProcessedStoreWithExec(mock)

	mock.ExpectQuery("SELECT 1 FROM processed_events").
		WithArgs("telephony", "evt-1").
		WillReturnRows(pgxmock.NewRows([]string{"1"}).AddRow(1))

	seen, err := store.AlreadyProcessed(context.Background(), "telephony", "evt-1")
	if err != nil {
		t.Fatalf("AlreadyProcessed: %v", err)
	}
	if !seen {
		t.Error("recorded event not reported as processed")
	}

	mock.ExpectExec("INSERT INTO processed_events").
		WithArgs("telephony", "evt-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := store.MarkProcessed(context.Background(), "telephony", "evt-1")
	if err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if inserted {
		t.Error("duplicate mark reported as first insert")
	}
}

func TestInMemoryProcessedStore(t *testing.T) {
	store := NewInMemoryProcessedStore()
	ctx := context.Background()

	seen, err := store.AlreadyProcessed(ctx, "telephony", "evt-1")
	if err != nil || seen {
		t.Fatalf("fresh event: seen=%v err=%v", seen, err)
	}

	inserted, err := store.MarkProcessed(ctx, "telephony", "evt-1")
	if err != nil || !inserted {
		t.Fatalf("first mark: inserted=%v err=%v", inserted, err)
	}

	seen, err = store.AlreadyProcessed(ctx, "telephony", "evt-1")
	if err != nil || !seen {
		t.Fatalf("after mark: seen=%v err=%v", seen, err)
	}

	inserted, err = store.MarkProcessed(ctx, "telephony", "evt-1")
	if err != nil || inserted {
		t.Fatalf("duplicate mark: inserted=%v err=%v", inserted, err)
	}

	// Different providers never collide on the same event id.
	seen, err = store.AlreadyProcessed(ctx, "other", "evt-1")
	if err != nil || seen {
		t.Fatalf("other provider: seen=%v err=%v", seen, err)
	}
}
