// Command migrate applies the embedded intake schema migrations (patients,
// symptom_reports, processed_events) to the Postgres pointed at by
// DATABASE_URL.
//
// Usage:
//
//	migrate              apply all pending migrations
//	migrate down <n>     roll back n migrations
//	migrate force <v>    reset a dirty schema to version v
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	appmigrations "github.com/aicare/intake-platform/migrations"
)

func main() {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("db driver: %v", err)
	}

	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		log.Fatalf("source driver: %v", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		log.Fatalf("create migrator: %v", err)
	}
	defer func() { _, _ = m.Close() }()

	if len(os.Args) >= 3 {
		switch os.Args[1] {
		case "force":
			version, err := strconv.Atoi(os.Args[2])
			if err != nil {
				log.Fatalf("invalid version: %v", err)
			}
			if err := m.Force(version); err != nil {
				log.Fatalf("force version: %v", err)
			}
			fmt.Printf("forced version to %d\n", version)
			return
		case "down":
			steps, err := strconv.Atoi(os.Args[2])
			if err != nil || steps < 1 {
				log.Fatalf("invalid step count %q", os.Args[2])
			}
			if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				log.Fatalf("migrate down: %v", err)
			}
			reportVersion(m)
			return
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migrate up: %v", err)
	}
	reportVersion(m)
}

func reportVersion(m *migrate.Migrate) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Println("schema is empty")
		return
	}
	if err != nil {
		log.Fatalf("read version: %v", err)
	}
	if dirty {
		log.Fatalf("schema is dirty at version %d, fix and run: migrate force %d", version, version)
	}
	fmt.Printf("schema at version %d\n", version)
}
