package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// migrationsTable keeps folio's schema version apart from other apps
// sharing the database.
const migrationsTable = "folio_schema_migrations"

// EnsurePgvector creates the pgvector extension. Roles that may not create
// extensions are accepted as long as an admin already installed it.
func EnsurePgvector(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	_, err = db.Exec("CREATE EXTENSION IF NOT EXISTS vector")
	if err == nil {
		return nil
	}
	if !strings.Contains(err.Error(), "permission denied") {
		return fmt.Errorf("create pgvector extension: %w", err)
	}

	var exists bool
	if qErr := db.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&exists); qErr != nil {
		return fmt.Errorf("check pgvector: %w (original: %w)", qErr, err)
	}
	if !exists {
		return fmt.Errorf("pgvector extension is not installed and the current database user lacks permission to create it; "+
			"ask your database admin to run: CREATE EXTENSION vector; (original: %w)", err)
	}
	return nil
}

// RunMigrations applies SQL migrations from migrationsPath
// (e.g. "file://migrations") to the database at dsn.
func RunMigrations(dsn string, migrationsPath string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate.New: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate.Up: %w", err)
	}
	return nil
}
