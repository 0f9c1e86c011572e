package repository

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// RunMigrations applies the embedded schema for the repository's dialect.
// The migrate instance is not closed: closing it would close the shared *sql.DB.
func (r *Repository) RunMigrations() error {
	var (
		driver database.Driver
		dir    string
		err    error
	)
	switch r.dialect {
	case DialectPostgres:
		dir = "migrations/postgres"
		driver, err = postgres.WithInstance(r.db, &postgres.Config{
			MigrationsTable: "lipos_schema_migrations",
		})
	case DialectSQLite:
		dir = "migrations/sqlite"
		driver, err = sqlite.WithInstance(r.db, &sqlite.Config{
			MigrationsTable: "lipos_schema_migrations",
		})
	default:
		return fmt.Errorf("unsupported dialect %q", r.dialect)
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("could not create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(r.dialect), driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}
