package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded schema migrations.
type Migrator struct {
	m  *migrate.Migrate
	db *sql.DB
	// Database is the name of the migrated database.
	Database string
}

func NewMigrator(db *sql.DB, dbName string) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{
		DatabaseName: dbName,
	})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dbName, driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}

	return &Migrator{m: m, Database: dbName}, nil
}

// OpenMigrator connects to dsn and returns a Migrator that owns the
// connection. Close releases both.
func OpenMigrator(ctx context.Context, dsn string) (*Migrator, error) {
	db, err := OpenSQL(ctx, dsn)
	if err != nil {
		return nil, err
	}

	var dbName string
	if err := db.QueryRowContext(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resolve database name: %w", err)
	}

	migrator, err := NewMigrator(db, dbName)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	migrator.db = db
	return migrator, nil
}

// Up runs all pending migrations. Being up to date is not an error.
func (m *Migrator) Up() error {
	err := m.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Down rolls back the last migration.
func (m *Migrator) Down() error {
	if err := m.m.Steps(-1); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

// Version returns the current version; zero when nothing was applied.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get version: %w", err)
	}
	return version, dirty, nil
}

// Force sets the version without running migrations.
func (m *Migrator) Force(version int) error {
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("force version: %w", err)
	}
	return nil
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if m.db != nil {
		_ = m.db.Close()
	}
	if srcErr != nil {
		return fmt.Errorf("close source: %w", srcErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close database: %w", dbErr)
	}
	return nil
}

// MigrateUp opens dsn, applies pending migrations and closes the handle.
func MigrateUp(ctx context.Context, dsn string, logger *slog.Logger) error {
	migrator, err := OpenMigrator(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	if err := migrator.Up(); err != nil {
		return err
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	logger.Info("database migrated", "database", migrator.Database, "version", version, "dirty", dirty)
	return nil
}
