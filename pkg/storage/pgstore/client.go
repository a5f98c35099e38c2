package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/engramhq/engram/pkg/engramerr"
)

//go:embed migrations
var migrationsFS embed.FS

// Store is the storage.Backend implementation over PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres, applies pending migrations, and returns a
// ready Store. It mirrors the teacher's pkg/database.NewClient connection
// discipline: open, configure the pool, ping, migrate, only then serve
// traffic — but with no ent.Client layered on top, since Engram talks to
// Postgres through hand-written SQL.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrConnection, "open", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, engramerr.NewStorageError(engramerr.ErrConnection, "ping", err)
	}

	if err := runMigrations(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB, databaseName string) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrConnection, "migrate", err)
	}
	if !hasMigrations {
		return engramerr.NewStorageError(engramerr.ErrConnection, "migrate",
			fmt.Errorf("no embedded migration files found"))
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrConnection, "migrate", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrConnection, "migrate", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, databaseName, driver)
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrConnection, "migrate", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return engramerr.NewStorageError(engramerr.ErrConnection, "migrate", err)
	}

	// Close only the source; calling m.Close() would also close db, which
	// the Store still needs for the rest of its lifetime.
	return sourceDriver.Close()
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && len(name) > 4 && name[len(name)-4:] == ".sql" {
			return true, nil
		}
	}
	return false, nil
}

// Health pings the database. Used by /health and readiness probes.
func (s *Store) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return engramerr.NewStorageError(engramerr.ErrConnection, "health", err)
	}
	return nil
}

// Close releases pooled connections.
func (s *Store) Close() error {
	return s.db.Close()
}
