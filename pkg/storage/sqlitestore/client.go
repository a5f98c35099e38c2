package sqlitestore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/engramhq/engram/pkg/engramerr"
)

//go:embed migrations
var migrationsFS embed.FS

// Store is the storage.Backend implementation over an embedded sqlite file,
// following the teacher's connect-then-migrate-then-serve discipline in
// pkg/database.NewClient, minus the ent.Client layer it wrapped.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at cfg.Path, applies
// pending migrations, and returns a ready Store. Sqlite serializes writers
// regardless of pool size, so the pool is capped at one connection rather
// than tuned like a server database's.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.DSN())
	if err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrConnection, "open", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, engramerr.NewStorageError(engramerr.ErrConnection, "ping", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrConnection, "migrate", err)
	}
	if !hasMigrations {
		return engramerr.NewStorageError(engramerr.ErrConnection, "migrate", errors.New("no embedded migration files found"))
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrConnection, "migrate", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrConnection, "migrate", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "engram", driver)
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrConnection, "migrate", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return engramerr.NewStorageError(engramerr.ErrConnection, "migrate", err)
	}
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

// Health pings the database.
func (s *Store) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return engramerr.NewStorageError(engramerr.ErrConnection, "health", err)
	}
	return nil
}

// Close releases the connection.
func (s *Store) Close() error {
	return s.db.Close()
}
