// Package index is the SQLite note index: metadata, links, search and the set
// of known note ids.
//
// Every note gets a numeric id on first index. The id follows the note
// through edits and through MoveNote, and AUTOINCREMENT guarantees it is never
// handed to another note. Links are stored either as wikilink stems or as
// numeric note references.
package index

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

// Link types stored in the links table.
const (
	LinkTypeWiki = "wiki"
	LinkTypeNote = "note"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const dsnParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// DB is the index handle. It is safe for concurrent use.
type DB struct {
	conn *sql.DB
}

// Open opens the index at path, creating it if needed, and migrates it to the
// latest schema.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if err := migrateUp(conn); err != nil {
		conn.Close()
		return nil, err
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// migrateUp applies pending migrations. The migrate handle is not closed,
// since closing it would close conn.
func migrateUp(conn *sql.DB) error {
	driver, err := sqlite3.WithInstance(conn, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("index: migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("index: read migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("index: init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("index: migrate: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version.
func (db *DB) SchemaVersion() (uint, error) {
	var (
		version uint
		dirty   bool
	)
	err := db.conn.QueryRow(`SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err != nil {
		return 0, fmt.Errorf("index: schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("index: schema version %d is dirty", version)
	}
	return version, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.conn.Close()
}
