// Package sqlite is the storage engine for the instrument catalog. It owns
// the relational schema (instruments, import history, source registry) and
// the connection lifecycle; every other component operates through it.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	Path string // path to the database file, e.g. "data/catalog.db"
}

// Store wraps a WAL-mode SQLite database holding the instrument catalog.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog database and ensures the
// schema exists. WAL keeps readers from blocking on the single writer.
func Open(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer; WAL readers are unaffected.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened catalog database at %s", cfg.Path)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS instruments (
			instrument_id    TEXT PRIMARY KEY,
			instrument_token TEXT NOT NULL UNIQUE,
			exchange_token   TEXT NOT NULL,
			tradingsymbol    TEXT NOT NULL,
			name             TEXT,
			last_price       REAL DEFAULT 0,
			expiry           TEXT,
			strike           REAL,
			tick_size        REAL NOT NULL,
			lot_size         INTEGER NOT NULL,
			instrument_type  TEXT NOT NULL,
			segment          TEXT NOT NULL,
			exchange         TEXT NOT NULL,
			created_at       INTEGER NOT NULL,
			updated_at       INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_instruments_tradingsymbol
			ON instruments(tradingsymbol);
		CREATE INDEX IF NOT EXISTS idx_instruments_tradingsymbol_nocase
			ON instruments(tradingsymbol COLLATE NOCASE);
		CREATE INDEX IF NOT EXISTS idx_instruments_segment
			ON instruments(segment);
		CREATE INDEX IF NOT EXISTS idx_instruments_exchange
			ON instruments(exchange);
		CREATE INDEX IF NOT EXISTS idx_instruments_instrument_type
			ON instruments(instrument_type);

		CREATE TABLE IF NOT EXISTS instrument_imports (
			id          TEXT PRIMARY KEY,
			source      TEXT NOT NULL,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER,
			rows_in     INTEGER DEFAULT 0,
			rows_ok     INTEGER DEFAULT 0,
			rows_err    INTEGER DEFAULT 0,
			status      TEXT NOT NULL,
			errors      TEXT,
			log_url     TEXT
		);

		CREATE TABLE IF NOT EXISTS instrument_sources (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL UNIQUE,
			type          TEXT NOT NULL,
			config        TEXT,
			schedule_cron TEXT,
			enabled       INTEGER NOT NULL DEFAULT 1,
			last_run_at   INTEGER,
			last_status   TEXT
		);
	`)
	return err
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back entirely on error or panic, so a caller can
// never leak a half-applied mutation.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
