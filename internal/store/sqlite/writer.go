// Package sqlite persists the alert log so dismissals and restarts survive
// the process. One row per accepted alert; dismissing deletes the row.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"

	"alert-systemv1/internal/model"
)

// WriterConfig configures the SQLite store.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/alerts.db"
}

// Store is a single-writer SQLite store with transaction batching.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database with WAL mode and initializes the schema.
func New(cfg WriterConfig) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer connection pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS alerts (
			id         TEXT    PRIMARY KEY,
			type       TEXT    NOT NULL,
			asset      TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			message    TEXT    NOT NULL,
			region     TEXT,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
			UNIQUE (type, asset, ts)
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_asset_ts ON alerts (asset, ts);
	`)
	return err
}

// insertBatch inserts alerts in a single transaction. Rows violating the
// (type, asset, ts) uniqueness are ignored: the in-memory log already
// deduplicated them, this guards replays after a crash.
func (s *Store) insertBatch(alerts []model.Alert) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO alerts (id, type, asset, ts, message, region)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range alerts {
		a := &alerts[i]
		var region sql.NullString
		if a.Region != nil {
			b, err := json.Marshal(a.Region)
			if err != nil {
				tx.Rollback()
				return err
			}
			region = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := stmt.Exec(a.ID, string(a.Type), a.Asset, a.TS, a.Message, region); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Insert writes one alert synchronously. Writes are kept synchronous so a
// dismissal can never race a pending insert and resurrect a deleted row.
func (s *Store) Insert(_ context.Context, a model.Alert) error {
	return s.insertBatch([]model.Alert{a})
}

// Delete removes a dismissed alert. Deleting an unknown ID is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id)
	return err
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
