package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fairyhunter13/catalog-delta-sync/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS product_sync_state (
	sku              TEXT PRIMARY KEY,
	last_fingerprint TEXT NOT NULL,
	last_synced_at   TIMESTAMP NOT NULL,
	last_status      TEXT NOT NULL,
	synced_as_new    INTEGER NOT NULL DEFAULT 1
);`

// SQLite is a Store backed by an embedded SQLite database. This is the
// reference relational deployment: one table keyed on SKU.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and ensures the schema.
// Use ":memory:" for an ephemeral store.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The limiter already serializes dispatches; a single connection keeps
	// the driver's locking behavior predictable.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, sku string) (model.SyncStateRecord, error) {
	var rec model.SyncStateRecord
	var syncedAt string
	var asNew int
	err := s.db.QueryRowContext(ctx,
		`SELECT sku, last_fingerprint, last_synced_at, last_status, synced_as_new
		 FROM product_sync_state WHERE sku = ?`, sku).
		Scan(&rec.SKU, &rec.LastFingerprint, &syncedAt, (*string)(&rec.LastStatus), &asNew)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SyncStateRecord{}, ErrNotFound
	}
	if err != nil {
		return model.SyncStateRecord{}, fmt.Errorf("get sync state %s: %w", sku, err)
	}
	if t, perr := time.Parse(time.RFC3339Nano, syncedAt); perr == nil {
		rec.LastSyncedAt = t
	}
	rec.SyncedAsNew = asNew != 0
	return rec, nil
}

func (s *SQLite) Put(ctx context.Context, rec model.SyncStateRecord) error {
	if rec.SKU == "" {
		return errors.New("empty sku")
	}
	asNew := 0
	if rec.SyncedAsNew {
		asNew = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO product_sync_state (sku, last_fingerprint, last_synced_at, last_status, synced_as_new)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (sku) DO UPDATE SET
			last_fingerprint = excluded.last_fingerprint,
			last_synced_at   = excluded.last_synced_at,
			last_status      = excluded.last_status,
			synced_as_new    = excluded.synced_as_new`,
		rec.SKU, rec.LastFingerprint, rec.LastSyncedAt.UTC().Format(time.RFC3339Nano),
		string(rec.LastStatus), asNew)
	if err != nil {
		return fmt.Errorf("put sync state %s: %w", rec.SKU, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }
