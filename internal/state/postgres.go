package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/catalog-delta-sync/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS product_sync_state (
	sku              TEXT PRIMARY KEY,
	last_fingerprint TEXT NOT NULL,
	last_synced_at   TIMESTAMPTZ NOT NULL,
	last_status      TEXT NOT NULL,
	synced_as_new    BOOLEAN NOT NULL DEFAULT TRUE
);`

// Postgres is a Store backed by a PostgreSQL table, for deployments that
// already run the sync state next to other relational data.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and ensures the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Get(ctx context.Context, sku string) (model.SyncStateRecord, error) {
	var rec model.SyncStateRecord
	err := s.pool.QueryRow(ctx,
		`SELECT sku, last_fingerprint, last_synced_at, last_status, synced_as_new
		 FROM product_sync_state WHERE sku = $1`, sku).
		Scan(&rec.SKU, &rec.LastFingerprint, &rec.LastSyncedAt, (*string)(&rec.LastStatus), &rec.SyncedAsNew)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SyncStateRecord{}, ErrNotFound
	}
	if err != nil {
		return model.SyncStateRecord{}, fmt.Errorf("get sync state %s: %w", sku, err)
	}
	return rec, nil
}

func (s *Postgres) Put(ctx context.Context, rec model.SyncStateRecord) error {
	if rec.SKU == "" {
		return errors.New("empty sku")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO product_sync_state (sku, last_fingerprint, last_synced_at, last_status, synced_as_new)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (sku) DO UPDATE SET
			last_fingerprint = EXCLUDED.last_fingerprint,
			last_synced_at   = EXCLUDED.last_synced_at,
			last_status      = EXCLUDED.last_status,
			synced_as_new    = EXCLUDED.synced_as_new`,
		rec.SKU, rec.LastFingerprint, rec.LastSyncedAt.UTC(), string(rec.LastStatus), rec.SyncedAsNew)
	if err != nil {
		return fmt.Errorf("put sync state %s: %w", rec.SKU, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Postgres) Close() { s.pool.Close() }
