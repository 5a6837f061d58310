package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/unidrive/unidrive/internal/index"
	"github.com/unidrive/unidrive/internal/logging"
	"github.com/unidrive/unidrive/internal/metrics"
)

// Postgres persists the snapshot in a key/value cache table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres connects and ensures the cache table exists.
func NewPostgres(databaseURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrUnavailable, err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cache (
			key        TEXT PRIMARY KEY,
			value      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}

	return &Postgres{db: db}, nil
}

// Name identifies the backend.
func (p *Postgres) Name() string { return "postgres" }

// Close closes the database connection.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// SaveSnapshot upserts the snapshot and timestamp rows in one transaction.
func (p *Postgres) SaveSnapshot(ctx context.Context, snap *index.Snapshot) (err error) {
	defer func() { metrics.RecordStoreOperation(p.Name(), "save", err) }()

	roots, err := json.Marshal(snap.Roots)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	builtAt, err := json.Marshal(snap.BuiltAt)
	if err != nil {
		return fmt.Errorf("marshal timestamp: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrUnavailable, err)
	}
	defer tx.Rollback()

	const upsert = `
		INSERT INTO cache (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = now()`

	if _, err = tx.ExecContext(ctx, upsert, KeyFileIndex, roots); err != nil {
		return fmt.Errorf("upsert %s: %w", KeyFileIndex, err)
	}
	if _, err = tx.ExecContext(ctx, upsert, KeyTimestamp, builtAt); err != nil {
		return fmt.Errorf("upsert %s: %w", KeyTimestamp, err)
	}
	return tx.Commit()
}

// LoadSnapshot reads the snapshot row; no row means absent.
func (p *Postgres) LoadSnapshot(ctx context.Context) (*index.Snapshot, error) {
	var roots []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM cache WHERE key = $1`, KeyFileIndex).Scan(&roots)
	if err == sql.ErrNoRows {
		metrics.RecordStoreOperation(p.Name(), "load", nil)
		return nil, nil
	}
	if err != nil {
		metrics.RecordStoreOperation(p.Name(), "load", err)
		return nil, fmt.Errorf("%w: query: %w", ErrUnavailable, err)
	}

	snap := index.NewSnapshot()
	if err := json.Unmarshal(roots, &snap.Roots); err != nil {
		metrics.RecordStoreOperation(p.Name(), "load", err)
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	var builtAt []byte
	err = p.db.QueryRowContext(ctx,
		`SELECT value FROM cache WHERE key = $1`, KeyTimestamp).Scan(&builtAt)
	if err == nil {
		ts, terr := decodeTimestamp(builtAt)
		if terr != nil {
			logging.Warn("corrupt timestamp row, treating snapshot age as unknown",
				zap.String("key", KeyTimestamp), zap.Error(terr))
		} else {
			snap.BuiltAt = ts
		}
	}

	metrics.RecordStoreOperation(p.Name(), "load", nil)
	return snap, nil
}

// decodeTimestamp parses a persisted timestamp value. A corrupt row is
// reported, not fatal: the snapshot loads with a zero build time and the
// freshness gate treats it as stale.
func decodeTimestamp(raw []byte) (time.Time, error) {
	var t time.Time
	if err := json.Unmarshal(raw, &t); err != nil {
		return time.Time{}, err
	}
	return t, nil
}
