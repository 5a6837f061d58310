// Package store persists index snapshots across process restarts.
//
// Two backends exist: a durable PostgreSQL store and a flat-file store.
// Deployments normally run them behind Fallback, which prefers the
// database and degrades to the file store when it is unreachable.
package store

import (
	"context"
	"errors"

	"github.com/unidrive/unidrive/internal/index"
)

// Keys under which the snapshot and its timestamp are persisted.
const (
	KeyFileIndex = "file_index"
	KeyTimestamp = "index_timestamp"
)

// ErrUnavailable means the backend cannot currently serve requests.
var ErrUnavailable = errors.New("store unavailable")

// Store saves and loads index snapshots.
type Store interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// SaveSnapshot persists the snapshot and its build timestamp.
	SaveSnapshot(ctx context.Context, snap *index.Snapshot) error
	// LoadSnapshot returns the persisted snapshot, or (nil, nil) when
	// none exists.
	LoadSnapshot(ctx context.Context) (*index.Snapshot, error)
}
