package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/unidrive/unidrive/internal/index"
	"github.com/unidrive/unidrive/internal/logging"
)

// Fallback chains a primary store (the database) with a secondary (the
// file store). Callers never see which backend served them: loads prefer
// the primary and degrade transparently, saves mirror to the secondary as
// a backup even when the primary succeeds.
type Fallback struct {
	primary   Store // may be nil when the database is not configured
	secondary Store
}

// NewFallback creates the fallback chain. primary may be nil.
func NewFallback(primary, secondary Store) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

// Name identifies the backend.
func (f *Fallback) Name() string { return "fallback" }

// SaveSnapshot writes to the primary when available and always best-effort
// mirrors to the secondary, so a database outage cannot strand the
// snapshot in memory only. It fails only when every backend failed.
func (f *Fallback) SaveSnapshot(ctx context.Context, snap *index.Snapshot) error {
	var primaryErr error
	if f.primary != nil {
		if primaryErr = f.primary.SaveSnapshot(ctx, snap); primaryErr != nil {
			logging.Warn("primary store save failed, falling back",
				zap.String("backend", f.primary.Name()),
				zap.Error(primaryErr))
		}
	}

	secondaryErr := f.secondary.SaveSnapshot(ctx, snap)
	if secondaryErr != nil {
		logging.Warn("secondary store save failed",
			zap.String("backend", f.secondary.Name()),
			zap.Error(secondaryErr))
	}

	if secondaryErr == nil || (f.primary != nil && primaryErr == nil) {
		return nil
	}
	return secondaryErr
}

// LoadSnapshot prefers a non-empty primary value, then the secondary, then
// reports absent.
func (f *Fallback) LoadSnapshot(ctx context.Context) (*index.Snapshot, error) {
	if f.primary != nil {
		snap, err := f.primary.LoadSnapshot(ctx)
		if err == nil && snap != nil && len(snap.Roots) > 0 {
			return snap, nil
		}
		if err != nil {
			logging.Warn("primary store load failed, falling back",
				zap.String("backend", f.primary.Name()),
				zap.Error(err))
		}
	}
	return f.secondary.LoadSnapshot(ctx)
}
