package index

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/unidrive/unidrive/internal/logging"
	"github.com/unidrive/unidrive/internal/metrics"
)

// SnapshotStore persists index snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
}

// Manager owns the published snapshot. The snapshot behind the pointer is
// immutable once published: rebuilds assemble a fresh snapshot and swap it
// in atomically, so searches may run concurrently with a rebuild.
type Manager struct {
	builder *Builder
	store   SnapshotStore
	scorer  *Scorer
	ttl     time.Duration

	snap atomic.Pointer[Snapshot]

	rebuilds   singleflight.Group
	rebuildMu  sync.Mutex
	refreshing atomic.Bool
}

// NewManager creates a manager with an empty published snapshot.
func NewManager(builder *Builder, store SnapshotStore, scorer *Scorer, ttl time.Duration) *Manager {
	m := &Manager{
		builder: builder,
		store:   store,
		scorer:  scorer,
		ttl:     ttl,
	}
	m.snap.Store(NewSnapshot())
	return m
}

// Load restores the persisted snapshot, if any. Called once at startup
// before any search.
func (m *Manager) Load(ctx context.Context) error {
	snap, err := m.store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		logging.Info("no persisted snapshot, starting empty")
		return nil
	}
	m.publish(snap)
	logging.Info("snapshot loaded",
		zap.Int("entries", snap.Count()),
		zap.Time("built_at", snap.BuiltAt))
	return nil
}

// Snapshot returns the currently published snapshot. Never nil.
func (m *Manager) Snapshot() *Snapshot {
	return m.snap.Load()
}

// Fresh reports whether the published snapshot is within its TTL.
func (m *Manager) Fresh() bool {
	builtAt := m.Snapshot().BuiltAt
	if builtAt.IsZero() {
		return false
	}
	return time.Since(builtAt) < m.ttl
}

// Rebuild walks the named root and merges the result into the snapshot.
// Only one rebuild runs at a time: requests for a root with a build already
// in flight join that build instead of racing a second traversal against
// the remote API, and rebuilds of different roots queue behind each other.
func (m *Manager) Rebuild(ctx context.Context, rootName string, maxDepth int, mode Mode) error {
	_, err, _ := m.rebuilds.Do(rootName, func() (interface{}, error) {
		return nil, m.rebuild(ctx, rootName, maxDepth, mode)
	})
	return err
}

func (m *Manager) rebuild(ctx context.Context, rootName string, maxDepth int, mode Mode) error {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()

	start := time.Now()
	logging.Info("rebuilding index",
		zap.String("root", rootName),
		zap.Int("max_depth", maxDepth),
		zap.String("mode", mode.String()))

	subtree, err := m.builder.Build(ctx, rootName, maxDepth)
	if err != nil {
		metrics.RecordRebuild(time.Since(start), false)
		return err
	}

	// rebuildMu is held: no other merge can interleave here.
	var next *Snapshot
	if mode == Append {
		next = m.Snapshot().Clone()
	} else {
		next = NewSnapshot()
	}
	next.Roots[subtree.Name] = subtree
	next.BuiltAt = time.Now()
	m.publish(next)

	if err := m.store.SaveSnapshot(ctx, next); err != nil {
		logging.Warn("snapshot persist failed", zap.Error(err))
	}

	metrics.RecordRebuild(time.Since(start), true)
	logging.Info("index rebuilt",
		zap.String("root", subtree.Name),
		zap.Int("entries", next.Count()),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (m *Manager) publish(snap *Snapshot) {
	m.snap.Store(snap)
	metrics.SetSnapshotEntries(snap.Count())
	metrics.SetSnapshotAge(time.Since(snap.BuiltAt))
}

// RefreshIfStale kicks a background rebuild of the given roots when the
// snapshot has outlived its TTL. It never blocks: the stale snapshot keeps
// serving, and a failed refresh leaves it published.
func (m *Manager) RefreshIfStale(roots []string, maxDepth int) {
	if m.Fresh() {
		return
	}
	if !m.refreshing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer m.refreshing.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		for _, root := range roots {
			if err := m.Rebuild(ctx, root, maxDepth, Append); err != nil {
				logging.Warn("background refresh failed, serving stale snapshot",
					zap.String("root", root), zap.Error(err))
			}
		}
	}()
}

// ListFolder returns the direct children of a folder for browsing, or nil
// when the path does not resolve.
func (m *Manager) ListFolder(path []string) []*Entry {
	folder := m.Snapshot().FindFolder(path)
	if folder == nil {
		return nil
	}
	return folder.Children
}

// Roots returns the indexed root names.
func (m *Manager) Roots() []string {
	snap := m.Snapshot()
	names := make([]string, 0, len(snap.Roots))
	for name := range snap.Roots {
		names = append(names, name)
	}
	return names
}

// Search runs a scored query against the published snapshot.
func (m *Manager) Search(query string, limit int) []Result {
	start := time.Now()
	results := m.scorer.Search(m.Snapshot(), query, limit)
	metrics.RecordSearch(time.Since(start))
	return results
}

// Stats summarizes the published snapshot.
func (m *Manager) Stats() Stats {
	return m.Snapshot().Stats()
}
