package index

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type memStore struct {
	mu      sync.Mutex
	snap    *Snapshot
	saves   int
	saveErr error
	loadErr error
}

func (s *memStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snap = snap
	return nil
}

func (s *memStore) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.snap, nil
}

func newTestManager(drive *fakeDrive, st SnapshotStore, ttl time.Duration) *Manager {
	if st == nil {
		st = &memStore{}
	}
	return NewManager(NewBuilder(drive, 2), st, NewScorer(DefaultWeights(), nil), ttl)
}

func mustRebuild(t *testing.T, m *Manager, root string, depth int, mode Mode) {
	t.Helper()
	if err := m.Rebuild(context.Background(), root, depth, mode); err != nil {
		t.Fatalf("Rebuild(%s): %v", root, err)
	}
}

func TestManager_AppendPreservesOtherRoots(t *testing.T) {
	m := newTestManager(newFakeDrive(), nil, time.Hour)

	mustRebuild(t, m, "Docs", 0, Replace)
	docsBefore, err := json.Marshal(m.Snapshot().Roots["Docs"])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	mustRebuild(t, m, "Media", 0, Append)

	snap := m.Snapshot()
	if len(snap.Roots) != 2 {
		t.Fatalf("roots = %d, want 2", len(snap.Roots))
	}
	docsAfter, err := json.Marshal(snap.Roots["Docs"])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(docsBefore) != string(docsAfter) {
		t.Error("append rebuild of Media modified the Docs subtree")
	}
	if snap.Roots["Media"] == nil || len(snap.Roots["Media"].Children) != 1 {
		t.Errorf("Media subtree missing or incomplete: %+v", snap.Roots["Media"])
	}
}

func TestManager_ReplaceDropsOtherRoots(t *testing.T) {
	m := newTestManager(newFakeDrive(), nil, time.Hour)

	mustRebuild(t, m, "Docs", 0, Replace)
	mustRebuild(t, m, "Media", 0, Append)
	mustRebuild(t, m, "Docs", 0, Replace)

	snap := m.Snapshot()
	if len(snap.Roots) != 1 {
		t.Fatalf("roots after replace = %d, want 1", len(snap.Roots))
	}
	if snap.Roots["Docs"] == nil {
		t.Error("Docs root missing after replace")
	}
}

func TestManager_ListFolder(t *testing.T) {
	m := newTestManager(newFakeDrive(), nil, time.Hour)
	mustRebuild(t, m, "Docs", 0, Replace)

	entries := m.ListFolder([]string{"Docs", "A"})
	if entries == nil {
		t.Fatal("ListFolder(Docs/A) = nil")
	}
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name] = true
	}
	if !names["x.pdf"] || !names["Deep"] {
		t.Errorf("ListFolder(Docs/A) = %v, want x.pdf and Deep", names)
	}

	if m.ListFolder([]string{"Docs", "Missing"}) != nil {
		t.Error("unknown folder should resolve to nil")
	}
	if m.ListFolder(nil) != nil {
		t.Error("empty path should resolve to nil")
	}
	// Files are not browsable.
	if m.ListFolder([]string{"Docs", "top.txt"}) != nil {
		t.Error("file path should resolve to nil")
	}
}

func TestManager_Freshness(t *testing.T) {
	ttl := time.Hour

	m := newTestManager(newFakeDrive(), nil, ttl)
	if m.Fresh() {
		t.Error("empty snapshot reported fresh")
	}

	mustRebuild(t, m, "Docs", 0, Replace)
	if !m.Fresh() {
		t.Error("just-built snapshot reported stale")
	}

	// Restore a snapshot built two TTLs ago.
	stale := m.Snapshot().Clone()
	stale.BuiltAt = time.Now().Add(-2 * ttl)
	st := &memStore{snap: stale}
	m2 := newTestManager(newFakeDrive(), st, ttl)
	if err := m2.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m2.Fresh() {
		t.Error("snapshot built 2×TTL ago reported fresh")
	}
	if m2.Snapshot().Count() == 0 {
		t.Error("stale snapshot not served")
	}
}

func TestManager_FailedRebuildServesStale(t *testing.T) {
	drive := newFakeDrive()
	m := newTestManager(drive, nil, time.Hour)
	mustRebuild(t, m, "Docs", 0, Replace)
	before := m.Snapshot()

	drive.mu.Lock()
	drive.failOn = "a"
	drive.mu.Unlock()

	err := m.Rebuild(context.Background(), "Docs", 0, Replace)
	if !errors.Is(err, ErrTraversalFailed) {
		t.Fatalf("got %v, want ErrTraversalFailed", err)
	}
	if m.Snapshot() != before {
		t.Error("failed rebuild replaced the published snapshot")
	}
}

func TestManager_RebuildPersists(t *testing.T) {
	st := &memStore{}
	m := newTestManager(newFakeDrive(), st, time.Hour)
	mustRebuild(t, m, "Docs", 0, Replace)

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.saves != 1 {
		t.Fatalf("saves = %d, want 1", st.saves)
	}
	if st.snap == nil || st.snap.Roots["Docs"] == nil {
		t.Error("persisted snapshot missing Docs root")
	}
}

func TestManager_PersistFailureDoesNotFailRebuild(t *testing.T) {
	st := &memStore{saveErr: errors.New("disk full")}
	m := newTestManager(newFakeDrive(), st, time.Hour)

	if err := m.Rebuild(context.Background(), "Docs", 0, Replace); err != nil {
		t.Fatalf("rebuild failed on persist error: %v", err)
	}
	if m.Snapshot().Roots["Docs"] == nil {
		t.Error("snapshot not published despite persist failure")
	}
}

func TestManager_LoadEmptyStore(t *testing.T) {
	m := newTestManager(newFakeDrive(), &memStore{}, time.Hour)
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load of empty store: %v", err)
	}
	if m.Snapshot() == nil {
		t.Fatal("Snapshot() returned nil")
	}
	if m.Snapshot().Count() != 0 {
		t.Error("empty store produced non-empty snapshot")
	}
}

func TestManager_RefreshIfStaleRebuildsInBackground(t *testing.T) {
	m := newTestManager(newFakeDrive(), nil, time.Hour)

	m.RefreshIfStale([]string{"Docs"}, 0)

	deadline := time.Now().Add(5 * time.Second)
	for m.Snapshot().Roots["Docs"] == nil {
		if time.Now().After(deadline) {
			t.Fatal("background refresh never published Docs")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !m.Fresh() {
		t.Error("refreshed snapshot not fresh")
	}
}

func TestManager_RefreshIfStaleNoopWhenFresh(t *testing.T) {
	drive := newFakeDrive()
	m := newTestManager(drive, nil, time.Hour)
	mustRebuild(t, m, "Docs", 0, Replace)

	drive.mu.Lock()
	calls := drive.calls
	drive.mu.Unlock()

	m.RefreshIfStale([]string{"Docs"}, 0)
	time.Sleep(50 * time.Millisecond)

	drive.mu.Lock()
	defer drive.mu.Unlock()
	if drive.calls != calls {
		t.Errorf("fresh snapshot triggered %d extra remote calls", drive.calls-calls)
	}
}

func TestManager_ConcurrentRebuildsOfSameRootCoalesce(t *testing.T) {
	drive := newFakeDrive()
	gate := make(chan struct{})
	drive.rootGate = gate
	m := newTestManager(drive, nil, time.Hour)

	// Differing depth and mode must still join the in-flight build.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = m.Rebuild(context.Background(), "Docs", 0, Replace)
	}()
	go func() {
		defer wg.Done()
		errs[1] = m.Rebuild(context.Background(), "Docs", 2, Append)
	}()

	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Rebuild %d: %v", i, err)
		}
	}
	drive.mu.Lock()
	defer drive.mu.Unlock()
	if drive.rootCalls != 1 {
		t.Errorf("root listed %d times, want 1 coalesced traversal", drive.rootCalls)
	}
}

func TestManager_RebuildsOfDifferentRootsSerialized(t *testing.T) {
	drive := newFakeDrive()
	gate := make(chan struct{})
	drive.rootGate = gate
	m := newTestManager(drive, nil, time.Hour)

	done := make(chan error, 2)
	go func() { done <- m.Rebuild(context.Background(), "Docs", 0, Replace) }()

	// Let the Docs build reach the remote and block there.
	deadline := time.Now().Add(5 * time.Second)
	for {
		drive.mu.Lock()
		started := drive.rootCalls == 1
		drive.mu.Unlock()
		if started {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first rebuild never reached the remote")
		}
		time.Sleep(time.Millisecond)
	}

	go func() { done <- m.Rebuild(context.Background(), "Media", 0, Append) }()
	time.Sleep(50 * time.Millisecond)

	drive.mu.Lock()
	inFlight := drive.rootCalls
	drive.mu.Unlock()
	if inFlight != 1 {
		t.Fatalf("second traversal started while first was in flight (%d root listings)", inFlight)
	}

	close(gate)
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Rebuild: %v", err)
		}
	}
	if len(m.Snapshot().Roots) != 2 {
		t.Errorf("roots = %d, want Docs and Media", len(m.Snapshot().Roots))
	}
}

func TestManager_SearchUsesPublishedSnapshot(t *testing.T) {
	m := newTestManager(newFakeDrive(), nil, time.Hour)

	if got := m.Search("x.pdf", 10); len(got) != 0 {
		t.Fatalf("search before any rebuild returned %d results", len(got))
	}

	mustRebuild(t, m, "Docs", 0, Replace)
	results := m.Search("x.pdf", 10)
	if len(results) == 0 || results[0].Entry.Name != "x.pdf" {
		t.Fatalf("search after rebuild = %v", results)
	}
}

func TestManager_Stats(t *testing.T) {
	m := newTestManager(newFakeDrive(), nil, time.Hour)
	mustRebuild(t, m, "Docs", 0, Replace)
	mustRebuild(t, m, "Media", 0, Append)

	st := m.Stats()
	if len(st.Roots) != 2 {
		t.Errorf("stats roots = %v, want 2", st.Roots)
	}
	// Docs: top.txt, x.pdf, y.pdf; Media: y.mp4.
	if st.Files != 4 {
		t.Errorf("stats files = %d, want 4", st.Files)
	}
	// Docs, A, Deep, Media.
	if st.Folders != 4 {
		t.Errorf("stats folders = %d, want 4", st.Folders)
	}
	if st.TotalSize != 10+100+200+5000 {
		t.Errorf("stats size = %d", st.TotalSize)
	}
	if st.BuiltAt.IsZero() {
		t.Error("stats built_at is zero")
	}
}
