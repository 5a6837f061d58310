package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/unidrive/unidrive/internal/remote"
)

// fakeDrive serves a canned tree keyed by folder ID.
type fakeDrive struct {
	mu        sync.Mutex
	root      []remote.Item
	children  map[string][]remote.Item
	failOn    string        // folder ID whose listing fails
	rootGate  chan struct{} // when set, ListRoot blocks until it closes
	calls     int
	rootCalls int
}

func (f *fakeDrive) ListRoot(ctx context.Context) ([]remote.Item, error) {
	f.mu.Lock()
	f.calls++
	f.rootCalls++
	root := f.root
	gate := f.rootGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return root, nil
}

func (f *fakeDrive) ListChildren(ctx context.Context, folderID string) ([]remote.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if folderID == f.failOn {
		return nil, &remote.Error{Op: "list_children", Status: 503, Retryable: true}
	}
	return f.children[folderID], nil
}

func folderItem(id, name string) remote.Item {
	return remote.Item{ID: id, Name: name, ModTime: time.Now(), Folder: &remote.FolderFacet{}}
}

func fileItem(id, name string, size int64) remote.Item {
	return remote.Item{ID: id, Name: name, Size: size, ModTime: time.Now(), File: &remote.FileFacet{}}
}

// newFakeDrive builds:
//
//	Docs/
//	  A/
//	    x.pdf
//	    Deep/
//	      y.pdf
//	  top.txt
//	Media/
//	  y.mp4
func newFakeDrive() *fakeDrive {
	return &fakeDrive{
		root: []remote.Item{
			folderItem("docs", "Docs"),
			folderItem("media", "Media"),
			fileItem("stray", "stray.txt", 1),
		},
		children: map[string][]remote.Item{
			"docs": {
				folderItem("a", "A"),
				fileItem("top", "top.txt", 10),
			},
			"a": {
				fileItem("x", "x.pdf", 100),
				folderItem("deep", "Deep"),
			},
			"deep": {
				fileItem("y", "y.pdf", 200),
			},
			"media": {
				fileItem("ymp4", "y.mp4", 5000),
			},
		},
	}
}

func TestBuilder_FullWalk(t *testing.T) {
	b := NewBuilder(newFakeDrive(), 2)

	root, err := b.Build(context.Background(), "Docs", 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if root.Name != "Docs" || !root.IsFolder() {
		t.Fatalf("unexpected root: %+v", root)
	}
	if len(root.Children) != 2 {
		t.Fatalf("root children = %d, want 2", len(root.Children))
	}

	// Remote order preserved: folder A first, then top.txt.
	if root.Children[0].Name != "A" || root.Children[1].Name != "top.txt" {
		t.Errorf("children out of remote order: %q, %q",
			root.Children[0].Name, root.Children[1].Name)
	}

	a := root.Children[0]
	if len(a.Children) != 2 {
		t.Fatalf("A children = %d, want 2", len(a.Children))
	}
	deep := a.Children[1]
	if len(deep.Children) != 1 || deep.Children[0].Name != "y.pdf" {
		t.Errorf("Deep not fully walked: %+v", deep.Children)
	}

	// Path length equals depth.
	y := deep.Children[0]
	wantPath := []string{"Docs", "A", "Deep"}
	if len(y.Path) != len(wantPath) {
		t.Fatalf("y.pdf path = %v, want %v", y.Path, wantPath)
	}
	for i := range wantPath {
		if y.Path[i] != wantPath[i] {
			t.Fatalf("y.pdf path = %v, want %v", y.Path, wantPath)
		}
	}
}

func TestBuilder_CaseInsensitiveRoot(t *testing.T) {
	b := NewBuilder(newFakeDrive(), 2)

	root, err := b.Build(context.Background(), "dOcS", 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if root.Name != "Docs" {
		t.Errorf("root name = %q, want remote casing %q", root.Name, "Docs")
	}
}

func TestBuilder_RootNotFound(t *testing.T) {
	b := NewBuilder(newFakeDrive(), 2)

	_, err := b.Build(context.Background(), "Nope", 0)
	if !errors.Is(err, ErrRootNotFound) {
		t.Errorf("got %v, want ErrRootNotFound", err)
	}

	// Top-level files must not be treated as roots.
	_, err = b.Build(context.Background(), "stray.txt", 0)
	if !errors.Is(err, ErrRootNotFound) {
		t.Errorf("file as root: got %v, want ErrRootNotFound", err)
	}
}

func TestBuilder_DepthLimitBoundsRecursionNotEnumeration(t *testing.T) {
	b := NewBuilder(newFakeDrive(), 2)

	// Depth 1: folders at depth 1 (A) are listed, their subfolders (Deep)
	// appear as entries but are not descended into.
	root, err := b.Build(context.Background(), "Docs", 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	a := root.Children[0]
	if len(a.Children) != 2 {
		t.Fatalf("A at maxDepth not listed: %d children", len(a.Children))
	}
	deep := a.Children[1]
	if deep.Name != "Deep" {
		t.Fatalf("unexpected child: %q", deep.Name)
	}
	if len(deep.Children) != 0 {
		t.Errorf("descended past maxDepth: Deep has %d children", len(deep.Children))
	}
}

func TestBuilder_DepthUnlimitedSupersetOfLimited(t *testing.T) {
	limited, err := NewBuilder(newFakeDrive(), 2).Build(context.Background(), "Docs", 1)
	if err != nil {
		t.Fatalf("Build depth 1: %v", err)
	}
	full, err := NewBuilder(newFakeDrive(), 2).Build(context.Background(), "Docs", 0)
	if err != nil {
		t.Fatalf("Build depth 0: %v", err)
	}

	var limitedIDs, fullIDs []string
	limited.Walk(func(e *Entry) { limitedIDs = append(limitedIDs, e.ID) })
	fullSet := make(map[string]bool)
	full.Walk(func(e *Entry) { fullSet[e.ID] = true; fullIDs = append(fullIDs, e.ID) })

	if len(fullIDs) < len(limitedIDs) {
		t.Fatalf("full tree smaller than limited tree")
	}
	for _, id := range limitedIDs {
		if !fullSet[id] {
			t.Errorf("entry %q present at depth 1 but missing from unlimited build", id)
		}
	}
}

func TestBuilder_TraversalFailureIsAtomic(t *testing.T) {
	drive := newFakeDrive()
	drive.failOn = "deep"
	b := NewBuilder(drive, 2)

	_, err := b.Build(context.Background(), "Docs", 0)
	if !errors.Is(err, ErrTraversalFailed) {
		t.Errorf("got %v, want ErrTraversalFailed", err)
	}
}

func TestBuilder_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	drive := newFakeDrive()
	b := NewBuilder(drive, 2)
	if _, err := b.Build(ctx, "Docs", 0); err == nil {
		t.Error("Build succeeded with cancelled context")
	}
}

func TestBuilder_WideTreeBoundedWorkers(t *testing.T) {
	// A wide flat tree exercises the worker pool without deadlocking.
	drive := &fakeDrive{root: []remote.Item{folderItem("wide", "Wide")}}
	drive.children = map[string][]remote.Item{"wide": nil}
	for i := 0; i < 100; i++ {
		id := fmt.Sprintf("sub-%d", i)
		drive.children["wide"] = append(drive.children["wide"], folderItem(id, id))
		drive.children[id] = []remote.Item{fileItem(id+"-f", id+".txt", 1)}
	}

	root, err := NewBuilder(drive, 3).Build(context.Background(), "Wide", 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	count := 0
	root.Walk(func(e *Entry) {
		if e.Kind == KindFile {
			count++
		}
	})
	if count != 100 {
		t.Errorf("walked %d files, want 100", count)
	}
}
