package index

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/unidrive/unidrive/internal/remote"
)

// Mode selects merge semantics for a build.
type Mode int

const (
	// Replace drops every previously indexed root; the result contains
	// only the rebuilt one.
	Replace Mode = iota
	// Append overwrites the subtree for the rebuilt root and leaves all
	// other roots untouched.
	Append
)

func (m Mode) String() string {
	if m == Append {
		return "append"
	}
	return "replace"
}

// ParseMode parses a mode string.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "replace", "":
		return Replace, nil
	case "append":
		return Append, nil
	}
	return Replace, fmt.Errorf("unknown mode %q", s)
}

// TreeClient lists folders on the remote drive.
type TreeClient interface {
	ListRoot(ctx context.Context) ([]remote.Item, error)
	ListChildren(ctx context.Context, folderID string) ([]remote.Item, error)
}

// Builder walks the remote tree and produces index subtrees.
type Builder struct {
	client  TreeClient
	workers int
}

// NewBuilder creates a builder. workers bounds how many child listings may
// be in flight at once.
func NewBuilder(client TreeClient, workers int) *Builder {
	if workers < 1 {
		workers = 1
	}
	return &Builder{client: client, workers: workers}
}

// Build walks the remote tree from the named top-level folder and returns
// its subtree. The root name is matched case-insensitively. maxDepth bounds
// recursion, not enumeration: folders at exactly maxDepth are listed but
// not descended into; 0 means unlimited. A build is all-or-nothing: any
// remote failure discards the partial tree.
func (b *Builder) Build(ctx context.Context, rootName string, maxDepth int) (*Entry, error) {
	items, err := b.client.ListRoot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list root: %w", ErrTraversalFailed, err)
	}

	var rootItem *remote.Item
	for i := range items {
		if items[i].IsFolder() && strings.EqualFold(items[i].Name, rootName) {
			rootItem = &items[i]
			break
		}
	}
	if rootItem == nil {
		return nil, fmt.Errorf("%w: %q", ErrRootNotFound, rootName)
	}

	root := &Entry{
		ID:      rootItem.ID,
		Name:    rootItem.Name,
		Kind:    KindFolder,
		ModTime: rootItem.ModTime,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	g.Go(func() error {
		return b.walk(gctx, g, root, 0, maxDepth)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTraversalFailed, err)
	}
	return root, nil
}

// walk lists folder's children and descends into subfolders. Descents are
// scheduled on the shared errgroup when a worker slot is free and run
// synchronously otherwise, so a full group never deadlocks on its own
// children.
func (b *Builder) walk(ctx context.Context, g *errgroup.Group, folder *Entry, depth, maxDepth int) error {
	items, err := b.client.ListChildren(ctx, folder.ID)
	if err != nil {
		return err
	}

	path := append(append([]string(nil), folder.Path...), folder.Name)
	children := make([]*Entry, 0, len(items))
	for _, it := range items {
		child := &Entry{
			ID:      it.ID,
			Name:    it.Name,
			ModTime: it.ModTime,
			Path:    path,
		}
		if it.IsFolder() {
			child.Kind = KindFolder
		} else {
			child.Kind = KindFile
			child.Size = it.Size
		}
		children = append(children, child)
	}
	folder.Children = children

	if maxDepth != 0 && depth+1 > maxDepth {
		return nil
	}
	for _, child := range children {
		if !child.IsFolder() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		sub := child
		descend := func() error {
			return b.walk(ctx, g, sub, depth+1, maxDepth)
		}
		if !g.TryGo(descend) {
			if err := descend(); err != nil {
				return err
			}
		}
	}
	return nil
}
