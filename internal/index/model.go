// Package index builds, persists, and queries the remote drive index.
package index

import (
	"errors"
	"time"
)

// Errors reported by the indexer.
var (
	// ErrRootNotFound means the requested root folder does not exist at the
	// remote top level. User-correctable; the existing snapshot is untouched.
	ErrRootNotFound = errors.New("root folder not found")

	// ErrTraversalFailed means a remote call failed mid-walk. The partial
	// tree is discarded; the previous snapshot stays authoritative.
	ErrTraversalFailed = errors.New("remote traversal failed")
)

// Kind distinguishes files from folders.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Entry is one file or folder in the index.
type Entry struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Kind    Kind      `json:"kind"`
	Size    int64     `json:"size,omitempty"`
	ModTime time.Time `json:"mtime"`

	// Path holds the ancestor names from the indexed root down to (and
	// excluding) this entry; its length is the entry's depth.
	Path []string `json:"path,omitempty"`

	// Children is present only for folders, in remote listing order.
	Children []*Entry `json:"children,omitempty"`
}

// IsFolder returns true for folder entries.
func (e *Entry) IsFolder() bool {
	return e.Kind == KindFolder
}

// Clone deep-copies the entry and its subtree.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := *e
	out.Path = append([]string(nil), e.Path...)
	if e.Children != nil {
		out.Children = make([]*Entry, len(e.Children))
		for i, c := range e.Children {
			out.Children[i] = c.Clone()
		}
	}
	return &out
}

// Walk calls fn for the entry and every descendant, depth-first.
func (e *Entry) Walk(fn func(*Entry)) {
	if e == nil {
		return
	}
	fn(e)
	for _, c := range e.Children {
		c.Walk(fn)
	}
}

// Snapshot is the persisted unit: one subtree per indexed root name.
type Snapshot struct {
	Roots   map[string]*Entry `json:"roots"`
	BuiltAt time.Time         `json:"built_at"`
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Roots: make(map[string]*Entry)}
}

// Clone deep-copies the snapshot so the published copy is never mutated.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Roots:   make(map[string]*Entry, len(s.Roots)),
		BuiltAt: s.BuiltAt,
	}
	for name, root := range s.Roots {
		out.Roots[name] = root.Clone()
	}
	return out
}

// FindFolder resolves a folder by path. The first element names an indexed
// root; the rest are folder names below it. An empty path is not a folder.
// Returns nil when the path does not resolve to a folder.
func (s *Snapshot) FindFolder(path []string) *Entry {
	if s == nil || len(path) == 0 {
		return nil
	}
	cur, ok := s.Roots[path[0]]
	if !ok || cur == nil {
		return nil
	}
	for _, name := range path[1:] {
		var next *Entry
		for _, c := range cur.Children {
			if c.IsFolder() && c.Name == name {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	if !cur.IsFolder() {
		return nil
	}
	return cur
}

// Count returns the total number of entries across all roots.
func (s *Snapshot) Count() int {
	n := 0
	for _, root := range s.Roots {
		root.Walk(func(*Entry) { n++ })
	}
	return n
}

// Stats summarizes the snapshot contents.
type Stats struct {
	Roots     []string  `json:"roots"`
	Folders   int       `json:"folders"`
	Files     int       `json:"files"`
	TotalSize int64     `json:"total_size"`
	BuiltAt   time.Time `json:"built_at"`
}

// Stats computes folder/file counts and total size.
func (s *Snapshot) Stats() Stats {
	st := Stats{BuiltAt: s.BuiltAt}
	for name, root := range s.Roots {
		st.Roots = append(st.Roots, name)
		root.Walk(func(e *Entry) {
			if e.IsFolder() {
				st.Folders++
			} else {
				st.Files++
				st.TotalSize += e.Size
			}
		})
	}
	return st
}
