package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/unidrive/unidrive/internal/index"
	"github.com/unidrive/unidrive/internal/metrics"
)

// File persists the snapshot as flat files in a data directory:
// file_index.json holds the root subtrees, index_timestamp.txt the build
// time as unix seconds.
type File struct {
	dir string
}

// NewFile creates the file store, making the directory if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &File{dir: dir}, nil
}

// Name identifies the backend.
func (f *File) Name() string { return "file" }

func (f *File) indexPath() string     { return filepath.Join(f.dir, KeyFileIndex+".json") }
func (f *File) timestampPath() string { return filepath.Join(f.dir, KeyTimestamp+".txt") }

// SaveSnapshot writes both files atomically (temp file then rename).
func (f *File) SaveSnapshot(ctx context.Context, snap *index.Snapshot) (err error) {
	defer func() { metrics.RecordStoreOperation(f.Name(), "save", err) }()

	data, err := json.Marshal(snap.Roots)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err = writeAtomic(f.indexPath(), data); err != nil {
		return err
	}

	ts := strconv.FormatInt(snap.BuiltAt.Unix(), 10)
	return writeAtomic(f.timestampPath(), []byte(ts))
}

// LoadSnapshot reads both files; a missing index file means absent.
func (f *File) LoadSnapshot(ctx context.Context) (*index.Snapshot, error) {
	data, err := os.ReadFile(f.indexPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		metrics.RecordStoreOperation(f.Name(), "load", err)
		return nil, fmt.Errorf("read index file: %w", err)
	}

	snap := index.NewSnapshot()
	if err := json.Unmarshal(data, &snap.Roots); err != nil {
		metrics.RecordStoreOperation(f.Name(), "load", err)
		return nil, fmt.Errorf("decode index file: %w", err)
	}

	if raw, err := os.ReadFile(f.timestampPath()); err == nil {
		if unix, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64); err == nil {
			snap.BuiltAt = time.Unix(unix, 0)
		}
	}

	metrics.RecordStoreOperation(f.Name(), "load", nil)
	return snap, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
