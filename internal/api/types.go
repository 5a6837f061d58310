package api

import (
	"github.com/unidrive/unidrive/internal/index"
)

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// TreeEntry is one listed entry plus the navigation token the chat layer
// echoes back through /api/v1/resolve: browse tokens for folders, download
// tokens for files.
type TreeEntry struct {
	*index.Entry
	Token string `json:"token"`
}

// TreeResponse is returned by GET /api/v1/tree.
type TreeResponse struct {
	Path    []string    `json:"path"`
	Entries []TreeEntry `json:"entries"`
}

// SearchHit is one scored result plus its download token.
type SearchHit struct {
	Entry *index.Entry `json:"entry"`
	Score int          `json:"score"`
	Token string       `json:"token"`
}

// SearchResponse is returned by GET /api/v1/search.
type SearchResponse struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

// RebuildRequest is the body for POST /api/v1/rebuild.
type RebuildRequest struct {
	Root     string `json:"root"`
	MaxDepth int    `json:"max_depth"`
	Mode     string `json:"mode"` // "replace" or "append"
}

// RebuildResponse is returned by POST /api/v1/rebuild.
type RebuildResponse struct {
	Root  string      `json:"root"`
	Stats index.Stats `json:"stats"`
}

// StatsResponse is returned by GET /api/v1/stats.
type StatsResponse struct {
	Fresh bool        `json:"fresh"`
	Stats index.Stats `json:"stats"`
}

// ResolveResponse is returned by GET /api/v1/resolve.
type ResolveResponse struct {
	Prefix  string `json:"prefix"`
	Payload string `json:"payload"`
}
