// Package api exposes the index query and token APIs over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/unidrive/unidrive/internal/index"
	"github.com/unidrive/unidrive/internal/logging"
	"github.com/unidrive/unidrive/internal/metrics"
	"github.com/unidrive/unidrive/internal/token"
)

// Server serves the index query API for the chat layer.
type Server struct {
	manager     *index.Manager
	codec       *token.Codec
	searchLimit int
}

// NewServer creates the API server.
func NewServer(manager *index.Manager, codec *token.Codec, searchLimit int) *Server {
	if searchLimit <= 0 {
		searchLimit = 10
	}
	return &Server{manager: manager, codec: codec, searchLimit: searchLimit}
}

// Handler returns the HTTP handler with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/v1/tree", s.handleTree)
	mux.HandleFunc("GET /api/v1/search", s.handleSearch)
	mux.HandleFunc("POST /api/v1/rebuild", s.handleRebuild)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/resolve", s.handleResolve)
	return logging.Middleware(metrics.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTree lists the direct children of a folder. path is a
// slash-separated sequence starting at an indexed root name; empty lists
// the roots themselves.
func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	raw := strings.Trim(r.URL.Query().Get("path"), "/")
	if raw == "" {
		var entries []TreeEntry
		snap := s.manager.Snapshot()
		for _, name := range s.manager.Roots() {
			entries = append(entries, s.treeEntry(snap.Roots[name]))
		}
		writeJSON(w, http.StatusOK, TreeResponse{Path: nil, Entries: entries})
		return
	}

	path := strings.Split(raw, "/")
	children := s.manager.ListFolder(path)
	if children == nil {
		writeError(w, http.StatusNotFound, "folder not found")
		return
	}
	entries := make([]TreeEntry, 0, len(children))
	for _, e := range children {
		entries = append(entries, s.treeEntry(e))
	}
	writeJSON(w, http.StatusOK, TreeResponse{Path: path, Entries: entries})
}

// entryToken issues the navigation token for an entry, keyed on its
// slash-joined path from the indexed root.
func (s *Server) entryToken(e *index.Entry) string {
	payload := strings.Join(append(append([]string(nil), e.Path...), e.Name), "/")
	prefix := token.Download
	if e.IsFolder() {
		prefix = token.Browse
	}
	return s.codec.Encode(prefix, payload)
}

func (s *Server) treeEntry(e *index.Entry) TreeEntry {
	return TreeEntry{Entry: e, Token: s.entryToken(e)}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	limit := s.searchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	results := s.manager.Search(query, limit)
	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, SearchHit{Entry: r.Entry, Score: r.Score, Token: s.entryToken(r.Entry)})
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: query, Results: hits})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	var req RebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Root == "" {
		writeError(w, http.StatusBadRequest, "missing root")
		return
	}
	mode, err := index.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.manager.Rebuild(r.Context(), req.Root, req.MaxDepth, mode); err != nil {
		switch {
		case errors.Is(err, index.ErrRootNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			logging.Error("rebuild failed", zap.String("root", req.Root), zap.Error(err))
			writeError(w, http.StatusBadGateway, "rebuild failed; previous snapshot still served")
		}
		return
	}

	writeJSON(w, http.StatusOK, RebuildResponse{Root: req.Root, Stats: s.manager.Stats()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{
		Fresh: s.manager.Fresh(),
		Stats: s.manager.Stats(),
	})
}

// handleResolve decodes a navigation token. A miss is a recoverable stale
// reference: callers get a 404 and should fall back to the root view.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}

	prefix, payload, err := s.codec.Decode(tok)
	if err != nil {
		writeError(w, http.StatusNotFound, "stale or unknown token")
		return
	}
	writeJSON(w, http.StatusOK, ResolveResponse{Prefix: prefix.String(), Payload: payload})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: status})
}
