package index

import (
	"sort"
	"strings"
)

// Weights holds the relevance-scoring parameters. The point values are
// heuristic; callers may tune them, and only the relative ordering they
// induce is load-bearing.
type Weights struct {
	ExactName     int // name equals the query
	NamePrefix    int // name starts with the query
	NameWord      int // per query word matched as a whole word in the name
	PathWord      int // per query word found in the folder path
	DocExtension  int // flat bonus for common document types
	DistinctWords int // per distinct query word matched anywhere
	DepthPenalty  int // per level of nesting
}

// DefaultWeights returns the stock scoring parameters.
func DefaultWeights() Weights {
	return Weights{
		ExactName:     20,
		NamePrefix:    15,
		NameWord:      10,
		PathWord:      3,
		DocExtension:  1,
		DistinctWords: 2,
		DepthPenalty:  1,
	}
}

// DefaultDocExtensions is the stock document-type allow-list.
var DefaultDocExtensions = []string{
	".pdf", ".doc", ".docx", ".ppt", ".pptx", ".xls", ".xlsx", ".txt",
}

// Result is one scored search hit.
type Result struct {
	Entry *Entry `json:"entry"`
	Score int    `json:"score"`
}

// Scorer ranks files in a snapshot against free-text queries.
type Scorer struct {
	weights Weights
	docExts map[string]bool
}

// NewScorer creates a scorer. Nil extensions select the default allow-list.
func NewScorer(w Weights, docExts []string) *Scorer {
	if docExts == nil {
		docExts = DefaultDocExtensions
	}
	exts := make(map[string]bool, len(docExts))
	for _, e := range docExts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[strings.ToLower(e)] = true
	}
	return &Scorer{weights: w, docExts: exts}
}

// Search scores every file in the snapshot and returns the top matches in
// deterministic order: score descending, then shorter path, then name.
func (sc *Scorer) Search(snap *Snapshot, query string, limit int) []Result {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || snap == nil {
		return nil
	}
	words := strings.Fields(query)

	var results []Result
	for _, root := range snap.Roots {
		root.Walk(func(e *Entry) {
			if e.IsFolder() {
				return
			}
			if score := sc.score(e, query, words); score > 0 {
				results = append(results, Result{Entry: e, Score: score})
			}
		})
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if len(a.Entry.Path) != len(b.Entry.Path) {
			return len(a.Entry.Path) < len(b.Entry.Path)
		}
		return a.Entry.Name < b.Entry.Name
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (sc *Scorer) score(e *Entry, query string, words []string) int {
	name := strings.ToLower(e.Name)
	stem := trimExtension(name)
	pathText := strings.ToLower(strings.Join(e.Path, " "))
	nameWords := splitWords(name)

	score := 0

	if name == query || stem == query {
		score += sc.weights.ExactName
	}
	if strings.HasPrefix(name, query) {
		score += sc.weights.NamePrefix
	}

	distinct := 0
	for _, w := range words {
		matched := false
		if containsWord(nameWords, w) {
			score += sc.weights.NameWord
			matched = true
		}
		if strings.Contains(pathText, w) {
			score += sc.weights.PathWord
			matched = true
		}
		if matched {
			distinct++
		}
	}
	score += distinct * sc.weights.DistinctWords

	if ext := extensionOf(name); sc.docExts[ext] {
		score += sc.weights.DocExtension
	}

	score -= len(e.Path) * sc.weights.DepthPenalty
	return score
}

func trimExtension(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

func extensionOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i:]
	}
	return ""
}

// splitWords breaks a file name into lowercase word tokens at any
// non-alphanumeric boundary.
func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z')
	})
}

func containsWord(words []string, w string) bool {
	for _, nw := range words {
		if nw == w {
			return true
		}
	}
	return false
}
