package index

import (
	"testing"
	"time"
)

func testSnapshot() *Snapshot {
	file := func(name string, path ...string) *Entry {
		return &Entry{ID: "id-" + name, Name: name, Kind: KindFile, Size: 100, Path: path}
	}
	folder := func(name string, path []string, children ...*Entry) *Entry {
		return &Entry{ID: "id-" + name, Name: name, Kind: KindFolder, Path: path, Children: children}
	}

	snap := NewSnapshot()
	snap.Roots["Docs"] = folder("Docs", nil,
		file("report.pdf", "Docs"),
		file("reporting guidelines.pdf", "Docs"),
		folder("Annual", []string{"Docs"},
			file("report-2024.pdf", "Docs", "Annual"),
			file("summary.txt", "Docs", "Annual"),
			folder("Drafts", []string{"Docs", "Annual"},
				file("report.pdf", "Docs", "Annual", "Drafts"),
			),
		),
		file("unrelated.mp4", "Docs"),
	)
	snap.BuiltAt = time.Now()
	return snap
}

func TestSearch_ExactNameBeatsPartial(t *testing.T) {
	sc := NewScorer(DefaultWeights(), nil)
	results := sc.Search(testSnapshot(), "report", 0)

	if len(results) == 0 {
		t.Fatal("no results")
	}
	if results[0].Entry.Name != "report.pdf" {
		t.Fatalf("top result = %q, want report.pdf", results[0].Entry.Name)
	}

	var exact, partial int
	for _, r := range results {
		switch r.Entry.Name {
		case "report.pdf":
			if len(r.Entry.Path) == 1 && exact == 0 {
				exact = r.Score
			}
		case "reporting guidelines.pdf":
			partial = r.Score
		}
	}
	if partial == 0 {
		t.Fatal("partial match not found in results")
	}
	if exact <= partial {
		t.Errorf("exact match score %d not above partial match score %d", exact, partial)
	}
}

func TestSearch_LimitAndOrdering(t *testing.T) {
	sc := NewScorer(DefaultWeights(), nil)
	results := sc.Search(testSnapshot(), "report", 5)

	if len(results) > 5 {
		t.Fatalf("limit not applied: %d results", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted: score %d after %d", results[i].Score, results[i-1].Score)
		}
	}
}

func TestSearch_DepthPenalty(t *testing.T) {
	sc := NewScorer(DefaultWeights(), nil)
	results := sc.Search(testSnapshot(), "report", 0)

	var shallow, deep int
	for _, r := range results {
		if r.Entry.Name != "report.pdf" {
			continue
		}
		if len(r.Entry.Path) == 1 {
			shallow = r.Score
		} else {
			deep = r.Score
		}
	}
	if shallow == 0 || deep == 0 {
		t.Fatal("expected report.pdf at two depths")
	}
	if deep >= shallow {
		t.Errorf("deep copy score %d not below shallow copy score %d", deep, shallow)
	}
}

func TestSearch_PathWordsMatch(t *testing.T) {
	sc := NewScorer(DefaultWeights(), nil)
	results := sc.Search(testSnapshot(), "annual summary", 0)

	found := false
	for _, r := range results {
		if r.Entry.Name == "summary.txt" {
			found = true
		}
	}
	if !found {
		t.Error("summary.txt not matched via name+path words")
	}
}

func TestSearch_FoldersNotScored(t *testing.T) {
	sc := NewScorer(DefaultWeights(), nil)
	for _, r := range sc.Search(testSnapshot(), "annual", 0) {
		if r.Entry.IsFolder() {
			t.Errorf("folder %q returned as a search result", r.Entry.Name)
		}
	}
}

func TestSearch_NoMatchesEmpty(t *testing.T) {
	sc := NewScorer(DefaultWeights(), nil)
	if got := sc.Search(testSnapshot(), "zzzznothing", 0); len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
	if got := sc.Search(testSnapshot(), "   ", 0); got != nil {
		t.Errorf("blank query returned results")
	}
}

func TestSearch_DeterministicTieBreak(t *testing.T) {
	snap := NewSnapshot()
	snap.Roots["R"] = &Entry{
		ID: "r", Name: "R", Kind: KindFolder,
		Children: []*Entry{
			{ID: "b", Name: "beta notes.txt", Kind: KindFile, Path: []string{"R"}},
			{ID: "a", Name: "alpha notes.txt", Kind: KindFile, Path: []string{"R"}},
		},
	}

	sc := NewScorer(DefaultWeights(), nil)
	results := sc.Search(snap, "notes", 0)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Entry.Name != "alpha notes.txt" {
		t.Errorf("tie not broken by name: first = %q", results[0].Entry.Name)
	}
}
