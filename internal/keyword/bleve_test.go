package keyword

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "keyword"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndexAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	entries := map[string]ChunkEntry{
		"c1:skills": {
			CandidateID:   "c1",
			CandidateName: "Jane Smith",
			ChunkType:     "skills",
			Section:       "skills",
			Text:          "Skills: Go, Kubernetes, PostgreSQL",
		},
		"c2:skills": {
			CandidateID:   "c2",
			CandidateName: "John Doe",
			ChunkType:     "skills",
			Section:       "skills",
			Text:          "Skills: Python, Django",
		},
	}
	for id, entry := range entries {
		if err := idx.IndexChunk(ctx, id, entry); err != nil {
			t.Fatalf("IndexChunk(%s): %v", id, err)
		}
	}

	results, err := idx.Search(ctx, "Kubernetes", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.CandidateID != "c1" || r.CandidateName != "Jane Smith" {
		t.Errorf("result = %+v", r)
	}
	if r.ChunkType != "skills" || r.Text == "" {
		t.Errorf("stored fields missing: %+v", r)
	}
}

func TestSearch_matchesCandidateName(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	err := idx.IndexChunk(ctx, "c1:summary", ChunkEntry{
		CandidateID:   "c1",
		CandidateName: "Jane Smith",
		ChunkType:     "summary",
		Section:       "professional_summary",
		Text:          "Engineer with a decade of backend experience.",
	})
	if err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search(ctx, "Smith", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestDeleteCandidate(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	for _, id := range []string{"c1:skills", "c1:summary"} {
		if err := idx.IndexChunk(ctx, id, ChunkEntry{
			CandidateID: "c1",
			ChunkType:   "skills",
			Text:        "Go developer",
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := idx.IndexChunk(ctx, "c2:skills", ChunkEntry{
		CandidateID: "c2",
		ChunkType:   "skills",
		Text:        "Go developer",
	}); err != nil {
		t.Fatal(err)
	}

	deleted, err := idx.DeleteCandidate(ctx, "c1")
	if err != nil {
		t.Fatalf("DeleteCandidate: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	count, err := idx.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	results, err := idx.Search(ctx, "developer", 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.CandidateID == "c1" {
			t.Errorf("deleted candidate still searchable: %+v", r)
		}
	}
}

func TestReopenExistingIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keyword")
	ctx := context.Background()

	idx, err := NewBleveIndex(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.IndexChunk(ctx, "c1:skills", ChunkEntry{CandidateID: "c1", Text: "Go"}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewBleveIndex(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	count, err := reopened.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count after reopen = %d, want 1", count)
	}
}
