package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hireloop/recall/internal/embedding"
	"github.com/hireloop/recall/internal/extract"
	"github.com/hireloop/recall/internal/keyword"
	"github.com/hireloop/recall/internal/llm"
	"github.com/hireloop/recall/internal/models"
	"github.com/hireloop/recall/internal/storage"
	"github.com/hireloop/recall/internal/vector"
)

type testEnv struct {
	ingestor *Ingestor
	storage  *storage.SQLiteStorage
	vectors  *vector.FlatIndex
	keywords *keyword.BleveIndex
	dir      string
}

func newTestEnv(t *testing.T, parser llm.Parser) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "candidates.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	vectors, err := vector.NewFlatIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	keywords, err := keyword.NewBleveIndex(filepath.Join(dir, "keyword"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { keywords.Close() })

	ing := NewIngestor(
		store,
		parser,
		embedding.NewMockEmbedder(8),
		vectors,
		keywords,
		extract.NewExtractor(),
		filepath.Join(dir, "vectors.idx"),
	)
	return &testEnv{ingestor: ing, storage: store, vectors: vectors, keywords: keywords, dir: dir}
}

func writeCV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func parsedCandidate() *models.Candidate {
	return &models.Candidate{
		Name:    "Jane Smith",
		Email:   "jane@example.com",
		Summary: "Backend engineer.",
		Skills:  []string{"Go", "SQL"},
		Experience: []models.Experience{
			{Title: "Engineer", Company: "Acme", Description: "Built APIs."},
		},
	}
}

func TestIngestFile(t *testing.T) {
	env := newTestEnv(t, &llm.MockClient{Candidate: parsedCandidate()})
	ctx := context.Background()

	path := writeCV(t, env.dir, "jane.txt", "Jane Smith\nBackend engineer.")
	candidate, err := env.ingestor.IngestFile(ctx, path, "")
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if candidate.ID == "" {
		t.Error("candidate ID not assigned")
	}
	if candidate.FileName != "jane.txt" {
		t.Errorf("file name = %q", candidate.FileName)
	}

	stored, err := env.storage.GetCandidate(ctx, candidate.ID)
	if err != nil {
		t.Fatalf("stored candidate missing: %v", err)
	}
	if stored.Name != "Jane Smith" {
		t.Errorf("stored name = %q", stored.Name)
	}

	// Summary, experience, and skills chunks should be in both indices.
	st := env.vectors.Stats()
	if st.Count != 3 {
		t.Errorf("vector count = %d, want 3", st.Count)
	}
	kc, err := env.keywords.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if kc != 3 {
		t.Errorf("keyword count = %d, want 3", kc)
	}

	// The vector index must be persisted.
	if _, err := os.Stat(filepath.Join(env.dir, "vectors.idx")); err != nil {
		t.Errorf("vector index not saved: %v", err)
	}
}

func TestIngestFile_nameOverride(t *testing.T) {
	env := newTestEnv(t, &llm.MockClient{Candidate: parsedCandidate()})
	path := writeCV(t, env.dir, "jane.txt", "irrelevant")

	candidate, err := env.ingestor.IngestFile(context.Background(), path, "J. Smith-Jones")
	if err != nil {
		t.Fatal(err)
	}
	if candidate.Name != "J. Smith-Jones" {
		t.Errorf("name = %q", candidate.Name)
	}
}

func TestIngestFile_doesNotMutateParserResult(t *testing.T) {
	shared := parsedCandidate()
	env := newTestEnv(t, &llm.MockClient{Candidate: shared})
	path := writeCV(t, env.dir, "jane.txt", "Jane Smith")

	candidate, err := env.ingestor.IngestFile(context.Background(), path, "Override Name")
	if err != nil {
		t.Fatal(err)
	}
	if shared.ID != "" || shared.FilePath != "" || shared.FileName != "" {
		t.Errorf("parser's candidate was mutated: %+v", shared)
	}
	if shared.Name == "Override Name" {
		t.Error("name override leaked into the parser's candidate")
	}
	if candidate.ID == "" || candidate.FilePath != path {
		t.Errorf("stored candidate missing identity: %+v", candidate)
	}
}

func TestIngestFile_reingestReplaces(t *testing.T) {
	env := newTestEnv(t, &llm.MockClient{Candidate: parsedCandidate()})
	ctx := context.Background()
	path := writeCV(t, env.dir, "jane.txt", "Jane Smith")

	first, err := env.ingestor.IngestFile(ctx, path, "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := env.ingestor.IngestFile(ctx, path, "")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == second.ID {
		t.Error("re-ingest should assign a new candidate ID")
	}

	if _, err := env.storage.GetCandidate(ctx, first.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("previous candidate should be gone, got %v", err)
	}
	count, err := env.storage.CountCandidates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("candidate count = %d, want 1", count)
	}

	// Old vectors are tombstoned, new ones live.
	st := env.vectors.Stats()
	if st.Tombstoned != 3 {
		t.Errorf("tombstoned = %d, want 3", st.Tombstoned)
	}
	if got := len(env.vectors.RecordsFor(second.ID)); got != 3 {
		t.Errorf("new candidate has %d live records, want 3", got)
	}
}

func TestIngestFile_unsupportedFormat(t *testing.T) {
	env := newTestEnv(t, &llm.MockClient{})
	path := writeCV(t, env.dir, "cv.xlsx", "binary")
	if _, err := env.ingestor.IngestFile(context.Background(), path, ""); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestIngestFile_parserError(t *testing.T) {
	env := newTestEnv(t, &llm.MockClient{Err: errors.New("model unavailable")})
	path := writeCV(t, env.dir, "jane.txt", "Jane Smith")
	if _, err := env.ingestor.IngestFile(context.Background(), path, ""); err == nil {
		t.Error("expected error when parsing fails")
	}
	// Nothing should have been stored.
	count, err := env.storage.CountCandidates(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("count = %d after failed ingest, want 0", count)
	}
}

func TestDelete(t *testing.T) {
	env := newTestEnv(t, &llm.MockClient{Candidate: parsedCandidate()})
	ctx := context.Background()
	path := writeCV(t, env.dir, "jane.txt", "Jane Smith")

	candidate, err := env.ingestor.IngestFile(ctx, path, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := env.ingestor.Delete(ctx, candidate.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := env.storage.GetCandidate(ctx, candidate.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("candidate should be deleted, got %v", err)
	}
	st := env.vectors.Stats()
	if st.Tombstoned != 3 {
		t.Errorf("tombstoned = %d, want 3", st.Tombstoned)
	}
	kc, _ := env.keywords.DocCount()
	if kc != 0 {
		t.Errorf("keyword count = %d, want 0", kc)
	}
}

func TestDelete_missingCandidate(t *testing.T) {
	env := newTestEnv(t, &llm.MockClient{})
	err := env.ingestor.Delete(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
