package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/hireloop/recall/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "candidates.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testCandidate(name string) *models.Candidate {
	return &models.Candidate{
		ID:      uuid.New().String(),
		Name:    name,
		Email:   "test@example.com",
		Summary: "Experienced engineer.",
		Skills:  []string{"Go", "PostgreSQL"},
		Experience: []models.Experience{
			{Title: "Engineer", Company: "Acme Corp", Duration: "2019-2024", Description: "Built services."},
		},
		FilePath: "/uploads/" + name + ".pdf",
		FileName: name + ".pdf",
	}
}

func TestUpsertAndGet(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	c := testCandidate("Jane Smith")
	if err := s.UpsertCandidate(ctx, c); err != nil {
		t.Fatalf("UpsertCandidate: %v", err)
	}

	got, err := s.GetCandidate(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCandidate: %v", err)
	}
	if got.Name != "Jane Smith" || got.Email != "test@example.com" {
		t.Errorf("got %+v", got)
	}
	if len(got.Skills) != 2 || got.Skills[0] != "Go" {
		t.Errorf("skills = %v", got.Skills)
	}
	if len(got.Experience) != 1 || got.Experience[0].Company != "Acme Corp" {
		t.Errorf("experience = %+v", got.Experience)
	}
}

func TestUpsertReplaces(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	c := testCandidate("Jane Smith")
	if err := s.UpsertCandidate(ctx, c); err != nil {
		t.Fatal(err)
	}
	c.Summary = "Updated summary."
	if err := s.UpsertCandidate(ctx, c); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetCandidate(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Summary != "Updated summary." {
		t.Errorf("summary = %q", got.Summary)
	}
	count, err := s.CountCandidates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestGetCandidate_notFound(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.GetCandidate(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFindByFilePath(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	c := testCandidate("Jane Smith")
	if err := s.UpsertCandidate(ctx, c); err != nil {
		t.Fatal(err)
	}
	got, err := s.FindByFilePath(ctx, c.FilePath)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != c.ID {
		t.Errorf("got %q, want %q", got.ID, c.ID)
	}
	if _, err := s.FindByFilePath(ctx, "/nope.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFindByName_fuzzy(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	jane := testCandidate("Jane Smith")
	john := testCandidate("John Doe")
	for _, c := range []*models.Candidate{jane, john} {
		if err := s.UpsertCandidate(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.FindByName(ctx, "jane smith")
	if err != nil {
		t.Fatalf("exact-insensitive: %v", err)
	}
	if got.ID != jane.ID {
		t.Errorf("got %q", got.Name)
	}

	got, err = s.FindByName(ctx, "Jane Smyth")
	if err != nil {
		t.Fatalf("fuzzy: %v", err)
	}
	if got.ID != jane.ID {
		t.Errorf("fuzzy match got %q", got.Name)
	}

	if _, err := s.FindByName(ctx, "Completely Different"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFilterCandidates(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	goDev := testCandidate("Go Dev")
	goDev.Skills = []string{"Go", "Kubernetes"}
	goDev.Experience = []models.Experience{
		{Title: "Engineer", Company: "Acme Corp"},
		{Title: "Senior Engineer", Company: "Globex"},
	}
	pyDev := testCandidate("Py Dev")
	pyDev.Skills = []string{"Python"}
	pyDev.Experience = []models.Experience{{Title: "Engineer", Company: "Initech"}}
	for _, c := range []*models.Candidate{goDev, pyDev} {
		if err := s.UpsertCandidate(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.FilterCandidates(ctx, FilterCriteria{Skills: []string{"go"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != goDev.ID {
		t.Errorf("skills filter: got %d results", len(got))
	}

	got, err = s.FilterCandidates(ctx, FilterCriteria{MinExperienceYears: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != goDev.ID {
		t.Errorf("experience filter: got %d results", len(got))
	}

	got, err = s.FilterCandidates(ctx, FilterCriteria{Company: "initech"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != pyDev.ID {
		t.Errorf("company filter: got %d results", len(got))
	}

	got, err = s.FilterCandidates(ctx, FilterCriteria{Skills: []string{"Go"}, Company: "initech"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("combined filter should match nobody, got %d", len(got))
	}
}

func TestDeleteCandidate(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	c := testCandidate("Jane Smith")
	if err := s.UpsertCandidate(ctx, c); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteCandidate(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetCandidate(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteCandidate(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestListCandidates(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if err := s.UpsertCandidate(ctx, testCandidate("First")); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertCandidate(ctx, testCandidate("Second")); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListCandidates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d candidates", len(list))
	}
}

func TestLevenshteinDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"jane smith", "jane smyth", 1},
	}
	for _, tc := range cases {
		if got := LevenshteinDistance(tc.a, tc.b); got != tc.want {
			t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
