// Package storage provides the candidate store backed by SQLite.
package storage

import (
	"context"
	"errors"

	"github.com/hireloop/recall/internal/models"
)

// ErrNotFound is returned when no candidate matches the lookup.
var ErrNotFound = errors.New("candidate not found")

// FilterCriteria narrows a candidate listing. Zero values mean "no
// constraint" for that field.
type FilterCriteria struct {
	// Skills the candidate must all have (case-insensitive).
	Skills []string
	// MinExperienceYears is approximated by the number of experience
	// entries on record.
	MinExperienceYears int
	// Company matches any past employer by case-insensitive substring.
	Company string
	// Limit caps the result count; 0 means the default of 50.
	Limit int
}

// Storage is the candidate store. It is the source of truth for candidate
// records; the vector and keyword indices are derived from it.
type Storage interface {
	// UpsertCandidate inserts the candidate or replaces an existing record
	// with the same ID.
	UpsertCandidate(ctx context.Context, c *models.Candidate) error

	// GetCandidate returns the candidate by ID, or ErrNotFound.
	GetCandidate(ctx context.Context, id string) (*models.Candidate, error)

	// ListCandidates returns summaries of all candidates, newest first.
	ListCandidates(ctx context.Context) ([]models.CandidateSummary, error)

	// FindByFilePath returns the candidate ingested from filePath, or
	// ErrNotFound. Used to replace a record when the same file is
	// re-ingested.
	FindByFilePath(ctx context.Context, filePath string) (*models.Candidate, error)

	// FindByName returns the candidate whose name best matches name,
	// tolerating small spelling differences, or ErrNotFound.
	FindByName(ctx context.Context, name string) (*models.Candidate, error)

	// FilterCandidates returns candidates matching every set criterion.
	FilterCandidates(ctx context.Context, criteria FilterCriteria) ([]*models.Candidate, error)

	// DeleteCandidate removes the candidate by ID. Returns ErrNotFound if
	// no such record exists.
	DeleteCandidate(ctx context.Context, id string) error

	// CountCandidates returns the number of stored candidates.
	CountCandidates(ctx context.Context) (int, error)

	// Close releases the underlying database handle.
	Close() error
}
