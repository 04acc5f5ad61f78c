package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hireloop/recall/internal/models"
)

// SQLiteStorage implements Storage using SQLite. List-valued candidate
// fields (skills, experience, ...) are stored as JSON columns.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS candidates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		summary TEXT,
		skills TEXT,
		experience TEXT,
		education TEXT,
		projects TEXT,
		certifications TEXT,
		interests TEXT,
		file_path TEXT,
		file_name TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_candidates_created_at ON candidates(created_at);
	CREATE INDEX IF NOT EXISTS idx_candidates_file_path ON candidates(file_path);
	`
	_, err := db.Exec(schema)
	return err
}

// jsonColumns marshals the list-valued fields for storage.
func jsonColumns(c *models.Candidate) (skills, experience, education, projects, certifications, interests string, err error) {
	cols := []any{c.Skills, c.Experience, c.Education, c.Projects, c.Certifications, c.Interests}
	out := make([]string, len(cols))
	for i, col := range cols {
		data, merr := json.Marshal(col)
		if merr != nil {
			return "", "", "", "", "", "", fmt.Errorf("failed to marshal candidate field: %w", merr)
		}
		out[i] = string(data)
	}
	return out[0], out[1], out[2], out[3], out[4], out[5], nil
}

// UpsertCandidate inserts or replaces the candidate record.
func (s *SQLiteStorage) UpsertCandidate(ctx context.Context, c *models.Candidate) error {
	skills, experience, education, projects, certifications, interests, err := jsonColumns(c)
	if err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO candidates
		 (id, name, email, phone, summary, skills, experience, education, projects, certifications, interests, file_path, file_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, c.Phone, c.Summary,
		skills, experience, education, projects, certifications, interests,
		c.FilePath, c.FileName, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert candidate: %w", err)
	}
	return nil
}

const candidateColumns = `id, name, email, phone, summary, skills, experience, education, projects, certifications, interests, file_path, file_name, created_at`

func scanCandidate(row *sql.Row) (*models.Candidate, error) {
	var c models.Candidate
	var skills, experience, education, projects, certifications, interests sql.NullString
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Summary,
		&skills, &experience, &education, &projects, &certifications, &interests,
		&c.FilePath, &c.FileName, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan candidate: %w", err)
	}
	if err := unmarshalColumns(&c, skills, experience, education, projects, certifications, interests); err != nil {
		return nil, err
	}
	return &c, nil
}

func unmarshalColumns(c *models.Candidate, skills, experience, education, projects, certifications, interests sql.NullString) error {
	fields := []struct {
		col  sql.NullString
		dest any
	}{
		{skills, &c.Skills},
		{experience, &c.Experience},
		{education, &c.Education},
		{projects, &c.Projects},
		{certifications, &c.Certifications},
		{interests, &c.Interests},
	}
	for _, f := range fields {
		if !f.col.Valid || f.col.String == "" {
			continue
		}
		if err := json.Unmarshal([]byte(f.col.String), f.dest); err != nil {
			return fmt.Errorf("failed to unmarshal candidate field: %w", err)
		}
	}
	return nil
}

// GetCandidate returns the candidate by ID.
func (s *SQLiteStorage) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)
	return scanCandidate(row)
}

// FindByFilePath returns the candidate ingested from filePath.
func (s *SQLiteStorage) FindByFilePath(ctx context.Context, filePath string) (*models.Candidate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE file_path = ? ORDER BY created_at DESC LIMIT 1`, filePath)
	return scanCandidate(row)
}

// ListCandidates returns summaries of all candidates, newest first.
func (s *SQLiteStorage) ListCandidates(ctx context.Context) ([]models.CandidateSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, file_name, created_at FROM candidates ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	var summaries []models.CandidateSummary
	for rows.Next() {
		var s models.CandidateSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.FileName, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan candidate summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// FindByName returns the candidate whose name best matches name. Exact
// case-insensitive matches win; otherwise the smallest edit distance within
// a tolerance of one third of the query length is accepted.
func (s *SQLiteStorage) FindByName(ctx context.Context, name string) (*models.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM candidates`)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate names: %w", err)
	}
	defer rows.Close()

	query := strings.ToLower(strings.TrimSpace(name))
	maxDistance := len(query) / 3
	bestID := ""
	bestDistance := maxDistance + 1
	for rows.Next() {
		var id, candidateName string
		if err := rows.Scan(&id, &candidateName); err != nil {
			return nil, fmt.Errorf("failed to scan candidate name: %w", err)
		}
		d := LevenshteinDistance(query, strings.ToLower(candidateName))
		if d < bestDistance {
			bestDistance = d
			bestID = id
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if bestID == "" {
		return nil, ErrNotFound
	}
	return s.GetCandidate(ctx, bestID)
}

// FilterCandidates returns candidates matching every set criterion.
func (s *SQLiteStorage) FilterCandidates(ctx context.Context, criteria FilterCriteria) ([]*models.Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	limit := criteria.Limit
	if limit <= 0 {
		limit = 50
	}

	var matches []*models.Candidate
	for rows.Next() {
		var c models.Candidate
		var skills, experience, education, projects, certifications, interests sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Summary,
			&skills, &experience, &education, &projects, &certifications, &interests,
			&c.FilePath, &c.FileName, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		if err := unmarshalColumns(&c, skills, experience, education, projects, certifications, interests); err != nil {
			return nil, err
		}
		if matchesCriteria(&c, criteria) {
			matches = append(matches, &c)
			if len(matches) >= limit {
				break
			}
		}
	}
	return matches, rows.Err()
}

func matchesCriteria(c *models.Candidate, criteria FilterCriteria) bool {
	if len(criteria.Skills) > 0 {
		have := make(map[string]bool, len(c.Skills))
		for _, s := range c.Skills {
			have[strings.ToLower(s)] = true
		}
		for _, required := range criteria.Skills {
			if !have[strings.ToLower(required)] {
				return false
			}
		}
	}
	if criteria.MinExperienceYears > 0 && len(c.Experience) < criteria.MinExperienceYears {
		return false
	}
	if criteria.Company != "" {
		companyLower := strings.ToLower(criteria.Company)
		found := false
		for _, exp := range c.Experience {
			if strings.Contains(strings.ToLower(exp.Company), companyLower) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// DeleteCandidate removes the candidate by ID.
func (s *SQLiteStorage) DeleteCandidate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM candidates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete candidate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountCandidates returns the number of stored candidates.
func (s *SQLiteStorage) CountCandidates(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM candidates`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count candidates: %w", err)
	}
	return count, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
