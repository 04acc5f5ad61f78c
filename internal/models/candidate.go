// Package models defines core data structures for candidates, chunks, queries, and answers.
package models

import "time"

// Candidate is a structured CV record. It is the single source of truth for
// everything known about one person; the vector index only references it by ID.
type Candidate struct {
	ID             string          `json:"candidate_id"`
	Name           string          `json:"name"`
	Email          string          `json:"email,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	Summary        string          `json:"summary,omitempty"`
	Skills         []string        `json:"skills,omitempty"`
	Experience     []Experience    `json:"experience,omitempty"`
	Education      []Education     `json:"education,omitempty"`
	Projects       []Project       `json:"projects,omitempty"`
	Certifications []Certification `json:"certifications,omitempty"`
	Interests      []string        `json:"interests,omitempty"`
	FilePath       string          `json:"file_path,omitempty"`
	FileName       string          `json:"file_name,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Experience is one work-history entry.
type Experience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Duration    string `json:"duration,omitempty"`
	Description string `json:"description,omitempty"`
}

// Education is one education entry.
type Education struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Year        string `json:"year,omitempty"`
	Details     string `json:"details,omitempty"`
}

// Project is one project entry.
type Project struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
	URL          string   `json:"url,omitempty"`
}

// Certification is one certification entry.
type Certification struct {
	Name   string `json:"name"`
	Issuer string `json:"issuer,omitempty"`
	Year   string `json:"year,omitempty"`
}

// CandidateSummary is the list-view projection of a candidate.
type CandidateSummary struct {
	ID        string    `json:"candidate_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	FileName  string    `json:"file_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
