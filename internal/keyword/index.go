// Package keyword provides BM25 keyword search over indexed CV chunks.
package keyword

import (
	"context"
)

// ChunkEntry is one indexed CV chunk. CandidateID is stored as an exact
// keyword field so a candidate's chunks can be removed together.
type ChunkEntry struct {
	CandidateID   string `json:"candidate_id"`
	CandidateName string `json:"candidate_name"`
	ChunkType     string `json:"chunk_type"`
	Section       string `json:"section"`
	Text          string `json:"text"`
}

// Result is a single keyword search hit.
type Result struct {
	ChunkID       string  `json:"chunk_id"`
	CandidateID   string  `json:"candidate_id"`
	CandidateName string  `json:"candidate_name"`
	ChunkType     string  `json:"chunk_type"`
	Section       string  `json:"section"`
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
}

// Index defines keyword search operations over CV chunks.
type Index interface {
	IndexChunk(ctx context.Context, chunkID string, entry ChunkEntry) error
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	// DeleteCandidate removes every chunk of the candidate and returns how
	// many were deleted.
	DeleteCandidate(ctx context.Context, candidateID string) (int, error)
	DocCount() (uint64, error)
	Close() error
}
