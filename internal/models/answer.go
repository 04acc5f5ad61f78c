package models

// Confidence is a coarse trust label derived from mean retrieval distance.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	// ConfidenceError marks a degraded answer produced after the
	// generation collaborator failed; the payload is still well-formed.
	ConfidenceError Confidence = "error"
)

// Source attributes one context chunk to a candidate, so callers can cite
// without re-parsing the context block.
type Source struct {
	CandidateName string    `json:"candidate_name"`
	CandidateID   string    `json:"candidate_id"`
	Section       string    `json:"section"`
	ChunkType     ChunkType `json:"chunk_type"`
	Relevance     float64   `json:"relevance"`
}

// Answer is the result of one question: generated text, the context block it
// was grounded on, per-chunk sources, and a confidence label. Every failure
// mode of the pipeline yields a well-formed Answer; callers distinguish
// outcomes via Confidence and the answer text, never via control flow.
type Answer struct {
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	Context    string     `json:"context"`
	Sources    []Source   `json:"sources"`
	Confidence Confidence `json:"confidence"`
}

// SearchResult is a single semantic search hit with the candidate resolved.
type SearchResult struct {
	CandidateName string    `json:"candidate_name"`
	CandidateID   string    `json:"candidate_id"`
	ChunkType     ChunkType `json:"chunk_type"`
	Section       string    `json:"section"`
	Text          string    `json:"text,omitempty"`
	Distance      float64   `json:"distance"`
	Relevance     float64   `json:"relevance"`
}

// SearchResponse is the response for a semantic search request.
type SearchResponse struct {
	Query   string          `json:"query"`
	Results []SearchResult `json:"results"`
	Total   int            `json:"total_results"`
}
