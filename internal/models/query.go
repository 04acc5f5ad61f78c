package models

// QueryRequest asks a natural-language question, optionally scoped to one candidate.
type QueryRequest struct {
	Question    string `json:"question" validate:"required"`
	CandidateID string `json:"candidate_id,omitempty"`
	TopK        int    `json:"top_k,omitempty" validate:"omitempty,min=1,max=50"`
}

// SearchRequest runs a semantic search, optionally scoped to one candidate.
type SearchRequest struct {
	Query       string `json:"query" validate:"required"`
	CandidateID string `json:"candidate_id,omitempty"`
	TopK        int    `json:"top_k,omitempty" validate:"omitempty,min=1,max=50"`
}

// KeywordSearchRequest runs an exact-term search over indexed chunk text.
type KeywordSearchRequest struct {
	Query string `json:"query" validate:"required"`
	Limit int    `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`
}

// FilterRequest filters candidates by structured criteria. All supplied
// criteria must match (AND semantics).
type FilterRequest struct {
	Skills             []string `json:"skills,omitempty"`
	MinExperienceYears int      `json:"min_experience_years,omitempty" validate:"omitempty,min=0"`
	Company            string   `json:"company,omitempty"`
	Limit              int      `json:"limit,omitempty" validate:"omitempty,min=1,max=200"`
}
