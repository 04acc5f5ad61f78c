package models

// ChunkType tags which CV section a chunk was built from.
type ChunkType string

const (
	ChunkSummary       ChunkType = "summary"
	ChunkSkills        ChunkType = "skills"
	ChunkExperience    ChunkType = "experience"
	ChunkProject       ChunkType = "project"
	ChunkEducation     ChunkType = "education"
	ChunkCertification ChunkType = "certification"
	ChunkInterests     ChunkType = "interests"
)

// ChunkMetadata is the record stored alongside each embedding vector.
// Text holds the literal passage the embedding was produced from, so
// retrieval never needs to re-derive it from the candidate record.
// Removed is a logical-deletion tombstone; the vector stays resident.
type ChunkMetadata struct {
	CandidateID string    `json:"candidate_id"`
	ChunkType   ChunkType `json:"chunk_type"`
	Section     string    `json:"section"`
	Text        string    `json:"text"`
	Removed     bool      `json:"removed,omitempty"`
}

// Chunk pairs a text passage with its metadata before embedding.
type Chunk struct {
	Type    ChunkType
	Section string
	Text    string
}
