package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// opened and reused; remove the directory to force a full re-index after a
// mapping change.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so technology
	// names like "Kubernetes" match exactly as typed.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	docMapping.AddFieldMappingsAt("candidate_name", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("candidate_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("chunk_type", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("section", keywordFieldMapping)
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexChunk indexes one chunk by id.
func (b *BleveIndex) IndexChunk(ctx context.Context, chunkID string, entry ChunkEntry) error {
	return b.index.Index(chunkID, entry)
}

// Search runs a match query over chunk text and candidate names and returns
// up to limit results with their stored fields.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	search := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	search.Size = limit
	search.Fields = []string{"*"}
	results, err := b.index.Search(search)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{
			ChunkID:       hit.ID,
			CandidateID:   fieldString(hit.Fields, "candidate_id"),
			CandidateName: fieldString(hit.Fields, "candidate_name"),
			ChunkType:     fieldString(hit.Fields, "chunk_type"),
			Section:       fieldString(hit.Fields, "section"),
			Text:          fieldString(hit.Fields, "text"),
			Score:         hit.Score,
		}
	}
	return out, nil
}

func fieldString(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// DeleteCandidate removes every chunk indexed for the candidate.
func (b *BleveIndex) DeleteCandidate(ctx context.Context, candidateID string) (int, error) {
	q := bleve.NewTermQuery(candidateID)
	q.SetField("candidate_id")
	search := bleve.NewSearchRequest(q)
	search.Size = 10000
	results, err := b.index.Search(search)
	if err != nil {
		return 0, fmt.Errorf("Bleve candidate lookup failed: %w", err)
	}

	batch := b.index.NewBatch()
	for _, hit := range results.Hits {
		batch.Delete(hit.ID)
	}
	if err := b.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("Bleve batch delete failed: %w", err)
	}
	return len(results.Hits), nil
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
