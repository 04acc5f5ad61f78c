package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hireloop/recall/internal/embedding"
	"github.com/hireloop/recall/internal/extract"
	"github.com/hireloop/recall/internal/keyword"
	"github.com/hireloop/recall/internal/llm"
	"github.com/hireloop/recall/internal/models"
	"github.com/hireloop/recall/internal/storage"
	"github.com/hireloop/recall/internal/vector"
)

// Ingestor runs the CV pipeline: extract text, parse into a structured
// candidate, store it, and index its chunks in the vector and keyword
// indices.
type Ingestor struct {
	storage      storage.Storage
	parser       llm.Parser
	embedder     embedding.Embedder
	vectorIndex  *vector.FlatIndex
	keywordIndex keyword.Index
	extractor    *extract.Extractor
	indexPath    string
	logger       *zap.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets a logger for pipeline events.
func WithLogger(l *zap.Logger) Option {
	return func(ing *Ingestor) { ing.logger = l }
}

// NewIngestor creates an ingestor with the given dependencies. indexPath is
// where the vector index is persisted after each mutation.
func NewIngestor(
	store storage.Storage,
	parser llm.Parser,
	embedder embedding.Embedder,
	vectorIndex *vector.FlatIndex,
	keywordIndex keyword.Index,
	extractor *extract.Extractor,
	indexPath string,
	opts ...Option,
) *Ingestor {
	ing := &Ingestor{
		storage:      store,
		parser:       parser,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		extractor:    extractor,
		indexPath:    indexPath,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// IngestFile processes the CV at path. nameOverride, when non-empty, replaces
// the parsed candidate name. Re-ingesting a path replaces the previous
// candidate from that file. Returns the stored candidate.
func (ing *Ingestor) IngestFile(ctx context.Context, path, nameOverride string) (*models.Candidate, error) {
	if !extract.Supported(filepath.Ext(path)) {
		return nil, fmt.Errorf("unsupported file format %q", filepath.Ext(path))
	}

	rawText, err := ing.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}
	if rawText == "" {
		return nil, fmt.Errorf("no text could be extracted from %s", path)
	}

	parsed, err := ing.parser.ParseCV(ctx, rawText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CV: %w", err)
	}
	// Parsers may hand back a shared pointer; copy before assigning identity.
	candidate := new(models.Candidate)
	*candidate = *parsed
	candidate.ID = uuid.New().String()
	candidate.FilePath = path
	candidate.FileName = filepath.Base(path)
	if nameOverride != "" {
		candidate.Name = nameOverride
	}

	// The same file re-ingested replaces its previous candidate.
	if previous, err := ing.storage.FindByFilePath(ctx, path); err == nil {
		ing.logger.Info("replacing candidate from re-ingested file",
			zap.String("path", path),
			zap.String("previous_id", previous.ID))
		if err := ing.remove(ctx, previous.ID); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for previous ingest: %w", err)
	}

	if err := ing.storage.UpsertCandidate(ctx, candidate); err != nil {
		return nil, err
	}
	if err := ing.indexCandidate(ctx, candidate); err != nil {
		return nil, err
	}

	ing.logger.Info("ingested CV",
		zap.String("candidate_id", candidate.ID),
		zap.String("name", candidate.Name),
		zap.String("file", candidate.FileName))
	return candidate, nil
}

// indexCandidate embeds the candidate's chunks and adds them to both indices.
func (ing *Ingestor) indexCandidate(ctx context.Context, candidate *models.Candidate) error {
	chunks := BuildChunks(candidate)
	if len(chunks) == 0 {
		ing.logger.Warn("candidate has no indexable content", zap.String("candidate_id", candidate.ID))
		return ing.saveIndex()
	}

	texts := make([]string, len(chunks))
	metas := make([]models.ChunkMetadata, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
		metas[i] = models.ChunkMetadata{
			CandidateID: candidate.ID,
			ChunkType:   chunk.Type,
			Section:     chunk.Section,
			Text:        chunk.Text,
		}
	}

	embeddings, err := ing.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if _, err := ing.vectorIndex.AddBatch(embeddings, metas); err != nil {
		return fmt.Errorf("failed to index vectors: %w", err)
	}

	for _, chunk := range chunks {
		chunkID := candidate.ID + ":" + chunk.Section
		entry := keyword.ChunkEntry{
			CandidateID:   candidate.ID,
			CandidateName: candidate.Name,
			ChunkType:     string(chunk.Type),
			Section:       chunk.Section,
			Text:          chunk.Text,
		}
		if err := ing.keywordIndex.IndexChunk(ctx, chunkID, entry); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", chunkID, err)
		}
	}

	return ing.saveIndex()
}

// Delete removes a candidate: tombstones its vectors, drops its keyword
// chunks, and deletes the stored record.
func (ing *Ingestor) Delete(ctx context.Context, candidateID string) error {
	if _, err := ing.storage.GetCandidate(ctx, candidateID); err != nil {
		return err
	}
	return ing.remove(ctx, candidateID)
}

func (ing *Ingestor) remove(ctx context.Context, candidateID string) error {
	tombstoned := ing.vectorIndex.Tombstone(candidateID)
	if _, err := ing.keywordIndex.DeleteCandidate(ctx, candidateID); err != nil {
		return fmt.Errorf("failed to remove keyword chunks: %w", err)
	}
	if err := ing.storage.DeleteCandidate(ctx, candidateID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to delete candidate: %w", err)
	}
	ing.logger.Info("removed candidate",
		zap.String("candidate_id", candidateID),
		zap.Int("tombstoned_vectors", tombstoned))
	return ing.saveIndex()
}

func (ing *Ingestor) saveIndex() error {
	if err := ing.vectorIndex.Save(ing.indexPath); err != nil {
		return fmt.Errorf("failed to save vector index: %w", err)
	}
	return nil
}
