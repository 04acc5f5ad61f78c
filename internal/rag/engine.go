// Package rag orchestrates retrieval-augmented question answering over the
// candidate database: embed the question, retrieve scored chunks from the
// vector index, resolve them against stored candidates, and generate a
// grounded answer with sources and a confidence label.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hireloop/recall/internal/config"
	"github.com/hireloop/recall/internal/embedding"
	"github.com/hireloop/recall/internal/llm"
	"github.com/hireloop/recall/internal/models"
	"github.com/hireloop/recall/internal/storage"
	"github.com/hireloop/recall/internal/vector"
)

// overFetchFloor is the minimum number of raw results requested from the
// index, so downstream dropping still leaves enough for small top-k values.
const overFetchFloor = 15

// noRelevantInfoAnswer is returned when retrieval finds nothing at all.
const noRelevantInfoAnswer = "No relevant information found in the CV database."

// generationFailedAnswer replaces the model output when answer generation
// fails. A clear failure signal beats a partial answer.
const generationFailedAnswer = "Unable to generate an answer due to an error."

// Engine answers questions about stored candidates.
type Engine struct {
	store       storage.Storage
	index       *vector.FlatIndex
	embedder    embedding.Embedder
	generator   llm.Generator
	extractor   llm.FilterExtractor
	defaultTopK int
	maxTopK     int
	logger      *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a retrieval engine. extractor may be nil; ExtractFilters
// then always returns an empty map.
func NewEngine(
	store storage.Storage,
	index *vector.FlatIndex,
	embedder embedding.Embedder,
	generator llm.Generator,
	extractor llm.FilterExtractor,
	cfg config.RetrievalConfig,
	opts ...Option,
) *Engine {
	e := &Engine{
		store:       store,
		index:       index,
		embedder:    embedder,
		generator:   generator,
		extractor:   extractor,
		defaultTopK: cfg.DefaultTopK,
		maxTopK:     cfg.MaxTopK,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// clampTopK applies the configured default and ceiling.
func (e *Engine) clampTopK(topK int) int {
	if topK <= 0 {
		topK = e.defaultTopK
	}
	if e.maxTopK > 0 && topK > e.maxTopK {
		topK = e.maxTopK
	}
	return topK
}

// AnswerQuestion answers a natural-language question. candidateID, when
// non-empty, scopes retrieval to that candidate, falling back to an unscoped
// search if the scope has no indexed content. Retrieval finding nothing and
// generation failing both yield a well-formed degraded answer rather than an
// error; only an embedding failure propagates.
func (e *Engine) AnswerQuestion(ctx context.Context, question, candidateID string, topK int) (*models.Answer, error) {
	topK = e.clampTopK(topK)
	e.logger.Info("answering question",
		zap.String("question", question),
		zap.String("candidate_id", candidateID),
		zap.Int("top_k", topK))

	queryVec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	searchK := max(topK, overFetchFloor)
	var scope vector.Predicate
	if candidateID != "" {
		scope = vector.ScopeCandidate(candidateID)
	}
	results, err := e.index.Search(queryVec, searchK, scope)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 && candidateID != "" {
		e.logger.Info("no results in candidate scope, retrying unscoped",
			zap.String("candidate_id", candidateID))
		results, err = e.index.Search(queryVec, searchK, nil)
		if err != nil {
			return nil, err
		}
	}
	if len(results) == 0 {
		return &models.Answer{
			Question:   question,
			Answer:     noRelevantInfoAnswer,
			Sources:    []models.Source{},
			Confidence: models.ConfidenceLow,
		}, nil
	}

	if len(results) > topK {
		results = results[:topK]
	}
	confidence := confidenceFor(results)

	contextBlock, sources := e.resolveContext(ctx, results)

	answer, err := e.generator.GenerateAnswer(ctx, question, contextBlock)
	if err != nil {
		e.logger.Error("answer generation failed", zap.Error(err))
		return &models.Answer{
			Question:   question,
			Answer:     generationFailedAnswer,
			Sources:    []models.Source{},
			Confidence: models.ConfidenceError,
		}, nil
	}

	e.logger.Info("generated answer",
		zap.String("confidence", string(confidence)),
		zap.Int("sources", len(sources)))
	return &models.Answer{
		Question:   question,
		Answer:     answer,
		Context:    contextBlock,
		Sources:    sources,
		Confidence: confidence,
	}, nil
}

// resolveContext builds the labeled context block and the parallel sources
// list. Results whose candidate no longer exists in storage are dropped.
func (e *Engine) resolveContext(ctx context.Context, results []vector.Result) (string, []models.Source) {
	var parts []string
	sources := []models.Source{}
	for _, r := range results {
		candidate, err := e.store.GetCandidate(ctx, r.Metadata.CandidateID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				e.logger.Warn("candidate lookup failed",
					zap.String("candidate_id", r.Metadata.CandidateID),
					zap.Error(err))
			}
			continue
		}
		relevance := 1 / (1 + r.Distance)
		parts = append(parts, fmt.Sprintf("[%s - %s (%s)]\n%s\n(Relevance Score: %.2f)",
			candidate.Name,
			strings.ToUpper(string(r.Metadata.ChunkType)),
			r.Metadata.Section,
			r.Metadata.Text,
			relevance))
		sources = append(sources, models.Source{
			CandidateName: candidate.Name,
			CandidateID:   candidate.ID,
			Section:       r.Metadata.Section,
			ChunkType:     r.Metadata.ChunkType,
			Relevance:     relevance,
		})
	}
	return strings.Join(parts, "\n\n---\n\n"), sources
}

// confidenceFor maps the mean distance of the retrieved set to a confidence
// label. Mean below 1.0 is high, below 2.0 medium, anything else low.
func confidenceFor(results []vector.Result) models.Confidence {
	if len(results) == 0 {
		return models.ConfidenceLow
	}
	var sum float64
	for _, r := range results {
		sum += r.Distance
	}
	mean := sum / float64(len(results))
	switch {
	case mean < 1.0:
		return models.ConfidenceHigh
	case mean < 2.0:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// Search runs a semantic search and resolves candidate names for each hit.
// Hits whose candidate is missing are reported with the name "Unknown"
// rather than dropped.
func (e *Engine) Search(ctx context.Context, query, candidateID string, topK int) ([]models.SearchResult, error) {
	topK = e.clampTopK(topK)

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	var scope vector.Predicate
	if candidateID != "" {
		scope = vector.ScopeCandidate(candidateID)
	}
	results, err := e.index.Search(queryVec, topK, scope)
	if err != nil {
		return nil, err
	}

	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		name := "Unknown"
		if candidate, err := e.store.GetCandidate(ctx, r.Metadata.CandidateID); err == nil {
			name = candidate.Name
		}
		out = append(out, models.SearchResult{
			CandidateName: name,
			CandidateID:   r.Metadata.CandidateID,
			ChunkType:     r.Metadata.ChunkType,
			Section:       r.Metadata.Section,
			Text:          r.Metadata.Text,
			Distance:      r.Distance,
			Relevance:     1 / (1 + r.Distance),
		})
	}
	return out, nil
}

// ExtractFilters pulls structured filters from a question. Always best
// effort: any failure yields an empty map.
func (e *Engine) ExtractFilters(ctx context.Context, question string) map[string]any {
	if e.extractor == nil {
		return map[string]any{}
	}
	filters, err := e.extractor.ExtractFilters(ctx, question)
	if err != nil {
		e.logger.Warn("filter extraction failed", zap.Error(err))
		return map[string]any{}
	}
	return filters
}
