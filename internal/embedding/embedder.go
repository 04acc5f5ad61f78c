// Package embedding provides text embedding via the OpenAI API or a local
// ONNX model, with LRU caching.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/hireloop/recall/internal/config"
)

// ErrEmptyText is returned when an embedding is requested for empty input.
var ErrEmptyText = errors.New("cannot embed empty text")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// New creates an embedder for the configured provider. The apiKey is only
// used by the openai provider.
func New(cfg config.EmbeddingConfig, apiKey string) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbedder(cfg.BaseURL, apiKey, cfg.Model, cfg.Dimensions, cfg.CacheSize)
	case "onnx":
		return NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
	case "mock":
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
