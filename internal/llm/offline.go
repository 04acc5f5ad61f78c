package llm

import (
	"context"
	"errors"

	"github.com/hireloop/recall/internal/models"
)

// ErrNoAPIKey is returned by offline client operations that need the LLM.
var ErrNoAPIKey = errors.New("no API key configured")

// Offline is the client used when no API key is configured. CV parsing falls
// back to the heuristic parser so ingestion keeps working; answer generation
// and filter extraction fail with ErrNoAPIKey.
type Offline struct{}

func (Offline) GenerateAnswer(ctx context.Context, question, contextBlock string) (string, error) {
	return "", ErrNoAPIKey
}

func (Offline) ParseCV(ctx context.Context, cvText string) (*models.Candidate, error) {
	return HeuristicParse(cvText), nil
}

func (Offline) ExtractFilters(ctx context.Context, question string) (map[string]any, error) {
	return nil, ErrNoAPIKey
}
