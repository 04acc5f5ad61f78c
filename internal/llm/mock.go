package llm

import (
	"context"

	"github.com/hireloop/recall/internal/models"
)

// MockClient is a canned-response client for tests. Unset fields fall back
// to fixed defaults; set Err to force every call to fail.
type MockClient struct {
	Answer    string
	Candidate *models.Candidate
	Filters   map[string]any
	Err       error
}

// GenerateAnswer returns the canned answer.
func (m *MockClient) GenerateAnswer(ctx context.Context, question, contextBlock string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if m.Answer != "" {
		return m.Answer, nil
	}
	return "mock answer", nil
}

// ParseCV returns the canned candidate, or the heuristic parse of cvText.
func (m *MockClient) ParseCV(ctx context.Context, cvText string) (*models.Candidate, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Candidate != nil {
		return m.Candidate, nil
	}
	return HeuristicParse(cvText), nil
}

// ExtractFilters returns the canned filters.
func (m *MockClient) ExtractFilters(ctx context.Context, question string) (map[string]any, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Filters != nil {
		return m.Filters, nil
	}
	return map[string]any{}, nil
}
