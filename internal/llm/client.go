// Package llm provides an OpenAI chat-completions client used for answer
// generation, CV parsing, and query filter extraction.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/recall/internal/config"
	"github.com/hireloop/recall/internal/models"
)

// Generator produces a free-text answer from a question and retrieved context.
type Generator interface {
	GenerateAnswer(ctx context.Context, question, contextBlock string) (string, error)
}

// Parser turns raw CV text into a structured candidate.
type Parser interface {
	ParseCV(ctx context.Context, cvText string) (*models.Candidate, error)
}

// FilterExtractor pulls structured filters out of a natural-language question.
type FilterExtractor interface {
	ExtractFilters(ctx context.Context, question string) (map[string]any, error)
}

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
// It implements Generator, Parser, and FilterExtractor.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
	client     *http.Client
	logger     *zap.Logger
}

// Option configures an OpenAIClient.
type Option func(*OpenAIClient)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *OpenAIClient) {
		c.logger = logger
	}
}

// NewOpenAIClient creates a chat client from config. apiKey must be non-empty.
func NewOpenAIClient(cfg config.LLMConfig, apiKey string, opts ...Option) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm client requires an API key")
	}
	c := &OpenAIClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     apiKey,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type toolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Tools       []chatTool    `json:"tools,omitempty"`
	ToolChoice  any           `json:"tool_choice,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// chat sends the request, retrying transient failures (429 and 5xx) with a
// short backoff.
func (c *OpenAIClient) chat(ctx context.Context, req chatRequest) (*chatResponse, error) {
	req.Model = c.model
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		resp, retryable, err := c.doOnce(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		c.logger.Warn("chat request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, fmt.Errorf("chat request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *OpenAIClient) doOnce(ctx context.Context, body []byte) (*chatResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read chat response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, false, fmt.Errorf("failed to parse chat response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, statusError(resp.StatusCode, &parsed)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, statusError(resp.StatusCode, &parsed)
	}
	if len(parsed.Choices) == 0 {
		return nil, false, fmt.Errorf("chat response has no choices")
	}
	return &parsed, false, nil
}

func statusError(status int, resp *chatResponse) error {
	if resp.Error != nil && resp.Error.Message != "" {
		return fmt.Errorf("chat api error (status %d): %s", status, resp.Error.Message)
	}
	return fmt.Errorf("chat api error: status %d", status)
}

const answerSystemPrompt = "You are a thorough CV analysis assistant. Answer questions based on the provided CV data. Be comprehensive and include all relevant details from the context provided."

const answerPromptTemplate = `Based on the following CV context, answer the user's question comprehensively.
You have been provided with the most relevant sections from the CV.
- Answer as completely as possible using all the provided context
- If the question asks for a list, provide the complete list from the context
- Reference specific details like dates, companies, technologies mentioned
- If certain information isn't in the context, clearly state that
- Be thorough and don't omit relevant details

CONTEXT:
%s

QUESTION:
%s

ANSWER:`

// GenerateAnswer produces an answer to question grounded in contextBlock.
func (c *OpenAIClient) GenerateAnswer(ctx context.Context, question, contextBlock string) (string, error) {
	resp, err := c.chat(ctx, chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: answerSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(answerPromptTemplate, contextBlock, question)},
		},
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
