package llm

import (
	"context"
	"encoding/json"
	"regexp"

	"go.uber.org/zap"
)

const filterSystemPrompt = `Extract structured filters from user questions about CVs.
Return JSON with: candidate_name, required_skills, min_experience_years, company.
Only include fields that are explicitly mentioned. Use null for missing fields.`

// jsonBlock grabs the outermost brace-delimited block from a model reply that
// may wrap the JSON in prose or code fences.
var jsonBlock = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractFilters pulls structured filters (candidate_name, required_skills,
// min_experience_years, company) from a natural-language question. Null
// fields are dropped. A reply with no parseable JSON yields an empty map,
// not an error.
func (c *OpenAIClient) ExtractFilters(ctx context.Context, question string) (map[string]any, error) {
	resp, err := c.chat(ctx, chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: filterSystemPrompt},
			{Role: "user", Content: "Extract filters from this question: " + question},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}

	raw := jsonBlock.FindString(resp.Choices[0].Message.Content)
	if raw == "" {
		c.logger.Debug("no JSON in filter reply", zap.String("question", question))
		return map[string]any{}, nil
	}

	var filters map[string]any
	if err := json.Unmarshal([]byte(raw), &filters); err != nil {
		c.logger.Debug("unparseable filter JSON", zap.Error(err))
		return map[string]any{}, nil
	}
	for k, v := range filters {
		if v == nil {
			delete(filters, k)
		}
	}
	return filters, nil
}
