package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/hireloop/recall/internal/models"
)

const parseSystemPrompt = `You are a CV parsing expert. Extract ALL information from CVs and return structured JSON.
Be thorough and extract everything mentioned in the CV:
- Extract ALL work experience entries
- Extract ALL projects mentioned
- Extract ALL education entries
- Extract ALL certifications and credentials
- Extract ALL skills listed
- Do not omit or summarize any information
- If information is not present, use empty arrays or null values appropriately`

// cvSchema is the function-calling schema the model fills when parsing a CV.
// Field names line up with the JSON tags on models.Candidate.
var cvSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "name": {"type": "string", "description": "Full name of the candidate"},
    "email": {"type": "string", "description": "Email address"},
    "phone": {"type": "string", "description": "Phone number"},
    "summary": {"type": "string", "description": "Professional summary or objective"},
    "skills": {"type": "array", "items": {"type": "string"}, "description": "List of technical and soft skills"},
    "experience": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "company": {"type": "string"},
          "duration": {"type": "string"},
          "description": {"type": "string"}
        }
      },
      "description": "Professional experience entries"
    },
    "education": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "degree": {"type": "string"},
          "institution": {"type": "string"},
          "year": {"type": "string"},
          "details": {"type": "string"}
        }
      },
      "description": "Educational background"
    },
    "projects": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "description": {"type": "string"},
          "technologies": {"type": "array", "items": {"type": "string"}},
          "url": {"type": "string"}
        }
      },
      "description": "Notable projects"
    },
    "certifications": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "issuer": {"type": "string"},
          "year": {"type": "string"}
        }
      },
      "description": "Professional certifications"
    },
    "interests": {"type": "array", "items": {"type": "string"}, "description": "Personal interests and hobbies listed in the CV"}
  },
  "required": ["name", "email", "skills"]
}`)

// ParseCV parses raw CV text into a structured candidate using function
// calling. If the model does not produce a tool call, the heuristic parser
// is used instead.
func (c *OpenAIClient) ParseCV(ctx context.Context, cvText string) (*models.Candidate, error) {
	resp, err := c.chat(ctx, chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: parseSystemPrompt},
			{Role: "user", Content: "Parse this CV completely and extract ALL information:\n\n" + cvText},
		},
		Tools: []chatTool{{
			Type: "function",
			Function: toolFunction{
				Name:        "parse_cv",
				Description: "Parse CV and extract structured information",
				Parameters:  cvSchema,
			},
		}},
		ToolChoice: map[string]any{
			"type":     "function",
			"function": map[string]string{"name": "parse_cv"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse CV: %w", err)
	}

	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		c.logger.Warn("model returned no tool call, using heuristic CV parser")
		return HeuristicParse(cvText), nil
	}

	var candidate models.Candidate
	if err := json.Unmarshal([]byte(calls[0].Function.Arguments), &candidate); err != nil {
		return nil, fmt.Errorf("failed to decode parsed CV: %w", err)
	}
	c.logger.Debug("parsed CV",
		zap.String("name", candidate.Name),
		zap.Int("skills", len(candidate.Skills)),
		zap.Int("experience", len(candidate.Experience)))
	return &candidate, nil
}

var (
	emailRe = regexp.MustCompile(`[\w.\-]+@[\w.\-]+\.\w+`)
	phoneRe = regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
)

// HeuristicParse extracts what it can from CV text without a model: name from
// the first short line, email and phone by regex, and summary, skills, and
// interests by section scanning. Experience, education, projects, and
// certifications need the model and come back empty.
func HeuristicParse(cvText string) *models.Candidate {
	lines := strings.Split(cvText, "\n")
	return &models.Candidate{
		Name:           extractName(lines),
		Email:          emailRe.FindString(cvText),
		Phone:          phoneRe.FindString(cvText),
		Summary:        extractSummary(lines),
		Skills:         extractListSection(lines, []string{"skills"}, []string{"experience", "education", "projects"}, 0),
		Interests:      extractListSection(lines, []string{"interests", "hobbies", "activities"}, []string{"experience", "education", "projects", "skills", "certifications"}, 2),
		Experience:     []models.Experience{},
		Education:      []models.Education{},
		Projects:       []models.Project{},
		Certifications: []models.Certification{},
	}
}

// extractName returns the first non-empty line under 100 characters.
func extractName(lines []string) string {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && len(trimmed) < 100 {
			return trimmed
		}
	}
	return "Unknown"
}

// extractSummary returns up to four non-empty lines following a summary or
// objective header.
func extractSummary(lines []string) string {
	for i, line := range lines {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "summary") && !strings.Contains(lower, "objective") {
			continue
		}
		var parts []string
		for j := i + 1; j < len(lines) && j < i+5; j++ {
			if trimmed := strings.TrimSpace(lines[j]); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

// extractListSection collects delimiter-separated items between a header
// matching one of start and the next header matching one of stop. Items no
// longer than minLen are dropped.
func extractListSection(lines []string, start, stop []string, minLen int) []string {
	items := []string{}
	inSection := false
	for _, line := range lines {
		lower := strings.ToLower(line)
		if !inSection {
			if containsAny(lower, start) {
				inSection = true
			}
			continue
		}
		if containsAny(lower, stop) {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		normalized := strings.NewReplacer(",", "|", ";", "|").Replace(line)
		for _, item := range strings.Split(normalized, "|") {
			if trimmed := strings.TrimSpace(item); trimmed != "" && len(trimmed) > minLen {
				items = append(items, trimmed)
			}
		}
	}
	return items
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
