// Package cli provides output formatting for the Recall command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/hireloop/recall/internal/models"
	"github.com/hireloop/recall/pkg/utils"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "text", "":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes a question answer to w in the given format.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, answer)
	}
	fmt.Fprintf(w, "\n%s\n", answer.Answer)
	fmt.Fprintf(w, "\nConfidence: %s\n", answer.Confidence)
	if len(answer.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, src := range answer.Sources {
			fmt.Fprintf(w, "  • %s - %s (%s), relevance %.2f\n",
				src.CandidateName, src.ChunkType, src.Section, src.Relevance)
		}
	}
	return nil
}

// WriteSearchResults writes semantic search hits to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results for %q\n\n", response.Total, response.Query)
	for i, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Distance: %.4f | Relevance: %.4f\n",
			i+1, result.Distance, result.Relevance)
		fmt.Fprintf(w, "Candidate: %s (%s)\n", result.CandidateName, result.CandidateID)
		fmt.Fprintf(w, "Section: %s [%s]\n", result.Section, result.ChunkType)
		if result.Text != "" {
			fmt.Fprintf(w, "\n%s\n", utils.Truncate(result.Text, 200))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteCandidates writes a candidate listing to w in the given format.
func WriteCandidates(w io.Writer, candidates []models.CandidateSummary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, candidates)
	}
	fmt.Fprintf(w, "\n%d candidate(s)\n\n", len(candidates))
	for _, c := range candidates {
		line := fmt.Sprintf("%s  %s", c.ID, c.Name)
		if c.Email != "" {
			line += "  <" + c.Email + ">"
		}
		if c.FileName != "" {
			line += "  (" + c.FileName + ")"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

// WriteStatus writes a status map to w in the given format. Text output is
// one key per line, nested maps indented under their key.
func WriteStatus(w io.Writer, status map[string]interface{}, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	writeStatusMap(w, status, "")
	return nil
}

func writeStatusMap(w io.Writer, m map[string]interface{}, indent string) {
	keys := sortedKeys(m)
	for _, k := range keys {
		switch v := m[k].(type) {
		case map[string]interface{}:
			fmt.Fprintf(w, "%s%s:\n", indent, k)
			writeStatusMap(w, v, indent+"  ")
		default:
			fmt.Fprintf(w, "%s%s: %v\n", indent, k, v)
		}
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
