// Package ingest turns CV files into stored candidates and indexed chunks.
package ingest

import (
	"fmt"
	"strings"

	"github.com/hireloop/recall/internal/models"
)

// BuildChunks flattens a candidate into retrievable text chunks. Summary,
// skills, and interests each yield one chunk; experience, project, education,
// and certification entries yield one chunk per entry, with the entry index
// in the section name.
func BuildChunks(c *models.Candidate) []models.Chunk {
	var chunks []models.Chunk

	if c.Summary != "" {
		chunks = append(chunks, models.Chunk{
			Type:    models.ChunkSummary,
			Section: "professional_summary",
			Text:    c.Summary,
		})
	}

	for idx, exp := range c.Experience {
		chunks = append(chunks, models.Chunk{
			Type:    models.ChunkExperience,
			Section: fmt.Sprintf("experience_%d", idx),
			Text:    fmt.Sprintf("%s at %s. %s", exp.Title, exp.Company, exp.Description),
		})
	}

	for idx, proj := range c.Projects {
		chunks = append(chunks, models.Chunk{
			Type:    models.ChunkProject,
			Section: fmt.Sprintf("project_%d", idx),
			Text:    fmt.Sprintf("%s. %s. Technologies: %s", proj.Name, proj.Description, strings.Join(proj.Technologies, ", ")),
		})
	}

	if len(c.Skills) > 0 {
		chunks = append(chunks, models.Chunk{
			Type:    models.ChunkSkills,
			Section: "skills",
			Text:    "Skills: " + strings.Join(c.Skills, ", "),
		})
	}

	for idx, edu := range c.Education {
		chunks = append(chunks, models.Chunk{
			Type:    models.ChunkEducation,
			Section: fmt.Sprintf("education_%d", idx),
			Text:    fmt.Sprintf("%s from %s (%s). %s", edu.Degree, edu.Institution, edu.Year, edu.Details),
		})
	}

	for idx, cert := range c.Certifications {
		chunks = append(chunks, models.Chunk{
			Type:    models.ChunkCertification,
			Section: fmt.Sprintf("certification_%d", idx),
			Text:    fmt.Sprintf("%s from %s (%s)", cert.Name, cert.Issuer, cert.Year),
		})
	}

	if len(c.Interests) > 0 {
		chunks = append(chunks, models.Chunk{
			Type:    models.ChunkInterests,
			Section: "interests_hobbies",
			Text:    "Interests and Hobbies: " + strings.Join(c.Interests, ", "),
		})
	}

	return chunks
}
