package llm

import (
	"strings"
	"testing"
)

const sampleCV = `Jane Smith
Senior Backend Engineer
jane.smith@example.com | +1 415-555-0134

Professional Summary
Backend engineer with nine years of experience
building distributed systems in Go and Python.

Skills
Go, Python, PostgreSQL
Kubernetes; Terraform

Experience
Acme Corp - Senior Engineer

Interests
Trail running, chess, photography
`

func TestHeuristicParse_name(t *testing.T) {
	c := HeuristicParse(sampleCV)
	if c.Name != "Jane Smith" {
		t.Errorf("name = %q, want Jane Smith", c.Name)
	}
}

func TestHeuristicParse_contact(t *testing.T) {
	c := HeuristicParse(sampleCV)
	if c.Email != "jane.smith@example.com" {
		t.Errorf("email = %q", c.Email)
	}
	if !strings.Contains(c.Phone, "415") {
		t.Errorf("phone = %q", c.Phone)
	}
}

func TestHeuristicParse_summary(t *testing.T) {
	c := HeuristicParse(sampleCV)
	if !strings.Contains(c.Summary, "distributed systems") {
		t.Errorf("summary = %q", c.Summary)
	}
}

func TestHeuristicParse_skills(t *testing.T) {
	c := HeuristicParse(sampleCV)
	want := []string{"Go", "Python", "PostgreSQL", "Kubernetes", "Terraform"}
	if len(c.Skills) != len(want) {
		t.Fatalf("skills = %v, want %v", c.Skills, want)
	}
	for i, s := range want {
		if c.Skills[i] != s {
			t.Errorf("skills[%d] = %q, want %q", i, c.Skills[i], s)
		}
	}
}

func TestHeuristicParse_skillsStopAtNextSection(t *testing.T) {
	c := HeuristicParse(sampleCV)
	for _, s := range c.Skills {
		if strings.Contains(s, "Acme") {
			t.Errorf("experience content leaked into skills: %q", s)
		}
	}
}

func TestHeuristicParse_interests(t *testing.T) {
	c := HeuristicParse(sampleCV)
	if len(c.Interests) != 3 {
		t.Fatalf("interests = %v, want 3 entries", c.Interests)
	}
	if c.Interests[0] != "Trail running" {
		t.Errorf("interests[0] = %q", c.Interests[0])
	}
}

func TestHeuristicParse_emptyText(t *testing.T) {
	c := HeuristicParse("")
	if c.Name != "Unknown" {
		t.Errorf("name = %q, want Unknown", c.Name)
	}
	if c.Email != "" || c.Phone != "" {
		t.Errorf("expected empty contact info, got %q / %q", c.Email, c.Phone)
	}
	if c.Experience == nil || c.Education == nil {
		t.Error("structured sections should be empty slices, not nil")
	}
}
