package skills

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"hindsight/internal/logging"
)

// Candidate statuses. Rejected candidates keep their file for audit;
// approved ones are promoted and the file removed.
const (
	CandidateProposed = "proposed"
	CandidateApproved = "approved"
	CandidateRejected = "rejected"
)

// Candidate is a generated skill awaiting review, persisted as
// skill-candidates/<name>.json with the full SKILL.md text embedded.
type Candidate struct {
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Status          string  `json:"status"`
	NoveltyScore    float64 `json:"noveltyScore"`
	QualityScore    float64 `json:"qualityScore"`
	SourceSessionID string  `json:"sourceSessionId"`
	Document        string  `json:"document"`
	CreatedAt       string  `json:"createdAt"`
}

// SaveCandidate writes (or overwrites) the candidate file, filling in
// status and timestamp when absent.
func SaveCandidate(dir string, c Candidate) (string, error) {
	if c.Name == "" {
		return "", fmt.Errorf("candidate has no name")
	}
	if c.Status == "" {
		c.Status = CandidateProposed
	}
	if c.CreatedAt == "" {
		c.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating candidates dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding candidate %s: %w", c.Name, err)
	}
	path := filepath.Join(dir, c.Name+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing candidate %s: %w", c.Name, err)
	}
	return path, nil
}

// LoadCandidate reads one candidate by name.
func LoadCandidate(dir, name string) (Candidate, error) {
	var c Candidate
	data, err := os.ReadFile(filepath.Join(dir, NormalizeName(name)+".json"))
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parsing candidate %s: %w", name, err)
	}
	return c, nil
}

// LoadCandidates reads every candidate in the directory, sorted by name.
// Unreadable files are skipped with a warning; one bad file must not hide
// the rest from review.
func LoadCandidates(dir string) ([]Candidate, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		c, err := LoadCandidate(dir, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			logging.SkillWarn("Skipping unreadable candidate %s: %v", entry.Name(), err)
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// RemoveCandidate deletes a candidate file after promotion.
func RemoveCandidate(dir, name string) error {
	return os.Remove(filepath.Join(dir, NormalizeName(name)+".json"))
}
