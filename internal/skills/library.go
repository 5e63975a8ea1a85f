package skills

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"hindsight/internal/config"
	"hindsight/internal/logging"
	"hindsight/internal/vcs"
)

// DefaultMaxOverlap is the shared-vocabulary fraction above which two
// skill descriptions are treated as the same skill.
const DefaultMaxOverlap = 0.6

// Library manages the workspace skill tree. Promoted skills live under
// skills/<name>/SKILL.md; pending candidates under skill-candidates/.
type Library struct {
	root      string
	committer *vcs.Committer

	// MaxOverlap is the description word-set overlap above which Validate
	// rejects a document as a duplicate.
	MaxOverlap float64
}

// NewLibrary binds a library to a workspace root.
func NewLibrary(ctx context.Context, workspaceRoot string) *Library {
	return &Library{
		root:       workspaceRoot,
		committer:  vcs.NewCommitter(ctx, workspaceRoot, logging.CategorySkill),
		MaxOverlap: DefaultMaxOverlap,
	}
}

// Dir is the promoted skill directory.
func (l *Library) Dir() string { return config.SkillsDir(l.root) }

// CandidatesDir is the pending candidate directory.
func (l *Library) CandidatesDir() string { return config.SkillCandidatesDir(l.root) }

// PromotedSkill is a skill already installed in the workspace tree.
type PromotedSkill struct {
	Name        string
	Description string
	Path        string
}

// Promoted lists every installed skill, sorted by name. Only the front
// matter is parsed: hand-written skills with loose bodies still count for
// uniqueness checks. Directories without a readable SKILL.md are skipped.
func (l *Library) Promoted() ([]PromotedSkill, error) {
	entries, err := os.ReadDir(l.Dir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading skills dir: %w", err)
	}

	var out []PromotedSkill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(l.Dir(), entry.Name(), "SKILL.md")
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		metaText, _, ok := splitFrontMatter(strings.ReplaceAll(string(data), "\r\n", "\n"))
		if !ok {
			logging.SkillWarn("Skill %s has no front matter, ignoring it", entry.Name())
			continue
		}
		var meta frontMatter
		if err := yaml.Unmarshal([]byte(metaText), &meta); err != nil {
			logging.SkillWarn("Skill %s has unreadable front matter: %v", entry.Name(), err)
			continue
		}

		name := NormalizeName(meta.Name)
		if name == "" {
			name = NormalizeName(entry.Name())
		}
		out = append(out, PromotedSkill{
			Name:        name,
			Description: strings.TrimSpace(meta.Description),
			Path:        path,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Validate rejects a document that collides with an installed skill, by
// name or by a near-identical description.
func (l *Library) Validate(doc *Document) error {
	installed, err := l.Promoted()
	if err != nil {
		return err
	}
	for _, s := range installed {
		if s.Name == doc.Name {
			return fmt.Errorf("skill %q already exists", doc.Name)
		}
		if overlap := descriptionOverlap(s.Description, doc.Description); overlap >= l.MaxOverlap {
			return fmt.Errorf("skill %q duplicates %q (%.0f%% shared description)",
				doc.Name, s.Name, overlap*100)
		}
	}
	return nil
}

// Promote installs a document into the skill tree and commits it. The
// write is atomic so a crash never leaves a half-written SKILL.md behind.
func (l *Library) Promote(ctx context.Context, doc *Document) (string, error) {
	if err := l.Validate(doc); err != nil {
		return "", err
	}

	dir := filepath.Join(l.Dir(), doc.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating skill dir %s: %w", doc.Name, err)
	}

	path := filepath.Join(dir, "SKILL.md")
	tmp, err := os.CreateTemp(dir, ".skill-*.md")
	if err != nil {
		return "", fmt.Errorf("writing skill %s: %w", doc.Name, err)
	}
	if _, err := tmp.WriteString(doc.Render()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing skill %s: %w", doc.Name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing skill %s: %w", doc.Name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing skill %s: %w", doc.Name, err)
	}

	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		rel = path
	}
	l.committer.Commit(ctx, "feat(skills)", "promote "+doc.Name, rel)

	logging.Skill("Promoted skill %s", doc.Name)
	logging.Audit().CandidateEvent(logging.AuditSkillPromoted, doc.Name, "")
	return path, nil
}

// Candidates lists the pending candidate records.
func (l *Library) Candidates() ([]Candidate, error) {
	return LoadCandidates(l.CandidatesDir())
}

// Approve promotes a stored candidate and removes its pending record.
func (l *Library) Approve(ctx context.Context, name string) (string, error) {
	cand, err := LoadCandidate(l.CandidatesDir(), name)
	if err != nil {
		return "", fmt.Errorf("loading candidate %s: %w", name, err)
	}
	doc, err := ParseDocument(cand.Document)
	if err != nil {
		return "", fmt.Errorf("candidate %s no longer parses: %w", cand.Name, err)
	}

	path, err := l.Promote(ctx, doc)
	if err != nil {
		return "", err
	}
	if err := RemoveCandidate(l.CandidatesDir(), cand.Name); err != nil {
		logging.SkillWarn("Promoted %s but could not remove its candidate record: %v", cand.Name, err)
	}
	logging.Audit().CandidateEvent(logging.AuditCandidateApproved, cand.Name, cand.SourceSessionID)
	return path, nil
}

// Reject marks a candidate rejected. The record stays on disk so the
// decision is auditable.
func (l *Library) Reject(name string) error {
	cand, err := LoadCandidate(l.CandidatesDir(), name)
	if err != nil {
		return fmt.Errorf("loading candidate %s: %w", name, err)
	}
	if cand.Status == CandidateRejected {
		return nil
	}
	cand.Status = CandidateRejected
	if _, err := SaveCandidate(l.CandidatesDir(), cand); err != nil {
		return err
	}
	logging.Audit().CandidateEvent(logging.AuditCandidateRejected, cand.Name, cand.SourceSessionID)
	return nil
}

// descriptionOverlap measures shared vocabulary between two descriptions
// as |intersection| / min(|a|, |b|) over lowercased word sets.
func descriptionOverlap(a, b string) float64 {
	setA, setB := wordSet(a), wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	shared := 0
	for w := range setA {
		if setB[w] {
			shared++
		}
	}
	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	return float64(shared) / float64(smaller)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if w != "" {
			set[w] = true
		}
	}
	return set
}
