package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"hindsight/internal/logging"
)

// IOError is a registry read or write failure. Writes are atomic, so the
// last good registry file survives any failed save.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("rule registry %s failed (%s): %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Registry is the durable rule store: one JSON array in rules.json. It is
// the source of truth; the vector collection is a search-time mirror.
// Single-process use only, mutate then Save.
type Registry struct {
	path  string
	rules []Rule
}

// LoadRegistry reads the registry file. A missing file is an empty
// registry; a malformed one is an *IOError so a corrupt registry is never
// silently replaced.
func LoadRegistry(path string) (*Registry, error) {
	reg := &Registry{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return reg, nil
	}
	if err != nil {
		return nil, &IOError{Path: path, Op: "read", Err: err}
	}
	if err := json.Unmarshal(data, &reg.rules); err != nil {
		return nil, &IOError{Path: path, Op: "parse", Err: err}
	}

	logging.RulesDebug("Loaded %d rules from %s", len(reg.rules), path)
	return reg, nil
}

// Path returns the registry file location.
func (r *Registry) Path() string { return r.path }

// Save writes the registry atomically: temp file in the same directory,
// then rename over the target.
func (r *Registry) Save() error {
	data, err := json.MarshalIndent(r.rules, "", "  ")
	if err != nil {
		return &IOError{Path: r.path, Op: "encode", Err: err}
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &IOError{Path: r.path, Op: "write", Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".rules-*.json")
	if err != nil {
		return &IOError{Path: r.path, Op: "write", Err: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IOError{Path: r.path, Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &IOError{Path: r.path, Op: "write", Err: err}
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return &IOError{Path: r.path, Op: "rename", Err: err}
	}
	return nil
}

// All returns a copy of every rule, any status.
func (r *Registry) All() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Active returns the active rules.
func (r *Registry) Active() []Rule {
	return r.withStatus(StatusActive)
}

// Proposed returns the rules awaiting confirmation.
func (r *Registry) Proposed() []Rule {
	return r.withStatus(StatusProposed)
}

// Retired returns the rules kept only for audit.
func (r *Registry) Retired() []Rule {
	return r.withStatus(StatusRetired)
}

func (r *Registry) withStatus(status string) []Rule {
	var out []Rule
	for _, rule := range r.rules {
		if rule.Status == status {
			out = append(out, rule)
		}
	}
	return out
}

// Get returns the rule with the given ID.
func (r *Registry) Get(id string) (Rule, bool) {
	for _, rule := range r.rules {
		if rule.ID == id {
			return rule, true
		}
	}
	return Rule{}, false
}

// HasID reports whether an ID is taken, for NewID re-rolls.
func (r *Registry) HasID(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Append adds a new rule. The caller Saves when the mutation batch is
// complete.
func (r *Registry) Append(rule Rule) {
	r.rules = append(r.rules, rule)
}

// Update replaces the rule with the same ID. Retired is terminal; an
// update that would resurrect a retired rule is refused.
func (r *Registry) Update(rule Rule) error {
	for i := range r.rules {
		if r.rules[i].ID != rule.ID {
			continue
		}
		if r.rules[i].Status == StatusRetired && rule.Status != StatusRetired {
			return fmt.Errorf("rule %s is retired; retired rules cannot change status", rule.ID)
		}
		r.rules[i] = rule
		return nil
	}
	return fmt.Errorf("rule %s not found", rule.ID)
}

// Retire marks a rule retired, keeping its registry row for history.
func (r *Registry) Retire(id string) error {
	for i := range r.rules {
		if r.rules[i].ID == id {
			r.rules[i].Status = StatusRetired
			return nil
		}
	}
	return fmt.Errorf("rule %s not found", id)
}

// LeastReinforcedActive returns the active rule with the smallest
// reinforcement count, for cap enforcement.
func (r *Registry) LeastReinforcedActive() (Rule, bool) {
	var least Rule
	found := false
	for _, rule := range r.rules {
		if rule.Status != StatusActive {
			continue
		}
		if !found || rule.ReinforcementCount < least.ReinforcementCount {
			least = rule
			found = true
		}
	}
	return least, found
}

// CountByStatus returns per-status totals for stats output.
func (r *Registry) CountByStatus() map[string]int {
	counts := make(map[string]int)
	for _, rule := range r.rules {
		counts[rule.Status]++
	}
	return counts
}
