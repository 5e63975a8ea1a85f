package config

import (
	"os"
	"path/filepath"
)

// MarkerDir is the per-workspace state directory. Its presence marks the
// workspace root, and all derived artifacts live under it.
const MarkerDir = ".hindsight"

// FindWorkspaceRoot walks up from the current directory looking for the
// workspace marker directory. The WORKSPACE_ROOT environment variable
// overrides discovery entirely. Falls back to the current directory when
// no marker is found, so fresh workspaces work without setup.
func FindWorkspaceRoot() (string, error) {
	if root := os.Getenv("WORKSPACE_ROOT"); root != "" {
		return root, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		if info, err := os.Stat(filepath.Join(dir, MarkerDir)); err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Hit filesystem root without finding a marker.
			return cwd, nil
		}
		dir = parent
	}
}

// DefaultUserConfigPath returns the workspace config.json location.
func DefaultUserConfigPath() string {
	root, err := FindWorkspaceRoot()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(root, "config.json")
}

// SessionsDir returns the directory session transcripts are read from.
func SessionsDir(root string) string {
	return filepath.Join(root, MarkerDir, "logs", "sessions")
}

// LogsDir returns the directory pipeline log files are written to.
func LogsDir(root string) string {
	return filepath.Join(root, MarkerDir, "logs")
}

// RulesPath returns the rule registry location.
func RulesPath(root string) string {
	return filepath.Join(root, "rules.json")
}

// RulesMirrorPath returns the agent-facing markdown mirror of active rules.
func RulesMirrorPath(root string) string {
	return filepath.Join(root, "AGENTS.md")
}

// ReflectionLedgerPath returns the reflection-stage processed-session ledger.
func ReflectionLedgerPath(root string) string {
	return filepath.Join(root, "reflection-state.json")
}

// SkillLedgerPath returns the skill-stage processed-session ledger.
func SkillLedgerPath(root string) string {
	return filepath.Join(root, "skill-state.json")
}

// SkillCandidatesDir returns the pending skill candidates directory.
func SkillCandidatesDir(root string) string {
	return filepath.Join(root, "skill-candidates")
}

// SkillsDir returns the promoted skills directory.
func SkillsDir(root string) string {
	return filepath.Join(root, "skills")
}

// StagedChangesDir returns the directory holding staged rule changes
// awaiting confirmation in propose-and-confirm mode.
func StagedChangesDir(root string) string {
	return filepath.Join(root, MarkerDir, "staged-changes")
}

// DashboardPath returns the aggregated dashboard snapshot location.
func DashboardPath(root string) string {
	return filepath.Join(root, "visualizations", "dashboard-data.json")
}

// EnsureWorkspaceMarker creates the marker directory so later runs resolve
// this root without WORKSPACE_ROOT set.
func EnsureWorkspaceMarker(root string) error {
	return os.MkdirAll(filepath.Join(root, MarkerDir), 0755)
}
