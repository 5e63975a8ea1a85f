// Package vcs records pipeline mutations in version control. Commits are an
// audit trail, never a source of truth: every operation degrades to a no-op
// outside a git repository and failures are logged, not returned.
package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"hindsight/internal/logging"
)

// Committer writes conventional-commit records for registry and skill
// mutations.
type Committer struct {
	dir     string
	cat     logging.Category
	timeout time.Duration
	enabled bool
}

// NewCommitter probes the workspace once; outside a git repo every Commit
// is a silent no-op. Log lines go to the caller's category.
func NewCommitter(ctx context.Context, dir string, cat logging.Category) *Committer {
	c := &Committer{dir: dir, cat: cat, timeout: 15 * time.Second}

	probe, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	cmd := exec.CommandContext(probe, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	if err := cmd.Run(); err != nil {
		logging.Get(cat).Debug("Skipping git commits (not a repo or git missing): %v", err)
		return c
	}
	c.enabled = true
	return c
}

// Enabled reports whether the workspace is a git repository.
func (c *Committer) Enabled() bool { return c.enabled }

// Commit stages the given paths and commits them with the subject
// "<kind>: <summary>". Returns false when nothing was committed.
func (c *Committer) Commit(ctx context.Context, kind, summary string, paths ...string) bool {
	if !c.enabled || len(paths) == 0 {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	add := exec.CommandContext(ctx, "git", append([]string{"add", "--"}, paths...)...)
	add.Dir = c.dir
	if out, err := add.CombinedOutput(); err != nil {
		logging.Get(c.cat).Warn("git add failed: %v (%s)", err, strings.TrimSpace(string(out)))
		return false
	}

	subject := fmt.Sprintf("%s: %s", kind, summary)
	args := append([]string{"commit", "-m", subject, "--no-verify", "--"}, paths...)
	commit := exec.CommandContext(ctx, "git", args...)
	commit.Dir = c.dir

	if out, err := commit.CombinedOutput(); err != nil {
		msg := strings.TrimSpace(string(out))
		// "nothing to commit" is routine when a mutation was a no-op.
		if strings.Contains(msg, "nothing to commit") || strings.Contains(msg, "nothing added") {
			return false
		}
		logging.Get(c.cat).Warn("git commit failed: %v (%s)", err, msg)
		return false
	}

	logging.Get(c.cat).Debug("Committed: %s", subject)
	return true
}
