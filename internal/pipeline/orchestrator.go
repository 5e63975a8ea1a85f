package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"hindsight/internal/config"
	"hindsight/internal/logging"
	"hindsight/internal/rules"
)

// Orchestrator drives the post-ingestion stages in a fixed order. Every
// stage runs inside a boundary that recovers panics and records the error;
// one stage failing never stops the ones after it.
type Orchestrator struct {
	scorer      *Scorer
	insights    *InsightExtractor
	reflections *ReflectionGenerator
	skills      *SkillGenerator
	reinforcer  *Reinforcer
	rules       *rules.Manager
	root        string
}

// StageResult records one stage's outcome for the dashboard and summary.
type StageResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"` // "ok" or "failed"
	Detail     string `json:"detail,omitempty"`
	DurationMS int64  `json:"durationMs"`
}

// RunReport is one orchestrator run, serialized as dashboard-data.json.
type RunReport struct {
	RunID       string         `json:"runId"`
	GeneratedAt string         `json:"generatedAt"`
	Stages      []StageResult  `json:"stages"`
	Counters    map[string]int `json:"counters"`
}

// NewOrchestrator wires the stage set.
func NewOrchestrator(scorer *Scorer, insights *InsightExtractor, reflections *ReflectionGenerator, skillGen *SkillGenerator, reinforcer *Reinforcer, mgr *rules.Manager, root string) *Orchestrator {
	return &Orchestrator{
		scorer:      scorer,
		insights:    insights,
		reflections: reflections,
		skills:      skillGen,
		reinforcer:  reinforcer,
		rules:       mgr,
		root:        root,
	}
}

// Run executes score, insights, reflections, skills, reinforce, prune,
// sync and dashboard in order and returns the collected report.
func (o *Orchestrator) Run(ctx context.Context) *RunReport {
	report := &RunReport{
		RunID:       uuid.New().String(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Counters:    make(map[string]int),
	}
	logging.Pipeline("Run %s starting", report.RunID)

	o.runStage(ctx, report, "score", func(ctx context.Context) (string, error) {
		sum, err := o.scorer.Run(ctx, ScoreOptions{})
		total := sum.Heuristic + sum.LLMScored + sum.Defaulted
		report.Counters["chunksScored"] = total
		return fmt.Sprintf("%d chunks scored (%d heuristic)", total, sum.Heuristic), err
	})

	o.runStage(ctx, report, "insights", func(ctx context.Context) (string, error) {
		sum, err := o.insights.Run(ctx)
		report.Counters["insightCandidates"] = sum.Candidates
		report.Counters["insightRulesAdded"] = sum.Added
		return fmt.Sprintf("%d candidates from %d pairs, %d applied", sum.Candidates, sum.Pairs, sum.Added), err
	})

	o.runStage(ctx, report, "reflections", func(ctx context.Context) (string, error) {
		sum, err := o.reflections.Run(ctx, "")
		report.Counters["reflections"] = sum.Reflections
		return fmt.Sprintf("%d reflections from %d sessions", sum.Reflections, sum.Examined), err
	})

	o.runStage(ctx, report, "skills", func(ctx context.Context) (string, error) {
		sum, err := o.skills.Run(ctx, "")
		report.Counters["skillsPromoted"] = sum.Promoted
		report.Counters["skillCandidates"] = sum.Candidates
		return fmt.Sprintf("%d promoted, %d candidates", sum.Promoted, sum.Candidates), err
	})

	o.runStage(ctx, report, "reinforce", func(ctx context.Context) (string, error) {
		sum, err := o.reinforcer.Run(ctx)
		report.Counters["rulesReinforced"] = sum.Reinforced
		return fmt.Sprintf("%d of %d rules reinforced", sum.Reinforced, sum.Scanned), err
	})

	o.runStage(ctx, report, "prune", func(ctx context.Context) (string, error) {
		pruned, err := o.rules.PruneStale(ctx, false)
		report.Counters["rulesPruned"] = len(pruned)
		return fmt.Sprintf("%d rules retired", len(pruned)), err
	})

	o.runStage(ctx, report, "sync", func(ctx context.Context) (string, error) {
		upserted, removed, err := o.rules.SyncRulesToQdrant(ctx)
		report.Counters["rulesSynced"] = upserted
		return fmt.Sprintf("%d upserted, %d removed", upserted, removed), err
	})

	o.runStage(ctx, report, "dashboard", func(ctx context.Context) (string, error) {
		if err := o.WriteDashboard(report); err != nil {
			return "", err
		}
		return "dashboard-data.json written", nil
	})

	logging.Pipeline("Run %s finished: %d/%d stages ok",
		report.RunID, report.okCount(), len(report.Stages))
	return report
}

type stageFn func(context.Context) (string, error)

// runStage executes one stage inside the failure boundary.
func (o *Orchestrator) runStage(ctx context.Context, report *RunReport, name string, fn stageFn) {
	start := time.Now()

	detail, err := func() (detail string, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn(ctx)
	}()

	result := StageResult{
		Name:       name,
		Status:     "ok",
		Detail:     detail,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Status = "failed"
		result.Detail = err.Error()
		logging.Pipeline("Stage %s failed after %dms: %v", name, result.DurationMS, err)
		logging.Audit().StageEvent(name, result.DurationMS, false, err.Error())
	} else {
		logging.PipelineDebug("Stage %s ok in %dms: %s", name, result.DurationMS, detail)
		logging.Audit().StageEvent(name, result.DurationMS, true, "")
	}
	report.Stages = append(report.Stages, result)
}

// WriteDashboard serializes the report as it stands. Called as the final
// stage, so the file carries every earlier stage's result.
func (o *Orchestrator) WriteDashboard(report *RunReport) error {
	path := config.DashboardPath(o.root)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating visualizations dir: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding dashboard data: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing dashboard data: %w", err)
	}
	return nil
}

// Summary renders the run as a terminal table.
func (r *RunReport) Summary() string {
	table := NewTable("Stage", "Status", "Detail", "Duration")
	for _, s := range r.Stages {
		table.AddRow(s.Name, s.Status, s.Detail, fmt.Sprintf("%dms", s.DurationMS))
	}
	return table.Render()
}

func (r *RunReport) okCount() int {
	n := 0
	for _, s := range r.Stages {
		if s.Status == "ok" {
			n++
		}
	}
	return n
}
