package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hindsight/internal/config"
	"hindsight/internal/embedding"
	"hindsight/internal/llm"
	"hindsight/internal/logging"
	"hindsight/internal/qdrant"
	"hindsight/internal/session"
	"hindsight/internal/skills"
)

// SkillGenerator distills high-quality, novel sessions into SKILL.md
// documents. Autonomous mode promotes straight into the skill tree;
// otherwise a candidate file awaits review. The ledger keeps each session
// to one consideration.
type SkillGenerator struct {
	store    *qdrant.Store
	embedder embedding.EmbeddingEngine
	llm      llm.Client
	library  *skills.Library
	ledger   *Ledger
	dir      string
	minMsg   int
	cfg      config.SkillsConfig

	successMin       int
	noveltyThreshold float64
	autonomous       bool
}

// SkillSummary is one proposal pass's outcome.
type SkillSummary struct {
	Examined       int
	Promoted       int
	Candidates     int
	SkippedQuality int
	SkippedNovelty int
}

// NewSkillGenerator wires a generator. successMin and noveltyThreshold come
// from the quality/novelty configuration; autonomous from the approval mode.
func NewSkillGenerator(store *qdrant.Store, embedder embedding.EmbeddingEngine, client llm.Client, library *skills.Library, ledger *Ledger, dir string, minMsg int, cfg config.SkillsConfig, successMin int, noveltyThreshold float64, autonomous bool) *SkillGenerator {
	library.MaxOverlap = cfg.MaxDescriptionOverlap
	return &SkillGenerator{
		store:            store,
		embedder:         embedder,
		llm:              client,
		library:          library,
		ledger:           ledger,
		dir:              dir,
		minMsg:           minMsg,
		cfg:              cfg,
		successMin:       successMin,
		noveltyThreshold: noveltyThreshold,
		autonomous:       autonomous,
	}
}

// Run considers every un-processed session (or just onlySession when set).
// Sessions whose chunks are not scored yet are left unmarked so a later
// pass picks them up after scoring; infrastructure failures likewise.
func (g *SkillGenerator) Run(ctx context.Context, onlySession string) (SkillSummary, error) {
	var sum SkillSummary

	timer := logging.StartTimer(logging.CategorySkill, "skill proposal pass")
	defer timer.StopWithInfo()

	entries, err := os.ReadDir(g.dir)
	if os.IsNotExist(err) {
		return sum, nil
	}
	if err != nil {
		return sum, fmt.Errorf("reading sessions dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}

		sessionID := session.IDFromPath(entry.Name())
		if onlySession != "" && sessionID != onlySession {
			continue
		}
		if g.ledger.Done(sessionID) {
			continue
		}
		g.consider(ctx, sessionID, filepath.Join(g.dir, entry.Name()), &sum)
	}

	if err := g.ledger.Save(); err != nil {
		return sum, err
	}
	logging.Skill("Considered %d sessions: %d promoted, %d candidates, skipped %d quality / %d novelty",
		sum.Examined, sum.Promoted, sum.Candidates, sum.SkippedQuality, sum.SkippedNovelty)
	return sum, nil
}

func (g *SkillGenerator) consider(ctx context.Context, sessionID, path string, sum *SkillSummary) {
	data, err := os.ReadFile(path)
	if err != nil {
		logging.Skill("Skipping %s: %v", sessionID, err)
		return
	}
	messages, err := session.ParseTranscript(data, g.minMsg)
	if err != nil || len(messages) == 0 {
		logging.SkillDebug("Session %s has no usable transcript", sessionID)
		return
	}
	if len(messages) > g.cfg.SummaryMessages {
		messages = messages[:g.cfg.SummaryMessages]
	}
	sum.Examined++

	summary, err := g.llm.CompleteWithSystem(ctx, summarySystemPrompt,
		llm.Truncate(session.Flatten(messages), 4000))
	if err != nil {
		logging.Skill("Session %s: summary failed: %v", sessionID, err)
		return
	}
	summary = strings.TrimSpace(summary)

	avg, scored, err := g.averageQuality(ctx, sessionID)
	if err != nil {
		logging.Skill("Session %s: quality lookup failed: %v", sessionID, err)
		return
	}
	if !scored {
		logging.SkillDebug("Session %s not scored yet, deferring", sessionID)
		return
	}
	if avg < float64(g.successMin) {
		logging.SkillDebug("Session %s below quality bar (%.1f < %d)", sessionID, avg, g.successMin)
		sum.SkippedQuality++
		g.markDone(sessionID)
		return
	}

	novelty, err := g.noveltyOf(ctx, sessionID, summary)
	if err != nil {
		logging.Skill("Session %s: novelty probe failed: %v", sessionID, err)
		return
	}
	if novelty < 1-g.noveltyThreshold {
		logging.SkillDebug("Session %s not novel enough (%.2f)", sessionID, novelty)
		sum.SkippedNovelty++
		g.markDone(sessionID)
		return
	}

	draft, err := g.llm.CompleteWithSystem(ctx, skillSystemPrompt, skillUserPrompt(summary, messages))
	if err != nil {
		logging.Skill("Session %s: skill draft failed: %v", sessionID, err)
		return
	}
	doc, err := skills.ParseDocument(strings.TrimSpace(draft))
	if err != nil {
		logging.Skill("Session %s: draft discarded: %v", sessionID, err)
		g.markDone(sessionID)
		return
	}

	if g.autonomous {
		if _, err := g.library.Promote(ctx, doc); err != nil {
			logging.Skill("Session %s: %s not promoted: %v", sessionID, doc.Name, err)
		} else {
			sum.Promoted++
		}
		g.markDone(sessionID)
		return
	}

	cand := skills.Candidate{
		Name:            doc.Name,
		Description:     doc.Description,
		NoveltyScore:    novelty,
		QualityScore:    avg,
		SourceSessionID: sessionID,
		Document:        doc.Render(),
	}
	if _, err := skills.SaveCandidate(g.library.CandidatesDir(), cand); err != nil {
		logging.Skill("Session %s: candidate not saved: %v", sessionID, err)
		return
	}
	sum.Candidates++
	logging.Skill("Proposed skill %s from session %s (quality %.1f, novelty %.2f)",
		doc.Name, sessionID, avg, novelty)
	logging.Audit().CandidateEvent(logging.AuditCandidateCreated, doc.Name, sessionID)
	g.markDone(sessionID)
}

func (g *SkillGenerator) markDone(sessionID string) {
	g.ledger.MarkDone(sessionID)
}

// averageQuality is the mean score over the session's scored chunks.
// scored is false while no chunk has a score yet.
func (g *SkillGenerator) averageQuality(ctx context.Context, sessionID string) (avg float64, scored bool, err error) {
	chunks, err := g.store.ChunksOf(ctx, sessionID)
	if err != nil {
		return 0, false, err
	}

	total, n := 0, 0
	for _, c := range chunks {
		if c.Chunk.QualityScore != nil {
			total += *c.Chunk.QualityScore
			n++
		}
	}
	if n == 0 {
		return 0, false, nil
	}
	return float64(total) / float64(n), true, nil
}

// noveltyOf probes the store with the session summary. The session's own
// chunks are excluded or they would make every session look familiar.
func (g *SkillGenerator) noveltyOf(ctx context.Context, sessionID, summary string) (float64, error) {
	vector, err := g.embedder.Embed(ctx, summary)
	if err != nil {
		return 0, err
	}

	hits, err := g.store.SearchChunks(ctx, vector, qdrant.SearchOptions{
		Limit:  3,
		Filter: &qdrant.Filter{MustNot: []qdrant.Condition{qdrant.Match(qdrant.KeySessionID, sessionID)}},
	})
	if err != nil {
		return 0, err
	}
	if len(hits) == 0 {
		return 1, nil
	}

	var total float64
	for _, h := range hits {
		total += h.Score
	}
	return 1 - total/float64(len(hits)), nil
}

const summarySystemPrompt = `Summarize this coding session in 2-3 sentences: the task, the approach that worked, and anything notable about the workflow. Respond with only the summary.`

const skillSystemPrompt = `You distill a successful coding session into a reusable skill document. Respond with ONLY a SKILL.md document in this EXACT format:
---
name: <kebab-case-name>
description: <one sentence describing when this skill applies>
auto_activation:
  - <trigger keyword>
  - <trigger keyword>
---

# <Title>

## When to Use

<the situation this skill applies to>

## Instructions

<numbered, concrete steps>

## Verification

<how to confirm the skill worked>`

func skillUserPrompt(summary string, messages []session.Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Session summary: %s\n\nTranscript excerpt:\n%s",
		summary, llm.Truncate(session.Flatten(messages), 4000))
	return sb.String()
}
