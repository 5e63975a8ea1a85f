package rules

import (
	"context"
	"fmt"
	"strings"

	"hindsight/internal/config"
	"hindsight/internal/embedding"
	"hindsight/internal/llm"
	"hindsight/internal/logging"
	"hindsight/internal/qdrant"
	"hindsight/internal/vcs"
)

// Manager is the only component that mutates the rule registry. Every
// accepted change is persisted atomically, mirrored to AGENTS.md and the
// rules collection, and committed to git when the workspace is a repo.
type Manager struct {
	registry  *Registry
	store     *qdrant.Store
	embedder  embedding.EmbeddingEngine
	llm       llm.Client
	cfg       config.RulesConfig
	root      string
	committer *vcs.Committer
}

// AddResult reports the outcome of one Add call. Applied is true only when
// the rule became active; staged proposals and rejections both report false,
// distinguished by Reason.
type AddResult struct {
	Applied bool
	Reason  string
}

func NewManager(ctx context.Context, registry *Registry, store *qdrant.Store, embedder embedding.EmbeddingEngine, client llm.Client, cfg config.RulesConfig, root string) *Manager {
	return &Manager{
		registry:  registry,
		store:     store,
		embedder:  embedder,
		llm:       client,
		cfg:       cfg,
		root:      root,
		committer: vcs.NewCommitter(ctx, root, logging.CategoryRules),
	}
}

// Add runs the full proposal protocol for one candidate rule: cap
// enforcement, duplicate check, LLM validation, then activation or staging
// depending on the approval mode. Only registry write failures surface as
// errors; everything else resolves to an AddResult.
func (m *Manager) Add(ctx context.Context, text, source string, sourceSessionIDs []string) (AddResult, error) {
	// Candidate text can arrive from a subprocess LLM provider as raw bytes.
	// The registry, AGENTS.md and the vector store all require valid UTF-8.
	text = strings.ToValidUTF8(strings.TrimSpace(text), "�")
	if text == "" {
		return AddResult{Applied: false, Reason: "Rule failed validation: empty text"}, nil
	}
	if n := WordCount(text); n > MaxRuleWords {
		return AddResult{Applied: false, Reason: fmt.Sprintf("Rule failed validation: %d words exceeds the %d-word limit", n, MaxRuleWords)}, nil
	}

	autonomous := m.cfg.ApprovalMode == config.ApprovalAutonomous
	active := m.registry.Active()

	// The cap victim is chosen against the pre-insertion state, but the
	// retirement is only persisted together with an actual insertion, so a
	// duplicate rejection leaves the registry untouched.
	var victim *Rule
	if autonomous && len(active) >= m.cfg.MaxActiveRules {
		if least, ok := m.registry.LeastReinforcedActive(); ok {
			victim = &least
		}
	}

	if m.isDuplicate(ctx, text, active) {
		return AddResult{Applied: false, Reason: "Duplicate of existing rule"}, nil
	}

	valid, reason := m.validateRule(ctx, text, active)

	now := NowISO()
	rule := Rule{
		ID:                 NewID(text, m.registry.HasID),
		Text:               text,
		Source:             source,
		ReinforcementCount: 0,
		CreatedAt:          now,
		LastReinforced:     now,
		SourceSessionIDs:   sourceSessionIDs,
		Categories:         Categorize(text),
	}

	if autonomous && valid {
		if victim != nil {
			if err := m.registry.Retire(victim.ID); err != nil {
				return AddResult{}, err
			}
			logging.Rules("Retired least-reinforced rule %s (count=%d) to stay under the %d-rule cap", victim.ID, victim.ReinforcementCount, m.cfg.MaxActiveRules)
		}
		rule.Status = StatusActive
		m.registry.Append(rule)
		if err := m.persist(ctx, "feat(rules)", fmt.Sprintf("activate rule %s (%s)", rule.ID, source)); err != nil {
			return AddResult{}, err
		}
		m.upsertMirror(ctx, rule)
		if victim != nil {
			m.deleteMirror(ctx, victim.ID)
		}
		logging.Rules("Activated rule %s: %s", rule.ID, rule.Text)
		logging.Audit().RuleEvent(logging.AuditRuleActivated, rule.ID, source, "autonomous activation")
		if victim != nil {
			logging.Audit().RuleEvent(logging.AuditRuleRetired, victim.ID, victim.Source, "least reinforced at cap")
		}
		return AddResult{Applied: true, Reason: "Rule activated"}, nil
	}

	stageReason := reason
	if valid {
		stageReason = fmt.Sprintf("Approval mode is %s; awaiting confirmation", m.cfg.ApprovalMode)
	}
	rule.Status = StatusProposed
	m.registry.Append(rule)
	if err := m.persist(ctx, "feat(rules)", fmt.Sprintf("propose rule %s (%s)", rule.ID, source)); err != nil {
		return AddResult{}, err
	}
	if _, err := StageRuleProposal(config.StagedChangesDir(m.root), rule, stageReason); err != nil {
		logging.RulesWarn("Failed to write staged-change record for %s: %v", rule.ID, err)
	}
	logging.Audit().RuleEvent(logging.AuditRuleProposed, rule.ID, source, stageReason)
	return AddResult{Applied: false, Reason: stageReason}, nil
}

// ApplyPending re-validates every proposed rule and promotes the ones that
// pass. Returns the number promoted.
func (m *Manager) ApplyPending(ctx context.Context) (int, error) {
	proposed := m.registry.Proposed()
	if len(proposed) == 0 {
		return 0, nil
	}

	promoted := 0
	for _, r := range proposed {
		valid, reason := m.validateRule(ctx, r.Text, m.registry.Active())
		if !valid {
			logging.Rules("Keeping rule %s proposed: %s", r.ID, reason)
			continue
		}
		if len(m.registry.Active()) >= m.cfg.MaxActiveRules {
			if least, ok := m.registry.LeastReinforcedActive(); ok {
				if err := m.registry.Retire(least.ID); err != nil {
					return promoted, err
				}
				m.deleteMirror(ctx, least.ID)
				logging.Rules("Retired least-reinforced rule %s to make room for promotion", least.ID)
			}
		}
		r.Status = StatusActive
		if err := m.registry.Update(r); err != nil {
			return promoted, err
		}
		m.upsertMirror(ctx, r)
		logging.Rules("Promoted rule %s: %s", r.ID, r.Text)
		logging.Audit().RuleEvent(logging.AuditRuleActivated, r.ID, r.Source, "promoted from proposed")
		promoted++
	}

	if promoted > 0 {
		if err := m.persist(ctx, "feat(rules)", fmt.Sprintf("promote %d pending rules", promoted)); err != nil {
			return promoted, err
		}
	}
	return promoted, nil
}

// ReviewSummary groups the registry by lifecycle bucket for a human reader.
type ReviewSummary struct {
	Active   []Rule
	Proposed []Rule
	Retired  []Rule
}

func (m *Manager) Review() ReviewSummary {
	return ReviewSummary{
		Active:   m.registry.Active(),
		Proposed: m.registry.Proposed(),
		Retired:  m.registry.Retired(),
	}
}

// RetireRule moves a rule to retired and removes it from the search mirror.
// Already-retired rules are a no-op.
func (m *Manager) RetireRule(ctx context.Context, id string) error {
	r, ok := m.registry.Get(id)
	if !ok {
		return fmt.Errorf("no rule with id %s", id)
	}
	if r.Status == StatusRetired {
		return nil
	}
	if err := m.registry.Retire(id); err != nil {
		return err
	}
	if err := m.persist(ctx, "chore(rules)", fmt.Sprintf("retire rule %s", id)); err != nil {
		return err
	}
	m.deleteMirror(ctx, id)
	logging.Rules("Retired rule %s", id)
	logging.Audit().RuleEvent(logging.AuditRuleRetired, id, r.Source, "manual retirement")
	return nil
}

// RecordReinforcements applies evidence counts gathered by the reinforcement
// pass: count increments plus a lastReinforced touch, one registry save for
// the whole batch. Counts only ever grow.
func (m *Manager) RecordReinforcements(ctx context.Context, evidence map[string]int) error {
	if len(evidence) == 0 {
		return nil
	}
	now := NowISO()
	touched := 0
	for id, hits := range evidence {
		if hits <= 0 {
			continue
		}
		r, ok := m.registry.Get(id)
		if !ok || r.Status != StatusActive {
			continue
		}
		r.ReinforcementCount += hits
		r.LastReinforced = now
		if err := m.registry.Update(r); err != nil {
			return err
		}
		logging.ReinforceDebug("Rule %s reinforced by %d chunks (total %d)", id, hits, r.ReinforcementCount)
		logging.Audit().RuleEvent(logging.AuditRuleReinforced, id, r.Source, fmt.Sprintf("%d supporting chunks", hits))
		touched++
	}
	if touched == 0 {
		return nil
	}
	return m.persist(ctx, "chore(rules)", fmt.Sprintf("reinforce %d rules", touched))
}

// PruneStale retires active rules that have gone unreinforced past the
// staleness threshold and never accumulated enough evidence to keep. Rules
// at or above ExemptReinforcementCount are never pruned. With dryRun the
// would-be retirements are returned without mutating anything.
func (m *Manager) PruneStale(ctx context.Context, dryRun bool) ([]Rule, error) {
	staleAfter := float64(m.cfg.StalenessThresholdDays)

	var pruned []Rule
	for _, r := range m.registry.Active() {
		if r.ReinforcementCount >= ExemptReinforcementCount {
			continue
		}
		stamp := r.LastReinforced
		if stamp == "" {
			stamp = r.CreatedAt
		}
		ageDays := DaysSince(ParseISO(stamp))
		switch {
		case ageDays > staleAfter && r.ReinforcementCount < m.cfg.MinReinforcementsToKeep:
			pruned = append(pruned, r)
		case ageDays > staleAfter/2:
			logging.Reinforce("Rule %s aging: %.0f days since last reinforcement (count=%d)", r.ID, ageDays, r.ReinforcementCount)
		}
	}

	if dryRun || len(pruned) == 0 {
		return pruned, nil
	}

	ids := make([]string, 0, len(pruned))
	for _, r := range pruned {
		if err := m.registry.Retire(r.ID); err != nil {
			return nil, err
		}
		ids = append(ids, r.ID)
		logging.Rules("Pruned stale rule %s (count=%d): %s", r.ID, r.ReinforcementCount, r.Text)
		logging.Audit().RuleEvent(logging.AuditRuleRetired, r.ID, r.Source, "stale, insufficient reinforcement")
	}
	if err := m.persist(ctx, "chore(rules)", fmt.Sprintf("prune %d stale rules", len(ids))); err != nil {
		return nil, err
	}
	if err := m.store.DeleteRules(ctx, ids...); err != nil {
		logging.RulesWarn("Mirror deletion failed for pruned rules (sync will repair): %v", err)
	}
	return pruned, nil
}

// SyncRulesToQdrant rebuilds the search mirror from the registry: every
// active rule is embedded and upserted, every id in the collection that is
// no longer active is deleted. Safe to run any number of times.
func (m *Manager) SyncRulesToQdrant(ctx context.Context) (upserted, removed int, err error) {
	active := m.registry.Active()

	if len(active) > 0 {
		texts := make([]string, len(active))
		for i, r := range active {
			texts[i] = r.Text
		}
		vectors, err := m.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, 0, err
		}
		for i, r := range active {
			if err := m.store.UpsertRule(ctx, vectors[i], rulePayload(r)); err != nil {
				return upserted, 0, err
			}
			upserted++
		}
	}

	mirror, err := m.store.ActiveRules(ctx)
	if err != nil {
		return upserted, 0, err
	}
	activeIDs := make(map[string]bool, len(active))
	for _, r := range active {
		activeIDs[r.ID] = true
	}
	var stray []string
	for _, sr := range mirror {
		if !activeIDs[sr.Rule.RuleID] {
			stray = append(stray, sr.Rule.RuleID)
		}
	}
	if len(stray) > 0 {
		if err := m.store.DeleteRules(ctx, stray...); err != nil {
			logging.RulesWarn("Failed to remove %d stray mirror ids: %v", len(stray), err)
		} else {
			removed = len(stray)
		}
	}

	logging.Rules("Synced %d active rules to the mirror (%d stray ids removed)", upserted, removed)
	return upserted, removed, nil
}

// ============================================================================
// PROTOCOL INTERNALS
// ============================================================================

// isDuplicate compares the candidate against every active rule by embedding
// cosine similarity; when embeddings are unavailable it degrades to exact
// text equality after lowercasing and trimming.
func (m *Manager) isDuplicate(ctx context.Context, text string, active []Rule) bool {
	if len(active) == 0 {
		return false
	}

	vec, err := m.embedder.Embed(ctx, text)
	if err == nil {
		texts := make([]string, len(active))
		for i, r := range active {
			texts[i] = r.Text
		}
		var vectors [][]float32
		vectors, err = m.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			top, _ := embedding.FindTopK(vec, vectors, 1)
			if len(top) > 0 && top[0].Similarity >= m.cfg.DeduplicationSimilarity {
				logging.RulesDebug("Candidate duplicates rule %s (similarity %.3f)", active[top[0].Index].ID, top[0].Similarity)
				return true
			}
			return false
		}
	}

	logging.RulesWarn("Embedding unavailable for dedup (%v); falling back to exact text match", err)
	norm := strings.ToLower(strings.TrimSpace(text))
	for _, r := range active {
		if strings.ToLower(strings.TrimSpace(r.Text)) == norm {
			return true
		}
	}
	return false
}

// validateRule asks the LLM to judge the candidate. An unreachable or
// unparseable validator reports invalid with a reason that routes the rule
// to staging instead of rejection.
func (m *Manager) validateRule(ctx context.Context, text string, active []Rule) (bool, string) {
	response, err := m.llm.CompleteWithSystem(ctx, validatorSystemPrompt, validatorPrompt(text, active))
	if err != nil {
		logging.RulesWarn("Rule validator unavailable: %v", err)
		return false, "Validator unavailable; staged for human review"
	}

	fields := llm.ParseTaggedFields(response, "VERDICT", "REASON")
	verdict := strings.ToUpper(strings.TrimSpace(fields["VERDICT"]))
	reason := strings.TrimSpace(fields["REASON"])
	switch verdict {
	case "VALID":
		return true, reason
	case "INVALID":
		if reason == "" {
			reason = "Validator rejected the rule without a reason"
		}
		return false, "Rule failed validation: " + reason
	default:
		logging.RulesWarn("Unparseable validator verdict: %q", llm.Truncate(response, 120))
		return false, "Validator response unparseable; staged for human review"
	}
}

const validatorSystemPrompt = "You review candidate rules for a coding assistant's learned-rule registry. " +
	"A good rule is specific, actionable, coherent, at most 50 words, and does not contradict the existing rules."

func validatorPrompt(text string, active []Rule) string {
	var sb strings.Builder
	sb.WriteString("Candidate rule:\n")
	sb.WriteString(text + "\n\n")
	if len(active) > 0 {
		sb.WriteString("Existing active rules:\n")
		for _, r := range active {
			sb.WriteString(fmt.Sprintf("- %s\n", r.Text))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Judge the candidate. Respond in this EXACT format:\n")
	sb.WriteString("VERDICT: VALID or INVALID\n")
	sb.WriteString("REASON: <one sentence>\n")
	return sb.String()
}

// persist saves the registry, refreshes the markdown mirror, and records a
// conventional commit. Mirror and commit failures are logged, not fatal; a
// registry save failure is.
func (m *Manager) persist(ctx context.Context, kind, subject string) error {
	if err := m.registry.Save(); err != nil {
		return err
	}
	if err := WriteMirror(config.RulesMirrorPath(m.root), m.registry.Active()); err != nil {
		logging.RulesWarn("Failed to refresh rules mirror: %v", err)
	}
	m.committer.Commit(ctx, kind, subject, "rules.json", "AGENTS.md")
	return nil
}

func (m *Manager) upsertMirror(ctx context.Context, r Rule) {
	vec, err := m.embedder.Embed(ctx, r.Text)
	if err != nil {
		logging.RulesWarn("Could not embed rule %s for the mirror (sync will repair): %v", r.ID, err)
		return
	}
	if err := m.store.UpsertRule(ctx, vec, rulePayload(r)); err != nil {
		logging.RulesWarn("Mirror upsert failed for rule %s (sync will repair): %v", r.ID, err)
	}
}

func (m *Manager) deleteMirror(ctx context.Context, id string) {
	if err := m.store.DeleteRules(ctx, id); err != nil {
		logging.RulesWarn("Mirror deletion failed for rule %s (sync will repair): %v", id, err)
	}
}

func rulePayload(r Rule) qdrant.RulePayload {
	return qdrant.RulePayload{
		RuleID:             r.ID,
		Text:               r.Text,
		Status:             r.Status,
		Source:             r.Source,
		Categories:         r.Categories,
		ReinforcementCount: r.ReinforcementCount,
		CreatedAt:          r.CreatedAt,
	}
}
