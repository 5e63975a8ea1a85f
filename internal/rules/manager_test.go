package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hindsight/internal/config"
	"hindsight/internal/qdrant"
)

// ============================================================================
// TEST DOUBLES
// ============================================================================

type mockEmbedder struct {
	embedFn func(text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embedFn(text)
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.embedFn(text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return 4 }
func (m *mockEmbedder) Name() string    { return "mock" }

// sameVector makes every text embed identically (cosine 1.0).
func sameVector() *mockEmbedder {
	return &mockEmbedder{embedFn: func(string) ([]float32, error) {
		return []float32{1, 0, 0, 0}, nil
	}}
}

// vectorByText assigns each known text its own axis; unknown texts share a
// fallback axis.
func vectorByText(byText map[string][]float32) *mockEmbedder {
	return &mockEmbedder{embedFn: func(text string) ([]float32, error) {
		if v, ok := byText[text]; ok {
			return v, nil
		}
		return []float32{0, 0, 0, 1}, nil
	}}
}

type mockLLM struct {
	calls      int
	completeFn func(system, user string) (string, error)
}

func (m *mockLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return m.CompleteWithSystem(ctx, "", prompt)
}

func (m *mockLLM) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	m.calls++
	return m.completeFn(system, user)
}

func validLLM() *mockLLM {
	return &mockLLM{completeFn: func(string, string) (string, error) {
		return "VERDICT: VALID\nREASON: Specific and actionable.", nil
	}}
}

// fakeQdrant records the rule-collection traffic the manager generates.
type fakeQdrant struct {
	upserts      []map[string]any
	deletes      [][]uint64
	scrollPoints []map[string]any
}

func newRulesStore(t *testing.T, fq *fakeQdrant) *qdrant.Store {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/points/scroll"):
			writeFakeResult(w, map[string]any{"points": fq.scrollPoints, "next_page_offset": nil})
		case strings.HasSuffix(r.URL.Path, "/points/delete"):
			var body struct {
				Points []uint64 `json:"points"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			fq.deletes = append(fq.deletes, body.Points)
			writeFakeResult(w, true)
		case strings.HasSuffix(r.URL.Path, "/points"):
			var body struct {
				Points []struct {
					Payload map[string]any `json:"payload"`
				} `json:"points"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			for _, p := range body.Points {
				fq.upserts = append(fq.upserts, p.Payload)
			}
			writeFakeResult(w, true)
		default:
			writeFakeResult(w, true)
		}
	}))
	t.Cleanup(srv.Close)
	return qdrant.NewStore(qdrant.NewClient(qdrant.Config{URL: srv.URL}), 4, 16)
}

func writeFakeResult(w http.ResponseWriter, result any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok", "time": 0.001})
}

func testRulesConfig(mode string) config.RulesConfig {
	return config.RulesConfig{
		ApprovalMode:            mode,
		MaxActiveRules:          50,
		StalenessThresholdDays:  30,
		MinReinforcementsToKeep: 3,
		DeduplicationSimilarity: 0.85,
	}
}

func newTestManager(t *testing.T, cfg config.RulesConfig, fq *fakeQdrant, emb *mockEmbedder, client *mockLLM, seed ...Rule) (*Manager, *Registry, string) {
	t.Helper()
	root := t.TempDir()
	reg, err := LoadRegistry(config.RulesPath(root))
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	for _, r := range seed {
		reg.Append(r)
	}
	mgr := NewManager(context.Background(), reg, newRulesStore(t, fq), emb, client, cfg, root)
	return mgr, reg, root
}

func activeRule(id, text string, count int) Rule {
	now := NowISO()
	return Rule{
		ID: id, Text: text, Source: SourceManual, Status: StatusActive,
		ReinforcementCount: count, CreatedAt: now, LastReinforced: now,
		Categories: Categorize(text),
	}
}

// ============================================================================
// ADD PROTOCOL
// ============================================================================

func TestManager_Add_ActivatesInAutonomousMode(t *testing.T) {
	fq := &fakeQdrant{}
	mgr, reg, root := newTestManager(t, testRulesConfig(config.ApprovalAutonomous), fq, sameVector(), validLLM())

	res, err := mgr.Add(context.Background(), "Run tests before committing changes.", SourceInsight, []string{"sessA", "sessB"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !res.Applied {
		t.Fatalf("expected applied, got reason %q", res.Reason)
	}

	active := reg.Active()
	if len(active) != 1 {
		t.Fatalf("expected 1 active rule, got %d", len(active))
	}
	r := active[0]
	if r.Source != SourceInsight || len(r.SourceSessionIDs) != 2 {
		t.Errorf("provenance lost: %+v", r)
	}
	if len(r.Categories) == 0 {
		t.Error("categories must never be empty")
	}
	if r.CreatedAt == "" || r.LastReinforced == "" {
		t.Error("timestamps not set")
	}

	// Registry persisted and mirrored.
	if _, err := os.Stat(config.RulesPath(root)); err != nil {
		t.Errorf("rules.json not written: %v", err)
	}
	agents, err := os.ReadFile(config.RulesMirrorPath(root))
	if err != nil {
		t.Fatalf("AGENTS.md not written: %v", err)
	}
	if !strings.Contains(string(agents), r.Text) {
		t.Errorf("AGENTS.md missing rule text:\n%s", agents)
	}

	// Search mirror got the rule.
	if len(fq.upserts) != 1 {
		t.Fatalf("expected 1 mirror upsert, got %d", len(fq.upserts))
	}
	if fq.upserts[0][qdrant.KeyText] != r.Text || fq.upserts[0][qdrant.KeyStatus] != StatusActive {
		t.Errorf("wrong mirror payload: %v", fq.upserts[0])
	}
}

func TestManager_Add_DuplicateRejected(t *testing.T) {
	client := validLLM()
	mgr, reg, _ := newTestManager(t, testRulesConfig(config.ApprovalAutonomous), &fakeQdrant{}, sameVector(), client,
		activeRule("aaaa1111", "Run tests before committing.", 4))

	res, err := mgr.Add(context.Background(), "Always run tests before commit.", SourceInsight, nil)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if res.Applied {
		t.Fatal("duplicate must not apply")
	}
	if res.Reason != "Duplicate of existing rule" {
		t.Errorf("wrong reason: %q", res.Reason)
	}
	if len(reg.All()) != 1 {
		t.Errorf("registry changed on duplicate: %d rules", len(reg.All()))
	}
	// Dedup precedes validation, so the validator is never consulted.
	if client.calls != 0 {
		t.Errorf("validator called %d times for a duplicate", client.calls)
	}
}

func TestManager_Add_DuplicateFallsBackToExactMatch(t *testing.T) {
	emb := &mockEmbedder{embedFn: func(string) ([]float32, error) {
		return nil, errors.New("embedder down")
	}}
	mgr, reg, _ := newTestManager(t, testRulesConfig(config.ApprovalAutonomous), &fakeQdrant{}, emb, validLLM(),
		activeRule("aaaa1111", "Run tests before committing.", 4))

	// Exact text modulo case and whitespace → duplicate.
	res, err := mgr.Add(context.Background(), "  run TESTS before committing.  ", SourceInsight, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied || res.Reason != "Duplicate of existing rule" {
		t.Errorf("expected exact-match duplicate, got %+v", res)
	}
	if len(reg.All()) != 1 {
		t.Error("registry changed")
	}
}

func TestManager_Add_EmptyTextRejected(t *testing.T) {
	mgr, reg, root := newTestManager(t, testRulesConfig(config.ApprovalAutonomous), &fakeQdrant{}, sameVector(), validLLM())

	res, err := mgr.Add(context.Background(), "   ", SourceManual, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied {
		t.Fatal("empty text must not apply")
	}
	if !strings.Contains(res.Reason, "validation") {
		t.Errorf("expected a validation reason, got %q", res.Reason)
	}
	if len(reg.All()) != 0 {
		t.Error("empty text must not reach the registry")
	}
	if _, err := os.Stat(config.StagedChangesDir(root)); !os.IsNotExist(err) {
		t.Error("empty text must not be staged")
	}
}

func TestManager_Add_OverlongTextRejected(t *testing.T) {
	mgr, reg, _ := newTestManager(t, testRulesConfig(config.ApprovalAutonomous), &fakeQdrant{}, sameVector(), validLLM())

	words := make([]string, MaxRuleWords+1)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}
	res, err := mgr.Add(context.Background(), strings.Join(words, " "), SourceManual, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied || !strings.Contains(res.Reason, "word") {
		t.Errorf("expected word-limit rejection, got %+v", res)
	}
	if len(reg.All()) != 0 {
		t.Error("overlong text must not reach the registry")
	}
}

func TestManager_Add_ProposeModeStages(t *testing.T) {
	fq := &fakeQdrant{}
	mgr, reg, root := newTestManager(t, testRulesConfig(config.ApprovalProposeAndConfirm), fq, sameVector(), validLLM())

	res, err := mgr.Add(context.Background(), "Run tests before committing changes.", SourceReflection, []string{"sessA"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied {
		t.Fatal("propose-and-confirm must not apply directly")
	}
	if !strings.Contains(res.Reason, "awaiting confirmation") {
		t.Errorf("wrong reason: %q", res.Reason)
	}

	proposed := reg.Proposed()
	if len(proposed) != 1 {
		t.Fatalf("expected 1 proposed rule, got %d", len(proposed))
	}

	// A staged-change record exists for human review.
	matches, err := filepath.Glob(filepath.Join(config.StagedChangesDir(root), "*.json"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected 1 staged change, got %v (%v)", matches, err)
	}
	data, _ := os.ReadFile(matches[0])
	var change StagedChange
	if err := json.Unmarshal(data, &change); err != nil {
		t.Fatalf("staged change not parseable: %v", err)
	}
	if change.Kind != "rule-proposal" || change.RuleID != proposed[0].ID {
		t.Errorf("wrong staged change: %+v", change)
	}
	if filepath.Base(matches[0]) != change.ID+".json" {
		t.Errorf("staged file not named by change id: %s", matches[0])
	}

	// Proposed rules stay out of the search mirror.
	if len(fq.upserts) != 0 {
		t.Errorf("proposed rule leaked into the mirror: %v", fq.upserts)
	}
}

func TestManager_Add_ValidatorUnavailableStagesInsteadOfRejecting(t *testing.T) {
	client := &mockLLM{completeFn: func(string, string) (string, error) {
		return "", errors.New("connection refused")
	}}
	mgr, reg, root := newTestManager(t, testRulesConfig(config.ApprovalAutonomous), &fakeQdrant{}, sameVector(), client)

	res, err := mgr.Add(context.Background(), "Run tests before committing changes.", SourceInsight, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied {
		t.Fatal("unvalidated rule must not auto-apply")
	}
	if !strings.Contains(res.Reason, "Validator unavailable") {
		t.Errorf("wrong reason: %q", res.Reason)
	}
	if len(reg.Proposed()) != 1 {
		t.Fatal("rule should be staged as proposed, not dropped")
	}
	matches, _ := filepath.Glob(filepath.Join(config.StagedChangesDir(root), "*.json"))
	if len(matches) != 1 {
		t.Errorf("expected a staged change, got %v", matches)
	}
}

func TestManager_Add_InvalidVerdictStages(t *testing.T) {
	client := &mockLLM{completeFn: func(string, string) (string, error) {
		return "VERDICT: INVALID\nREASON: Too vague to act on.", nil
	}}
	mgr, reg, _ := newTestManager(t, testRulesConfig(config.ApprovalAutonomous), &fakeQdrant{}, sameVector(), client)

	res, err := mgr.Add(context.Background(), "Do better work generally.", SourceInsight, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied {
		t.Fatal("invalid rule must not apply")
	}
	if !strings.Contains(res.Reason, "Too vague") {
		t.Errorf("validator reason lost: %q", res.Reason)
	}
	if len(reg.Proposed()) != 1 {
		t.Error("invalid rule should be staged for review")
	}
}

func TestManager_Add_CapRetiresLeastReinforced(t *testing.T) {
	cfg := testRulesConfig(config.ApprovalAutonomous)
	cfg.MaxActiveRules = 2

	emb := vectorByText(map[string][]float32{
		"Alpha rule about planning.": {1, 0, 0, 0},
		"Beta rule about planning.":  {0, 1, 0, 0},
		"Gamma rule about planning.": {0, 0, 1, 0},
	})
	fq := &fakeQdrant{}
	mgr, reg, _ := newTestManager(t, cfg, fq, emb, validLLM(),
		activeRule("r1r1r1r1", "Alpha rule about planning.", 5),
		activeRule("r2r2r2r2", "Beta rule about planning.", 1),
	)

	res, err := mgr.Add(context.Background(), "Gamma rule about planning.", SourceInsight, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Applied {
		t.Fatalf("expected activation, got %q", res.Reason)
	}

	if got, _ := reg.Get("r2r2r2r2"); got.Status != StatusRetired {
		t.Errorf("least-reinforced rule not retired: %s", got.Status)
	}
	if got, _ := reg.Get("r1r1r1r1"); got.Status != StatusActive {
		t.Errorf("well-reinforced rule should survive: %s", got.Status)
	}
	if n := len(reg.Active()); n != 2 {
		t.Errorf("active count %d exceeds cap", n)
	}

	// The retired rule's point is removed from the mirror.
	found := false
	for _, batch := range fq.deletes {
		for _, id := range batch {
			if id == qdrant.PointID("r2r2r2r2") {
				found = true
			}
		}
	}
	if !found {
		t.Error("retired rule not deleted from the mirror")
	}
}

func TestManager_Add_DuplicateAtCapLeavesRegistryUnchanged(t *testing.T) {
	cfg := testRulesConfig(config.ApprovalAutonomous)
	cfg.MaxActiveRules = 2

	mgr, reg, _ := newTestManager(t, cfg, &fakeQdrant{}, sameVector(), validLLM(),
		activeRule("r1r1r1r1", "Alpha rule.", 5),
		activeRule("r2r2r2r2", "Beta rule.", 1),
	)

	res, err := mgr.Add(context.Background(), "Alpha rule.", SourceInsight, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied || res.Reason != "Duplicate of existing rule" {
		t.Fatalf("expected duplicate rejection, got %+v", res)
	}
	// No retirement happens when nothing was inserted.
	if got, _ := reg.Get("r2r2r2r2"); got.Status != StatusActive {
		t.Errorf("duplicate rejection retired a rule: %s", got.Status)
	}
}

// ============================================================================
// PROMOTION, REINFORCEMENT, PRUNING
// ============================================================================

func TestManager_ApplyPending(t *testing.T) {
	now := NowISO()
	client := &mockLLM{completeFn: func(_, user string) (string, error) {
		if strings.Contains(user, "Solid rule") {
			return "VERDICT: VALID\nREASON: Fine.", nil
		}
		return "VERDICT: INVALID\nREASON: Still too vague.", nil
	}}
	fq := &fakeQdrant{}
	mgr, reg, root := newTestManager(t, testRulesConfig(config.ApprovalProposeAndConfirm), fq, sameVector(), client,
		Rule{ID: "good1234", Text: "Solid rule about tests.", Status: StatusProposed, CreatedAt: now, LastReinforced: now},
		Rule{ID: "weak5678", Text: "Vague rule.", Status: StatusProposed, CreatedAt: now, LastReinforced: now},
	)

	promoted, err := mgr.ApplyPending(context.Background())
	if err != nil {
		t.Fatalf("ApplyPending: %v", err)
	}
	if promoted != 1 {
		t.Fatalf("expected 1 promotion, got %d", promoted)
	}
	if got, _ := reg.Get("good1234"); got.Status != StatusActive {
		t.Errorf("valid proposal not promoted: %s", got.Status)
	}
	if got, _ := reg.Get("weak5678"); got.Status != StatusProposed {
		t.Errorf("invalid proposal should stay proposed: %s", got.Status)
	}
	if len(fq.upserts) != 1 {
		t.Errorf("expected 1 mirror upsert, got %d", len(fq.upserts))
	}

	data, err := os.ReadFile(config.RulesPath(root))
	if err != nil {
		t.Fatalf("registry not saved: %v", err)
	}
	if !strings.Contains(string(data), `"active"`) {
		t.Error("promotion not persisted")
	}
}

func TestManager_RecordReinforcements(t *testing.T) {
	old := "2026-07-01T00:00:00Z"
	mgr, reg, root := newTestManager(t, testRulesConfig(config.ApprovalAutonomous), &fakeQdrant{}, sameVector(), validLLM(),
		Rule{ID: "r1r1r1r1", Text: "Alpha.", Status: StatusActive, ReinforcementCount: 2, CreatedAt: old, LastReinforced: old},
		Rule{ID: "p1p1p1p1", Text: "Proposed.", Status: StatusProposed, CreatedAt: old, LastReinforced: old},
	)

	err := mgr.RecordReinforcements(context.Background(), map[string]int{
		"r1r1r1r1": 3,
		"p1p1p1p1": 2, // not active: ignored
		"missing0": 1, // unknown: ignored
		"r0r0r0r0": 0, // zero evidence: ignored
	})
	if err != nil {
		t.Fatalf("RecordReinforcements: %v", err)
	}

	got, _ := reg.Get("r1r1r1r1")
	if got.ReinforcementCount != 5 {
		t.Errorf("count = %d, want 5", got.ReinforcementCount)
	}
	if got.LastReinforced == old {
		t.Error("lastReinforced not touched")
	}
	if prop, _ := reg.Get("p1p1p1p1"); prop.ReinforcementCount != 0 {
		t.Error("non-active rule reinforced")
	}

	data, _ := os.ReadFile(config.RulesPath(root))
	if !strings.Contains(string(data), `"reinforcementCount": 5`) {
		t.Error("reinforcement not persisted")
	}
}

func TestManager_PruneStale(t *testing.T) {
	now := time.Now().UTC()
	stamp := func(daysAgo int) string {
		return now.AddDate(0, 0, -daysAgo).Format(time.RFC3339)
	}
	fq := &fakeQdrant{}
	mgr, reg, _ := newTestManager(t, testRulesConfig(config.ApprovalAutonomous), fq, sameVector(), validLLM(),
		Rule{ID: "stale111", Text: "Old and unproven.", Status: StatusActive, ReinforcementCount: 2, CreatedAt: stamp(90), LastReinforced: stamp(40)},
		Rule{ID: "prove222", Text: "Old but proven.", Status: StatusActive, ReinforcementCount: 12, CreatedAt: stamp(90), LastReinforced: stamp(100)},
		Rule{ID: "fresh333", Text: "Recently reinforced.", Status: StatusActive, ReinforcementCount: 2, CreatedAt: stamp(90), LastReinforced: stamp(5)},
	)

	// Dry run reports without mutating.
	would, err := mgr.PruneStale(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if len(would) != 1 || would[0].ID != "stale111" {
		t.Fatalf("dry run selected %v", would)
	}
	if got, _ := reg.Get("stale111"); got.Status != StatusActive {
		t.Fatal("dry run mutated the registry")
	}

	pruned, err := mgr.PruneStale(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(pruned) != 1 {
		t.Fatalf("pruned %d rules, want 1", len(pruned))
	}

	if got, _ := reg.Get("stale111"); got.Status != StatusRetired {
		t.Errorf("stale rule not retired: %s", got.Status)
	}
	// Registry row survives retirement for audit.
	if _, ok := reg.Get("stale111"); !ok {
		t.Error("retired rule purged from registry")
	}
	if got, _ := reg.Get("prove222"); got.Status != StatusActive {
		t.Error("rule with >= 10 reinforcements must never be pruned")
	}
	if got, _ := reg.Get("fresh333"); got.Status != StatusActive {
		t.Error("recently reinforced rule must survive")
	}

	found := false
	for _, batch := range fq.deletes {
		for _, id := range batch {
			if id == qdrant.PointID("stale111") {
				found = true
			}
		}
	}
	if !found {
		t.Error("pruned rule not deleted from the mirror")
	}
}

func TestManager_RetireRule(t *testing.T) {
	fq := &fakeQdrant{}
	mgr, reg, _ := newTestManager(t, testRulesConfig(config.ApprovalAutonomous), fq, sameVector(), validLLM(),
		activeRule("r1r1r1r1", "Alpha.", 3))

	if err := mgr.RetireRule(context.Background(), "r1r1r1r1"); err != nil {
		t.Fatalf("RetireRule: %v", err)
	}
	if got, _ := reg.Get("r1r1r1r1"); got.Status != StatusRetired {
		t.Errorf("not retired: %s", got.Status)
	}
	// Idempotent on an already-retired rule.
	if err := mgr.RetireRule(context.Background(), "r1r1r1r1"); err != nil {
		t.Errorf("second retire should be a no-op: %v", err)
	}
	if err := mgr.RetireRule(context.Background(), "nope0000"); err == nil {
		t.Error("unknown id should error")
	}
}

// ============================================================================
// SYNC
// ============================================================================

func TestManager_SyncRulesToQdrant(t *testing.T) {
	fq := &fakeQdrant{
		// Mirror currently holds one live id and one stray.
		scrollPoints: []map[string]any{
			{"id": qdrant.PointID("aaaa1111"), "payload": map[string]any{"id": "aaaa1111", "text": "Alpha.", "status": "active"}},
			{"id": qdrant.PointID("gone9999"), "payload": map[string]any{"id": "gone9999", "text": "Removed.", "status": "active"}},
		},
	}
	mgr, _, _ := newTestManager(t, testRulesConfig(config.ApprovalAutonomous), fq, sameVector(), validLLM(),
		activeRule("aaaa1111", "Alpha.", 3),
		activeRule("bbbb2222", "Beta.", 1),
		Rule{ID: "cccc3333", Text: "Proposed.", Status: StatusProposed},
	)

	upserted, removed, err := mgr.SyncRulesToQdrant(context.Background())
	if err != nil {
		t.Fatalf("SyncRulesToQdrant: %v", err)
	}
	if upserted != 2 {
		t.Errorf("upserted = %d, want 2", upserted)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if len(fq.deletes) != 1 || len(fq.deletes[0]) != 1 || fq.deletes[0][0] != qdrant.PointID("gone9999") {
		t.Errorf("wrong deletions: %v", fq.deletes)
	}

	// Second run over the same state has the same observable effect.
	upserted2, _, err := mgr.SyncRulesToQdrant(context.Background())
	if err != nil || upserted2 != 2 {
		t.Errorf("sync not idempotent: %d, %v", upserted2, err)
	}
}

// ============================================================================
// STAGED CHANGES
// ============================================================================

func TestStageRuleProposal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "staged-changes")
	rule := Rule{ID: "aaaa1111", Text: "Alpha.", Source: SourceReflection}

	path, err := StageRuleProposal(dir, rule, "Approval mode is review-only")
	if err != nil {
		t.Fatalf("StageRuleProposal: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var change StagedChange
	if err := json.Unmarshal(data, &change); err != nil {
		t.Fatalf("record not parseable: %v", err)
	}
	if change.Kind != "rule-proposal" || change.RuleID != "aaaa1111" || change.Source != SourceReflection {
		t.Errorf("wrong record: %+v", change)
	}
	if change.Reason != "Approval mode is review-only" {
		t.Errorf("reason lost: %q", change.Reason)
	}
	if change.ID == "" || change.CreatedAt == "" {
		t.Errorf("missing id or timestamp: %+v", change)
	}
}
