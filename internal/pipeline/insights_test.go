package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"hindsight/internal/config"
	"hindsight/internal/qdrant"
	"hindsight/internal/rules"
)

const (
	highChunkA = "Worked: pinned the dependency versions before cutting the release branch."
	highChunkB = "Worked: ran the full integration suite after changing the shared fixtures."
	lowChunk   = "Failed: shipped with a floating dependency and the build broke downstream."

	ruleTextA = "Always pin dependency versions before a release branch."
	ruleTextB = "Run the full test suite after changing shared fixtures."
)

// insightLLM answers extraction prompts with the canned response and
// validation prompts with a VALID verdict.
func insightLLM(response string) *mockLLM {
	return &mockLLM{completeFn: func(system, user string) (string, error) {
		if strings.Contains(system, "PAIR") {
			return response, nil
		}
		return "VERDICT: VALID\nREASON: Specific and actionable.", nil
	}}
}

func newAutonomousManager(t *testing.T, store *qdrant.Store, emb *mockEmbedder, client *mockLLM) (*rules.Manager, *rules.Registry) {
	t.Helper()
	root := t.TempDir()
	reg, err := rules.LoadRegistry(config.RulesPath(root))
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	cfg := config.RulesConfig{
		ApprovalMode:            config.ApprovalAutonomous,
		MaxActiveRules:          50,
		StalenessThresholdDays:  30,
		MinReinforcementsToKeep: 3,
		DeduplicationSimilarity: 0.85,
	}
	return rules.NewManager(context.Background(), reg, store, emb, client, cfg, root), reg
}

func insightConfig() config.ScoringConfig {
	cfg := testScoringConfig()
	cfg.MinInsightChars = 40
	return cfg
}

func seedContrastChunks(fq *fakeQdrant) {
	fq.addChunk("s-high-a", 0, highChunkA, 8)
	fq.addChunk("s-high-b", 0, highChunkB, 9)
	fq.addChunk("s-low", 0, lowChunk, 2)
	fq.addChunk("s-high-a", 1, "short win", 9)        // below the insight length floor
	fq.addChunk("s-unscored", 0, highChunkA+" !", -1) // never scored
}

func TestInsightExtractor_Run(t *testing.T) {
	fq := &fakeQdrant{}
	seedContrastChunks(fq)
	store := newChunkStore(t, fq)

	client := insightLLM("PAIR 1:\n- " + ruleTextA + "\nPAIR 2:\n- " + ruleTextB + "\n")
	emb := vectorByText(map[string][]float32{
		ruleTextA: {1, 0, 0, 0},
		ruleTextB: {0, 1, 0, 0},
	})
	mgr, reg := newAutonomousManager(t, store, emb, client)

	sum, err := NewInsightExtractor(store, client, mgr, insightConfig(), 7, 3).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Pairs != 2 || sum.Candidates != 2 || sum.Added != 2 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	active := reg.Active()
	if len(active) != 2 {
		t.Fatalf("expected 2 active rules, got %d", len(active))
	}
	for _, r := range active {
		if r.Source != rules.SourceInsight {
			t.Errorf("rule %s has source %q", r.ID, r.Source)
		}
		var wantSessions []string
		switch r.Text {
		case ruleTextA:
			wantSessions = []string{"s-high-a", "s-low"}
		case ruleTextB:
			wantSessions = []string{"s-high-b", "s-low"}
		default:
			t.Errorf("unexpected rule text %q", r.Text)
			continue
		}
		if len(r.SourceSessionIDs) != 2 ||
			r.SourceSessionIDs[0] != wantSessions[0] || r.SourceSessionIDs[1] != wantSessions[1] {
			t.Errorf("rule %q credited to %v, want %v", r.Text, r.SourceSessionIDs, wantSessions)
		}
	}

	if got := fq.upsertedTo(qdrant.CollectionRules); len(got) != 2 {
		t.Errorf("expected 2 rule mirror upserts, got %d", len(got))
	}
}

func TestInsightExtractor_Run_HeaderlessResponseCreditsFirstPair(t *testing.T) {
	fq := &fakeQdrant{}
	seedContrastChunks(fq)
	store := newChunkStore(t, fq)

	client := insightLLM("- " + ruleTextA + "\n- " + ruleTextB + "\n- A third rule that gets capped away.\n")
	emb := vectorByText(map[string][]float32{
		ruleTextA: {1, 0, 0, 0},
		ruleTextB: {0, 1, 0, 0},
	})
	mgr, reg := newAutonomousManager(t, store, emb, client)

	sum, err := NewInsightExtractor(store, client, mgr, insightConfig(), 7, 3).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Candidates != 2 {
		t.Fatalf("expected the cap to keep 2 candidates, got %+v", sum)
	}
	for _, r := range reg.Active() {
		if len(r.SourceSessionIDs) != 2 || r.SourceSessionIDs[0] != "s-high-a" || r.SourceSessionIDs[1] != "s-low" {
			t.Errorf("headerless bullets must credit the first pair, got %v", r.SourceSessionIDs)
		}
	}
}

func TestInsightExtractor_Run_LLMFailureSkipsOnlyItsBatch(t *testing.T) {
	fq := &fakeQdrant{}
	seedContrastChunks(fq)
	store := newChunkStore(t, fq)

	var extractCalls int32
	client := &mockLLM{completeFn: func(system, user string) (string, error) {
		if strings.Contains(system, "PAIR") {
			if atomic.AddInt32(&extractCalls, 1) == 1 {
				return "", errors.New("model overloaded")
			}
			return "PAIR 1:\n- " + ruleTextB + "\n", nil
		}
		return "VERDICT: VALID\nREASON: ok.", nil
	}}
	emb := vectorByText(map[string][]float32{ruleTextB: {0, 1, 0, 0}})
	mgr, reg := newAutonomousManager(t, store, emb, client)

	cfg := insightConfig()
	cfg.PairsPerRequest = 1
	sum, err := NewInsightExtractor(store, client, mgr, cfg, 7, 3).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Pairs != 2 || sum.Candidates != 1 || sum.Added != 1 {
		t.Fatalf("first batch should be skipped, second kept: %+v", sum)
	}

	active := reg.Active()
	if len(active) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(active))
	}
	// The surviving batch held the second pair, so attribution follows it.
	if active[0].SourceSessionIDs[0] != "s-high-b" {
		t.Errorf("batch-relative pair index mishandled: %v", active[0].SourceSessionIDs)
	}
}

func TestInsightExtractor_Run_DuplicatesCountAsCandidatesOnly(t *testing.T) {
	fq := &fakeQdrant{}
	fq.addChunk("s-high-a", 0, highChunkA, 8)
	fq.addChunk("s-low", 0, lowChunk, 2)
	store := newChunkStore(t, fq)

	client := insightLLM("PAIR 1:\n- " + ruleTextA + "\n- " + ruleTextA + " Again.\n")
	mgr, reg := newAutonomousManager(t, store, unitEmbedder(), client)

	sum, err := NewInsightExtractor(store, client, mgr, insightConfig(), 7, 3).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Pairs != 1 || sum.Candidates != 2 || sum.Added != 1 {
		t.Fatalf("duplicate should be declined but counted, got %+v", sum)
	}
	if len(reg.Active()) != 1 {
		t.Fatalf("expected 1 active rule, got %d", len(reg.Active()))
	}
}

func TestInsightExtractor_Run_ThinPools(t *testing.T) {
	fq := &fakeQdrant{}
	fq.addChunk("s-high-a", 0, highChunkA, 8) // no low counterpart
	store := newChunkStore(t, fq)

	client := insightLLM("unused")
	mgr, _ := newAutonomousManager(t, store, unitEmbedder(), client)

	sum, err := NewInsightExtractor(store, client, mgr, insightConfig(), 7, 3).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Pairs != 0 || client.callCount() != 0 {
		t.Fatalf("one-sided pool should produce no pairs, got %+v (%d calls)", sum, client.callCount())
	}
}

func TestInsightExtractor_Run_MaxPairsCap(t *testing.T) {
	fq := &fakeQdrant{}
	fq.addChunk("h1", 0, highChunkA, 8)
	fq.addChunk("h2", 0, highChunkB, 9)
	fq.addChunk("h3", 0, highChunkA+" More detail for variety.", 8)
	fq.addChunk("l1", 0, lowChunk, 2)
	store := newChunkStore(t, fq)

	client := insightLLM("PAIR 1:\n- " + ruleTextA + "\n")
	mgr, _ := newAutonomousManager(t, store, unitEmbedder(), client)

	cfg := insightConfig()
	cfg.MaxPairs = 2
	sum, err := NewInsightExtractor(store, client, mgr, cfg, 7, 3).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Pairs != 2 {
		t.Fatalf("expected the pair cap to hold, got %+v", sum)
	}
}

func TestParsePairRules(t *testing.T) {
	t.Run("sections attribute bullets", func(t *testing.T) {
		response := "PAIR 1:\n- first\n- second\n- third\nPAIR 2:\n- fourth\n"
		got := parsePairRules(response, 2)
		if len(got[0]) != 2 || got[0][0] != "first" || got[0][1] != "second" {
			t.Errorf("pair 1 bullets wrong (cap included): %v", got[0])
		}
		if len(got[1]) != 1 || got[1][0] != "fourth" {
			t.Errorf("pair 2 bullets wrong: %v", got[1])
		}
	})

	t.Run("markdown decorated headers", func(t *testing.T) {
		response := "**PAIR 1:** intro\n- alpha\n\n## Pair 2\n- beta\n"
		got := parsePairRules(response, 2)
		if len(got[0]) != 1 || got[0][0] != "alpha" {
			t.Errorf("bold header not recognized: %v", got[0])
		}
		if len(got[1]) != 1 || got[1][0] != "beta" {
			t.Errorf("heading header not recognized: %v", got[1])
		}
	})

	t.Run("out of range index dropped", func(t *testing.T) {
		got := parsePairRules("PAIR 7:\n- stray\n", 2)
		if len(got[0]) != 0 || len(got[1]) != 0 {
			t.Errorf("index beyond the batch must be ignored: %v", got)
		}
	})

	t.Run("no headers at all", func(t *testing.T) {
		got := parsePairRules("- one\n- two\n- three\n", 3)
		if len(got[0]) != 2 {
			t.Errorf("headerless bullets should land on pair 1 capped, got %v", got[0])
		}
		if len(got[1]) != 0 || len(got[2]) != 0 {
			t.Errorf("other pairs must stay empty: %v", got)
		}
	})
}
