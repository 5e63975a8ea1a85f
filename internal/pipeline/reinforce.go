package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hindsight/internal/config"
	"hindsight/internal/embedding"
	"hindsight/internal/logging"
	"hindsight/internal/qdrant"
	"hindsight/internal/rules"
)

// reinforceConcurrency bounds parallel rule scans; each scan is one embed
// plus one vector search.
const reinforceConcurrency = 3

// Reinforcer counts recent high-quality chunks that echo each active rule
// and feeds the evidence to the proposal manager. A rule's own source
// sessions never count.
type Reinforcer struct {
	store    *qdrant.Store
	embedder embedding.EmbeddingEngine
	rules    *rules.Manager
	cfg      config.ReinforcementConfig
}

// ReinforceSummary is one scan's outcome.
type ReinforceSummary struct {
	Scanned    int
	Hits       int
	Reinforced int // rules with at least one retained hit
}

// NewReinforcer wires a reinforcement scanner from configuration.
func NewReinforcer(store *qdrant.Store, embedder embedding.EmbeddingEngine, mgr *rules.Manager, cfg config.ReinforcementConfig) *Reinforcer {
	return &Reinforcer{store: store, embedder: embedder, rules: mgr, cfg: cfg}
}

// Run scans every active rule. Embedding failures skip the rule; store
// failures abort the scan. Evidence is applied in one registry write.
func (r *Reinforcer) Run(ctx context.Context) (ReinforceSummary, error) {
	var sum ReinforceSummary

	timer := logging.StartTimer(logging.CategoryReinforce, "reinforcement scan")
	defer timer.StopWithInfo()

	active := r.rules.Review().Active
	if len(active) == 0 {
		logging.Reinforce("No active rules to scan")
		return sum, nil
	}
	sum.Scanned = len(active)

	cutoff := time.Now().AddDate(0, 0, -r.cfg.WindowDays)
	evidence := make(map[string]int, len(active))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reinforceConcurrency)

	for _, rule := range active {
		g.Go(func() error {
			retained, err := r.scanRule(gctx, rule, cutoff)
			if err != nil {
				return err
			}
			if retained > 0 {
				mu.Lock()
				evidence[rule.ID] = retained
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}

	for _, n := range evidence {
		sum.Hits += n
	}
	sum.Reinforced = len(evidence)

	if err := r.rules.RecordReinforcements(ctx, evidence); err != nil {
		return sum, err
	}
	logging.Reinforce("Scanned %d rules: %d reinforced by %d hits",
		sum.Scanned, sum.Reinforced, sum.Hits)
	return sum, nil
}

// scanRule counts the chunks that reinforce one rule: high quality, recent,
// similar enough, and from a session the rule did not come from.
func (r *Reinforcer) scanRule(ctx context.Context, rule rules.Rule, cutoff time.Time) (int, error) {
	vector, err := r.embedder.Embed(ctx, rule.Text)
	if err != nil {
		logging.Reinforce("Skipping rule %s: embedding failed: %v", rule.ID, err)
		return 0, nil
	}

	hits, err := r.store.SearchChunks(ctx, vector, qdrant.SearchOptions{
		Limit:          r.cfg.SearchLimit,
		Filter:         &qdrant.Filter{Must: []qdrant.Condition{qdrant.GTE(qdrant.KeyQualityScore, float64(r.cfg.QualityMin))}},
		ScoreThreshold: r.cfg.ScoreThreshold,
	})
	if err != nil {
		return 0, err
	}

	retained := 0
	for _, h := range hits {
		if h.Score < r.cfg.ScoreThreshold {
			continue
		}
		when, err := time.Parse(time.RFC3339, h.Chunk.Date)
		if err != nil || when.Before(cutoff) {
			continue
		}
		if rule.HasSourceSession(h.Chunk.SessionID) {
			continue
		}
		retained++
	}

	if retained > 0 {
		logging.ReinforceDebug("Rule %s reinforced by %d chunks", rule.ID, retained)
	}
	return retained, nil
}
