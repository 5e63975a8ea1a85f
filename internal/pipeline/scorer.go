package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hindsight/internal/config"
	"hindsight/internal/llm"
	"hindsight/internal/logging"
	"hindsight/internal/qdrant"
)

// defaultScore is applied to a whole batch when the LLM response cannot be
// parsed. Middle of the scale: neither promoted nor filtered.
const defaultScore = 5

// Scorer assigns 0-10 quality scores to session chunks: a pure heuristic
// pre-filter first, then batched LLM calls with bounded concurrency for
// everything the heuristics defer.
type Scorer struct {
	store *qdrant.Store
	llm   llm.Client
	cfg   config.ScoringConfig
}

// ScoreOptions selects which chunks a scoring pass touches.
type ScoreOptions struct {
	// Rescore includes chunks that already have a quality score.
	Rescore bool
	// SessionID limits the pass to one session.
	SessionID string
	// PendingOnly limits the pass to chunks flagged pending_score.
	PendingOnly bool
	// MarkPending flags the selected chunks for later scoring instead of
	// scoring them now.
	MarkPending bool
}

// ScoreSummary is one scoring pass's outcome.
type ScoreSummary struct {
	Heuristic int // scored by the pre-filter
	LLMScored int // scored by a parsed LLM response
	Defaulted int // fell back to the default score
	Marked    int // flagged pending instead of scored
}

// NewScorer wires a scorer from configuration.
func NewScorer(store *qdrant.Store, client llm.Client, cfg config.ScoringConfig) *Scorer {
	return &Scorer{store: store, llm: client, cfg: cfg}
}

// Run scores every selected chunk. Heuristic scores are written grouped by
// value; LLM scores per chunk. A canceled run marks its in-flight batches
// pending so a later pass picks them up.
func (s *Scorer) Run(ctx context.Context, opts ScoreOptions) (ScoreSummary, error) {
	var sum ScoreSummary

	timer := logging.StartTimer(logging.CategoryScore, "scoring pass")
	defer timer.StopWithInfo()

	points, err := s.pointsToScore(ctx, opts)
	if err != nil {
		return sum, err
	}
	if len(points) == 0 {
		logging.Score("No chunks to score")
		return sum, nil
	}

	if opts.MarkPending {
		ids := make([]uint64, len(points))
		for i, p := range points {
			ids[i] = p.ID
		}
		if err := s.store.MarkPending(ctx, ids...); err != nil {
			return sum, err
		}
		sum.Marked = len(ids)
		logging.Score("Marked %d chunks pending", sum.Marked)
		return sum, nil
	}

	heuristic := make(map[uint64]int)
	var deferred []qdrant.StoredChunk
	for _, p := range points {
		if score := preFilter(p.Chunk.ChunkText); score != nil {
			heuristic[p.ID] = *score
		} else {
			deferred = append(deferred, p)
		}
	}
	logging.ScoreDebug("Pre-filter settled %d of %d chunks, %d deferred to the LLM",
		len(heuristic), len(points), len(deferred))

	if len(heuristic) > 0 {
		if err := s.store.SetQualities(ctx, heuristic); err != nil {
			return sum, err
		}
		sum.Heuristic = len(heuristic)
	}

	llmScored, defaulted, err := s.scoreWithLLM(ctx, deferred)
	sum.LLMScored = llmScored
	sum.Defaulted = defaulted

	logging.Score("Scored %d chunks (%d heuristic, %d llm, %d defaulted)",
		sum.Heuristic+sum.LLMScored+sum.Defaulted, sum.Heuristic, sum.LLMScored, sum.Defaulted)
	return sum, err
}

// pointsToScore scrolls the sessions collection and applies the selection
// rules. "Already scored" can only be judged client-side because the score
// field is absent, not null, on unscored points.
func (s *Scorer) pointsToScore(ctx context.Context, opts ScoreOptions) ([]qdrant.StoredChunk, error) {
	var filter *qdrant.Filter
	if opts.SessionID != "" {
		filter = qdrant.MustMatch(qdrant.KeySessionID, opts.SessionID)
	}
	if opts.PendingOnly {
		filter = filter.And(qdrant.Match(qdrant.KeyPendingScore, true))
	}

	chunks, err := s.store.AllChunks(ctx, filter)
	if err != nil {
		return nil, err
	}

	var out []qdrant.StoredChunk
	for _, c := range chunks {
		if c.Chunk.ChunkText == "" {
			continue
		}
		if c.Chunk.Scored() && !opts.Rescore {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Chunk.SessionID != out[j].Chunk.SessionID {
			return out[i].Chunk.SessionID < out[j].Chunk.SessionID
		}
		return out[i].Chunk.ChunkIndex < out[j].Chunk.ChunkIndex
	})
	return out, nil
}

// scoreWithLLM scores the deferred chunks in concurrent batches. All of a
// pass's batch logs share one request ID so they read as a unit in the
// score log.
func (s *Scorer) scoreWithLLM(ctx context.Context, deferred []qdrant.StoredChunk) (scored, defaulted int, err error) {
	if len(deferred) == 0 {
		return 0, 0, nil
	}

	rlog := logging.WithRequestID(logging.CategoryScore, uuid.NewString()[:8]).
		WithField("chunks", len(deferred))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for start := 0; start < len(deferred); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(deferred) {
			end = len(deferred)
		}
		batch := deferred[start:end]

		g.Go(func() error {
			bctx, cancel := context.WithTimeout(gctx, time.Duration(s.cfg.TimeoutSecs)*time.Second)
			defer cancel()

			response, llmErr := s.llm.CompleteWithSystem(bctx, scoreSystemPrompt, scoreUserPrompt(batch))
			if gctx.Err() != nil {
				s.markPendingDetached(batch)
				return gctx.Err()
			}

			scores, ok := llm.ParseScoreArray(response, len(batch))
			fallback := llmErr != nil || !ok
			if fallback {
				if llmErr != nil {
					rlog.Warn("Batch of %d failed (%v), defaulting to %d", len(batch), llmErr, defaultScore)
				} else {
					rlog.Warn("Unparseable score response (%s), defaulting batch of %d to %d",
						llm.Truncate(response, 80), len(batch), defaultScore)
				}
			}

			for i, p := range batch {
				score := defaultScore
				if !fallback {
					score = scores[i]
				}
				if werr := s.store.SetQuality(gctx, p.ID, score); werr != nil {
					return werr
				}
			}

			mu.Lock()
			if fallback {
				defaulted += len(batch)
			} else {
				scored += len(batch)
			}
			mu.Unlock()
			return nil
		})
	}

	err = g.Wait()
	return scored, defaulted, err
}

// markPendingDetached flags a batch pending on a fresh context; the run's
// own context is already canceled when this is called.
func (s *Scorer) markPendingDetached(batch []qdrant.StoredChunk) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ids := make([]uint64, len(batch))
	for i, p := range batch {
		ids[i] = p.ID
	}
	if err := s.store.MarkPending(ctx, ids...); err != nil {
		logging.Score("Could not mark %d in-flight chunks pending: %v", len(ids), err)
		return
	}
	logging.Score("Marked %d in-flight chunks pending after cancellation", len(ids))
}

const scoreSystemPrompt = `You grade excerpts of coding-assistant work sessions by how reusable their content is for future work. 0-2: noise, binary data, routine command output. 3-5: ordinary work with little transferable insight. 6-8: concrete problem-solving with reasoning that would help again. 9-10: root-cause analysis, design decisions, or lessons stated explicitly. Respond with ONLY a JSON array of integers, one per chunk, in order.`

func scoreUserPrompt(batch []qdrant.StoredChunk) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Score these %d chunks. Respond with a JSON array of %d integers.\n", len(batch), len(batch))
	for i, p := range batch {
		fmt.Fprintf(&sb, "\nChunk %d:\n%s\n", i+1, llm.Truncate(p.Chunk.ChunkText, 1200))
	}
	return sb.String()
}
