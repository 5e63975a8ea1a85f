package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"hindsight/internal/config"
	"hindsight/internal/llm"
	"hindsight/internal/logging"
	"hindsight/internal/qdrant"
	"hindsight/internal/rules"
)

// maxRulesPerPair caps how many candidate rules one contrastive pair may
// contribute.
const maxRulesPerPair = 2

// InsightExtractor pairs high-quality chunks with low-quality ones and asks
// the LLM for contrastive rules. Every candidate goes through the proposal
// manager, whose dedup makes the stage safe to re-run.
type InsightExtractor struct {
	store      *qdrant.Store
	llm        llm.Client
	rules      *rules.Manager
	cfg        config.ScoringConfig
	successMin int
	failureMax int
}

// InsightSummary is one extraction pass's outcome.
type InsightSummary struct {
	Pairs      int
	Candidates int
	Added      int // candidates that became active rules
}

// NewInsightExtractor wires an extractor from configuration.
func NewInsightExtractor(store *qdrant.Store, client llm.Client, mgr *rules.Manager, cfg config.ScoringConfig, successMin, failureMax int) *InsightExtractor {
	return &InsightExtractor{
		store:      store,
		llm:        client,
		rules:      mgr,
		cfg:        cfg,
		successMin: successMin,
		failureMax: failureMax,
	}
}

type contrastPair struct {
	High qdrant.ChunkPayload
	Low  qdrant.ChunkPayload
}

// Run extracts candidate rules from the scored collection. LLM failures
// skip their batch; registry failures abort the pass.
func (e *InsightExtractor) Run(ctx context.Context) (InsightSummary, error) {
	var sum InsightSummary

	timer := logging.StartTimer(logging.CategoryInsight, "insight extraction")
	defer timer.StopWithInfo()

	pairs, err := e.buildPairs(ctx)
	if err != nil {
		return sum, err
	}
	if len(pairs) == 0 {
		logging.Insight("No contrastive pairs available")
		return sum, nil
	}
	sum.Pairs = len(pairs)

	for start := 0; start < len(pairs); start += e.cfg.PairsPerRequest {
		end := start + e.cfg.PairsPerRequest
		if end > len(pairs) {
			end = len(pairs)
		}
		batch := pairs[start:end]

		response, err := e.llm.CompleteWithSystem(ctx, insightSystemPrompt, insightUserPrompt(batch))
		if err != nil {
			logging.Insight("Skipping batch of %d pairs: %v", len(batch), err)
			continue
		}

		for pi, texts := range parsePairRules(response, len(batch)) {
			for _, text := range texts {
				sum.Candidates++
				result, err := e.rules.Add(ctx, text, rules.SourceInsight,
					[]string{batch[pi].High.SessionID, batch[pi].Low.SessionID})
				if err != nil {
					return sum, err
				}
				if result.Applied {
					sum.Added++
				} else {
					logging.InsightDebug("Candidate not applied (%s): %s", result.Reason, llm.Truncate(text, 80))
				}
			}
		}
	}

	logging.Insight("Extracted %d candidates from %d pairs, %d applied",
		sum.Candidates, sum.Pairs, sum.Added)
	return sum, nil
}

// buildPairs selects scored chunks above/below the thresholds and pairs
// them index-wise, reusing low chunks round-robin when they are scarce.
func (e *InsightExtractor) buildPairs(ctx context.Context) ([]contrastPair, error) {
	high, err := e.chunksInRange(ctx, qdrant.GTE(qdrant.KeyQualityScore, float64(e.successMin)))
	if err != nil {
		return nil, err
	}
	low, err := e.chunksInRange(ctx, qdrant.LTE(qdrant.KeyQualityScore, float64(e.failureMax)))
	if err != nil {
		return nil, err
	}
	if len(high) == 0 || len(low) == 0 {
		logging.InsightDebug("Chunk pools too thin (high=%d low=%d)", len(high), len(low))
		return nil, nil
	}

	var pairs []contrastPair
	for i, h := range high {
		if len(pairs) >= e.cfg.MaxPairs {
			break
		}
		pairs = append(pairs, contrastPair{High: h, Low: low[i%len(low)]})
	}
	return pairs, nil
}

func (e *InsightExtractor) chunksInRange(ctx context.Context, cond qdrant.Condition) ([]qdrant.ChunkPayload, error) {
	stored, err := e.store.AllChunks(ctx, &qdrant.Filter{Must: []qdrant.Condition{cond}})
	if err != nil {
		return nil, err
	}
	var out []qdrant.ChunkPayload
	for _, s := range stored {
		if len(s.Chunk.ChunkText) >= e.cfg.MinInsightChars {
			out = append(out, s.Chunk)
		}
	}
	return out, nil
}

var pairHeader = regexp.MustCompile(`(?im)^\s*(?:\*\*|#+\s*)?pair\s+(\d+)`)

// parsePairRules splits a response into per-pair bullet lists, keyed by the
// "PAIR n" headers the prompt asks for. A response without headers credits
// all bullets to the first pair so provenance stays truthful rather than
// guessed.
func parsePairRules(response string, n int) [][]string {
	out := make([][]string, n)

	matches := pairHeader.FindAllStringSubmatchIndex(response, -1)
	if len(matches) == 0 {
		out[0] = capRules(llm.ParseBullets(response))
		return out
	}

	for mi, m := range matches {
		sectionEnd := len(response)
		if mi+1 < len(matches) {
			sectionEnd = matches[mi+1][0]
		}
		idx := parsePairIndex(response[m[2]:m[3]]) - 1
		if idx < 0 || idx >= n {
			continue
		}
		out[idx] = capRules(llm.ParseBullets(response[m[1]:sectionEnd]))
	}
	return out
}

func parsePairIndex(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

func capRules(texts []string) []string {
	if len(texts) > maxRulesPerPair {
		return texts[:maxRulesPerPair]
	}
	return texts
}

const insightSystemPrompt = `You compare successful coding-session excerpts with failed ones and extract durable working rules a coding assistant should follow. Each rule must be specific, imperative, and at most 50 words. Respond in this EXACT format, one section per pair:
PAIR 1:
- <rule>
- <rule (optional)>
PAIR 2:
- <rule>`

func insightUserPrompt(batch []contrastPair) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Extract 1-2 contrastive rules for each of these %d pairs.\n", len(batch))
	for i, p := range batch {
		fmt.Fprintf(&sb, "\nPAIR %d\nWhat worked:\n%s\n\nWhat failed:\n%s\n",
			i+1, llm.Truncate(p.High.ChunkText, 700), llm.Truncate(p.Low.ChunkText, 700))
	}
	return sb.String()
}
