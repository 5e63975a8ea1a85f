package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hindsight/internal/embedding"
	"hindsight/internal/llm"
	"hindsight/internal/logging"
	"hindsight/internal/qdrant"
	"hindsight/internal/rules"
	"hindsight/internal/session"
)

// ReflectionGenerator turns detected failure signals into structured
// reflections: an LLM-written root cause, lesson, and prevention rule. The
// reflection is embedded into the reflections collection; the prevention
// rule goes through the proposal manager. A ledger keeps each session to
// one examination.
type ReflectionGenerator struct {
	store    *qdrant.Store
	embedder embedding.EmbeddingEngine
	llm      llm.Client
	rules    *rules.Manager
	ledger   *Ledger
	dir      string
	minMsg   int
}

// ReflectionSummary is one generation pass's outcome.
type ReflectionSummary struct {
	Examined    int
	Signals     int
	Reflections int
	RulesAdded  int
}

// NewReflectionGenerator wires a generator. dir is the transcript
// directory; the ledger persists across runs.
func NewReflectionGenerator(store *qdrant.Store, embedder embedding.EmbeddingEngine, client llm.Client, mgr *rules.Manager, ledger *Ledger, dir string, minMsg int) *ReflectionGenerator {
	return &ReflectionGenerator{
		store:    store,
		embedder: embedder,
		llm:      client,
		rules:    mgr,
		ledger:   ledger,
		dir:      dir,
		minMsg:   minMsg,
	}
}

// Run examines every un-processed session (or just onlySession when set).
// Unreadable transcripts are skipped without a ledger mark so a later run
// can retry them.
func (g *ReflectionGenerator) Run(ctx context.Context, onlySession string) (ReflectionSummary, error) {
	var sum ReflectionSummary

	timer := logging.StartTimer(logging.CategoryReflection, "reflection pass")
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

		messages, err := g.readTranscript(filepath.Join(g.dir, entry.Name()))
		if err != nil {
			logging.Reflection("Skipping %s: %v", entry.Name(), err)
			continue
		}

		sum.Examined++
		signals := DetectSignals(messages)
		sum.Signals += len(signals)

		for ordinal, sig := range signals {
			reflections, rulesAdded := g.generate(ctx, sessionID, ordinal, sig, messages)
			sum.Reflections += reflections
			sum.RulesAdded += rulesAdded
		}
		g.ledger.MarkDone(sessionID)
	}

	if err := g.ledger.Save(); err != nil {
		return sum, err
	}
	logging.Reflection("Examined %d sessions: %d signals, %d reflections, %d rules",
		sum.Examined, sum.Signals, sum.Reflections, sum.RulesAdded)
	return sum, nil
}

func (g *ReflectionGenerator) readTranscript(path string) ([]session.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return session.ParseTranscript(data, g.minMsg)
}

// generate asks the LLM for the three reflection fields and persists the
// result. Malformed responses are discarded; only the field format is
// trusted, never the content.
func (g *ReflectionGenerator) generate(ctx context.Context, sessionID string, ordinal int, sig Signal, messages []session.Message) (reflections, rulesAdded int) {
	response, err := g.llm.CompleteWithSystem(ctx, reflectionSystemPrompt, reflectionUserPrompt(sig, messages))
	if err != nil {
		logging.Reflection("Signal %s in %s: LLM failed: %v", sig.Kind, sessionID, err)
		return 0, 0
	}

	fields := llm.ParseTaggedFields(response, "ROOT_CAUSE", "REFLECTION", "PREVENTION_RULE")
	rootCause := session.SanitizeUTF8(strings.TrimSpace(fields["ROOT_CAUSE"]))
	reflection := session.SanitizeUTF8(strings.TrimSpace(fields["REFLECTION"]))
	prevention := session.SanitizeUTF8(strings.TrimSpace(fields["PREVENTION_RULE"]))
	if rootCause == "" || reflection == "" || prevention == "" {
		logging.Reflection("Signal %s in %s: malformed response, discarded (%s)",
			sig.Kind, sessionID, llm.Truncate(response, 80))
		return 0, 0
	}

	payload := qdrant.ReflectionPayload{
		SessionID:          sessionID,
		Date:               time.Now().UTC().Format(time.RFC3339),
		FailureDescription: sig.Kind,
		RootCause:          rootCause,
		Reflection:         reflection,
		PreventionRule:     prevention,
	}

	summary := fmt.Sprintf("Failure (%s): %s\nLesson: %s", sig.Kind, rootCause, reflection)
	vector, err := g.embedder.Embed(ctx, summary)
	if err != nil {
		logging.Reflection("Signal %s in %s: embedding failed: %v", sig.Kind, sessionID, err)
	} else {
		logicalID := fmt.Sprintf("reflection-%s-%d", sessionID, ordinal)
		if err := g.store.UpsertReflection(ctx, logicalID, vector, payload); err != nil {
			logging.Reflection("Signal %s in %s: upsert failed: %v", sig.Kind, sessionID, err)
		} else {
			reflections = 1
		}
	}

	result, err := g.rules.Add(ctx, prevention, rules.SourceReflection, []string{sessionID})
	if err != nil {
		logging.Reflection("Prevention rule for %s not recorded: %v", sessionID, err)
		return reflections, 0
	}
	if result.Applied {
		rulesAdded = 1
	} else {
		logging.ReflectionDebug("Prevention rule not applied (%s)", result.Reason)
	}
	return reflections, rulesAdded
}

const reflectionSystemPrompt = `You analyze a coding-assistant session that shows a failure pattern and produce a reflection. Respond in this EXACT format:
ROOT_CAUSE: <one sentence naming the underlying cause>
REFLECTION: <two or three sentences on what should have happened>
PREVENTION_RULE: <one imperative rule, at most 50 words, that would have prevented this>`

func reflectionUserPrompt(sig Signal, messages []session.Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Failure signal: %s\nEvidence: %s\n\nTranscript excerpt:\n%s",
		sig.Kind, sig.Evidence, llm.Truncate(session.Flatten(messages), 4000))
	return sb.String()
}
