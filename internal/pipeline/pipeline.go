package pipeline

import (
	"context"

	"hindsight/internal/config"
	"hindsight/internal/embedding"
	"hindsight/internal/llm"
	"hindsight/internal/qdrant"
	"hindsight/internal/rules"
	"hindsight/internal/skills"
)

// Pipeline is the wired stage set for one workspace. The CLI builds one and
// runs either a single stage or the orchestrator.
type Pipeline struct {
	Root        string
	SessionsDir string

	Store    *qdrant.Store
	Embedder embedding.EmbeddingEngine
	LLM      llm.Client
	Rules    *rules.Manager
	Library  *skills.Library

	Ingestor     *Ingestor
	Scorer       *Scorer
	Insights     *InsightExtractor
	Reflections  *ReflectionGenerator
	SkillGen     *SkillGenerator
	Reinforcer   *Reinforcer
	Orchestrator *Orchestrator
}

// New wires every stage against one workspace root. The registry load is
// the only fallible step; subsystem clients come in already built.
func New(ctx context.Context, root string, cfg *config.UserConfig, store *qdrant.Store, embedder embedding.EmbeddingEngine, client llm.Client) (*Pipeline, error) {
	registry, err := rules.LoadRegistry(config.RulesPath(root))
	if err != nil {
		return nil, err
	}

	rulesCfg := cfg.GetRulesConfig()
	manager := rules.NewManager(ctx, registry, store, embedder, client, rulesCfg, root)
	library := skills.NewLibrary(ctx, root)

	ingestCfg := cfg.GetIngestConfig()
	sessionsDir := ingestCfg.SessionsDir
	if sessionsDir == "" {
		sessionsDir = config.SessionsDir(root)
	}

	scoringCfg := cfg.GetScoringConfig()
	success, failure := cfg.GetQualityThresholds()

	scorer := NewScorer(store, client, scoringCfg)
	insights := NewInsightExtractor(store, client, manager, scoringCfg, success, failure)
	reflections := NewReflectionGenerator(store, embedder, client, manager,
		LoadLedger(config.ReflectionLedgerPath(root)), sessionsDir, ingestCfg.MinMessage)
	skillGen := NewSkillGenerator(store, embedder, client, library,
		LoadLedger(config.SkillLedgerPath(root)), sessionsDir, ingestCfg.MinMessage,
		cfg.GetSkillsConfig(), success, cfg.GetNoveltyThreshold(),
		rulesCfg.ApprovalMode == config.ApprovalAutonomous)
	reinforcer := NewReinforcer(store, embedder, manager, cfg.GetReinforcementConfig())

	return &Pipeline{
		Root:         root,
		SessionsDir:  sessionsDir,
		Store:        store,
		Embedder:     embedder,
		LLM:          client,
		Rules:        manager,
		Library:      library,
		Ingestor:     NewIngestor(store, embedder, ingestCfg),
		Scorer:       scorer,
		Insights:     insights,
		Reflections:  reflections,
		SkillGen:     skillGen,
		Reinforcer:   reinforcer,
		Orchestrator: NewOrchestrator(scorer, insights, reflections, skillGen, reinforcer, manager, root),
	}, nil
}
