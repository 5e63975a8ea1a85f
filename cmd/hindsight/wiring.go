package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"hindsight/internal/config"
	"hindsight/internal/embedding"
	"hindsight/internal/llm"
	"hindsight/internal/logging"
	"hindsight/internal/pipeline"
	"hindsight/internal/qdrant"
)

// loadWorkspaceConfig reads config.json from the resolved workspace root.
// A missing file yields defaults; a malformed one is a hard error.
func loadWorkspaceConfig() (*config.UserConfig, error) {
	return config.LoadUserConfig(filepath.Join(workspace, "config.json"))
}

// buildPipeline constructs the subsystem clients and wires the stage set.
// The vector store is probed up front so every command fails fast with the
// endpoint in the message instead of deep inside a stage.
func buildPipeline(ctx context.Context, cfg *config.UserConfig) (*pipeline.Pipeline, error) {
	qc := cfg.GetQdrantConfig()
	ec := cfg.GetEmbeddingConfig()

	store := qdrant.NewStore(qdrant.NewClient(qdrant.Config{
		URL:         qc.URL,
		APIKey:      qc.APIKey,
		TimeoutSecs: qc.TimeoutSecs,
	}), ec.Dimensions, cfg.GetIngestConfig().UpsertBatchSize)
	if err := store.Client().HealthCheck(ctx); err != nil {
		return nil, fmt.Errorf("vector store unreachable at %s: %w", qc.URL, err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("vector store schema: %w", err)
	}

	embedder, err := embedding.NewEngine(embedding.Config{
		Provider:       ec.Provider,
		OllamaEndpoint: ec.OllamaEndpoint,
		OllamaModel:    ec.OllamaModel,
		GenAIAPIKey:    ec.GenAIAPIKey,
		GenAIModel:     ec.GenAIModel,
		Dimensions:     ec.Dimensions,
		CacheSize:      ec.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding engine: %w", err)
	}

	llmCfg := cfg.GetLLMConfig()
	client, err := llm.New(&llmCfg)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}

	logger.Debug("Pipeline wired",
		zap.String("qdrant", qc.URL),
		zap.String("embedding", ec.Provider),
		zap.String("llm", llmCfg.Provider))
	logging.Boot("Pipeline wired: qdrant=%s embedding=%s llm=%s", qc.URL, ec.Provider, llmCfg.Provider)

	return pipeline.New(ctx, workspace, cfg, store, embedder, client)
}

// openPipeline is the common command entry: config, clients, stages.
func openPipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	cfg, err := loadWorkspaceConfig()
	if err != nil {
		return nil, err
	}
	return buildPipeline(ctx, cfg)
}

// stageContext returns the command context: bounded by --timeout and
// cancelled on SIGINT/SIGTERM so in-flight work can mark itself pending.
func stageContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
