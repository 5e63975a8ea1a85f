package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearPipelineEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_BASE_URL", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("HINDSIGHT_LLM_CMD", "")
	t.Setenv("QDRANT_URL", "")
	t.Setenv("QDRANT_API_KEY", "")
	t.Setenv("EMBEDDING_BACKUP_PATH", "")
}

func TestEnvOverrides_LLM(t *testing.T) {
	t.Run("OPENAI_API_KEY sets credential only", func(t *testing.T) {
		clearPipelineEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")

		cfg := &UserConfig{}
		cfg.applyEnvOverrides()

		require.NotNil(t, cfg.LLM)
		assert.Equal(t, "oa-key", cfg.LLM.OpenAIAPIKey)
		assert.Empty(t, cfg.LLM.Provider, "env credentials must not pin a provider")
		assert.Equal(t, "openai", cfg.GetLLMConfig().Provider, "provider inferred at accessor time")
	})

	t.Run("GEMINI_API_KEY feeds both LLM and embeddings", func(t *testing.T) {
		clearPipelineEnv(t)
		t.Setenv("GEMINI_API_KEY", "gem-key")

		cfg := &UserConfig{}
		cfg.applyEnvOverrides()

		require.NotNil(t, cfg.LLM)
		assert.Equal(t, "gem-key", cfg.LLM.GeminiAPIKey)
		require.NotNil(t, cfg.Embedding)
		assert.Equal(t, "gem-key", cfg.Embedding.GenAIAPIKey)
	})

	t.Run("GEMINI_API_KEY does not clobber configured embedding key", func(t *testing.T) {
		clearPipelineEnv(t)
		t.Setenv("GEMINI_API_KEY", "gem-key")

		cfg := &UserConfig{Embedding: &EmbeddingConfig{GenAIAPIKey: "file-key"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "file-key", cfg.Embedding.GenAIAPIKey)
		assert.Equal(t, "gem-key", cfg.LLM.GeminiAPIKey)
	})

	t.Run("OPENAI_BASE_URL for local servers", func(t *testing.T) {
		clearPipelineEnv(t)
		t.Setenv("OPENAI_API_KEY", "local")
		t.Setenv("OPENAI_BASE_URL", "http://localhost:8080/v1")

		cfg := &UserConfig{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "http://localhost:8080/v1", cfg.LLM.OpenAIBaseURL)
	})

	t.Run("HINDSIGHT_LLM_CMD forces cli provider", func(t *testing.T) {
		clearPipelineEnv(t)
		t.Setenv("GEMINI_API_KEY", "gem-key")
		t.Setenv("HINDSIGHT_LLM_CMD", "llm -m gpt-4o-mini")

		cfg := &UserConfig{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "cli", cfg.LLM.Provider)
		assert.Equal(t, "llm", cfg.LLM.CLICommand)
		assert.Equal(t, []string{"-m", "gpt-4o-mini"}, cfg.LLM.CLIArgs)
	})

	t.Run("Precedence: gemini key beats openai key", func(t *testing.T) {
		clearPipelineEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("GEMINI_API_KEY", "gem-key")

		cfg := &UserConfig{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gemini", cfg.GetLLMConfig().Provider)
	})

	t.Run("Explicit config provider survives env credentials", func(t *testing.T) {
		clearPipelineEnv(t)
		t.Setenv("GEMINI_API_KEY", "gem-key")

		cfg := &UserConfig{LLM: &LLMConfig{Provider: "openai", OpenAIAPIKey: "file-oa"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "openai", cfg.GetLLMConfig().Provider)
	})
}

func TestEnvOverrides_QdrantAndBackup(t *testing.T) {
	t.Run("QDRANT_URL", func(t *testing.T) {
		clearPipelineEnv(t)
		t.Setenv("QDRANT_URL", "http://qdrant.internal:6333")

		cfg := &UserConfig{}
		cfg.applyEnvOverrides()

		require.NotNil(t, cfg.Qdrant)
		assert.Equal(t, "http://qdrant.internal:6333", cfg.Qdrant.URL)
	})

	t.Run("QDRANT_URL overrides configured URL", func(t *testing.T) {
		clearPipelineEnv(t)
		t.Setenv("QDRANT_URL", "http://env:6333")

		cfg := &UserConfig{Qdrant: &QdrantConfig{URL: "http://file:6333"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "http://env:6333", cfg.Qdrant.URL)
	})

	t.Run("QDRANT_API_KEY", func(t *testing.T) {
		clearPipelineEnv(t)
		t.Setenv("QDRANT_API_KEY", "qd-key")

		cfg := &UserConfig{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "qd-key", cfg.Qdrant.APIKey)
	})

	t.Run("EMBEDDING_BACKUP_PATH", func(t *testing.T) {
		clearPipelineEnv(t)
		t.Setenv("EMBEDDING_BACKUP_PATH", "/var/backups/embeddings")

		cfg := &UserConfig{}
		cfg.applyEnvOverrides()

		require.NotNil(t, cfg.Ingest)
		assert.Equal(t, "/var/backups/embeddings", cfg.Ingest.BackupPath)
	})
}
