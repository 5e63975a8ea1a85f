package config

import (
	"os"
	"strings"
)

// applyEnvOverrides applies environment variable overrides. Environment
// variables set credentials and endpoints; provider selection stays with
// GetLLMConfig so an explicit config choice always wins. The one
// exception is HINDSIGHT_LLM_CMD, which names its provider outright.
func (c *UserConfig) applyEnvOverrides() {
	// LLM credentials from environment
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.ensureLLM().OpenAIAPIKey = key
	}
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" {
		c.ensureLLM().OpenAIBaseURL = url
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.ensureLLM().GeminiAPIKey = key
		// The same credential drives GenAI embeddings.
		if emb := c.ensureEmbedding(); emb.GenAIAPIKey == "" {
			emb.GenAIAPIKey = key
		}
	}
	if cmd := os.Getenv("HINDSIGHT_LLM_CMD"); cmd != "" {
		llm := c.ensureLLM()
		llm.Provider = "cli"
		parts := strings.Fields(cmd)
		llm.CLICommand = parts[0]
		if len(parts) > 1 {
			llm.CLIArgs = parts[1:]
		}
	}

	// Vector store endpoint from environment
	if url := os.Getenv("QDRANT_URL"); url != "" {
		c.ensureQdrant().URL = url
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" {
		c.ensureQdrant().APIKey = key
	}

	// Embedding backup location from environment
	if path := os.Getenv("EMBEDDING_BACKUP_PATH"); path != "" {
		c.ensureIngest().BackupPath = path
	}
}

func (c *UserConfig) ensureLLM() *LLMConfig {
	if c.LLM == nil {
		c.LLM = &LLMConfig{}
	}
	return c.LLM
}

func (c *UserConfig) ensureEmbedding() *EmbeddingConfig {
	if c.Embedding == nil {
		c.Embedding = &EmbeddingConfig{}
	}
	return c.Embedding
}

func (c *UserConfig) ensureQdrant() *QdrantConfig {
	if c.Qdrant == nil {
		c.Qdrant = &QdrantConfig{}
	}
	return c.Qdrant
}

func (c *UserConfig) ensureIngest() *IngestConfig {
	if c.Ingest == nil {
		c.Ingest = &IngestConfig{}
	}
	return c.Ingest
}
