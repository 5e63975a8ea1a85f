package config

// EmbeddingConfig configures the vector embedding engine.
// Supports Ollama (local) and GenAI (cloud) backends. Both are pinned to
// 384-dimensional output so every collection shares one vector geometry.
type EmbeddingConfig struct {
	// Provider: "ollama" or "genai"
	Provider string `json:"provider,omitempty"`

	// Ollama configuration (local embedding server)
	OllamaEndpoint string `json:"ollama_endpoint,omitempty"` // Default: "http://localhost:11434"
	OllamaModel    string `json:"ollama_model,omitempty"`    // Default: "all-minilm"

	// GenAI configuration (Google cloud embedding)
	GenAIAPIKey string `json:"genai_api_key,omitempty"`
	GenAIModel  string `json:"genai_model,omitempty"` // Default: "text-embedding-004"

	// Dimensions is the vector width every provider must produce.
	Dimensions int `json:"dimensions,omitempty"` // Default: 384

	// CacheSize bounds the in-process LRU of text -> vector entries.
	CacheSize int `json:"cache_size,omitempty"` // Default: 8192
}

// GetEmbeddingConfig returns embedding settings with defaults applied.
func (c *UserConfig) GetEmbeddingConfig() EmbeddingConfig {
	var cfg EmbeddingConfig
	if c.Embedding != nil {
		cfg = *c.Embedding
	}
	if cfg.Provider == "" {
		cfg.Provider = "ollama"
	}
	if cfg.OllamaEndpoint == "" {
		cfg.OllamaEndpoint = "http://localhost:11434"
	}
	if cfg.OllamaModel == "" {
		cfg.OllamaModel = "all-minilm"
	}
	if cfg.GenAIModel == "" {
		cfg.GenAIModel = "text-embedding-004"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 8192
	}
	return cfg
}
