package config

// QdrantConfig configures the Qdrant vector store connection.
type QdrantConfig struct {
	// URL of the Qdrant REST endpoint.
	URL string `json:"url,omitempty"` // Default: "http://localhost:6333"

	// APIKey is sent as the api-key header when set (Qdrant Cloud).
	APIKey string `json:"api_key,omitempty"`

	// Timeout in seconds per request (default: 30)
	TimeoutSecs int `json:"timeout_secs,omitempty"`
}

// GetQdrantConfig returns vector store settings with defaults applied.
// The QDRANT_URL environment variable overrides the configured URL.
func (c *UserConfig) GetQdrantConfig() QdrantConfig {
	var cfg QdrantConfig
	if c.Qdrant != nil {
		cfg = *c.Qdrant
	}
	if cfg.URL == "" {
		cfg.URL = "http://localhost:6333"
	}
	if cfg.TimeoutSecs == 0 {
		cfg.TimeoutSecs = 30
	}
	return cfg
}
