package config

// ScoringConfig configures LLM quality scoring and insight extraction.
type ScoringConfig struct {
	// BatchSize is how many chunks are scored per LLM request.
	BatchSize int `json:"batch_size,omitempty"` // Default: 25

	// Concurrency bounds how many scoring requests run in parallel.
	Concurrency int `json:"concurrency,omitempty"` // Default: 3

	// TimeoutSecs bounds each scoring request.
	TimeoutSecs int `json:"timeout_secs,omitempty"` // Default: 120

	// Insight extraction: contrastive pairs per session and per request.
	MaxPairs        int `json:"max_pairs,omitempty"`         // Default: 10
	PairsPerRequest int `json:"pairs_per_request,omitempty"` // Default: 3

	// MinInsightChars drops chunks too short to pair meaningfully.
	MinInsightChars int `json:"min_insight_chars,omitempty"` // Default: 200
}

// GetScoringConfig returns scoring settings with defaults applied.
func (c *UserConfig) GetScoringConfig() ScoringConfig {
	var cfg ScoringConfig
	if c.Scoring != nil {
		cfg = *c.Scoring
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 25
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 3
	}
	if cfg.TimeoutSecs == 0 {
		cfg.TimeoutSecs = 120
	}
	if cfg.MaxPairs == 0 {
		cfg.MaxPairs = 10
	}
	if cfg.PairsPerRequest == 0 {
		cfg.PairsPerRequest = 3
	}
	if cfg.MinInsightChars == 0 {
		cfg.MinInsightChars = 200
	}
	return cfg
}
