package config

// SkillsConfig configures skill candidate generation and promotion.
type SkillsConfig struct {
	// SummaryMessages is how many leading transcript messages feed the
	// session summary used for the novelty probe and skill draft.
	SummaryMessages int `json:"summary_messages,omitempty"` // Default: 30

	// MaxDescriptionOverlap rejects a promoted skill whose description
	// shares more than this fraction of words with an existing skill.
	MaxDescriptionOverlap float64 `json:"max_description_overlap,omitempty"` // Default: 0.6
}

// GetSkillsConfig returns skill settings with defaults applied.
func (c *UserConfig) GetSkillsConfig() SkillsConfig {
	var cfg SkillsConfig
	if c.Skills != nil {
		cfg = *c.Skills
	}
	if cfg.SummaryMessages == 0 {
		cfg.SummaryMessages = 30
	}
	if cfg.MaxDescriptionOverlap == 0 {
		cfg.MaxDescriptionOverlap = 0.6
	}
	return cfg
}
