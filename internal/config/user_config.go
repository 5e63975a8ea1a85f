package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// UserConfig holds ALL hindsight configuration from the workspace config.json.
// This is the single source of truth for configuration.
//
// The pipeline options (approval mode, thresholds, reinforcement parameters)
// live at the top level under their documented camelCase keys; subsystem
// settings (vector store, embedding, LLM, logging) are nested objects.
type UserConfig struct {
	// =========================================================================
	// RULE LIFECYCLE
	// =========================================================================

	// ApprovalMode controls what happens to validated rules:
	// "autonomous" applies them, "propose-and-confirm" stages them as
	// proposed, "review-only" persists nothing.
	ApprovalMode string `json:"approvalMode,omitempty"`

	// MaxActiveRules is the hard cap on concurrently active rules. On
	// overflow the least-reinforced active rule is retired first.
	MaxActiveRules int `json:"maxActiveRules,omitempty"`

	// StalenessThresholdDays is the age without reinforcement after which a
	// rule is eligible for retirement.
	StalenessThresholdDays int `json:"stalenessThresholdDays,omitempty"`

	// MinReinforcementsToKeep retires rules with fewer reinforcements at
	// staleness. Rules with >= 10 reinforcements are exempt from pruning.
	MinReinforcementsToKeep int `json:"minReinforcementsToKeep,omitempty"`

	// DeduplicationSimilarity is the cosine similarity above which a new
	// rule is rejected as a duplicate of an active one.
	DeduplicationSimilarity float64 `json:"deduplicationSimilarity,omitempty"`

	// =========================================================================
	// EXTRACTION THRESHOLDS
	// =========================================================================

	// NoveltyThreshold: if the mean similarity to the top-3 prior sessions
	// is >= this, the session is not novel and no skill is proposed.
	NoveltyThreshold float64 `json:"noveltyThreshold,omitempty"`

	// QualityThresholdSuccess is the integer cutoff for "high-quality" chunks.
	QualityThresholdSuccess int `json:"qualityThresholdSuccess,omitempty"`

	// QualityThresholdFailure is the integer cutoff for "low-quality" chunks.
	QualityThresholdFailure int `json:"qualityThresholdFailure,omitempty"`

	// =========================================================================
	// REINFORCEMENT SCANS
	// =========================================================================

	ReinforcementWindowDays     int     `json:"reinforcementWindowDays,omitempty"`
	ReinforcementScoreThreshold float64 `json:"reinforcementScoreThreshold,omitempty"`
	ReinforcementQualityMin     int     `json:"reinforcementQualityMin,omitempty"`
	ReinforcementSearchLimit    int     `json:"reinforcementSearchLimit,omitempty"`

	// =========================================================================
	// SUBSYSTEMS
	// =========================================================================

	// Vector store endpoint configuration
	Qdrant *QdrantConfig `json:"qdrant,omitempty"`

	// Embedding engine configuration
	Embedding *EmbeddingConfig `json:"embedding,omitempty"`

	// LLM client configuration
	LLM *LLMConfig `json:"llm,omitempty"`

	// Ingestion and chunking configuration
	Ingest *IngestConfig `json:"ingest,omitempty"`

	// Quality scoring configuration
	Scoring *ScoringConfig `json:"scoring,omitempty"`

	// Skill proposal configuration
	Skills *SkillsConfig `json:"skills,omitempty"`

	// Logging configuration
	Logging *LoggingConfig `json:"logging,omitempty"`
}

// Approval modes.
const (
	ApprovalAutonomous        = "autonomous"
	ApprovalProposeAndConfirm = "propose-and-confirm"
	ApprovalReviewOnly        = "review-only"
)

// RulesConfig bundles the rule lifecycle options with defaults applied.
type RulesConfig struct {
	ApprovalMode            string
	MaxActiveRules          int
	StalenessThresholdDays  int
	MinReinforcementsToKeep int
	DeduplicationSimilarity float64
}

// GetRulesConfig returns the rule lifecycle options with defaults.
func (c *UserConfig) GetRulesConfig() RulesConfig {
	cfg := RulesConfig{
		ApprovalMode:            c.ApprovalMode,
		MaxActiveRules:          c.MaxActiveRules,
		StalenessThresholdDays:  c.StalenessThresholdDays,
		MinReinforcementsToKeep: c.MinReinforcementsToKeep,
		DeduplicationSimilarity: c.DeduplicationSimilarity,
	}
	if cfg.ApprovalMode == "" {
		cfg.ApprovalMode = ApprovalProposeAndConfirm
	}
	if cfg.MaxActiveRules == 0 {
		cfg.MaxActiveRules = 50
	}
	if cfg.StalenessThresholdDays == 0 {
		cfg.StalenessThresholdDays = 30
	}
	if cfg.MinReinforcementsToKeep == 0 {
		cfg.MinReinforcementsToKeep = 3
	}
	if cfg.DeduplicationSimilarity == 0 {
		cfg.DeduplicationSimilarity = 0.85
	}
	return cfg
}

// ReinforcementConfig bundles the reinforcement scan parameters with defaults.
type ReinforcementConfig struct {
	WindowDays     int
	ScoreThreshold float64
	QualityMin     int
	SearchLimit    int
}

// GetReinforcementConfig returns the reinforcement scan parameters with defaults.
func (c *UserConfig) GetReinforcementConfig() ReinforcementConfig {
	cfg := ReinforcementConfig{
		WindowDays:     c.ReinforcementWindowDays,
		ScoreThreshold: c.ReinforcementScoreThreshold,
		QualityMin:     c.ReinforcementQualityMin,
		SearchLimit:    c.ReinforcementSearchLimit,
	}
	if cfg.WindowDays == 0 {
		cfg.WindowDays = 7
	}
	if cfg.ScoreThreshold == 0 {
		cfg.ScoreThreshold = 0.5
	}
	if cfg.QualityMin == 0 {
		cfg.QualityMin = 6
	}
	if cfg.SearchLimit == 0 {
		cfg.SearchLimit = 25
	}
	return cfg
}

// GetQualityThresholds returns the high/low quality cutoffs with defaults.
func (c *UserConfig) GetQualityThresholds() (success, failure int) {
	success = c.QualityThresholdSuccess
	failure = c.QualityThresholdFailure
	if success == 0 {
		success = 7
	}
	if failure == 0 {
		failure = 3
	}
	return success, failure
}

// GetNoveltyThreshold returns the skill novelty cutoff with its default.
func (c *UserConfig) GetNoveltyThreshold() float64 {
	if c.NoveltyThreshold == 0 {
		return 0.85
	}
	return c.NoveltyThreshold
}

// Validate checks the loaded configuration for values the pipeline cannot
// run with. Returns a *ConfigError on the first violation.
func (c *UserConfig) Validate() error {
	switch c.ApprovalMode {
	case "", ApprovalAutonomous, ApprovalProposeAndConfirm, ApprovalReviewOnly:
	default:
		return &ConfigError{
			Field:  "approvalMode",
			Reason: fmt.Sprintf("unknown mode %q (valid: autonomous, propose-and-confirm, review-only)", c.ApprovalMode),
		}
	}
	if c.MaxActiveRules < 0 {
		return &ConfigError{Field: "maxActiveRules", Reason: "must be non-negative"}
	}
	if c.DeduplicationSimilarity < 0 || c.DeduplicationSimilarity > 1 {
		return &ConfigError{Field: "deduplicationSimilarity", Reason: "must be in [0,1]"}
	}
	if c.NoveltyThreshold < 0 || c.NoveltyThreshold > 1 {
		return &ConfigError{Field: "noveltyThreshold", Reason: "must be in [0,1]"}
	}
	if c.ReinforcementScoreThreshold < -1 || c.ReinforcementScoreThreshold > 1 {
		return &ConfigError{Field: "reinforcementScoreThreshold", Reason: "must be in [-1,1]"}
	}
	if c.QualityThresholdSuccess < 0 || c.QualityThresholdSuccess > 10 {
		return &ConfigError{Field: "qualityThresholdSuccess", Reason: "must be in [0,10]"}
	}
	if c.QualityThresholdFailure < 0 || c.QualityThresholdFailure > 10 {
		return &ConfigError{Field: "qualityThresholdFailure", Reason: "must be in [0,10]"}
	}
	return nil
}

// LoadUserConfig loads configuration from the given path. A missing file
// yields an empty config (defaults available via the Get* methods); a
// malformed file or invalid values yield a *ConfigError.
func LoadUserConfig(path string) (*UserConfig, error) {
	cfg := &UserConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, &ConfigError{Path: path, Reason: "read failed", Err: err}
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Path: path, Reason: "parse failed", Err: err}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration back to disk.
func (c *UserConfig) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GlobalConfig loads config from the workspace root discovered by
// FindWorkspaceRoot. Returns an empty config if the file doesn't exist.
func GlobalConfig() (*UserConfig, error) {
	return LoadUserConfig(DefaultUserConfigPath())
}
