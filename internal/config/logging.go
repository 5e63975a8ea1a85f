package config

// LoggingConfig configures pipeline logging.
type LoggingConfig struct {
	Level      string          `json:"level,omitempty"`      // debug, info, warn, error
	DebugMode  bool            `json:"debug_mode,omitempty"` // Master toggle - false = no log files (production)
	Categories map[string]bool `json:"categories,omitempty"` // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Returns false if debug_mode is false (production mode).
// Returns true if debug_mode is true and category is enabled (or not specified).
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	if c.Categories == nil {
		return true // All enabled by default in debug mode
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true // Enable by default if not specified
	}
	return enabled
}

// GetLoggingConfig returns logging settings with defaults applied.
func (c *UserConfig) GetLoggingConfig() LoggingConfig {
	var cfg LoggingConfig
	if c.Logging != nil {
		cfg = *c.Logging
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	return cfg
}
