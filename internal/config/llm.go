package config

// LLMConfig configures the LLM client used for scoring, insight extraction,
// reflection generation and skill drafting.
type LLMConfig struct {
	// Provider: "gemini", "openai" or "cli"
	Provider string `json:"provider,omitempty"`

	// Model name for the selected provider.
	// Defaults: gemini -> "gemini-2.0-flash", openai -> "gpt-4o-mini".
	Model string `json:"model,omitempty"`

	// Gemini configuration
	GeminiAPIKey string `json:"gemini_api_key,omitempty"`

	// OpenAI-compatible configuration. BaseURL allows local servers
	// (llama.cpp, vLLM, LM Studio) that speak the OpenAI wire format.
	OpenAIAPIKey  string `json:"openai_api_key,omitempty"`
	OpenAIBaseURL string `json:"openai_base_url,omitempty"`

	// CLI configuration. The command is used as a SUBPROCESS LLM API, not
	// as an agent: the prompt goes in on stdin, the completion comes back
	// on stdout, one call per completion.
	CLICommand string   `json:"cli_command,omitempty"` // Default: "claude"
	CLIArgs    []string `json:"cli_args,omitempty"`    // Default: ["-p"]

	// Timeout in seconds per request (default: 120)
	TimeoutSecs int `json:"timeout_secs,omitempty"`
}

// GetLLMConfig returns LLM settings with defaults applied. The provider
// default depends on which credentials are present: an explicit provider
// wins, then a CLI command, then Gemini, then OpenAI.
func (c *UserConfig) GetLLMConfig() LLMConfig {
	var cfg LLMConfig
	if c.LLM != nil {
		cfg = *c.LLM
	}
	if cfg.Provider == "" {
		switch {
		case cfg.CLICommand != "":
			cfg.Provider = "cli"
		case cfg.GeminiAPIKey != "":
			cfg.Provider = "gemini"
		case cfg.OpenAIAPIKey != "":
			cfg.Provider = "openai"
		default:
			cfg.Provider = "cli"
		}
	}
	if cfg.Model == "" {
		switch cfg.Provider {
		case "gemini":
			cfg.Model = "gemini-2.0-flash"
		case "openai":
			cfg.Model = "gpt-4o-mini"
		}
	}
	if cfg.CLICommand == "" {
		cfg.CLICommand = "claude"
	}
	if len(cfg.CLIArgs) == 0 {
		cfg.CLIArgs = []string{"-p"}
	}
	if cfg.TimeoutSecs == 0 {
		cfg.TimeoutSecs = 120
	}
	return cfg
}
