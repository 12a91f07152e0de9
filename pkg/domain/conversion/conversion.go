package conversion

import "strings"

const (
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMBaseURL = "https://api.openai.com/v1"
)

// Result is what /v1/convert returns.
type Result struct {
	Filename string `json:"filename"`
	Markdown string `json:"markdown"`
}

// LLMConfig carries per-request credentials for an OpenAI-compatible API.
type LLMConfig struct {
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	Model   string `json:"model" mapstructure:"model"`
}

// Enabled reports whether an LLM should be used for this request.
func (c *LLMConfig) Enabled() bool {
	return c != nil && strings.TrimSpace(c.APIKey) != ""
}

// WithDefaults fills an empty model or base URL.
func (c LLMConfig) WithDefaults(baseURL, model string) LLMConfig {
	if baseURL == "" {
		baseURL = DefaultLLMBaseURL
	}
	if model == "" {
		model = DefaultLLMModel
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = baseURL
	}
	if strings.TrimSpace(c.Model) == "" {
		c.Model = model
	}
	return c
}

type Settings struct {
	Cleanup bool `json:"cleanup" mapstructure:"cleanup"`
}

func DefaultSettings() Settings {
	return Settings{Cleanup: true}
}
