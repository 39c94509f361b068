package config

import "time"

// LLMConfig configures the generative endpoint.
type LLMConfig struct {
	Provider    string `yaml:"provider"` // http, genai, mock
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	SpeechModel string `yaml:"speech_model"`
	Voice       string `yaml:"voice"`
	Timeout     string `yaml:"timeout"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// GetLLMTimeout returns the per-request timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}
