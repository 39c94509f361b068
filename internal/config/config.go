package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all commlink configuration.
type Config struct {
	// Core settings
	Name string `yaml:"name"`

	// Durable store backing history and reminders
	Store StoreConfig `yaml:"store"`

	// Generative endpoint
	LLM LLMConfig `yaml:"llm"`

	// Reminder polling
	Reminders RemindersConfig `yaml:"reminders"`

	// Session bootstrap and authorization
	Session SessionConfig `yaml:"session"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Synthesized speech output
	Audio AudioConfig `yaml:"audio"`

	// Optional override of the built-in phrase dictionary.
	// Indices are positional, so editing this list remaps stored tokens.
	Dictionary []string `yaml:"dictionary,omitempty"`
}

// AudioConfig configures where /speak output is written.
type AudioConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "commlink",

		Store: StoreConfig{
			Driver: "sqlite",
			Path:   filepath.Join(".commlink", "commlink.db"),
		},

		LLM: LLMConfig{
			Provider:    "http",
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
			Model:       "gemini-2.5-flash",
			SpeechModel: "gemini-2.5-flash-preview-tts",
			Voice:       "Kore",
			Timeout:     "60s",
			MaxAttempts: 3,
		},

		Reminders: RemindersConfig{
			PollInterval: "12s",
			BatchSize:    10,
		},

		Session: SessionConfig{
			HandshakeStep: "400ms",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   filepath.Join(".commlink", "logs", "commlink.log"),
		},

		Audio: AudioConfig{
			OutputDir: filepath.Join(".commlink", "audio"),
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file is not an error; defaults plus environment overrides are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// GEMINI_API_KEY is the shared fallback; COMMLINK_API_KEY wins when both are set.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("COMMLINK_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if provider := os.Getenv("COMMLINK_LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}

	if token := os.Getenv("COMMLINK_TOKEN"); token != "" {
		c.Session.Token = token
	}

	if path := os.Getenv("COMMLINK_STORE_PATH"); path != "" {
		c.Store.Path = path
	}
	if driver := os.Getenv("COMMLINK_STORE_DRIVER"); driver != "" {
		c.Store.Driver = driver
	}
}

// ValidProviders lists all supported generative providers.
var ValidProviders = []string{"http", "genai", "mock"}

// MaxLLMAttempts bounds llm.max_attempts.
const MaxLLMAttempts = 10

// ValidDrivers lists all supported store drivers.
var ValidDrivers = []string{"memory", "sqlite", "sqlite3"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !contains(ValidProviders, c.LLM.Provider) {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}
	if c.LLM.Provider != "mock" && c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set COMMLINK_API_KEY or GEMINI_API_KEY, or use provider mock)")
	}
	if c.LLM.MaxAttempts < 1 || c.LLM.MaxAttempts > MaxLLMAttempts {
		return fmt.Errorf("llm.max_attempts must be between 1 and %d, got %d", MaxLLMAttempts, c.LLM.MaxAttempts)
	}

	if !contains(ValidDrivers, c.Store.Driver) {
		return fmt.Errorf("invalid store driver: %s (valid: %v)", c.Store.Driver, ValidDrivers)
	}
	if c.Store.Driver != "memory" && strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path is required for driver %s", c.Store.Driver)
	}

	if c.Reminders.BatchSize < 1 {
		return fmt.Errorf("reminders.batch_size must be at least 1, got %d", c.Reminders.BatchSize)
	}

	seen := make(map[string]int, len(c.Dictionary))
	for i, phrase := range c.Dictionary {
		key := strings.ToLower(strings.TrimSpace(phrase))
		if key == "" {
			return fmt.Errorf("dictionary entry %d is empty", i)
		}
		if j, dup := seen[key]; dup {
			return fmt.Errorf("dictionary entry %d duplicates entry %d (%q)", i, j, phrase)
		}
		seen[key] = i
	}

	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
