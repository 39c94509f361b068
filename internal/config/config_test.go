package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEMINI_API_KEY", "COMMLINK_API_KEY", "COMMLINK_LLM_PROVIDER",
		"COMMLINK_TOKEN", "COMMLINK_STORE_PATH", "COMMLINK_STORE_DRIVER",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "commlink", cfg.Name)
	assert.Equal(t, "http", cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.LLM.MaxAttempts)
	assert.Equal(t, 10, cfg.Reminders.BatchSize)
	assert.Equal(t, 12*time.Second, cfg.GetPollInterval())
	assert.Equal(t, 400*time.Millisecond, cfg.GetHandshakeStep())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.LLM.APIKey = "k-test"
	cfg.Store.Driver = "memory"
	cfg.Session.Admins = []string{"ops"}
	cfg.Dictionary = []string{"hello", "bye"}

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "k-test", loaded.LLM.APIKey)
	assert.Equal(t, "memory", loaded.Store.Driver)
	assert.Equal(t, []string{"hello", "bye"}, loaded.Dictionary)
	assert.True(t, loaded.IsAdmin("ops"))
	assert.False(t, loaded.IsAdmin("guest"))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("COMMLINK_LLM_PROVIDER", "mock")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
}

func TestLoad_PartialYAMLKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: mock\nreminders:\n  poll_interval: 2s\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.GetPollInterval())
	assert.Equal(t, 10, cfg.Reminders.BatchSize)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestEnvOverrides(t *testing.T) {
	t.Run("COMMLINK_API_KEY wins over GEMINI_API_KEY", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", "gem")
		t.Setenv("COMMLINK_API_KEY", "own")

		cfg := &Config{}
		cfg.applyEnvOverrides()
		assert.Equal(t, "own", cfg.LLM.APIKey)
	})

	t.Run("GEMINI_API_KEY alone", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", "gem")

		cfg := &Config{}
		cfg.applyEnvOverrides()
		assert.Equal(t, "gem", cfg.LLM.APIKey)
	})

	t.Run("session and store", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("COMMLINK_TOKEN", "tok")
		t.Setenv("COMMLINK_STORE_PATH", "/tmp/x.db")
		t.Setenv("COMMLINK_STORE_DRIVER", "sqlite3")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "tok", cfg.Session.Token)
		assert.Equal(t, "/tmp/x.db", cfg.Store.Path)
		assert.Equal(t, "sqlite3", cfg.Store.Driver)
	})

	t.Run("empty values do not override", func(t *testing.T) {
		clearEnv(t)
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, DefaultConfig().Store, cfg.Store)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.LLM.APIKey = "k"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults with key", func(*Config) {}, ""},
		{"mock needs no key", func(c *Config) { c.LLM.Provider = "mock"; c.LLM.APIKey = "" }, ""},
		{"missing key", func(c *Config) { c.LLM.APIKey = "" }, "API key not configured"},
		{"bad provider", func(c *Config) { c.LLM.Provider = "openai" }, "invalid LLM provider"},
		{"bad driver", func(c *Config) { c.Store.Driver = "postgres" }, "invalid store driver"},
		{"sqlite without path", func(c *Config) { c.Store.Path = " " }, "store.path is required"},
		{"memory without path", func(c *Config) { c.Store.Driver = "memory"; c.Store.Path = "" }, ""},
		{"zero attempts", func(c *Config) { c.LLM.MaxAttempts = 0 }, "max_attempts"},
		{"too many attempts", func(c *Config) { c.LLM.MaxAttempts = 64 }, "max_attempts must be between 1 and 10"},
		{"attempts at cap", func(c *Config) { c.LLM.MaxAttempts = MaxLLMAttempts }, ""},
		{"zero batch", func(c *Config) { c.Reminders.BatchSize = 0 }, "batch_size"},
		{"empty phrase", func(c *Config) { c.Dictionary = []string{"hi", "  "} }, "entry 1 is empty"},
		{"duplicate phrase", func(c *Config) { c.Dictionary = []string{"Hi", "hi "} }, "duplicates entry 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDurationAccessors_FallBack(t *testing.T) {
	cfg := &Config{}
	cfg.LLM.Timeout = "soon"
	cfg.Reminders.PollInterval = "-1s"
	cfg.Session.HandshakeStep = "0s"

	assert.Equal(t, 60*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, 12*time.Second, cfg.GetPollInterval())
	assert.Equal(t, time.Duration(0), cfg.GetHandshakeStep())
}
