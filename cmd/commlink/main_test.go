package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv writes a config that uses the mock provider and a sqlite file in
// a temp dir, and clears environment overrides.
func testEnv(t *testing.T) (configPath, dir string) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "COMMLINK_API_KEY", "COMMLINK_LLM_PROVIDER", "COMMLINK_TOKEN", "COMMLINK_STORE_PATH", "COMMLINK_STORE_DRIVER"} {
		t.Setenv(k, "")
	}

	dir = t.TempDir()
	configPath = filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf(`store:
  driver: sqlite
  path: %s
llm:
  provider: mock
session:
  handshake_step: 0s
  admins: [ops]
audio:
  output_dir: %s
logging:
  debug_mode: false
`, filepath.Join(dir, "commlink.db"), filepath.Join(dir, "audio"))
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0644))
	return configPath, dir
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", configPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTokensCommand(t *testing.T) {
	cfg, _ := testEnv(t)

	out, err := run(t, cfg, "tokens")
	require.NoError(t, err)
	assert.Contains(t, out, "dictionary version ")
	assert.Contains(t, out, "  0  hello\n")
	assert.Contains(t, out, " 14  love you\n")
}

func TestSendChat(t *testing.T) {
	cfg, _ := testEnv(t)

	out, err := run(t, cfg, "send", "how", "is", "it", "going")
	require.NoError(t, err)
	assert.Equal(t, "[chat] I heard \"how is it going\".\n", out)
}

func TestSendTokenThenHistory(t *testing.T) {
	cfg, _ := testEnv(t)

	out, err := run(t, cfg, "send", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "(sent as token 0)\n", out)

	out, err = run(t, cfg, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "hello (token 0)")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestSendRemindMeThenList(t *testing.T) {
	cfg, _ := testEnv(t)

	out, err := run(t, cfg, "send", "/remindme", "10m", `"stretch"`)
	require.NoError(t, err)
	assert.Contains(t, out, `⏰ Reminder set for 10m from now`)

	out, err = run(t, cfg, "reminders")
	require.NoError(t, err)
	assert.Contains(t, out, "MESSAGE")
	assert.Contains(t, out, "stretch")
}

func TestRemindersEmpty(t *testing.T) {
	cfg, _ := testEnv(t)
	out, err := run(t, cfg, "reminders")
	require.NoError(t, err)
	assert.Equal(t, "No pending reminders.\n", out)
}

func TestHistoryEmpty(t *testing.T) {
	cfg, _ := testEnv(t)
	out, err := run(t, cfg, "history")
	require.NoError(t, err)
	assert.Equal(t, "No messages yet.\n", out)
}

func TestSendSpeakWritesWAV(t *testing.T) {
	cfg, dir := testEnv(t)

	out, err := run(t, cfg, "send", "/speak", "good", "night")
	require.NoError(t, err)
	assert.Contains(t, out, "🔊 good night")
	assert.Contains(t, out, "audio: ")

	files, err := filepath.Glob(filepath.Join(dir, "audio", "*.wav"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))
}

func TestSendAdminDenied(t *testing.T) {
	cfg, _ := testEnv(t)

	out, err := run(t, cfg, "send", "/admin")
	require.NoError(t, err)
	assert.Contains(t, out, "restricted")
}

func TestSendAdminAllowedForConfiguredAdmin(t *testing.T) {
	cfg, _ := testEnv(t)
	t.Setenv("COMMLINK_TOKEN", "ops-token")
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("ops-token")).String()

	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	data = []byte(strings.Replace(string(data), "admins: [ops]", "admins: ["+id+"]", 1))
	require.NoError(t, os.WriteFile(cfg, data, 0644))

	out, err := run(t, cfg, "send", "/admin")
	require.NoError(t, err)
	assert.Contains(t, out, "- identity: "+id)
	assert.Contains(t, out, "- store: sqlite(sqlite:")
}

func TestInvalidConfig(t *testing.T) {
	cfg, _ := testEnv(t)
	t.Setenv("COMMLINK_LLM_PROVIDER", "carrier-pigeon")

	_, err := run(t, cfg, "tokens")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid LLM provider")
}
