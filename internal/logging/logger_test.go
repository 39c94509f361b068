package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func resetLogging(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		mu.Lock()
		opts = Options{}
		mu.Unlock()
		SetLogger(zap.NewNop())
	})
}

func TestGet_AttachesCategory(t *testing.T) {
	resetLogging(t)
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))

	Routing("classified %s", "command")
	StoreDebug("appended seq=%d", 7)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "classified command", entries[0].Message)
	assert.Equal(t, "routing", entries[0].ContextMap()["cat"])
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, "store", entries[1].ContextMap()["cat"])
}

func TestGet_DisabledCategoryIsNoop(t *testing.T) {
	resetLogging(t)
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))

	mu.Lock()
	opts = Options{DebugMode: true, Categories: map[string]bool{"scheduler": false}}
	mu.Unlock()

	assert.False(t, IsCategoryEnabled(CategoryScheduler))
	assert.True(t, IsCategoryEnabled(CategoryRouting))

	Scheduler("tick")
	Routing("still here")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "still here", logs.All()[0].Message)
}

func TestLogger_With(t *testing.T) {
	resetLogging(t)
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))

	Get(CategorySession).With("session_id", "s-1").Info("phase %s", "Ready")

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "s-1", ctx["session_id"])
	assert.Equal(t, "session", ctx["cat"])
}

func TestInitialize_WritesFile(t *testing.T) {
	resetLogging(t)
	path := filepath.Join(t.TempDir(), "logs", "commlink.log")

	require.NoError(t, Initialize(Options{DebugMode: true, Level: "debug", Format: "json", File: path}))
	Get(CategoryAPI).Info("hello %d", 1)
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello 1")
	assert.Contains(t, string(data), `"cat":"api"`)
}

func TestInitialize_ProductionModeIsSilent(t *testing.T) {
	resetLogging(t)
	require.NoError(t, Initialize(Options{DebugMode: false}))
	// Must not panic and must not need any setup.
	Get(CategoryBoot).Error("nothing %s", "written")
}

func TestTimer_StopWithThreshold(t *testing.T) {
	resetLogging(t)
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))

	StartTimer(CategoryAPI, "fast call").StopWithThreshold(time.Hour)
	slow := StartTimer(CategoryAPI, "slow call")
	slow.start = slow.start.Add(-time.Minute)
	elapsed := slow.StopWithThreshold(time.Second)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Contains(t, entries[0].Message, "fast call completed in")
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Contains(t, entries[1].Message, "slow call took")
	assert.Contains(t, entries[1].Message, "(threshold: 1s)")
	assert.GreaterOrEqual(t, elapsed, time.Minute)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
}
