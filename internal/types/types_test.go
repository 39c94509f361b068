package types

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionPhase_String(t *testing.T) {
	assert.Equal(t, "Unauthenticated", PhaseUnauthenticated.String())
	assert.Equal(t, "Ready", PhaseReady.String())
	assert.Equal(t, "SessionPhase(9)", SessionPhase(9).String())
}

func TestReminderRecord_Due(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	assert.True(t, ReminderRecord{DueAt: 1_000_000}.Due(now))
	assert.True(t, ReminderRecord{DueAt: 999_999}.Due(now))
	assert.False(t, ReminderRecord{DueAt: 1_000_001}.Due(now))
}

func TestUtterance_IsCompressed(t *testing.T) {
	assert.False(t, Utterance{Text: "hi"}.IsCompressed())
	assert.True(t, Utterance{TokenIndex: IntPtr(0)}.IsCompressed())
}

func TestSenderID_IsAgent(t *testing.T) {
	assert.True(t, SenderBot.IsAgent())
	assert.True(t, SenderReminder.IsAgent())
	assert.False(t, SenderID("user-1").IsAgent())
}

func TestErrorsWrap(t *testing.T) {
	err := fmt.Errorf("call failed after 3 attempts: %w", ErrServiceUnavailable)
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
	assert.False(t, errors.Is(err, ErrMalformedResponse))
}
