package llm

import (
	"context"
	"fmt"
	"sync"

	"commlink/internal/audio"
)

// MockClient answers deterministically without any network access.
// It backs the "mock" provider and the router tests.
type MockClient struct {
	mu sync.Mutex

	// GenerateFunc overrides the default echo reply when set.
	GenerateFunc func(req Request) (string, error)
	// SpeakFunc overrides the default silent clip when set.
	SpeakFunc func(text string) (audio.Clip, error)

	requests []Request
}

// NewMockClient creates a MockClient.
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Generate(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fn := m.GenerateFunc
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if fn != nil {
		return fn(req)
	}
	return fmt.Sprintf("[%s] I heard %q.", req.Mode, req.Prompt), nil
}

func (m *MockClient) Speak(ctx context.Context, text string) (audio.Clip, error) {
	m.mu.Lock()
	fn := m.SpeakFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(text)
	}
	// 100ms of silence at the default rate.
	return audio.PCM16ToWAV(make([]byte, audio.DefaultSampleRate/10*2), audio.DefaultSampleRate), nil
}

// Requests returns every Generate request received so far.
func (m *MockClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}
