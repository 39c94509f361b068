// Package llm talks to the generative endpoint for text replies and speech.
package llm

import (
	"context"
	"fmt"

	"commlink/internal/audio"
	"commlink/internal/config"
)

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one prior message given to the model as context.
type Turn struct {
	Role Role
	Text string
}

// Request is a single text generation.
type Request struct {
	Mode    Mode
	History []Turn
	Prompt  string
}

// Client generates text and speech.
//
// Errors wrap types.ErrServiceUnavailable when the endpoint could not be
// reached and types.ErrMalformedResponse when it answered without the
// expected content.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
	Speak(ctx context.Context, text string) (audio.Clip, error)
}

// NewClient creates a Client for cfg.LLM.Provider.
func NewClient(ctx context.Context, cfg *config.Config) (Client, error) {
	switch cfg.LLM.Provider {
	case "http":
		return NewHTTPClient(HTTPConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			SpeechModel: cfg.LLM.SpeechModel,
			Voice:       cfg.LLM.Voice,
			Timeout:     cfg.GetLLMTimeout(),
			MaxAttempts: cfg.LLM.MaxAttempts,
		}), nil
	case "genai":
		return NewGenAIClient(ctx, GenAIConfig{
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			SpeechModel: cfg.LLM.SpeechModel,
			Voice:       cfg.LLM.Voice,
		})
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
}
