package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"commlink/internal/audio"
	"commlink/internal/gateway"
	"commlink/internal/logging"
)

// HTTPConfig configures HTTPClient.
type HTTPConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	SpeechModel string
	Voice       string
	Timeout     time.Duration
	MaxAttempts int
}

// DefaultHTTPConfig returns sensible defaults.
func DefaultHTTPConfig(apiKey string) HTTPConfig {
	return HTTPConfig{
		APIKey:      apiKey,
		BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
		Model:       "gemini-2.5-flash",
		SpeechModel: "gemini-2.5-flash-preview-tts",
		Voice:       "Kore",
		Timeout:     60 * time.Second,
		MaxAttempts: gateway.DefaultMaxAttempts,
	}
}

// HTTPClient calls generateContent through the retrying gateway.
type HTTPClient struct {
	cfg HTTPConfig
	gw  *gateway.Gateway
}

// NewHTTPClient creates an HTTPClient. Extra gateway options are applied after
// the timeout-bound HTTP client, so tests can replace the sleeper.
func NewHTTPClient(cfg HTTPConfig, opts ...gateway.Option) *HTTPClient {
	def := DefaultHTTPConfig(cfg.APIKey)
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = def.SpeechModel
	}
	if cfg.Voice == "" {
		cfg.Voice = def.Voice
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}

	gwOpts := append([]gateway.Option{gateway.WithHTTPClient(&http.Client{Timeout: cfg.Timeout})}, opts...)
	return &HTTPClient{cfg: cfg, gw: gateway.New(gwOpts...)}
}

func (c *HTTPClient) endpoint(model string) string {
	return fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), model)
}

func (c *HTTPClient) callOpts(expect gateway.Expectation) []gateway.CallOption {
	return []gateway.CallOption{
		gateway.WithMaxAttempts(c.cfg.MaxAttempts),
		gateway.WithExpectation(expect),
		gateway.WithHeader("x-goog-api-key", c.cfg.APIKey),
	}
}

// Generate returns the model's text reply.
func (c *HTTPClient) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	body := gateway.TextRequest(BuildPrompt(req))
	body.GenerationConfig.Temperature = 0.7

	resp, err := c.gw.Call(ctx, c.endpoint(c.cfg.Model), body, c.callOpts(gateway.ExpectCandidateText)...)
	if err != nil {
		return "", fmt.Errorf("generate (%s): %w", req.Mode, err)
	}

	text := resp.Generate.Text()
	logging.API("generate mode=%s completed in %v attempts=%d response_len=%d",
		req.Mode, time.Since(start), resp.Attempts, len(text))
	return text, nil
}

// Speak synthesizes text and returns it as a WAV clip.
func (c *HTTPClient) Speak(ctx context.Context, text string) (audio.Clip, error) {
	body := gateway.TextRequest(text)
	body.GenerationConfig.ResponseModalities = []string{"AUDIO"}
	body.GenerationConfig.SpeechConfig = gateway.NewSpeechConfig(c.cfg.Voice)

	resp, err := c.gw.Call(ctx, c.endpoint(c.cfg.SpeechModel), body, c.callOpts(gateway.ExpectInlineAudio)...)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("speak: %w", err)
	}

	inline := resp.Generate.InlineAudio()
	clip := audio.DecodeInline(inline.Data, inline.MimeType)
	logging.API("speak completed attempts=%d mime=%s wav_bytes=%d", resp.Attempts, inline.MimeType, clip.Len())
	return clip, nil
}
