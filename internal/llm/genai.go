package llm

import (
	"context"
	"fmt"

	"commlink/internal/audio"
	"commlink/internal/logging"
	"commlink/internal/types"

	"google.golang.org/genai"
)

// GenAIConfig configures GenAIClient.
type GenAIConfig struct {
	APIKey      string
	Model       string
	SpeechModel string
	Voice       string
}

// GenAIClient uses the official Gemini SDK instead of the raw gateway.
// The SDK does its own retrying, so every failure maps to ErrServiceUnavailable.
type GenAIClient struct {
	client      *genai.Client
	model       string
	speechModel string
	voice       string
}

// NewGenAIClient creates a GenAIClient.
func NewGenAIClient(ctx context.Context, cfg GenAIConfig) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	def := DefaultHTTPConfig(cfg.APIKey)
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = def.SpeechModel
	}
	if cfg.Voice == "" {
		cfg.Voice = def.Voice
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{
		client:      client,
		model:       cfg.Model,
		speechModel: cfg.SpeechModel,
		voice:       cfg.Voice,
	}, nil
}

// Generate implements Client using multi-turn contents.
func (g *GenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, t := range req.History {
		role := genai.Role(genai.RoleUser)
		if t.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	if req.Prompt != "" {
		contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("%w: empty request", types.ErrValidation)
	}

	temp := float32(0.7)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(BuildSystemPrompt(req.Mode), genai.RoleUser),
		Temperature:       &temp,
	}

	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("%w: genai generate content: %v", types.ErrServiceUnavailable, err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("%w: genai returned empty text", types.ErrMalformedResponse)
	}
	logging.APIDebug("genai generate mode=%s response_len=%d", req.Mode, len(text))
	return text, nil
}

// Speak implements Client. The SDK already base64-decodes inline data.
func (g *GenAIClient) Speak(ctx context.Context, text string) (audio.Clip, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.voice},
			},
		},
	}

	res, err := g.client.Models.GenerateContent(ctx, g.speechModel, genai.Text(text), cfg)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("%w: genai speech: %v", types.ErrServiceUnavailable, err)
	}

	blob := firstInlineData(res)
	if blob == nil {
		return audio.Clip{}, fmt.Errorf("%w: genai returned no inline audio", types.ErrMalformedResponse)
	}
	return audio.PCM16ToWAV(blob.Data, audio.ParseSampleRate(blob.MIMEType)), nil
}

func firstInlineData(res *genai.GenerateContentResponse) *genai.Blob {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return nil
	}
	for _, p := range res.Candidates[0].Content.Parts {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return p.InlineData
		}
	}
	return nil
}
