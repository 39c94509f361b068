package gateway

import "strings"

// Content is one turn in a generateContent request.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is one piece of content. Responses carry either Text or InlineData.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData is a base64 payload with its mime type, e.g. "audio/L16;rate=24000".
type InlineData struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// GenerationConfig represents generation parameters.
type GenerationConfig struct {
	Temperature        float64       `json:"temperature,omitempty"`
	MaxOutputTokens    int           `json:"maxOutputTokens,omitempty"`
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

// SpeechConfig selects a prebuilt voice for audio responses.
type SpeechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

// NewSpeechConfig returns a SpeechConfig for the named voice.
func NewSpeechConfig(voice string) *SpeechConfig {
	sc := &SpeechConfig{}
	sc.VoiceConfig.PrebuiltVoiceConfig.VoiceName = voice
	return sc
}

// GenerateRequest is the generateContent request body.
type GenerateRequest struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig,omitempty"`
}

// TextRequest builds a single-turn user request.
func TextRequest(prompt string) GenerateRequest {
	return GenerateRequest{
		Contents: []Content{{Role: "user", Parts: []Part{{Text: prompt}}}},
	}
}

// GenerateResponse is the subset of the generateContent response we read.
type GenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []Part `json:"parts"`
			Role  string `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func (r *GenerateResponse) parts() []Part {
	if r == nil || len(r.Candidates) == 0 {
		return nil
	}
	return r.Candidates[0].Content.Parts
}

// Text concatenates the text parts of the first candidate.
func (r *GenerateResponse) Text() string {
	var sb strings.Builder
	for _, p := range r.parts() {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String())
}

// InlineAudio returns the first inline payload of the first candidate, or nil.
func (r *GenerateResponse) InlineAudio() *InlineData {
	for _, p := range r.parts() {
		if p.InlineData != nil && p.InlineData.Data != "" {
			return p.InlineData
		}
	}
	return nil
}
