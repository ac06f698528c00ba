// Package gemini synthesizes tutor speech with Gemini's audio output.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/ashureev/parley/internal/tts"
)

// DefaultModel and DefaultVoice are used when config leaves them empty.
const (
	DefaultModel = "gemini-2.5-flash-preview-tts"
	DefaultVoice = "Aoede"
)

// Synthesizer implements tts.Synthesizer.
type Synthesizer struct {
	client *genai.Client
	model  string
	voice  string
}

// New creates a Gemini synthesizer.
func New(ctx context.Context, apiKey, model, voice string) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini tts: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	if voice == "" {
		voice = DefaultVoice
	}
	return &Synthesizer{client: client, model: model, voice: voice}, nil
}

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: req.Text}}}},
		speechConfig(s.voiceFor(req)),
	)
	if err != nil {
		return nil, fmt.Errorf("generate speech: %w", err)
	}
	pcm := inlineAudio(resp)
	if len(pcm) == 0 {
		return nil, tts.ErrNoAudio
	}
	return tts.PCMToWAV(pcm), nil
}

func (s *Synthesizer) voiceFor(req tts.Request) string {
	if req.Voice != "" {
		return req.Voice
	}
	return s.voice
}

func speechConfig(voice string) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		ResponseModalities: []string{"audio"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}
}

// inlineAudio returns the first inline audio part of resp.
func inlineAudio(resp *genai.GenerateContentResponse) []byte {
	if resp == nil {
		return nil
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
				return p.InlineData.Data
			}
		}
	}
	return nil
}
