package gemini

import (
	"testing"

	"google.golang.org/genai"

	"github.com/ashureev/parley/internal/tts"
)

func TestInlineAudio(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []*genai.Part{
				{Text: "ignored"},
				{InlineData: &genai.Blob{MIMEType: "audio/L16;rate=24000", Data: []byte{1, 2, 3, 4}}},
			}}},
		},
	}
	if got := inlineAudio(resp); len(got) != 4 {
		t.Fatalf("inlineAudio = %v", got)
	}
	if inlineAudio(nil) != nil || inlineAudio(&genai.GenerateContentResponse{}) != nil {
		t.Fatal("expected nil for empty responses")
	}
}

func TestSpeechConfigUsesVoice(t *testing.T) {
	cfg := speechConfig("Kore")
	if cfg.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Kore" {
		t.Fatalf("voice = %q", cfg.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	}
	if len(cfg.ResponseModalities) != 1 || cfg.ResponseModalities[0] != "audio" {
		t.Fatalf("modalities = %v", cfg.ResponseModalities)
	}
}

func TestVoiceFor(t *testing.T) {
	s := &Synthesizer{voice: DefaultVoice}
	if got := s.voiceFor(tts.Request{}); got != DefaultVoice {
		t.Errorf("default voice = %q", got)
	}
	if got := s.voiceFor(tts.Request{Voice: "Puck"}); got != "Puck" {
		t.Errorf("override voice = %q", got)
	}
}
