package google

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/ashureev/parley/internal/stt"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.LanguageCode)
	}
}

func TestParseAudioEncoding(t *testing.T) {
	tests := []struct {
		input    string
		expected speechpb.RecognitionConfig_AudioEncoding
	}{
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16},
		{"flac", speechpb.RecognitionConfig_FLAC},
		{"WEBM_OPUS", speechpb.RecognitionConfig_WEBM_OPUS},
		{"invalid", speechpb.RecognitionConfig_ENCODING_UNSPECIFIED},
		{"", speechpb.RecognitionConfig_ENCODING_UNSPECIFIED},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseAudioEncoding(tt.input); got != tt.expected {
				t.Errorf("parseAudioEncoding(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestEncodingForContentType(t *testing.T) {
	tests := map[string]speechpb.RecognitionConfig_AudioEncoding{
		"audio/wav":              speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
		"audio/webm;codecs=opus": speechpb.RecognitionConfig_WEBM_OPUS,
		"audio/ogg":              speechpb.RecognitionConfig_OGG_OPUS,
		"AUDIO/FLAC":             speechpb.RecognitionConfig_FLAC,
	}
	for ct, want := range tests {
		if got := encodingForContentType(ct); got != want {
			t.Errorf("encodingForContentType(%q) = %v, want %v", ct, got, want)
		}
	}
}

func word(w string, start, end time.Duration) *speechpb.WordInfo {
	return &speechpb.WordInfo{Word: w, StartTime: durationpb.New(start), EndTime: durationpb.New(end)}
}

func TestTranscribeMapsSegments(t *testing.T) {
	var got *speechpb.RecognizeRequest
	a := &Adapter{
		cfg: DefaultConfig(),
		recognize: func(_ context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			got = req
			return &speechpb.RecognizeResponse{
				Results: []*speechpb.SpeechRecognitionResult{
					{
						Alternatives: []*speechpb.SpeechRecognitionAlternative{{
							Transcript: "I would like a coffee",
							Confidence: 0.93,
							Words: []*speechpb.WordInfo{
								word("I", 0, 200*time.Millisecond),
								word("coffee", 900*time.Millisecond, 1500*time.Millisecond),
							},
						}},
						LanguageCode: "en-us",
					},
					{Alternatives: nil},
					{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " please "}}},
				},
			}, nil
		},
	}

	res, err := a.Transcribe(context.Background(), stt.Audio{Data: []byte{1, 2, 3}, ContentType: "audio/webm", Language: "en-GB"})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	cfg := got.GetConfig()
	if cfg.GetLanguageCode() != "en-GB" || !cfg.GetEnableWordConfidence() || !cfg.GetEnableWordTimeOffsets() {
		t.Errorf("unexpected recognition config: %+v", cfg)
	}
	if cfg.GetEncoding() != speechpb.RecognitionConfig_WEBM_OPUS || cfg.GetSampleRateHertz() != 48000 {
		t.Errorf("encoding = %v rate = %d", cfg.GetEncoding(), cfg.GetSampleRateHertz())
	}

	if res.Text != "I would like a coffee please" {
		t.Errorf("Text = %q", res.Text)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(res.Segments))
	}
	first := res.Segments[0]
	if first.Confidence == nil || *first.Confidence < 0.92 || *first.Confidence > 0.94 {
		t.Errorf("confidence = %v", first.Confidence)
	}
	if first.Start == nil || *first.Start != 0 || first.End == nil || *first.End != 1.5 {
		t.Errorf("offsets = %v..%v", first.Start, first.End)
	}
	if res.Segments[1].Confidence != nil {
		t.Error("zero confidence should be absent")
	}
	if res.Language != "en-us" {
		t.Errorf("Language = %q", res.Language)
	}
}

func TestTranscribeWrapsStatusError(t *testing.T) {
	a := &Adapter{
		cfg: DefaultConfig(),
		recognize: func(context.Context, *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			return nil, status.Error(codes.ResourceExhausted, "quota")
		},
	}
	_, err := a.Transcribe(context.Background(), stt.Audio{Data: []byte{1}})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := stt.ClassifyError(err); got != "quota" {
		t.Errorf("ClassifyError = %q, want quota", got)
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	a := &Adapter{cfg: DefaultConfig()}
	if _, err := a.Transcribe(context.Background(), stt.Audio{}); !errors.Is(err, stt.ErrEmptyAudio) {
		t.Fatalf("err = %v", err)
	}
}
