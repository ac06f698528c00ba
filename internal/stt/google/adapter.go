// Package google provides a Google Cloud Speech-to-Text transcriber.
package google

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/ashureev/parley/internal/domain"
	"github.com/ashureev/parley/internal/stt"
)

// Config holds recognition settings.
type Config struct {
	LanguageCode  string
	SampleRateHz  int32
	AudioEncoding string
}

// DefaultConfig returns settings for browser-recorded WAV answers.
func DefaultConfig() Config {
	return Config{LanguageCode: "en-US"}
}

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// Adapter implements stt.Transcriber with synchronous Recognize calls.
type Adapter struct {
	client    *speech.Client
	recognize recognizeFunc
	cfg       Config
}

// New creates a Google STT adapter.
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	a := &Adapter{client: c, cfg: cfg}
	a.recognize = func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return c.Recognize(ctx, req)
	}
	return a, nil
}

// Name implements stt.Transcriber.
func (a *Adapter) Name() string { return "google" }

// Close releases the underlying gRPC connection.
func (a *Adapter) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// Transcribe implements stt.Transcriber.
func (a *Adapter) Transcribe(ctx context.Context, audio stt.Audio) (domain.Transcription, error) {
	if len(audio.Data) == 0 {
		return domain.Transcription{}, stt.ErrEmptyAudio
	}
	req := a.request(audio)
	resp, err := a.recognize(ctx, req)
	if err != nil {
		return domain.Transcription{}, fmt.Errorf("recognize: %w", err)
	}
	out := toTranscription(resp)
	if out.Language == "" {
		out.Language = req.GetConfig().GetLanguageCode()
	}
	return out, nil
}

func (a *Adapter) request(audio stt.Audio) *speechpb.RecognizeRequest {
	lang := audio.Language
	if lang == "" {
		lang = a.cfg.LanguageCode
	}
	if lang == "" {
		lang = "en-US"
	}

	enc := parseAudioEncoding(a.cfg.AudioEncoding)
	if a.cfg.AudioEncoding == "" {
		enc = encodingForContentType(audio.ContentType)
	}
	rate := a.cfg.SampleRateHz
	if rate == 0 && (enc == speechpb.RecognitionConfig_OGG_OPUS || enc == speechpb.RecognitionConfig_WEBM_OPUS) {
		rate = 48000
	}

	return &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   enc,
			SampleRateHertz:            rate,
			LanguageCode:               lang,
			EnableWordTimeOffsets:      true,
			EnableWordConfidence:       true,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio.Data},
		},
	}
}

// toTranscription keeps the top alternative of each result as one segment.
func toTranscription(resp *speechpb.RecognizeResponse) domain.Transcription {
	var out domain.Transcription
	texts := make([]string, 0, len(resp.GetResults()))
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		alt := r.GetAlternatives()[0]
		text := strings.TrimSpace(alt.GetTranscript())
		if text == "" {
			continue
		}
		seg := domain.TranscriptSegment{Text: text}
		// Recognize reports 0 when confidence was not computed.
		if c := alt.GetConfidence(); c > 0 {
			v := float64(c)
			seg.Confidence = &v
		}
		if words := alt.GetWords(); len(words) > 0 {
			start := words[0].GetStartTime().AsDuration().Seconds()
			end := words[len(words)-1].GetEndTime().AsDuration().Seconds()
			seg.Start, seg.End = &start, &end
		}
		if out.Language == "" {
			out.Language = r.GetLanguageCode()
		}
		out.Segments = append(out.Segments, seg)
		texts = append(texts, text)
	}
	out.Text = strings.Join(texts, " ")
	return out
}

func encodingForContentType(ct string) speechpb.RecognitionConfig_AudioEncoding {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "audio/flac", "audio/x-flac":
		return speechpb.RecognitionConfig_FLAC
	case "audio/ogg", "audio/opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "audio/webm":
		return speechpb.RecognitionConfig_WEBM_OPUS
	case "audio/amr":
		return speechpb.RecognitionConfig_AMR
	case "audio/basic", "audio/mulaw":
		return speechpb.RecognitionConfig_MULAW
	default:
		// WAV and unknown types: let the service read the header.
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

func parseAudioEncoding(s string) speechpb.RecognitionConfig_AudioEncoding {
	if v, ok := speechpb.RecognitionConfig_AudioEncoding_value[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return speechpb.RecognitionConfig_AudioEncoding(v)
	}
	return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
}
