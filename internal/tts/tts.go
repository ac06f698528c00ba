// Package tts turns tutor text into playable audio.
package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"strings"

	"github.com/ashureev/parley/internal/observability/metrics"
)

var (
	// ErrDisabled is returned when no synthesis provider is configured.
	ErrDisabled = errors.New("speech synthesis is disabled")
	// ErrEmptyText is returned when there is nothing to say.
	ErrEmptyText = errors.New("text is required")
	// ErrNoAudio is returned when the provider answered without audio.
	ErrNoAudio = errors.New("provider returned no audio")
)

// Request is one utterance to synthesize.
type Request struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Synthesizer renders text as a WAV file.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

// Disabled is a Synthesizer that always reports ErrDisabled.
type Disabled struct{}

// Synthesize implements Synthesizer.
func (Disabled) Synthesize(context.Context, Request) ([]byte, error) { return nil, ErrDisabled }

// PCM format produced by Gemini speech models.
const (
	SampleRate    = 24000
	BitsPerSample = 16
	Channels      = 1
)

// PCMToWAV prepends a 44 byte RIFF header to signed 16-bit little-endian mono PCM.
func PCMToWAV(pcm []byte) []byte {
	const (
		byteRate   = SampleRate * Channels * BitsPerSample / 8
		blockAlign = Channels * BitsPerSample / 8
	)
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(Channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(BitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// Instrumented validates requests and records synthesis outcomes.
type Instrumented struct {
	next    Synthesizer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Instrument wraps next. A nil metrics uses the process default.
func Instrument(next Synthesizer, m *metrics.Metrics, logger *slog.Logger) *Instrumented {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Instrumented{next: next, metrics: m, logger: logger}
}

// Synthesize implements Synthesizer.
func (s *Instrumented) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return nil, ErrEmptyText
	}
	audio, err := s.next.Synthesize(ctx, req)
	if errors.Is(err, ErrDisabled) {
		return nil, err
	}
	s.metrics.RecordTTS(err)
	if err != nil {
		s.logger.Warn("Speech synthesis failed", "chars", len(req.Text), "error", err)
		return nil, err
	}
	s.logger.Debug("Speech synthesized", "chars", len(req.Text), "bytes", len(audio))
	return audio, nil
}
