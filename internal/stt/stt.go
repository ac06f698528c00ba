// Package stt defines the speech-to-text boundary used by the practice API.
package stt

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ashureev/parley/internal/domain"
	"github.com/ashureev/parley/internal/observability/metrics"
)

var (
	// ErrEmptyAudio is returned when no audio bytes were supplied.
	ErrEmptyAudio = errors.New("audio payload is empty")
	// ErrUnknownProvider is returned for an unsupported STT_PROVIDER.
	ErrUnknownProvider = errors.New("unknown stt provider")
)

// Audio is one recorded answer.
type Audio struct {
	Data        []byte
	ContentType string
	// Language is a BCP-47 code such as "en-US".
	Language string
}

// Transcriber turns recorded audio into text with per-segment confidence.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (domain.Transcription, error)
	Name() string
}

// ClassifyError maps provider errors onto a small set of metric labels.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrEmptyAudio):
		return "invalid_argument"
	}
	switch status.Code(err) {
	case codes.InvalidArgument:
		return "invalid_argument"
	case codes.DeadlineExceeded:
		return "timeout"
	case codes.Unavailable:
		return "unavailable"
	case codes.ResourceExhausted:
		return "quota"
	case codes.Unauthenticated, codes.PermissionDenied:
		return "auth"
	case codes.Canceled:
		return "canceled"
	default:
		return "internal"
	}
}

// Instrumented records latency and error metrics around a Transcriber.
type Instrumented struct {
	next    Transcriber
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Instrument wraps next. A nil metrics uses the process default.
func Instrument(next Transcriber, m *metrics.Metrics, logger *slog.Logger) *Instrumented {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Instrumented{next: next, metrics: m, logger: logger}
}

// Name implements Transcriber.
func (t *Instrumented) Name() string { return t.next.Name() }

// Transcribe implements Transcriber.
func (t *Instrumented) Transcribe(ctx context.Context, audio Audio) (domain.Transcription, error) {
	if len(audio.Data) == 0 {
		t.metrics.RecordSTTError(t.next.Name(), ClassifyError(ErrEmptyAudio))
		return domain.Transcription{}, ErrEmptyAudio
	}
	start := time.Now()
	res, err := t.next.Transcribe(ctx, audio)
	if err != nil {
		kind := ClassifyError(err)
		t.metrics.RecordSTTError(t.next.Name(), kind)
		t.logger.Warn("Transcription failed", "provider", t.next.Name(), "error_type", kind, "error", err)
		return domain.Transcription{}, err
	}
	t.metrics.RecordSTT(t.next.Name(), time.Since(start).Seconds())
	t.logger.Debug("Transcription completed",
		"provider", t.next.Name(),
		"segments", len(res.Segments),
		"bytes", len(audio.Data),
	)
	return res, nil
}
