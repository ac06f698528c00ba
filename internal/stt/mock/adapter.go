// Package mock provides a deterministic transcriber for development without
// cloud credentials.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/ashureev/parley/internal/domain"
	"github.com/ashureev/parley/internal/stt"
)

// Utterance is one canned answer split into segments.
type Utterance struct {
	Segments    []string
	Confidences []float64
}

// DefaultUtterances cycles through plausible learner answers.
var DefaultUtterances = []Utterance{
	{
		Segments:    []string{"Hi, my name is Ana", "and I work as a designer"},
		Confidences: []float64{0.95, 0.92},
	},
	{
		Segments:    []string{"I would like to order", "a cup of coffee please"},
		Confidences: []float64{0.97, 0.91},
	},
	{
		Segments:    []string{"Yesterday I goed", "to the market"},
		Confidences: []float64{0.78, 0.9},
	},
}

// Adapter implements stt.Transcriber by replaying utterances in order.
type Adapter struct {
	mu         sync.Mutex
	utterances []Utterance
	next       int
}

// New creates a mock transcriber. With no utterances it uses DefaultUtterances.
func New(utterances ...Utterance) *Adapter {
	if len(utterances) == 0 {
		utterances = DefaultUtterances
	}
	return &Adapter{utterances: utterances}
}

// Name implements stt.Transcriber.
func (a *Adapter) Name() string { return "mock" }

// Transcribe implements stt.Transcriber. Each segment lasts one second.
func (a *Adapter) Transcribe(ctx context.Context, audio stt.Audio) (domain.Transcription, error) {
	if err := ctx.Err(); err != nil {
		return domain.Transcription{}, err
	}
	if len(audio.Data) == 0 {
		return domain.Transcription{}, stt.ErrEmptyAudio
	}

	a.mu.Lock()
	u := a.utterances[a.next%len(a.utterances)]
	a.next++
	a.mu.Unlock()

	lang := audio.Language
	if lang == "" {
		lang = "en-US"
	}
	out := domain.Transcription{Language: lang, Text: strings.Join(u.Segments, " ")}
	for i, text := range u.Segments {
		start, end := float64(i), float64(i+1)
		seg := domain.TranscriptSegment{Text: text, Start: &start, End: &end}
		if i < len(u.Confidences) {
			c := u.Confidences[i]
			seg.Confidence = &c
		}
		out.Segments = append(out.Segments, seg)
	}
	return out, nil
}
