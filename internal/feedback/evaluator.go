// Package feedback evaluates one spoken answer and returns a coerced verdict.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/parley/internal/domain"
	"github.com/ashureev/parley/internal/llm"
	"github.com/ashureev/parley/internal/observability/metrics"
	"github.com/ashureev/parley/internal/prompt"
	"github.com/ashureev/parley/internal/scoring"
)

// DefaultSummary is returned when the model gives no usable summary.
const DefaultSummary = "Thanks for your answer! Keep practicing to sound even more natural."

var (
	// ErrMissingTranscript is returned when there is nothing to evaluate.
	ErrMissingTranscript = errors.New("transcript is required")
)

// Request is the input to Evaluate.
type Request struct {
	Transcript     string                     `json:"transcript"`
	TargetSentence string                     `json:"targetSentence,omitempty"`
	Profile        *domain.LearnerProfile     `json:"learnerProfile,omitempty"`
	Segments       []domain.TranscriptSegment `json:"transcriptionSegments,omitempty"`
}

// Validate checks required fields.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Transcript) == "" {
		return ErrMissingTranscript
	}
	return nil
}

// Evaluator asks the model for a judgment, then lets transcription
// confidence override it.
type Evaluator struct {
	llm     llm.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEvaluator creates an Evaluator. A nil metrics uses the process default.
func NewEvaluator(client llm.Client, m *metrics.Metrics, logger *slog.Logger) *Evaluator {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{llm: client, metrics: m, logger: logger}
}

// modelFeedback keeps score and verdict loosely typed; coercion decides what
// counts as numeric.
type modelFeedback struct {
	Summary string `json:"summary"`
	Score   any    `json:"score"`
	Verdict any    `json:"verdict"`
}

// Evaluate judges req. Provider failures are returned to the caller.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (domain.PracticeFeedback, error) {
	if err := req.Validate(); err != nil {
		return domain.PracticeFeedback{}, err
	}

	cfg := prompt.Feedback(prompt.FeedbackInput{
		Transcript:     req.Transcript,
		TargetSentence: req.TargetSentence,
		Profile:        req.Profile,
	})
	out, err := e.llm.Complete(ctx, llm.Prompt(cfg.SystemPrompt, cfg.UserPrompt, cfg.JSON(), "practice_feedback"))
	if err != nil {
		return domain.PracticeFeedback{}, fmt.Errorf("evaluate answer: %w", err)
	}

	parsed, err := decode(out)
	if err != nil {
		// Unparseable output still yields a verdict; it defaults to needs_improvement.
		e.logger.Warn("Feedback reply was not JSON", "error", err)
		parsed = modelFeedback{Summary: strings.TrimSpace(out)}
	}

	m := scoring.ComputeConfidenceMetrics(req.Segments)
	verdict := scoring.CoerceVerdict(parsed.Verdict, parsed.Score, m)

	res := domain.PracticeFeedback{
		Summary:    strings.TrimSpace(parsed.Summary),
		Verdict:    verdict,
		Confidence: m,
	}
	if res.Summary == "" {
		res.Summary = DefaultSummary
	}
	if s, ok := scoring.NumericScore(parsed.Score); ok {
		res.Score = &s
	}

	e.metrics.RecordVerdict(string(verdict))
	e.logger.Debug("Feedback evaluated",
		"verdict", verdict,
		"has_score", res.Score != nil,
		"segments", len(req.Segments),
	)
	return res, nil
}

func decode(raw string) (modelFeedback, error) {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var f modelFeedback
	if err := dec.Decode(&f); err != nil {
		return modelFeedback{}, err
	}
	return f, nil
}
