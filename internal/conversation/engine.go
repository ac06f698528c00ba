package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ashureev/parley/internal/domain"
	"github.com/ashureev/parley/internal/llm"
	"github.com/ashureev/parley/internal/observability/metrics"
	"github.com/ashureev/parley/internal/prompt"
)

// Session identifies who a turn belongs to for logging.
type Session struct {
	LearnerID string
	SessionID string
	Channel   string
}

// Generator produces one tutor turn.
type Generator interface {
	Generate(ctx context.Context, req domain.TurnRequest) (*Turn, error)
}

// Engine dispatches a turn request to the generator for its mode.
type Engine struct {
	guided    Generator
	interview Generator
	convLog   Logger
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithConversationLog attaches an NDJSON conversation logger.
func WithConversationLog(l Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.convLog = l
		}
	}
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithGenerators replaces the guided and interview generators.
func WithGenerators(guided, interview Generator) EngineOption {
	return func(e *Engine) {
		if guided != nil {
			e.guided = guided
		}
		if interview != nil {
			e.interview = interview
		}
	}
}

// NewEngine wires both generators around one resolver and model client.
func NewEngine(resolver prompt.Resolver, client llm.Client, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		guided:    NewGuidedGenerator(resolver, client, logger),
		interview: NewInterviewGenerator(resolver, client, logger),
		convLog:   NopLogger(),
		metrics:   metrics.DefaultMetrics,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate validates req and returns the next tutor turn.
func (e *Engine) Generate(ctx context.Context, sess Session, req domain.TurnRequest) (domain.TurnResult, error) {
	if err := req.Validate(); err != nil {
		return domain.TurnResult{}, err
	}
	mode, err := domain.ParseMode(string(req.Mode))
	if err != nil {
		return domain.TurnResult{}, err
	}
	req.Mode = mode

	gen := e.guided
	if mode == domain.ModeFree {
		gen = e.interview
	}

	if answer := req.LastLearnerAnswer(); answer != "" {
		e.log(sess, "inbound", "learner_answer", answer, map[string]any{"turn": req.TurnNumber})
	}

	turn, err := gen.Generate(ctx, req)
	if err != nil {
		e.logger.Error("Turn generation failed",
			"mode", mode,
			"turn", req.TurnNumber,
			"session_id", sess.SessionID,
			"error", err,
		)
		return domain.TurnResult{}, fmt.Errorf("generate %s turn %d: %w", mode, req.TurnNumber, err)
	}

	res := normalize(turn.Result)

	e.metrics.RecordTurn(string(mode), turn.Phase)
	if turn.Fallback != FallbackNone {
		e.metrics.RecordFallback(string(mode), turn.Fallback)
	}
	e.logger.Debug("Turn generated",
		"mode", mode,
		"phase", turn.Phase,
		"turn", req.TurnNumber,
		"fallback", turn.Fallback,
		"should_end", res.ShouldEnd,
	)

	meta := map[string]any{
		"turn":       req.TurnNumber,
		"mode":       string(mode),
		"phase":      turn.Phase,
		"should_end": strconv.FormatBool(res.ShouldEnd),
	}
	if turn.Fallback != FallbackNone {
		meta["fallback"] = turn.Fallback
	}
	e.log(sess, "outbound", "tutor_turn", res.TutorMessage, meta)
	if res.ShouldEnd {
		e.log(sess, "outbound", "session_closing", res.ClosingMessage, map[string]any{"turn": req.TurnNumber})
	}
	return res, nil
}

func (e *Engine) log(sess Session, direction, eventType, content string, meta map[string]any) {
	e.convLog.Log(LogEvent{
		Timestamp:  e.now().UTC().Format(time.RFC3339Nano),
		LearnerID:  sess.LearnerID,
		SessionID:  sess.SessionID,
		Channel:    sess.Channel,
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Meta:       meta,
	})
}

// normalize enforces the shape every returned turn has: a tutor message is
// always present and a closing message only accompanies an ending turn.
func normalize(res domain.TurnResult) domain.TurnResult {
	if res.TutorMessage == "" {
		res.TutorMessage = joinMessage(res.Feedback, res.Question)
	}
	if res.TutorMessage == "" {
		res.TutorMessage = DynamicContinuation
	}
	if res.Question == "" {
		res.Question = res.TutorMessage
	}
	if !res.ShouldEnd {
		res.ClosingMessage = ""
	}
	return res
}
