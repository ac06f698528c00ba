package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/parley/internal/domain"
	"github.com/ashureev/parley/internal/llm"
	"github.com/ashureev/parley/internal/prompt"
)

// Turn is a generated result plus how it was produced.
type Turn struct {
	Result domain.TurnResult
	Phase  string
	// Fallback names why a canned reply was used; empty for model replies.
	Fallback string
}

// Fallback reasons.
const (
	FallbackNone      = ""
	FallbackLLMError  = "llm_error"
	FallbackMalformed = "malformed_reply"
	FallbackPrompt    = "prompt_error"
	FallbackScripted  = "scripted"
)

// GuidedGenerator plays predefined questions and falls back to dynamic
// generation when none apply.
type GuidedGenerator struct {
	resolver prompt.Resolver
	llm      llm.Client
	logger   *slog.Logger
}

// NewGuidedGenerator creates a guided-mode generator.
func NewGuidedGenerator(resolver prompt.Resolver, client llm.Client, logger *slog.Logger) *GuidedGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuidedGenerator{resolver: resolver, llm: client, logger: logger}
}

// Generate produces the tutor turn for req.
func (g *GuidedGenerator) Generate(ctx context.Context, req domain.TurnRequest) (*Turn, error) {
	phase, idx := ClassifyGuided(req.TurnNumber, len(req.PredefinedQuestions))
	switch phase {
	case PhasePredefined:
		return g.predefined(ctx, req, idx), nil
	case PhaseExhausted:
		return &Turn{
			Result: domain.TurnResult{
				Feedback:     ExhaustedFeedback,
				Question:     ExhaustedQuestion,
				TutorMessage: joinMessage(ExhaustedFeedback, ExhaustedQuestion),
			},
			Phase:    string(phase),
			Fallback: FallbackScripted,
		}, nil
	default:
		return g.dynamic(ctx, req)
	}
}

// predefined serves question idx. It never fails: any problem with the model
// degrades to "Good!" plus the question.
func (g *GuidedGenerator) predefined(ctx context.Context, req domain.TurnRequest, idx int) *Turn {
	raw := req.PredefinedQuestions[idx]
	question := SanitizeQuestion(raw)
	last := idx == len(req.PredefinedQuestions)-1

	fallback := func(reason string, err error) *Turn {
		g.logger.Warn("Guided turn fell back to predefined question",
			"turn", req.TurnNumber,
			"question_index", idx,
			"reason", reason,
			"error", err,
		)
		res := domain.TurnResult{
			Feedback:     DefaultFeedback,
			Question:     question,
			TutorMessage: joinMessage(DefaultFeedback, question),
			ShouldEnd:    last,
		}
		if last {
			res.ClosingMessage = guidedClosingMessage
		}
		return &Turn{Result: res, Phase: string(PhasePredefined), Fallback: reason}
	}

	cfg, err := g.resolver.Resolve(prompt.Request{
		ScenarioID: req.ScenarioID,
		LevelID:    req.LevelID,
		Mode:       domain.ModeGuided,
		Context: prompt.Context{
			StudentName:         req.StudentName,
			ConversationHistory: req.History,
			TurnNumber:          req.TurnNumber,
			PredefinedQuestion:  question,
		},
		PredefinedQuestion: question,
	})
	if err != nil {
		return fallback(FallbackPrompt, err)
	}

	out, err := g.llm.Complete(ctx, llm.Prompt(cfg.SystemPrompt, cfg.UserPrompt, cfg.JSON(), "guided_turn"))
	if err != nil {
		return fallback(FallbackLLMError, err)
	}
	reply, err := parseReply(out)
	if err != nil {
		return fallback(FallbackMalformed, err)
	}

	feedback := reply.Feedback
	if feedback == "" {
		feedback = ExtractFeedback(reply.TutorMessage, question, raw)
	}

	return &Turn{
		Result: domain.TurnResult{
			Feedback:     feedback,
			Question:     question,
			TutorMessage: joinMessage(feedback, question),
		},
		Phase: string(PhasePredefined),
	}
}

// dynamic lets the model write the whole turn. Transport errors propagate;
// a reply that is not JSON is used as raw text.
func (g *GuidedGenerator) dynamic(ctx context.Context, req domain.TurnRequest) (*Turn, error) {
	cfg, err := g.resolver.Resolve(prompt.Request{
		ScenarioID: req.ScenarioID,
		LevelID:    req.LevelID,
		Mode:       domain.ModeGuided,
		Context: prompt.Context{
			StudentName:         req.StudentName,
			ConversationHistory: req.History,
			TurnNumber:          req.TurnNumber,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("resolve guided prompt: %w", err)
	}

	out, err := g.llm.Complete(ctx, llm.Prompt(cfg.SystemPrompt, cfg.UserPrompt, cfg.JSON(), "guided_dynamic_turn"))
	if err != nil {
		return nil, fmt.Errorf("generate guided turn: %w", err)
	}

	reply, err := parseReply(out)
	if err != nil {
		g.logger.Warn("Guided reply was not JSON, using raw text", "turn", req.TurnNumber, "error", err)
		text := orDefault(out, DynamicContinuation)
		return &Turn{
			Result:   domain.TurnResult{Question: text, TutorMessage: text},
			Phase:    string(PhaseDynamic),
			Fallback: FallbackMalformed,
		}, nil
	}

	msg := reply.TutorMessage
	if msg == "" {
		msg = joinMessage(reply.Feedback, reply.Question)
	}
	res := domain.TurnResult{
		Feedback:     reply.Feedback,
		Question:     orDefault(reply.Question, msg),
		TutorMessage: orDefault(msg, DynamicContinuation),
		ShouldEnd:    reply.ends(),
	}
	if res.Question == "" {
		res.Question = res.TutorMessage
	}
	if res.ShouldEnd {
		res.ClosingMessage = orDefault(reply.ClosingMessage, guidedClosingMessage)
	}
	return &Turn{Result: res, Phase: string(PhaseDynamic)}, nil
}
