package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/parley/internal/domain"
	"github.com/ashureev/parley/internal/llm"
	"github.com/ashureev/parley/internal/prompt"
)

// InterviewGenerator runs the fixed ten turn free interview. It never returns
// an error: every failure degrades to a turn-indexed canned phrase.
type InterviewGenerator struct {
	resolver prompt.Resolver
	llm      llm.Client
	logger   *slog.Logger
}

// NewInterviewGenerator creates a free-interview generator.
func NewInterviewGenerator(resolver prompt.Resolver, client llm.Client, logger *slog.Logger) *InterviewGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &InterviewGenerator{resolver: resolver, llm: client, logger: logger}
}

// Greeting is the opening line of a free interview.
func Greeting(studentName string) string {
	name := strings.TrimSpace(studentName)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hello %s! I'm your interviewer today. Are you ready to start your interview practice?", name)
}

// InterviewClosing is used when the model supplies no closing line.
func InterviewClosing(studentName string) string {
	if name := strings.TrimSpace(studentName); name != "" {
		return fmt.Sprintf("Thank you for your time today, %s. That's the end of our interview practice. Great job!", name)
	}
	return "Thank you for your time today. That's the end of our interview practice. Great job!"
}

// cannedQuestion is the deterministic phrase for each phase.
func cannedQuestion(phase InterviewPhase, studentName string) string {
	switch phase {
	case PhaseGreeting:
		return Greeting(studentName)
	case PhaseCompany:
		return InterviewCompanyQ
	case PhasePosition:
		return InterviewPositionQ
	case PhaseTransition:
		return InterviewFirstQ
	case PhaseClosing:
		return InterviewClosing(studentName)
	default:
		return InterviewContinueQ
	}
}

// Generate produces the tutor turn for req.
func (g *InterviewGenerator) Generate(ctx context.Context, req domain.TurnRequest) (*Turn, error) {
	phase := ClassifyInterview(req.TurnNumber)
	canned := cannedQuestion(phase, req.StudentName)

	if !phase.callsModel() {
		return g.finish(req, phase, domain.TurnResult{Question: canned, TutorMessage: canned}, FallbackScripted), nil
	}

	cfg, err := g.resolver.Resolve(prompt.Request{
		ScenarioID: req.ScenarioID,
		LevelID:    req.LevelID,
		Mode:       domain.ModeFree,
		Context: prompt.Context{
			StudentName:         req.StudentName,
			ConversationHistory: req.History,
			TurnNumber:          req.TurnNumber,
			CompanyName:         companyName(req),
			PositionName:        positionName(req),
		},
	})
	if err != nil {
		g.logger.Warn("Interview prompt failed, using canned turn", "turn", req.TurnNumber, "error", err)
		return g.finish(req, phase, domain.TurnResult{Question: canned, TutorMessage: canned}, FallbackPrompt), nil
	}

	out, err := g.llm.Complete(ctx, llm.Prompt(cfg.SystemPrompt, cfg.UserPrompt, cfg.JSON(), "interview_turn"))
	if err != nil {
		g.logger.Warn("Interview model call failed, using canned turn", "turn", req.TurnNumber, "error", err)
		return g.finish(req, phase, domain.TurnResult{Question: canned, TutorMessage: canned}, FallbackLLMError), nil
	}

	reply, err := parseReply(out)
	if err != nil {
		text := strings.TrimSpace(out)
		g.logger.Warn("Interview reply was not JSON, using raw text", "turn", req.TurnNumber, "error", err)
		res := domain.TurnResult{Question: orDefault(text, canned), TutorMessage: orDefault(text, canned)}
		return g.finish(req, phase, res, FallbackMalformed), nil
	}

	res := domain.TurnResult{
		Question:       reply.Question,
		TutorMessage:   reply.TutorMessage,
		ShouldEnd:      reply.ends(),
		ClosingMessage: reply.ClosingMessage,
	}
	if phase.allowsFeedback() {
		ack, rest, split := SplitAcknowledgment(reply.TutorMessage)
		switch {
		case reply.Feedback != "":
			res.Feedback = reply.Feedback
			if res.Question == "" && split {
				res.Question = rest
			}
		case split:
			res.Feedback = ack
			res.Question = rest
		}
	}
	if res.TutorMessage == "" {
		res.TutorMessage = joinMessage(res.Feedback, res.Question)
	}
	if res.Question == "" && !res.ShouldEnd {
		res.Question = res.TutorMessage
	}
	if res.TutorMessage == "" && res.ShouldEnd && res.ClosingMessage != "" {
		res.TutorMessage = res.ClosingMessage
	}
	res.TutorMessage = orDefault(res.TutorMessage, canned)
	res.Question = orDefault(res.Question, canned)
	return g.finish(req, phase, res, FallbackNone), nil
}

// finish applies the rules every interview turn obeys regardless of what the
// model said: feedback only in the questioning phase, forced close at the
// last turn, and a closing message whenever the session ends.
func (g *InterviewGenerator) finish(req domain.TurnRequest, phase InterviewPhase, res domain.TurnResult, fallback string) *Turn {
	if !phase.allowsFeedback() {
		res.Feedback = ""
	}
	if phase == PhaseClosing {
		res.ShouldEnd = true
	}
	if res.ShouldEnd {
		res.ClosingMessage = orDefault(res.ClosingMessage, InterviewClosing(req.StudentName))
	} else {
		res.ClosingMessage = ""
	}
	return &Turn{Result: res, Phase: string(phase), Fallback: fallback}
}

// companyName prefers the request field, then the learner's answer to the
// company question.
func companyName(req domain.TurnRequest) string {
	if s := strings.TrimSpace(req.CompanyName); s != "" {
		return s
	}
	return answerTo(req.History, InterviewCompanyQ)
}

func positionName(req domain.TurnRequest) string {
	if s := strings.TrimSpace(req.PositionName); s != "" {
		return s
	}
	return answerTo(req.History, InterviewPositionQ)
}

// answerTo finds the learner turn that follows the tutor asking question.
func answerTo(history []domain.ConversationTurn, question string) string {
	for i := 0; i < len(history)-1; i++ {
		if history[i].Role != domain.RoleTutor || !strings.Contains(history[i].Text, question) {
			continue
		}
		for _, next := range history[i+1:] {
			if next.Role == domain.RoleUser {
				return strings.TrimSpace(next.Text)
			}
			if next.Role == domain.RoleTutor {
				break
			}
		}
	}
	return ""
}
