package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/ashureev/parley/internal/domain"
)

func TestResolveGuidedWithQuestion(t *testing.T) {
	r := NewResolver(nil)
	cfg, err := r.Resolve(Request{
		ScenarioID: "restaurant",
		LevelID:    "beginner",
		Mode:       domain.ModeGuided,
		Context: Context{
			StudentName: "Mina",
			TurnNumber:  2,
			ConversationHistory: []domain.ConversationTurn{
				{Role: domain.RoleTutor, Text: "Welcome!"},
				{Role: domain.RoleUser, Text: "Hello"},
			},
		},
		PredefinedQuestion: "What would you like to drink?",
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !cfg.JSON() {
		t.Error("expected json_object response format")
	}
	if !strings.Contains(cfg.SystemPrompt, "waiter") || !strings.Contains(cfg.SystemPrompt, "Mina") {
		t.Errorf("system prompt missing scenario or name: %q", cfg.SystemPrompt)
	}
	if !strings.Contains(cfg.UserPrompt, `"What would you like to drink?"`) {
		t.Errorf("user prompt missing predefined question: %q", cfg.UserPrompt)
	}
	if !strings.Contains(cfg.UserPrompt, "Learner: Hello") {
		t.Errorf("user prompt missing history: %q", cfg.UserPrompt)
	}
}

func TestResolveGuidedDynamicAsksForShouldEnd(t *testing.T) {
	cfg, err := NewResolver(nil).Resolve(Request{Mode: domain.ModeGuided, Context: Context{TurnNumber: 1}})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !strings.Contains(cfg.UserPrompt, "shouldEnd") {
		t.Errorf("dynamic prompt should describe shouldEnd: %q", cfg.UserPrompt)
	}
	if !strings.Contains(cfg.UserPrompt, "(no messages yet)") {
		t.Errorf("expected empty history marker: %q", cfg.UserPrompt)
	}
}

func TestResolveFreeUsesInterviewScenario(t *testing.T) {
	cfg, err := NewResolver(nil).Resolve(Request{
		ScenarioID: "small-talk",
		Mode:       domain.ModeFree,
		Context:    Context{TurnNumber: 4, CompanyName: "Acme", PositionName: "designer"},
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !strings.Contains(cfg.SystemPrompt, "hiring manager") {
		t.Errorf("free mode should use the interview persona: %q", cfg.SystemPrompt)
	}
	if !strings.Contains(cfg.UserPrompt, "Acme") || !strings.Contains(cfg.UserPrompt, "designer") {
		t.Errorf("free prompt missing company/position: %q", cfg.UserPrompt)
	}
	if !strings.Contains(cfg.UserPrompt, "Do not evaluate") {
		t.Errorf("turn 4 prompt should not ask for evaluation: %q", cfg.UserPrompt)
	}
}

func TestResolveUnknownMode(t *testing.T) {
	_, err := NewResolver(nil).Resolve(Request{Mode: "karaoke"})
	if !errors.Is(err, domain.ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}

func TestCatalogFallbacks(t *testing.T) {
	c := NewCatalog(Scenario{ID: "pharmacy", TutorRole: "a pharmacist", Setting: "a pharmacy"})
	if s, ok := c.Scenario("PHARMACY"); !ok || s.TutorRole != "a pharmacist" {
		t.Errorf("expected extra scenario lookup to succeed, got %+v %v", s, ok)
	}
	if s, ok := c.Scenario("nope"); ok || s.ID != DefaultScenarioID {
		t.Errorf("expected fallback scenario, got %+v %v", s, ok)
	}
	if l, ok := c.Level(""); ok || l.ID != DefaultLevelID {
		t.Errorf("expected fallback level, got %+v %v", l, ok)
	}
}

func TestFeedbackPrompt(t *testing.T) {
	cfg := Feedback(FeedbackInput{
		Transcript:     " I goed to school ",
		TargetSentence: "I went to school",
		Profile:        &domain.LearnerProfile{Level: "beginner", Name: "Sam"},
	})
	if !cfg.JSON() {
		t.Error("feedback prompt must request json")
	}
	for _, want := range []string{`"I goed to school"`, `"I went to school"`, "beginner", "Sam"} {
		if !strings.Contains(cfg.UserPrompt, want) {
			t.Errorf("feedback prompt missing %q: %q", want, cfg.UserPrompt)
		}
	}
}
