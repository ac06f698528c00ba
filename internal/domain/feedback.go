package domain

// Verdict is the binary judgment on a learner's spoken answer.
type Verdict string

const (
	// VerdictCorrect means the answer passes.
	VerdictCorrect Verdict = "correct"
	// VerdictNeedsImprovement is the default for anything short of a clear pass.
	VerdictNeedsImprovement Verdict = "needs_improvement"
)

// PracticeFeedback is the evaluation returned for one answer.
type PracticeFeedback struct {
	Summary    string             `json:"summary"`
	Score      *float64           `json:"score,omitempty"`
	Verdict    Verdict            `json:"verdict"`
	Confidence *ConfidenceMetrics `json:"confidence,omitempty"`
}

// LearnerProfile is optional context about the learner used in prompts.
type LearnerProfile struct {
	Name        string `json:"name,omitempty"`
	NativeLang  string `json:"nativeLanguage,omitempty"`
	TargetLang  string `json:"targetLanguage,omitempty"`
	Level       string `json:"level,omitempty"`
	LearningFor string `json:"goal,omitempty"`
}
