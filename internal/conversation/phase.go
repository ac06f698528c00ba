// Package conversation drives tutor turns for guided and free-interview sessions.
package conversation

// GuidedPhase is the state of a guided session at a given turn.
type GuidedPhase string

const (
	// PhaseDynamic: no predefined question applies, the model writes the turn.
	PhaseDynamic GuidedPhase = "dynamic"
	// PhasePredefined: a predefined question is served verbatim.
	PhasePredefined GuidedPhase = "predefined"
	// PhaseExhausted: every predefined question has been asked.
	PhaseExhausted GuidedPhase = "exhausted"
)

// ClassifyGuided maps a turn number onto a guided phase. The question index is
// turn-2 because turn 1 is the tutor's opening.
func ClassifyGuided(turnNumber, questionCount int) (GuidedPhase, int) {
	idx := turnNumber - 2
	switch {
	case questionCount == 0 || idx < 0:
		return PhaseDynamic, idx
	case idx < questionCount:
		return PhasePredefined, idx
	default:
		return PhaseExhausted, idx
	}
}

// InterviewPhase is the state of a free interview at a given turn.
type InterviewPhase string

const (
	PhaseGreeting    InterviewPhase = "greeting"
	PhaseCompany     InterviewPhase = "company"
	PhasePosition    InterviewPhase = "position"
	PhaseTransition  InterviewPhase = "transition"
	PhaseQuestioning InterviewPhase = "questioning"
	PhaseClosing     InterviewPhase = "closing"
)

// InterviewLength is the turn on which a free interview always closes.
const InterviewLength = 10

// ClassifyInterview maps a turn number onto the fixed interview arc.
func ClassifyInterview(turnNumber int) InterviewPhase {
	switch {
	case turnNumber <= 1:
		return PhaseGreeting
	case turnNumber == 2:
		return PhaseCompany
	case turnNumber == 3:
		return PhasePosition
	case turnNumber == 4:
		return PhaseTransition
	case turnNumber < InterviewLength:
		return PhaseQuestioning
	default:
		return PhaseClosing
	}
}

// allowsFeedback reports whether the phase evaluates the learner's last answer.
func (p InterviewPhase) allowsFeedback() bool {
	return p == PhaseQuestioning
}

// callsModel reports whether the phase needs an LLM reply.
func (p InterviewPhase) callsModel() bool {
	switch p {
	case PhaseTransition, PhaseQuestioning, PhaseClosing:
		return true
	default:
		return false
	}
}
