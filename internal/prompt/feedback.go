package prompt

import (
	"fmt"
	"strings"

	"github.com/ashureev/parley/internal/domain"
)

const feedbackSystem = `You are an encouraging but strict English speaking coach. ` +
	`You receive a transcript of what a learner said out loud and, optionally, the sentence they were trying to say. ` +
	`Judge meaning, grammar and naturalness. Reply with a JSON object: ` +
	`{"summary": "<two short sentences of feedback addressed to the learner>", ` +
	`"score": <integer 0-100>, "verdict": "correct" | "needs_improvement"}. ` +
	`Only use "correct" when the answer is clearly right and natural.`

// FeedbackInput is what the learner said and what they were aiming for.
type FeedbackInput struct {
	Transcript     string
	TargetSentence string
	Profile        *domain.LearnerProfile
}

// Feedback builds the evaluation prompt for one spoken answer.
func Feedback(in FeedbackInput) Config {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Learner said: %q\n", strings.TrimSpace(in.Transcript))
	if t := strings.TrimSpace(in.TargetSentence); t != "" {
		fmt.Fprintf(&sb, "Target sentence: %q\n", t)
	}
	if p := in.Profile; p != nil {
		if p.Level != "" {
			fmt.Fprintf(&sb, "Learner level: %s\n", p.Level)
		}
		if p.NativeLang != "" {
			fmt.Fprintf(&sb, "Native language: %s\n", p.NativeLang)
		}
		if p.LearningFor != "" {
			fmt.Fprintf(&sb, "Learning goal: %s\n", p.LearningFor)
		}
		if p.Name != "" {
			fmt.Fprintf(&sb, "Address the learner as %s.\n", p.Name)
		}
	}
	return Config{
		SystemPrompt:   feedbackSystem,
		UserPrompt:     strings.TrimSpace(sb.String()),
		ResponseFormat: ResponseFormatJSON,
	}
}
