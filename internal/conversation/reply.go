package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Canned phrases used whenever the model is unavailable or says nothing useful.
const (
	DefaultFeedback      = "Good!"
	ExhaustedFeedback    = "Good!"
	ExhaustedQuestion    = "That's great! Can you tell me more?"
	DynamicContinuation  = "That's great! Can you tell me more?"
	InterviewCompanyQ    = "What company are you going to apply to?"
	InterviewPositionQ   = "What position are you going to apply for?"
	InterviewFirstQ      = "Thank you! Let's begin. Can you tell me a little about yourself?"
	InterviewContinueQ   = "That's great! Can you tell me more?"
	guidedClosingMessage = "Great job! You've answered all the questions for this practice."
)

// ErrMalformedReply is returned when the model reply is not a JSON object.
var ErrMalformedReply = errors.New("malformed model reply")

// modelReply is the union of every JSON shape the tutor prompts ask for.
type modelReply struct {
	Feedback       string   `json:"feedback"`
	Question       string   `json:"question"`
	TutorMessage   string   `json:"tutorMessage"`
	ShouldEnd      flexBool `json:"shouldEnd"`
	ClosingMessage string   `json:"closingMessage"`
}

func (r *modelReply) trim() {
	r.Feedback = strings.TrimSpace(r.Feedback)
	r.Question = strings.TrimSpace(r.Question)
	r.TutorMessage = strings.TrimSpace(r.TutorMessage)
	r.ClosingMessage = strings.TrimSpace(r.ClosingMessage)
}

// ends reports whether the model asked to finish the session.
func (r *modelReply) ends() bool {
	return bool(r.ShouldEnd) || r.ClosingMessage != ""
}

// flexBool accepts true/false as well as "true"/"false" strings.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = flexBool(t)
	case string:
		*b = flexBool(strings.EqualFold(strings.TrimSpace(t), "true"))
	default:
		*b = false
	}
	return nil
}

// parseReply decodes a model reply, tolerating a Markdown code fence.
func parseReply(raw string) (modelReply, error) {
	body := stripCodeFence(raw)
	var r modelReply
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return modelReply{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	r.trim()
	return r, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
