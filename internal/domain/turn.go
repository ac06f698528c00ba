// Package domain contains core domain types for the Parley practice backend.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	// RoleTutor is the AI tutor speaking.
	RoleTutor Role = "tutor"
	// RoleUser is the learner speaking.
	RoleUser Role = "user"
	// RoleFeedback is an evaluation line shown between turns.
	RoleFeedback Role = "feedback"
)

// Mode selects which turn generator drives a session.
type Mode string

const (
	// ModeGuided plays predefined questions before dynamic ones.
	ModeGuided Mode = "guided"
	// ModeFree runs the fixed free-interview arc.
	ModeFree Mode = "free"
)

// ParseMode normalizes a client supplied mode. Empty means guided.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeGuided:
		return ModeGuided, nil
	case ModeFree:
		return ModeFree, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

var (
	// ErrUnknownMode is returned for a mode other than guided or free.
	ErrUnknownMode = errors.New("unknown session mode")
	// ErrInvalidTurnNumber is returned when a turn number is below 1.
	ErrInvalidTurnNumber = errors.New("turn number must be >= 1")
)

// ConversationTurn is one entry of the session log. Turns are appended, never edited.
type ConversationTurn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// TurnRequest is the input to a turn generator. Generators derive everything
// from TurnNumber and History; they keep no counters of their own.
type TurnRequest struct {
	ScenarioID          string             `json:"scenarioId"`
	LevelID             string             `json:"levelId"`
	Mode                Mode               `json:"mode,omitempty"`
	History             []ConversationTurn `json:"conversationHistory"`
	StudentName         string             `json:"studentName"`
	TurnNumber          int                `json:"turnNumber"`
	PredefinedQuestions []string           `json:"predefinedQuestions,omitempty"`
	CompanyName         string             `json:"companyName,omitempty"`
	PositionName        string             `json:"positionName,omitempty"`
}

// Validate checks the request invariants.
func (r *TurnRequest) Validate() error {
	if r.TurnNumber < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidTurnNumber, r.TurnNumber)
	}
	return nil
}

// LastLearnerAnswer returns the most recent learner utterance, if any.
func (r *TurnRequest) LastLearnerAnswer() string {
	for i := len(r.History) - 1; i >= 0; i-- {
		if r.History[i].Role == RoleUser {
			return r.History[i].Text
		}
	}
	return ""
}

// TurnResult is the normalized output of a turn generator.
type TurnResult struct {
	Feedback       string `json:"feedback,omitempty"`
	Question       string `json:"question"`
	TutorMessage   string `json:"tutorMessage"`
	ShouldEnd      bool   `json:"shouldEnd"`
	ClosingMessage string `json:"closingMessage,omitempty"`
}
