package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/parley/internal/conversation"
	"github.com/ashureev/parley/internal/domain"
	"github.com/ashureev/parley/internal/events"
	"github.com/ashureev/parley/internal/feedback"
	"github.com/ashureev/parley/internal/identity"
	"github.com/ashureev/parley/internal/scoring"
	"github.com/ashureev/parley/internal/stt"
	"github.com/ashureev/parley/internal/tts"
)

// DefaultLanguage is used when a transcription request names none.
const DefaultLanguage = "en-US"

// TurnEngine produces the next tutor turn.
type TurnEngine interface {
	Generate(ctx context.Context, sess conversation.Session, req domain.TurnRequest) (domain.TurnResult, error)
}

// FeedbackEvaluator judges one spoken answer.
type FeedbackEvaluator interface {
	Evaluate(ctx context.Context, req feedback.Request) (domain.PracticeFeedback, error)
}

// EventEmitter publishes domain events without blocking the request.
type EventEmitter interface {
	Emit(event events.Event)
}

type nopEmitter struct{}

func (nopEmitter) Emit(events.Event) {}

// PracticeHandler serves the practice endpoints.
type PracticeHandler struct {
	engine        TurnEngine
	evaluator     FeedbackEvaluator
	transcriber   stt.Transcriber
	synthesizer   tts.Synthesizer
	events        EventEmitter
	maxAudioBytes int64
	logger        *slog.Logger
}

// PracticeDeps bundles the collaborators of PracticeHandler.
type PracticeDeps struct {
	Engine        TurnEngine
	Evaluator     FeedbackEvaluator
	Transcriber   stt.Transcriber
	Synthesizer   tts.Synthesizer
	Events        EventEmitter
	MaxAudioBytes int64
	Logger        *slog.Logger
}

// NewPracticeHandler creates a PracticeHandler. Missing synthesizer and
// events default to disabled implementations.
func NewPracticeHandler(deps PracticeDeps) *PracticeHandler {
	h := &PracticeHandler{
		engine:        deps.Engine,
		evaluator:     deps.Evaluator,
		transcriber:   deps.Transcriber,
		synthesizer:   deps.Synthesizer,
		events:        deps.Events,
		maxAudioBytes: deps.MaxAudioBytes,
		logger:        deps.Logger,
	}
	if h.synthesizer == nil {
		h.synthesizer = tts.Disabled{}
	}
	if h.events == nil {
		h.events = nopEmitter{}
	}
	if h.maxAudioBytes <= 0 {
		h.maxAudioBytes = 10 << 20
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// RegisterRoutes registers practice routes. Every route calls a paid
// provider, so limit wraps all of them.
func (h *PracticeHandler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.Route("/practice", func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}
		r.Post("/turn", h.Turn)
		r.Post("/feedback", h.Feedback)
		r.Post("/transcribe", h.Transcribe)
		r.Post("/speech", h.Speech)
	})
}

func sessionFromRequest(r *http.Request, channel string) conversation.Session {
	return conversation.Session{
		LearnerID: identity.LearnerIDFromContext(r.Context()),
		SessionID: identity.SessionIDFromContext(r.Context()),
		Channel:   channel,
	}
}

// turnStatus maps engine errors onto HTTP status codes.
func turnStatus(err error) int {
	if errors.Is(err, domain.ErrInvalidTurnNumber) || errors.Is(err, domain.ErrUnknownMode) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Turn generates the next tutor turn.
func (h *PracticeHandler) Turn(w http.ResponseWriter, r *http.Request) {
	var req domain.TurnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := sessionFromRequest(r, "http")
	res, err := h.engine.Generate(r.Context(), sess, req)
	if err != nil {
		status := turnStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Turn request failed", "learner_id", sess.LearnerID, "turn", req.TurnNumber, "error", err)
		}
		Error(w, status, err.Error())
		return
	}

	h.events.Emit(events.NewEvent(events.TypeTurnGenerated, sess.LearnerID, sess.SessionID, map[string]any{
		"mode":       req.Mode,
		"turnNumber": req.TurnNumber,
		"shouldEnd":  res.ShouldEnd,
	}))
	JSON(w, http.StatusOK, res)
}

// Feedback evaluates one answer.
func (h *PracticeHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req feedback.Request
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.evaluator.Evaluate(r.Context(), req)
	if err != nil {
		if errors.Is(err, feedback.ErrMissingTranscript) {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Feedback request failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to evaluate answer")
		return
	}

	sess := sessionFromRequest(r, "http")
	h.events.Emit(events.NewEvent(events.TypeFeedbackEvaluated, sess.LearnerID, sess.SessionID, map[string]any{
		"verdict": res.Verdict,
		"score":   res.Score,
	}))
	JSON(w, http.StatusOK, res)
}

// TranscribeResponse is the body returned by Transcribe.
type TranscribeResponse struct {
	domain.Transcription
	Confidence *domain.ConfidenceMetrics `json:"confidence,omitempty"`
}

// Transcribe converts an uploaded answer recording to text.
func (h *PracticeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxAudioBytes)

	audio, err := readAudio(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("audio exceeds %d bytes", tooLarge.Limit))
			return
		}
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(audio.Data) == 0 {
		Error(w, http.StatusBadRequest, stt.ErrEmptyAudio.Error())
		return
	}

	tr, err := h.transcriber.Transcribe(r.Context(), audio)
	if err != nil {
		h.logger.Error("Transcription failed", "provider", h.transcriber.Name(), "error", err)
		Error(w, http.StatusInternalServerError, "failed to transcribe audio")
		return
	}

	resp := TranscribeResponse{Transcription: tr}
	if len(tr.Segments) > 0 {
		resp.Confidence = scoring.ComputeConfidenceMetrics(tr.Segments)
	}

	sess := sessionFromRequest(r, "http")
	h.events.Emit(events.NewEvent(events.TypeAnswerTranscribed, sess.LearnerID, sess.SessionID, map[string]any{
		"provider": h.transcriber.Name(),
		"segments": len(tr.Segments),
		"language": tr.Language,
	}))
	JSON(w, http.StatusOK, resp)
}

// readAudio accepts either a multipart form with an "audio" file or a raw body.
func readAudio(r *http.Request) (stt.Audio, error) {
	language := r.URL.Query().Get("language")
	contentType := r.Header.Get("Content-Type")

	var data []byte
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, header, err := r.FormFile("audio")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return stt.Audio{}, err
			}
			return stt.Audio{}, fmt.Errorf("missing audio file: %w", err)
		}
		defer file.Close()

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, file); err != nil {
			return stt.Audio{}, err
		}
		data = buf.Bytes()
		contentType = header.Header.Get("Content-Type")
		if v := r.FormValue("language"); v != "" {
			language = v
		}
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return stt.Audio{}, err
		}
		data = body
	}

	if language == "" {
		language = DefaultLanguage
	}
	return stt.Audio{Data: data, ContentType: contentType, Language: language}, nil
}

type speechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Speech synthesizes tutor text to a WAV file.
func (h *PracticeHandler) Speech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		Error(w, http.StatusBadRequest, tts.ErrEmptyText.Error())
		return
	}

	wav, err := h.synthesizer.Synthesize(r.Context(), tts.Request{Text: req.Text, Voice: req.Voice})
	switch {
	case errors.Is(err, tts.ErrEmptyText):
		Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, tts.ErrDisabled):
		Error(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		h.logger.Error("Speech synthesis failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to synthesize speech")
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", fmt.Sprint(len(wav)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}
