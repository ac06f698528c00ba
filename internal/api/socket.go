package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ashureev/parley/internal/conversation"
	"github.com/ashureev/parley/internal/domain"
	"github.com/ashureev/parley/internal/events"
)

const maxSocketMessage = 1 << 20

// Message types exchanged on the practice socket.
const (
	MessageTurn  = "turn"
	MessageError = "error"
	MessagePing  = "ping"
	MessagePong  = "pong"
)

// Allower reports whether the client behind r may make another request.
type Allower interface {
	Allow(r *http.Request) bool
}

type socketRequest struct {
	Type    string             `json:"type"`
	Request domain.TurnRequest `json:"request"`
}

type socketReply struct {
	Type   string             `json:"type"`
	Result *domain.TurnResult `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// PracticeSocket serves turns over a WebSocket. Messages on one connection
// are handled strictly in order.
type PracticeSocket struct {
	engine         TurnEngine
	events         EventEmitter
	limiter        Allower
	registry       *SocketRegistry
	originPatterns []string
	logger         *slog.Logger
}

// NewPracticeSocket creates a PracticeSocket. limiter and registry may be nil.
func NewPracticeSocket(engine TurnEngine, emitter EventEmitter, limiter Allower, registry *SocketRegistry, originPatterns []string, logger *slog.Logger) *PracticeSocket {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = NewSocketRegistry()
	}
	return &PracticeSocket{
		engine:         engine,
		events:         emitter,
		limiter:        limiter,
		registry:       registry,
		originPatterns: originPatterns,
		logger:         logger,
	}
}

// ServeHTTP upgrades the connection and runs the read loop.
func (s *PracticeSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		s.logger.Error("WebSocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxSocketMessage)

	sess := sessionFromRequest(r, "ws")
	s.registry.Register(sess.LearnerID, sess.SessionID, conn)
	defer s.registry.Unregister(sess.LearnerID, sess.SessionID, conn)
	s.logger.Info("Practice socket connected", "learner_id", sess.LearnerID, "session_id", sess.SessionID)

	ctx := r.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				s.logger.Warn("Practice socket read failed", "learner_id", sess.LearnerID, "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			if err := s.reply(ctx, conn, socketReply{Type: MessageError, Error: "expected text message"}); err != nil {
				return
			}
			continue
		}

		reply := s.handle(ctx, r, sess, data)
		if err := s.reply(ctx, conn, reply); err != nil {
			s.logger.Warn("Practice socket write failed", "learner_id", sess.LearnerID, "error", err)
			return
		}
	}
}

// handle answers one message. Each turn is charged against the budget of
// the upgrade request r.
func (s *PracticeSocket) handle(ctx context.Context, r *http.Request, sess conversation.Session, data []byte) socketReply {
	var msg socketRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return socketReply{Type: MessageError, Error: "invalid message"}
	}

	switch msg.Type {
	case MessagePing:
		return socketReply{Type: MessagePong}
	case MessageTurn:
	default:
		return socketReply{Type: MessageError, Error: "unknown message type"}
	}

	if s.limiter != nil && !s.limiter.Allow(r) {
		return socketReply{Type: MessageError, Error: "rate limit exceeded"}
	}

	res, err := s.engine.Generate(ctx, sess, msg.Request)
	if err != nil {
		if turnStatus(err) == http.StatusInternalServerError {
			s.logger.Error("Socket turn failed", "learner_id", sess.LearnerID, "turn", msg.Request.TurnNumber, "error", err)
		}
		return socketReply{Type: MessageError, Error: err.Error()}
	}

	s.events.Emit(events.NewEvent(events.TypeTurnGenerated, sess.LearnerID, sess.SessionID, map[string]any{
		"mode":       msg.Request.Mode,
		"turnNumber": msg.Request.TurnNumber,
		"shouldEnd":  res.ShouldEnd,
		"channel":    "ws",
	}))
	return socketReply{Type: MessageTurn, Result: &res}
}

func (s *PracticeSocket) reply(ctx context.Context, conn *websocket.Conn, v socketReply) error {
	return wsjson.Write(ctx, conn, v)
}
