package api

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// SocketRegistry tracks live practice sockets by learner and session. A
// learner may hold one socket per session; a reconnect replaces the old one.
type SocketRegistry struct {
	mu     sync.Mutex
	active map[string]map[string]*websocket.Conn
}

// NewSocketRegistry creates an empty registry.
func NewSocketRegistry() *SocketRegistry {
	return &SocketRegistry{active: make(map[string]map[string]*websocket.Conn)}
}

// Register records conn and closes any socket it replaces. Close waits for
// the peer's close frame, so the replaced socket is closed in the background
// and never under mu.
func (s *SocketRegistry) Register(learnerID, sessionID string, conn *websocket.Conn) {
	s.mu.Lock()
	sessions, ok := s.active[learnerID]
	if !ok {
		sessions = make(map[string]*websocket.Conn)
		s.active[learnerID] = sessions
	}
	replaced := sessions[sessionID]
	sessions[sessionID] = conn
	s.mu.Unlock()

	if replaced != nil && replaced != conn {
		go func() { _ = replaced.Close(websocket.StatusPolicyViolation, "session replaced") }()
	}
}

// Unregister removes conn if it is still the current socket for the session.
func (s *SocketRegistry) Unregister(learnerID, sessionID string, conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, ok := s.active[learnerID]
	if !ok || sessions[sessionID] != conn {
		return
	}
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(s.active, learnerID)
	}
}

// Count returns the number of live sockets.
func (s *SocketRegistry) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sessions := range s.active {
		n += len(sessions)
	}
	return n
}

// CloseAll closes every socket. http.Server.Shutdown does not touch hijacked
// connections, so call this on shutdown.
// Sockets are closed concurrently after the registry is emptied.
func (s *SocketRegistry) CloseAll(reason string) {
	s.mu.Lock()
	active := s.active
	s.active = make(map[string]map[string]*websocket.Conn)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for learnerID, sessions := range active {
		for sessionID, conn := range sessions {
			wg.Add(1)
			go func(learnerID, sessionID string, conn *websocket.Conn) {
				defer wg.Done()
				_ = conn.Close(websocket.StatusGoingAway, reason)
				slog.Info("Practice socket closed", "learner_id", learnerID, "session_id", sessionID)
			}(learnerID, sessionID, conn)
		}
	}
	wg.Wait()
}
