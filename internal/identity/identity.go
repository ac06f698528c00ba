// Package identity provides anonymous per-device learner identity.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	AnonCookieName        = "parley_anon_id"
	SessionHeaderName     = "X-Parley-Session-ID"
	DefaultSessionIDValue = "default"
	anonCookieMaxAge      = 30 * 24 * time.Hour
)

type contextKey int

const (
	learnerIDKey contextKey = iota
	sessionIDKey
	returningKey
)

var (
	anonIDPattern    = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// LearnerIDFromContext extracts the learner ID from the request context.
func LearnerIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(learnerIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the practice session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return DefaultSessionIDValue
}

// ReturningFromContext reports whether the learner ID came from a cookie the
// client sent, as opposed to one minted for this request.
func ReturningFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(returningKey).(bool)
	return v
}

// WithIdentity returns a context carrying the given IDs, marked as a
// returning learner. Used by tests and non-HTTP callers.
func WithIdentity(ctx context.Context, learnerID, sessionID string) context.Context {
	return withIdentity(ctx, learnerID, sessionID, true)
}

func withIdentity(ctx context.Context, learnerID, sessionID string, returning bool) context.Context {
	ctx = context.WithValue(ctx, learnerIDKey, learnerID)
	ctx = context.WithValue(ctx, returningKey, returning)
	return context.WithValue(ctx, sessionIDKey, sanitizeSessionID(sessionID))
}

func generateAnonID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon_" + hex.EncodeToString(buf), nil
}

func isValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

func sanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !sessionIDPattern.MatchString(id) {
		return DefaultSessionIDValue
	}
	return id
}

// getOrCreateAnonID reuses a valid cookie or mints a new ID, refreshing the
// cookie either way. returning is false for a minted ID.
func getOrCreateAnonID(w http.ResponseWriter, r *http.Request, isDev bool) (id string, returning bool, err error) {
	if c, cerr := r.Cookie(AnonCookieName); cerr == nil && isValidAnonID(c.Value) {
		id, returning = c.Value, true
	} else {
		id, err = generateAnonID()
		if err != nil {
			return "", false, err
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
	return id, returning, nil
}

func sessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get("session_id")
	}
	return sanitizeSessionID(sid)
}

// Middleware injects anonymous per-device identity and per-request session ID.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			learnerID, returning, err := getOrCreateAnonID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
				return
			}
			ctx := withIdentity(r.Context(), learnerID, sessionIDFromRequest(r), returning)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
