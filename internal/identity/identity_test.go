package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(t *testing.T, req *http.Request) (learnerID, sessionID string, rec *httptest.ResponseRecorder) {
	t.Helper()
	learnerID, sessionID, _, rec = serveReturning(t, req)
	return learnerID, sessionID, rec
}

func serveReturning(t *testing.T, req *http.Request) (learnerID, sessionID string, returning bool, rec *httptest.ResponseRecorder) {
	t.Helper()
	rec = httptest.NewRecorder()
	h := Middleware(true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		learnerID = LearnerIDFromContext(r.Context())
		sessionID = SessionIDFromContext(r.Context())
		returning = ReturningFromContext(r.Context())
	}))
	h.ServeHTTP(rec, req)
	return learnerID, sessionID, returning, rec
}

func TestMiddlewareMintsAnonID(t *testing.T) {
	learnerID, sessionID, rec := serve(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if !isValidAnonID(learnerID) {
		t.Fatalf("learner ID = %q", learnerID)
	}
	if sessionID != DefaultSessionIDValue {
		t.Errorf("session ID = %q", sessionID)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != AnonCookieName || cookies[0].Value != learnerID {
		t.Fatalf("cookies = %+v", cookies)
	}
}

func TestMiddlewareReusesCookieAndHeader(t *testing.T) {
	const anon = "anon_0123456789abcdef0123456789abcdef"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: anon})
	req.Header.Set(SessionHeaderName, "tab-42")

	learnerID, sessionID, _ := serve(t, req)
	if learnerID != anon {
		t.Errorf("learner ID = %q, want %q", learnerID, anon)
	}
	if sessionID != "tab-42" {
		t.Errorf("session ID = %q", sessionID)
	}
}

func TestMiddlewareRejectsForgedValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?session_id=../../etc", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "admin"})

	learnerID, sessionID, _ := serve(t, req)
	if learnerID == "admin" || !isValidAnonID(learnerID) {
		t.Errorf("forged cookie accepted: %q", learnerID)
	}
	if sessionID != DefaultSessionIDValue {
		t.Errorf("bad session ID accepted: %q", sessionID)
	}
}

func TestMiddlewareMarksReturningLearners(t *testing.T) {
	_, _, returning, _ := serveReturning(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if returning {
		t.Error("minted ID marked as returning")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "anon_0123456789abcdef0123456789abcdef"})
	if _, _, returning, _ := serveReturning(t, req); !returning {
		t.Error("cookie-backed ID not marked as returning")
	}
}
