package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"gestia-service/internal/domain/auth"
	"gestia-service/internal/pkg/session"
)

type stubSessions struct {
	snap session.Snapshot
}

func (s *stubSessions) Snapshot() session.Snapshot {
	return s.snap
}

func loadingSnapshot() session.Snapshot {
	return session.Snapshot{State: session.StateLoading}
}

func authenticatedSnapshot() session.Snapshot {
	return session.Snapshot{
		State:        session.StateAuthenticated,
		User:         &auth.User{UID: "uid-1", Email: "a@example.com"},
		SessionValid: true,
	}
}

func unauthenticatedSnapshot() session.Snapshot {
	return session.Snapshot{State: session.StateUnauthenticated}
}

func newGuardRouter(snap session.Snapshot) *gin.Engine {
	gin.SetMode(gin.TestMode)
	guard := NewGuard(&stubSessions{snap: snap}, "/login")

	r := gin.New()
	r.GET("/app", guard.Pages(), func(c *gin.Context) {
		c.String(http.StatusOK, "protected")
	})
	r.GET("/api/thing", guard.RequireSession(), func(c *gin.Context) {
		c.String(http.StatusOK, MustGetUID(c))
	})
	return r
}

func perform(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestGuardPages_LoadingMakesNoDecision(t *testing.T) {
	w := perform(newGuardRouter(loadingSnapshot()), "/app")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 while loading", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "" {
		t.Errorf("no redirect may be issued while loading, got %q", loc)
	}
	if w.Body.String() == "protected" {
		t.Error("protected content rendered while loading")
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After hint while loading")
	}
}

func TestGuardPages_AuthenticatedRendersContent(t *testing.T) {
	w := perform(newGuardRouter(authenticatedSnapshot()), "/app")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "protected" {
		t.Errorf("body = %q, want protected content", w.Body.String())
	}
}

func TestGuardPages_UnauthenticatedRedirects(t *testing.T) {
	w := perform(newGuardRouter(unauthenticatedSnapshot()), "/app")

	if w.Code != http.StatusFound {
		t.Errorf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}
}

func TestRequireSession_Loading(t *testing.T) {
	w := perform(newGuardRouter(loadingSnapshot()), "/api/thing")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestRequireSession_Unauthenticated(t *testing.T) {
	w := perform(newGuardRouter(unauthenticatedSnapshot()), "/api/thing")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireSession_SetsUserContext(t *testing.T) {
	w := perform(newGuardRouter(authenticatedSnapshot()), "/api/thing")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "uid-1" {
		t.Errorf("uid from context = %q, want uid-1", w.Body.String())
	}
}

func TestGuard_InvalidSessionTreatedAsUnauthenticated(t *testing.T) {
	// A non-nil user with an invalid session must never pass the guard.
	snap := session.Snapshot{
		State:        session.StateAuthenticated,
		User:         &auth.User{UID: "uid-1"},
		SessionValid: false,
	}
	w := perform(newGuardRouter(snap), "/app")

	if w.Code != http.StatusFound {
		t.Errorf("status = %d, want redirect for invalid session", w.Code)
	}
}
