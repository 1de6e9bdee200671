// internal/middleware/guard.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gestia-service/internal/domain/auth"
	"gestia-service/internal/pkg/response"
	"gestia-service/internal/pkg/session"
)

// SessionSource is the slice of the session manager the guard consumes.
type SessionSource interface {
	Snapshot() session.Snapshot
}

// Guard gates access to protected routes on the session state. While the
// state is still loading it makes no decision at all: no protected content,
// no redirect. For any resolved state it produces exactly one of
// {retry hint, protected content, redirect/401}.
type Guard struct {
	sessions  SessionSource
	loginPath string
}

func NewGuard(sessions SessionSource, loginPath string) *Guard {
	if loginPath == "" {
		loginPath = "/login"
	}
	return &Guard{sessions: sessions, loginPath: loginPath}
}

// Pages guards browser-facing routes. Unauthenticated requests are sent to
// the login page with a plain 302 and no-store caching, so the interim
// response never ends up in history or caches.
func (g *Guard) Pages() gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := g.sessions.Snapshot()
		switch {
		case snap.State == session.StateLoading:
			c.Header("Retry-After", "1")
			c.Header("Cache-Control", "no-store")
			c.String(http.StatusServiceUnavailable, "session state initializing")
			c.Abort()
		case snap.IsAuthenticated():
			setUserContext(c, snap.User)
			c.Next()
		default:
			c.Header("Cache-Control", "no-store")
			c.Redirect(http.StatusFound, g.loginPath)
			c.Abort()
		}
	}
}

// RequireSession guards API routes with JSON responses instead of redirects.
func (g *Guard) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := g.sessions.Snapshot()
		switch {
		case snap.State == session.StateLoading:
			response.Unavailable(c, "session state initializing")
		case snap.IsAuthenticated():
			setUserContext(c, snap.User)
			c.Next()
		default:
			response.Unauthorized(c, "authentication required")
		}
	}
}

func setUserContext(c *gin.Context, user *auth.User) {
	c.Set("uid", user.UID)
	c.Set("email", user.Email)
	c.Set("user", user)
}

// CurrentUser returns the authenticated user set by the guard.
func CurrentUser(c *gin.Context) (*auth.User, bool) {
	val, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	user, ok := val.(*auth.User)
	return user, ok
}

// MustGetUID returns the authenticated user id or panics; only for handlers
// mounted behind the guard.
func MustGetUID(c *gin.Context) string {
	uid, exists := c.Get("uid")
	if !exists {
		panic("uid not found in context")
	}
	s, ok := uid.(string)
	if !ok {
		panic("uid has unexpected type")
	}
	return s
}
