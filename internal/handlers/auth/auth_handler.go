// internal/handlers/auth/auth_handler.go
package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	authdomain "gestia-service/internal/domain/auth"
	"gestia-service/internal/identity"
	"gestia-service/internal/metrics"
	"gestia-service/internal/pkg/response"
	"gestia-service/internal/pkg/session"
)

// AttemptLimiter throttles credential endpoints. A nil limiter disables
// throttling; limiter errors fail open so a Redis outage cannot take down
// login.
type AttemptLimiter interface {
	AllowLogin(ctx context.Context, ip, email string) (bool, int64, error)
	ResetLogin(ctx context.Context, ip, email string) error
	AllowPasswordReset(ctx context.Context, email string) (bool, error)
}

// AuthHandler exposes the registration, login, logout and session endpoints.
type AuthHandler struct {
	client   *identity.Client
	sessions *session.Manager
	audit    session.AuditLog
	metrics  *metrics.Collector
	limiter  AttemptLimiter
	logger   *zap.Logger
}

func NewAuthHandler(client *identity.Client, sessions *session.Manager, audit session.AuditLog, collector *metrics.Collector, limiter AttemptLimiter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		client:   client,
		sessions: sessions,
		audit:    audit,
		metrics:  collector,
		limiter:  limiter,
		logger:   logger,
	}
}

// Register creates an account and signs it in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req authdomain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload", err)
		return
	}

	user, err := h.client.Register(c.Request.Context(), req.Email, req.Password, req.DisplayName, req.RememberMe)
	if err != nil {
		var perr *identity.ProviderError
		if errors.As(err, &perr) {
			h.logger.Info("registration rejected",
				zap.String("email", req.Email),
				zap.String("code", perr.Code))
			response.Error(c, http.StatusConflict, perr.Message, nil)
			return
		}
		h.logger.Error("registration failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "registration failed", nil)
		return
	}

	h.recordEvent(c, user.UID, authdomain.EventRegister, "")
	h.logger.Info("user registered", zap.String("user_id", user.UID))

	response.Success(c, http.StatusCreated, "account created", user)
}

// Login handles email/password sign-in.
func (h *AuthHandler) Login(c *gin.Context) {
	var req authdomain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload", err)
		return
	}

	if !h.allowLoginAttempt(c, req.Email) {
		return
	}

	user, err := h.client.Login(c.Request.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		h.rejectLogin(c, req.Email, err)
		return
	}

	if h.limiter != nil {
		if err := h.limiter.ResetLogin(c.Request.Context(), c.ClientIP(), req.Email); err != nil {
			h.logger.Warn("failed to reset login attempt counter", zap.Error(err))
		}
	}
	h.metrics.RecordLogin("password")
	h.recordEvent(c, user.UID, authdomain.EventLogin, "password")
	h.logger.Info("user logged in",
		zap.String("user_id", user.UID),
		zap.Bool("remember_me", req.RememberMe))

	response.Success(c, http.StatusOK, "login successful", user)
}

// LoginOAuth handles sign-in with an ID token from an OAuth flow.
func (h *AuthHandler) LoginOAuth(c *gin.Context) {
	var req authdomain.OAuthLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload", err)
		return
	}

	user, err := h.client.LoginWithOAuth(c.Request.Context(), req.IDToken, req.RememberMe)
	if err != nil {
		h.rejectLogin(c, "", err)
		return
	}

	h.metrics.RecordLogin("oauth")
	h.recordEvent(c, user.UID, authdomain.EventLogin, "oauth")
	h.logger.Info("user logged in via oauth", zap.String("user_id", user.UID))

	response.Success(c, http.StatusOK, "login successful", user)
}

// Logout ends the session. Safe to call when no session exists.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context()); err != nil {
		// The local session is already gone; report the provider failure
		// without blocking the client from treating itself as signed out.
		h.logger.Warn("provider sign-out failed", zap.Error(err))
	}
	response.Success(c, http.StatusOK, "logged out", nil)
}

// ResetPassword asks the provider to send a password reset email. The reply
// does not disclose whether the address is registered.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req authdomain.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload", err)
		return
	}

	if h.limiter != nil {
		allowed, err := h.limiter.AllowPasswordReset(c.Request.Context(), req.Email)
		if err != nil {
			h.logger.Warn("password reset rate limit check failed", zap.Error(err))
		} else if !allowed {
			response.Error(c, http.StatusTooManyRequests, "too many attempts, try again later", nil)
			return
		}
	}

	if err := h.client.SendPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.logger.Warn("password reset request failed", zap.Error(err))
	}
	response.Success(c, http.StatusOK, "if the account exists, a reset email has been sent", nil)
}

// GetSession reports the current session state.
func (h *AuthHandler) GetSession(c *gin.Context) {
	snap := h.sessions.Snapshot()
	resp := authdomain.SessionResponse{
		State:           snap.State.String(),
		User:            snap.User,
		SessionValid:    snap.SessionValid,
		IsAuthenticated: snap.IsAuthenticated(),
	}
	response.Success(c, http.StatusOK, "session state", resp)
}

// Activity registers user activity, resetting the inactivity timer.
func (h *AuthHandler) Activity(c *gin.Context) {
	h.sessions.Touch(c.Request.Context())
	response.Success(c, http.StatusOK, "activity recorded", nil)
}

func (h *AuthHandler) allowLoginAttempt(c *gin.Context, email string) bool {
	if h.limiter == nil {
		return true
	}
	allowed, remaining, err := h.limiter.AllowLogin(c.Request.Context(), c.ClientIP(), email)
	if err != nil {
		h.logger.Warn("login rate limit check failed", zap.Error(err))
		return true
	}
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	if !allowed {
		h.logger.Info("login attempt rate limited",
			zap.String("email", email),
			zap.String("ip", c.ClientIP()))
		response.Error(c, http.StatusTooManyRequests, "too many attempts, try again later", nil)
		return false
	}
	return true
}

func (h *AuthHandler) rejectLogin(c *gin.Context, email string, err error) {
	var perr *identity.ProviderError
	if errors.As(err, &perr) {
		h.logger.Info("login rejected",
			zap.String("email", email),
			zap.String("code", perr.Code))
		response.Error(c, http.StatusUnauthorized, perr.Message, nil)
		return
	}
	h.logger.Error("login failed", zap.Error(err))
	response.Error(c, http.StatusUnauthorized, "invalid email or password", nil)
}

func (h *AuthHandler) recordEvent(c *gin.Context, uid, eventType, reason string) {
	if h.audit == nil {
		return
	}
	ev := &authdomain.AuthEvent{
		ID:         ulid.Make().String(),
		UserID:     uid,
		Type:       eventType,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
	if err := h.audit.RecordEvent(c.Request.Context(), ev); err != nil {
		h.logger.Warn("failed to record auth event", zap.Error(err))
	}
}
