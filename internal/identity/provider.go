// internal/identity/provider.go
package identity

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gestia-service/internal/domain/auth"
	"gestia-service/internal/store"
)

// Provider adapts the external identity service. Implementations must return
// errors, never panic; a *ProviderError carries a user-displayable message.
type Provider interface {
	// SignUp creates an account and leaves it signed in.
	SignUp(ctx context.Context, email, password, displayName string) (*auth.User, error)
	// SignIn authenticates with email and password.
	SignIn(ctx context.Context, email, password string) (*auth.User, error)
	// ExchangeIDToken completes a provider-driven OAuth flow by exchanging
	// the ID token obtained from the popup/redirect leg.
	ExchangeIDToken(ctx context.Context, idToken string) (*auth.User, error)
	// Restore re-establishes the provider session for a previously signed-in
	// user, or returns xerrors.ErrNoSession.
	Restore(ctx context.Context, uid string) (*auth.User, error)
	// SignOut terminates the provider session. Idempotent.
	SignOut(ctx context.Context) error
	// SendPasswordReset asks the provider to email a reset link.
	SendPasswordReset(ctx context.Context, email string) error
}

// Client wraps a Provider and keeps the local session records in sync with
// it. It is the single source of truth for "is anyone logged in right now":
// every sign-in, sign-out and startup restore is published to subscribers.
type Client struct {
	provider Provider
	store    *store.Store
	logger   *zap.Logger

	mu      sync.Mutex
	subs    map[int]func(*auth.User)
	nextSub int
}

func NewClient(provider Provider, st *store.Store, logger *zap.Logger) *Client {
	return &Client{
		provider: provider,
		store:    st,
		logger:   logger,
		subs:     make(map[int]func(*auth.User)),
	}
}

// Start restores a previous session if a local record and a matching provider
// session exist, then publishes the initial auth state. Subscribers attached
// before Start therefore always receive at least one event.
func (c *Client) Start(ctx context.Context) {
	rec, err := c.store.LoadRecord(ctx)
	if err != nil {
		c.emit(nil)
		return
	}

	user, err := c.provider.Restore(ctx, rec.UserID)
	if err != nil {
		c.logger.Info("no provider session to restore", zap.String("user_id", rec.UserID))
		c.emit(nil)
		return
	}
	c.emit(user)
}

// Register creates an account with the provider and signs it in, with the
// same persistence contract as Login.
func (c *Client) Register(ctx context.Context, email, password, displayName string, rememberMe bool) (*auth.User, error) {
	user, err := c.provider.SignUp(ctx, email, password, displayName)
	if err != nil {
		return nil, err
	}
	c.persistRecord(ctx, user, rememberMe)
	c.emit(user)
	return user, nil
}

// Login signs in with email/password and persists a session record in the
// scope selected by rememberMe. A storage failure degrades to "session not
// remembered" and never blocks the login.
func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) (*auth.User, error) {
	user, err := c.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.persistRecord(ctx, user, rememberMe)
	c.emit(user)
	return user, nil
}

// LoginWithOAuth has the same persistence contract as Login, via an ID-token
// exchange.
func (c *Client) LoginWithOAuth(ctx context.Context, idToken string, rememberMe bool) (*auth.User, error) {
	user, err := c.provider.ExchangeIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	c.persistRecord(ctx, user, rememberMe)
	c.emit(user)
	return user, nil
}

// Logout clears session records from BOTH scopes unconditionally, then signs
// out of the provider. The signed-out state is published even when the
// provider call fails: the local session must never stay stuck authenticated
// because of a remote error.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.store.ClearRecord(ctx); err != nil {
		c.logger.Warn("failed to clear session records", zap.Error(err))
	}

	err := c.provider.SignOut(ctx)
	if err != nil {
		c.logger.Error("provider sign-out failed", zap.Error(err))
	}
	c.emit(nil)
	return err
}

// SendPasswordReset forwards a reset request to the provider.
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	return c.provider.SendPasswordReset(ctx, email)
}

// Subscribe registers a callback fired on every auth-state change, including
// the initial state published by Start. Returns an unsubscribe func.
func (c *Client) Subscribe(fn func(*auth.User)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Client) persistRecord(ctx context.Context, user *auth.User, rememberMe bool) {
	rec := auth.SessionRecord{UserID: user.UID, RememberMe: rememberMe}
	if err := c.store.SaveRecord(ctx, rec); err != nil {
		c.logger.Warn("session record not persisted, session will not be remembered",
			zap.String("user_id", user.UID),
			zap.Error(err),
		)
	}
}

func (c *Client) emit(user *auth.User) {
	c.mu.Lock()
	subs := make([]func(*auth.User), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(user)
	}
}
