// internal/identity/local_provider.go
package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	"gestia-service/internal/domain/auth"
	xerrors "gestia-service/internal/pkg/errors"
)

type localAccount struct {
	user auth.User
	hash []byte
}

// LocalProvider is an in-process identity provider used for development and
// tests. Accounts are registered at startup; passwords are bcrypt hashed.
type LocalProvider struct {
	mu       sync.Mutex
	accounts map[string]*localAccount // keyed by lowercase email
	byUID    map[string]*localAccount
	lastUID  string
}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{
		accounts: make(map[string]*localAccount),
		byUID:    make(map[string]*localAccount),
	}
}

// SignUp creates a local account and signs it in.
func (p *LocalProvider) SignUp(_ context.Context, email, password, displayName string) (*auth.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to hash password")
	}

	acct := &localAccount{
		user: auth.User{
			UID:         ulid.Make().String(),
			Email:       email,
			DisplayName: displayName,
		},
		hash: hash,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.accounts[strings.ToLower(email)]; exists {
		return nil, &ProviderError{Code: "EMAIL_EXISTS", Message: "an account with this email already exists"}
	}
	p.accounts[strings.ToLower(email)] = acct
	p.byUID[acct.user.UID] = acct
	p.lastUID = acct.user.UID

	user := acct.user
	return &user, nil
}

func (p *LocalProvider) SignIn(_ context.Context, email, password string) (*auth.User, error) {
	p.mu.Lock()
	acct, ok := p.accounts[strings.ToLower(email)]
	p.mu.Unlock()

	if !ok {
		return nil, &ProviderError{Code: "EMAIL_NOT_FOUND", Message: "invalid email or password"}
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return nil, &ProviderError{Code: "INVALID_PASSWORD", Message: "invalid email or password"}
	}

	p.mu.Lock()
	p.lastUID = acct.user.UID
	p.mu.Unlock()

	user := acct.user
	return &user, nil
}

func (p *LocalProvider) ExchangeIDToken(_ context.Context, idToken string) (*auth.User, error) {
	user, err := parseIDToken(idToken)
	if err != nil {
		return nil, &ProviderError{Code: "INVALID_ID_TOKEN", Message: "invalid ID token", Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// First OAuth sign-in creates the account.
	acct, ok := p.byUID[user.UID]
	if !ok {
		acct = &localAccount{user: *user}
		p.byUID[user.UID] = acct
		if user.Email != "" {
			p.accounts[strings.ToLower(user.Email)] = acct
		}
	}
	p.lastUID = acct.user.UID

	out := acct.user
	return &out, nil
}

func (p *LocalProvider) Restore(_ context.Context, uid string) (*auth.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastUID == "" || p.lastUID != uid {
		return nil, xerrors.ErrNoSession
	}
	acct, ok := p.byUID[uid]
	if !ok {
		return nil, xerrors.ErrNoSession
	}
	user := acct.user
	return &user, nil
}

func (p *LocalProvider) SignOut(_ context.Context) error {
	p.mu.Lock()
	p.lastUID = ""
	p.mu.Unlock()
	return nil
}

func (p *LocalProvider) SendPasswordReset(_ context.Context, email string) error {
	p.mu.Lock()
	_, ok := p.accounts[strings.ToLower(email)]
	p.mu.Unlock()

	if !ok {
		return &ProviderError{Code: "EMAIL_NOT_FOUND", Message: "no account for this email"}
	}
	// Local accounts have no mailbox; the request is accepted and dropped.
	return nil
}
