// internal/identity/http_provider.go
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"gestia-service/internal/domain/auth"
	xerrors "gestia-service/internal/pkg/errors"
)

// HTTPProvider talks to an identity-toolkit style REST API:
//
//	POST {base}/v1/accounts:signUp?key={apiKey}
//	POST {base}/v1/accounts:signInWithPassword?key={apiKey}
//	POST {base}/v1/accounts:signInWithIdp?key={apiKey}
//	POST {base}/v1/accounts:update?key={apiKey}
//	POST {base}/v1/accounts:sendOobCode?key={apiKey}
//
// The provider owns credential storage; this client creates accounts, signs
// in, signs out and requests password resets.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client

	mu      sync.Mutex
	current *auth.User
	idToken string
	expiry  time.Time
}

func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	IDToken      string `json:"idToken"`
	ExpiresInSec string `json:"expiresIn"`
}

type providerErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *HTTPProvider) SignUp(ctx context.Context, email, password, displayName string) (*auth.User, error) {
	payload := map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}

	var resp signInResponse
	if err := p.post(ctx, "accounts:signUp", payload, &resp); err != nil {
		return nil, err
	}

	// The signUp endpoint ignores profile fields; attach the display name in
	// a follow-up update. The account already exists either way, so an update
	// failure does not fail the registration.
	if displayName != "" {
		update := map[string]interface{}{
			"idToken":           resp.IDToken,
			"displayName":       displayName,
			"returnSecureToken": false,
		}
		if err := p.post(ctx, "accounts:update", update, &struct{}{}); err == nil {
			resp.DisplayName = displayName
		}
	}
	return p.remember(&resp), nil
}

func (p *HTTPProvider) SignIn(ctx context.Context, email, password string) (*auth.User, error) {
	payload := map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}

	var resp signInResponse
	if err := p.post(ctx, "accounts:signInWithPassword", payload, &resp); err != nil {
		return nil, err
	}
	return p.remember(&resp), nil
}

func (p *HTTPProvider) ExchangeIDToken(ctx context.Context, idToken string) (*auth.User, error) {
	user, err := parseIDToken(idToken)
	if err != nil {
		return nil, &ProviderError{Code: "INVALID_ID_TOKEN", Message: "invalid ID token", Err: err}
	}

	payload := map[string]interface{}{
		"postBody":          fmt.Sprintf("id_token=%s&providerId=google.com", idToken),
		"returnSecureToken": true,
	}

	var resp signInResponse
	if err := p.post(ctx, "accounts:signInWithIdp", payload, &resp); err != nil {
		return nil, err
	}

	got := p.remember(&resp)
	// Prefer profile fields from the ID token when the exchange response
	// omits them.
	if got.DisplayName == "" {
		got.DisplayName = user.DisplayName
	}
	if got.PhotoURL == "" {
		got.PhotoURL = user.PhotoURL
	}
	return got, nil
}

// Restore returns the current provider session if it belongs to uid and its
// token has not expired. There is no server roundtrip: a missing or expired
// session simply means the user has to sign in again.
func (p *HTTPProvider) Restore(_ context.Context, uid string) (*auth.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil || p.current.UID != uid {
		return nil, xerrors.ErrNoSession
	}
	if !p.expiry.IsZero() && p.expiry.Before(time.Now()) {
		return nil, xerrors.ErrNoSession
	}
	user := *p.current
	return &user, nil
}

func (p *HTTPProvider) SignOut(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = nil
	p.idToken = ""
	p.expiry = time.Time{}
	return nil
}

func (p *HTTPProvider) SendPasswordReset(ctx context.Context, email string) error {
	payload := map[string]interface{}{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}
	return p.post(ctx, "accounts:sendOobCode", payload, &struct{}{})
}

func (p *HTTPProvider) remember(resp *signInResponse) *auth.User {
	user := &auth.User{
		UID:         resp.LocalID,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		PhotoURL:    resp.PhotoURL,
	}

	p.mu.Lock()
	p.current = user
	p.idToken = resp.IDToken
	p.expiry = time.Time{}
	if d, err := time.ParseDuration(resp.ExpiresInSec + "s"); err == nil {
		p.expiry = time.Now().Add(d)
	}
	p.mu.Unlock()

	out := *user
	return &out
}

func (p *HTTPProvider) post(ctx context.Context, action string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", action, err)
	}

	url := fmt.Sprintf("%s/v1/%s?key=%s", p.baseURL, action, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return &ProviderError{Code: "NETWORK_ERROR", Message: "identity provider unreachable", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ProviderError{Code: "NETWORK_ERROR", Message: "failed to read provider response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var perr providerErrorBody
		if jsonErr := json.Unmarshal(data, &perr); jsonErr == nil && perr.Error.Message != "" {
			return &ProviderError{Code: perr.Error.Message, Message: providerMessage(perr.Error.Message)}
		}
		return &ProviderError{
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message: fmt.Sprintf("identity provider returned status %d", resp.StatusCode),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", action, err)
	}
	return nil
}

// providerMessage maps the provider's error codes to user-displayable text.
func providerMessage(code string) string {
	switch code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return "invalid email or password"
	case "EMAIL_EXISTS":
		return "an account with this email already exists"
	case "USER_DISABLED":
		return "this account has been disabled"
	case "WEAK_PASSWORD":
		return "password should be at least 6 characters"
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return "too many attempts, try again later"
	default:
		return "authentication failed"
	}
}
