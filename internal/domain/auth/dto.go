// internal/domain/auth/dto.go
package auth

// RegisterRequest is the account creation payload.
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	DisplayName string `json:"display_name"`
	RememberMe  bool   `json:"remember_me"`
}

// LoginRequest is the email/password login payload.
type LoginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"remember_me"`
}

// OAuthLoginRequest carries an ID token obtained from a provider-driven
// OAuth flow (popup/redirect on the client side).
type OAuthLoginRequest struct {
	IDToken    string `json:"id_token" binding:"required"`
	RememberMe bool   `json:"remember_me"`
}

// ResetPasswordRequest asks the provider to send a reset email.
type ResetPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// SessionResponse is the externally visible view of the session state.
type SessionResponse struct {
	State           string `json:"state"`
	User            *User  `json:"user,omitempty"`
	SessionValid    bool   `json:"session_valid"`
	IsAuthenticated bool   `json:"is_authenticated"`
}
