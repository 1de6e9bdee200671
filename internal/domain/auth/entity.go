// internal/domain/auth/entity.go
package auth

import "time"

// User is an account owned by the external identity provider. This service
// never mutates it; the provider controls its whole lifecycle.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// SessionRecord ties a locally persisted session to a provider user.
// Exactly one store scope holds a record at a time: the durable scope when the
// user asked to be remembered, the volatile scope otherwise.
type SessionRecord struct {
	UserID     string `json:"user_id"`
	RememberMe bool   `json:"remember_me"`
}

// Event types written to the audit trail.
const (
	EventRegister     = "register"
	EventLogin        = "login"
	EventLogout       = "logout"
	EventForcedLogout = "forced_logout"
	EventIdleTimeout  = "idle_timeout"
)

// AuthEvent is one entry in the auth audit trail.
type AuthEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Type       string    `json:"type"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
