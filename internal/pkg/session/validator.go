// internal/pkg/session/validator.go
package session

import (
	"context"

	"gestia-service/internal/domain/auth"
	"gestia-service/internal/store"
)

// Validator decides whether the provider-reported user matches the locally
// stored session record. It only reads; healing a mismatch is the manager's
// job.
type Validator struct {
	store *store.Store
}

func NewValidator(st *store.Store) *Validator {
	return &Validator{store: st}
}

// Valid reports whether user has a matching session record. The durable
// scope is checked first, then the volatile one. A nil user is never valid.
func (v *Validator) Valid(ctx context.Context, user *auth.User) bool {
	if user == nil {
		return false
	}
	rec, err := v.store.LoadRecord(ctx)
	if err != nil {
		return false
	}
	return rec.UserID == user.UID
}
