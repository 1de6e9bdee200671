// internal/identity/errors.go
package identity

import "fmt"

// ProviderError is a failure reported by the identity provider (bad
// credentials, network failure, aborted OAuth flow). Message is safe to show
// to the user submitting the action.
type ProviderError struct {
	Code    string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
