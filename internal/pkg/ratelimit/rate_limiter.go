// internal/pkg/ratelimit/rate_limiter.go
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	maxLoginAttempts = 5
	loginWindow      = 15 * time.Minute

	maxResetRequests = 3
	resetWindow      = time.Hour
)

// Limiter counts authentication attempts in Redis. Counters are keyed per
// ip+email for logins and per email for password resets, so one abusive
// source cannot lock an account for everyone else.
type Limiter struct {
	client *redis.Client
}

func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// AllowLogin reports whether another login attempt is allowed and how many
// attempts remain in the current window.
func (l *Limiter) AllowLogin(ctx context.Context, ip, email string) (bool, int64, error) {
	key := fmt.Sprintf("ratelimit:login:%s:%s", ip, email)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to count login attempt: %w", err)
	}
	if count == 1 {
		l.client.Expire(ctx, key, loginWindow)
	}

	remaining := int64(maxLoginAttempts) - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= maxLoginAttempts, remaining, nil
}

// ResetLogin clears the attempt counter after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, ip, email string) error {
	key := fmt.Sprintf("ratelimit:login:%s:%s", ip, email)
	return l.client.Del(ctx, key).Err()
}

// AllowPasswordReset reports whether another reset email may be requested
// for this address.
func (l *Limiter) AllowPasswordReset(ctx context.Context, email string) (bool, error) {
	key := fmt.Sprintf("ratelimit:password_reset:%s", email)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to count password reset attempt: %w", err)
	}
	if count == 1 {
		l.client.Expire(ctx, key, resetWindow)
	}
	return count <= maxResetRequests, nil
}
