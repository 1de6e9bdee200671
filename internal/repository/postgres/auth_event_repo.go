// internal/repository/postgres/auth_event_repo.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"gestia-service/internal/domain/auth"
)

// AuthEventRepository persists the auth audit trail. Writers treat it as
// best effort; a failed insert is logged by the caller, never fatal.
type AuthEventRepository struct {
	db *pgxpool.Pool
}

func NewAuthEventRepository(db *pgxpool.Pool) *AuthEventRepository {
	return &AuthEventRepository{db: db}
}

// RecordEvent inserts one audit entry.
func (r *AuthEventRepository) RecordEvent(ctx context.Context, ev *auth.AuthEvent) error {
	query := `
		INSERT INTO auth_events (id, user_id, event_type, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, ev.ID, ev.UserID, ev.Type, ev.Reason, ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to record auth event: %w", err)
	}
	return nil
}

// ListRecent returns the newest events, newest first.
func (r *AuthEventRepository) ListRecent(ctx context.Context, limit int) ([]*auth.AuthEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, event_type, reason, occurred_at
		FROM auth_events
		ORDER BY occurred_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list auth events: %w", err)
	}
	defer rows.Close()

	var events []*auth.AuthEvent
	for rows.Next() {
		var ev auth.AuthEvent
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Type, &ev.Reason, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan auth event: %w", err)
		}
		events = append(events, &ev)
	}

	return events, rows.Err()
}
