// internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"gestia-service/internal/domain/auth"
	xerrors "gestia-service/internal/pkg/errors"
)

// Keys used in both scopes. Values are strings.
const (
	KeyAuthUserID     = "authUserId"
	KeyLastActivityTs = "lastActivityTs"
)

// Store pairs the durable and volatile scopes and implements the session
// record contract on top of them: a record lives in exactly one scope at a
// time, reads prefer the durable scope, and clears always hit both.
type Store struct {
	durable  Scope
	volatile Scope
	logger   *zap.Logger
}

func New(durable, volatile Scope, logger *zap.Logger) *Store {
	return &Store{durable: durable, volatile: volatile, logger: logger}
}

// SaveRecord persists the record in the scope selected by RememberMe. A
// failed durable write degrades to the volatile scope: the session is simply
// not remembered across restarts, login itself is never blocked by storage.
func (s *Store) SaveRecord(ctx context.Context, rec auth.SessionRecord) error {
	if rec.UserID == "" {
		return xerrors.ErrInvalidInput
	}

	if rec.RememberMe {
		if err := s.durable.Set(ctx, KeyAuthUserID, rec.UserID); err == nil {
			_ = s.volatile.Del(ctx, KeyAuthUserID)
			return nil
		} else {
			s.logger.Warn("durable session write failed, falling back to volatile scope",
				zap.Error(err),
			)
		}
	}

	if err := s.volatile.Set(ctx, KeyAuthUserID, rec.UserID); err != nil {
		return fmt.Errorf("failed to persist session record: %w", err)
	}
	if rec.RememberMe {
		return nil
	}
	// Keep the invariant: only one scope holds a record.
	_ = s.durable.Del(ctx, KeyAuthUserID)
	return nil
}

// LoadRecord reads the session record, durable scope first. If both scopes
// hold a record (a bug state), the durable one wins.
func (s *Store) LoadRecord(ctx context.Context) (*auth.SessionRecord, error) {
	uid, err := s.durable.Get(ctx, KeyAuthUserID)
	if err == nil {
		return &auth.SessionRecord{UserID: uid, RememberMe: true}, nil
	}
	if !errors.Is(err, xerrors.ErrNotFound) {
		s.logger.Warn("durable session read failed, trying volatile scope", zap.Error(err))
	}

	uid, err = s.volatile.Get(ctx, KeyAuthUserID)
	if err != nil {
		return nil, err
	}
	return &auth.SessionRecord{UserID: uid, RememberMe: false}, nil
}

// ClearRecord removes the record from both scopes unconditionally. Don't
// assume which one was used.
func (s *Store) ClearRecord(ctx context.Context) error {
	derr := s.durable.Del(ctx, KeyAuthUserID)
	verr := s.volatile.Del(ctx, KeyAuthUserID)
	if derr != nil {
		return fmt.Errorf("failed to clear durable session record: %w", derr)
	}
	return verr
}

// TouchActivity writes the shared activity timestamp to the durable scope.
// Sibling processes observe it through WatchActivity. Concurrent writers
// race harmlessly: either timestamp means "recent activity".
func (s *Store) TouchActivity(ctx context.Context, t time.Time) error {
	ts := strconv.FormatInt(t.UnixMilli(), 10)
	if err := s.durable.Set(ctx, KeyLastActivityTs, ts); err != nil {
		return fmt.Errorf("failed to write activity timestamp: %w", err)
	}
	return nil
}

// WatchActivity delivers activity timestamps written by any process sharing
// the durable scope. Fails if the durable scope cannot notify about changes.
func (s *Store) WatchActivity(ctx context.Context) (<-chan time.Time, error) {
	w, ok := s.durable.(Watcher)
	if !ok {
		return nil, fmt.Errorf("durable scope does not support change notification")
	}

	raw, err := w.Watch(ctx, KeyLastActivityTs)
	if err != nil {
		return nil, err
	}

	out := make(chan time.Time, 8)
	go func() {
		defer close(out)
		for val := range raw {
			ms, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				s.logger.Warn("malformed activity timestamp", zap.String("value", val))
				continue
			}
			select {
			case out <- time.UnixMilli(ms):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
