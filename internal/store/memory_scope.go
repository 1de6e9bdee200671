// internal/store/memory_scope.go
package store

import (
	"context"
	"sync"

	xerrors "gestia-service/internal/pkg/errors"
)

// MemoryScope is an in-process Scope. It is the volatile scope in production
// and stands in for the durable scope in tests. Watch works the same way as
// the Redis implementation: every Set notifies current watchers of the key.
type MemoryScope struct {
	mu       sync.RWMutex
	values   map[string]string
	watchers map[string][]chan string
}

func NewMemoryScope() *MemoryScope {
	return &MemoryScope{
		values:   make(map[string]string),
		watchers: make(map[string][]chan string),
	}
}

func (s *MemoryScope) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	if !ok {
		return "", xerrors.ErrNotFound
	}
	return val, nil
}

func (s *MemoryScope) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	// Non-blocking sends under the lock so a concurrent unwatch cannot close
	// a channel mid-send.
	for _, ch := range s.watchers[key] {
		select {
		case ch <- value:
		default:
		}
	}
	return nil
}

func (s *MemoryScope) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *MemoryScope) Watch(ctx context.Context, key string) (<-chan string, error) {
	ch := make(chan string, 8)

	s.mu.Lock()
	s.watchers[key] = append(s.watchers[key], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		current := s.watchers[key]
		for i, w := range current {
			if w == ch {
				s.watchers[key] = append(current[:i], current[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}
