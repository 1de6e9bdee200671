// internal/store/redis_scope.go
package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	xerrors "gestia-service/internal/pkg/errors"
)

// RedisScope backs a Scope with Redis. Every Set also publishes the new value
// on a per-key channel so sibling processes can watch for changes without
// polling.
type RedisScope struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

func NewRedisScope(client *redis.Client, prefix string, logger *zap.Logger) *RedisScope {
	return &RedisScope{client: client, prefix: prefix, logger: logger}
}

func (s *RedisScope) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return "", xerrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return val, nil
}

func (s *RedisScope) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	// Best effort: the write already succeeded, and a missed notification
	// only delays sibling rearm until the next write.
	if err := s.client.Publish(ctx, s.channel(key), value).Err(); err != nil {
		s.logger.Warn("failed to publish key change",
			zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (s *RedisScope) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Watch subscribes to changes of a single key. The channel closes when ctx
// is cancelled.
func (s *RedisScope) Watch(ctx context.Context, key string) (<-chan string, error) {
	sub := s.client.Subscribe(ctx, s.channel(key))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", key, err)
	}

	out := make(chan string, 8)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
					// Slow consumer: drop, newer signals supersede older ones.
				}
			}
		}
	}()
	return out, nil
}

func (s *RedisScope) key(key string) string {
	return fmt.Sprintf("%s:kv:%s", s.prefix, key)
}

func (s *RedisScope) channel(key string) string {
	return fmt.Sprintf("%s:events:%s", s.prefix, key)
}
