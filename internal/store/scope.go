// internal/store/scope.go
package store

import "context"

// Scope is a flat string key-value namespace. The service runs two of them:
// a durable scope that survives restarts and is shared by every process on
// the same backend, and a volatile scope that lives and dies with the process.
type Scope interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, key string) error
}

// Watcher is implemented by scopes that can notify about key changes made by
// any writer, including sibling processes. Values arrive in write order per
// writer; concurrent writers race and last-write-wins, which is acceptable
// for the activity-signal use this serves.
type Watcher interface {
	Watch(ctx context.Context, key string) (<-chan string, error)
}
