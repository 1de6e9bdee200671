// internal/websocket/hub.go
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	wstypes "gestia-service/internal/domain/websocket"
	"gestia-service/internal/pkg/session"
)

// Sessions is the slice of the session manager the hub needs.
type Sessions interface {
	Touch(ctx context.Context)
	Resume()
	Snapshot() session.Snapshot
}

// Hub tracks attached tabs and pushes session-state changes to all of them.
// Activity frames received from any tab feed the inactivity monitor, and a
// forced logout is broadcast so every tab drops to the login view at once.
type Hub struct {
	sessions Sessions
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
}

func NewHub(sessions Sessions, logger *zap.Logger) *Hub {
	return &Hub{
		sessions:   sessions,
		logger:     logger,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Run processes registration and broadcast until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			// Re-attaching counts as regaining visibility.
			h.sessions.Resume()

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client] {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow consumer; it will be dropped by its write pump.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Attach hands a client to the hub. Returns false when the hub has already
// shut down.
func (h *Hub) Attach(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// detach never blocks past shutdown: once Run has exited nothing drains the
// unregister channel.
func (h *Hub) detach(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// BroadcastSnapshot pushes a session-state change to every attached tab. A
// transition to unauthenticated is sent as a forced-logout event.
func (h *Hub) BroadcastSnapshot(snap session.Snapshot) {
	eventType := wstypes.EventTypeSessionState
	if snap.State == session.StateUnauthenticated {
		eventType = wstypes.EventTypeForceLogout
	}

	msg := &wstypes.WSMessage{
		Type: eventType,
		Data: wstypes.SessionStatePayload{
			State:           snap.State.String(),
			IsAuthenticated: snap.IsAuthenticated(),
		},
		Timestamp: time.Now().UTC(),
		ID:        ulid.Make().String(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal session broadcast", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("session broadcast queue full, dropping message")
	}
}

// HandleClientMessage processes one frame from a tab.
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) {
	switch msg.Type {
	case wstypes.EventTypeActivity:
		h.sessions.Touch(ctx)
	case wstypes.EventTypePing:
		client.sendMessage(&wstypes.WSMessage{
			Type:      wstypes.EventTypePong,
			Timestamp: time.Now().UTC(),
		})
	default:
		h.logger.Debug("unhandled websocket message", zap.String("type", string(msg.Type)))
	}
}

// ClientCount reports the number of attached tabs.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}
