// internal/domain/websocket/types.go
package websocket

import "time"

// EventType identifies real-time session events.
type EventType string

const (
	// Connection events
	EventTypePing EventType = "ping"
	EventTypePong EventType = "pong"

	// Client -> server: the user interacted with this tab.
	EventTypeActivity EventType = "activity"

	// Server -> client session events
	EventTypeSessionState EventType = "session:state"
	EventTypeForceLogout  EventType = "session:force_logout"
)

// WSMessage is the universal message format.
type WSMessage struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	ID        string      `json:"id,omitempty"`
}

// SessionStatePayload is the Data of session:state messages.
type SessionStatePayload struct {
	State           string `json:"state"`
	IsAuthenticated bool   `json:"is_authenticated"`
}
