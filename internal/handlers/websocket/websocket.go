// internal/handlers/websocket/websocket.go
package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gestia-service/internal/pkg/response"
	ws "gestia-service/internal/websocket"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades authenticated requests to a session-sync connection.
type Handler struct {
	hub      *ws.Hub
	sessions ws.Sessions
	logger   *zap.Logger
}

func NewHandler(hub *ws.Hub, sessions ws.Sessions, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, sessions: sessions, logger: logger}
}

func (h *Handler) Connect(c *gin.Context) {
	snap := h.sessions.Snapshot()
	if !snap.IsAuthenticated() {
		response.Unauthorized(c, "authentication required")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, snap.User.UID, h.logger)
	if !h.hub.Attach(client) {
		conn.Close()
		return
	}
	client.Start(c.Request.Context())
}
