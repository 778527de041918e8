package ws

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/auth"
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/collab"
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/room"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" {
		return true
	}
	allowedPrefixes := []string{
		"http://localhost",
		"http://127.0.0.1",
		"https://localhost",
		"https://127.0.0.1",
	}
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(origin, p) {
			return true
		}
	}
	return false
}}

type Manager struct {
	hub      *room.Hub
	svc      collab.Service
	sem      *collab.SemaphoreControl
	registry *auth.Registry
}

func NewManager(hub *room.Hub, svc collab.Service, sem *collab.SemaphoreControl, registry *auth.Registry) *Manager {
	return &Manager{hub: hub, svc: svc, sem: sem, registry: registry}
}

// WebSocketConnect upgrades an authenticated request. The middleware already
// resolved the token; a missing identity here means the route was mounted
// without it, which is refused rather than half-connected.
func (m *Manager) WebSocketConnect(c *gin.Context) {
	userID := c.GetUint64("userId")
	if userID == 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":    "UNAUTHENTICATED",
			"message": "no identity on connection",
		})
		return
	}
	identity := auth.Identity{
		ID:        userID,
		Name:      c.GetString("name"),
		Email:     c.GetString("email"),
		AvatarURL: c.GetString("avatarUrl"),
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v (origin=%s)", err, c.Request.Header.Get("Origin"))
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	m.registry.Bind(connID, identity)
	defer m.registry.Unbind(connID)

	wsConn := NewConn(conn, connID, identity, m.hub, m.svc, m.sem)

	// start the writer first so messages queued during join are delivered
	go wsConn.writeLoop()
	wsConn.Enqueue(WelcomeMessage{Type: "welcome", SessionID: connID})

	// blocks until the connection closes
	wsConn.readLoop(c.Request.Context())

	// leave the room before closing the send channel so room broadcasts
	// can no longer pick this conn up
	m.hub.Disconnect(c.Request.Context(), wsConn)
	wsConn.closeSend()
}
