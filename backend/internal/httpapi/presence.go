package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/cache"
)

// PresenceHandler exposes the Redis presence mirror over HTTP so tooling can
// see which documents are live and who is in them without a websocket.
type PresenceHandler struct {
	cache cache.PresenceCache
}

func NewPresenceHandler(c cache.PresenceCache) *PresenceHandler {
	return &PresenceHandler{cache: c}
}

// ListDocuments handles GET /collab/presence.
func (h *PresenceHandler) ListDocuments(c *gin.Context) {
	docs, err := h.cache.GetDocuments(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL", "message": err.Error()})
		return
	}
	if docs == nil {
		docs = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

type presenceMember struct {
	UserID   uint64          `json:"userId"`
	Username string          `json:"username"`
	Cursor   json.RawMessage `json:"cursor,omitempty"`
}

// RoomMembers handles GET /collab/presence/:docId.
func (h *PresenceHandler) RoomMembers(c *gin.Context) {
	docID := c.Param("docId")
	ctx := c.Request.Context()

	members, err := h.cache.GetAliveMembersWithNames(ctx, docID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL", "message": err.Error()})
		return
	}

	out := make([]presenceMember, 0, len(members))
	for _, m := range members {
		pm := presenceMember{UserID: m.UserID, Username: m.Username}
		// cursor may be missing or expired, that is not an error
		if cur, err := h.cache.GetCursor(ctx, docID, m.UserID); err == nil && len(cur) > 0 {
			pm.Cursor = cur
		}
		out = append(out, pm)
	}
	c.JSON(http.StatusOK, gin.H{"docId": docID, "members": out})
}
