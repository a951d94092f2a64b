package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/collab-code-share/backend/internal/ws"
)

// CollabHandler exposes the realtime relay over a WebSocket endpoint.
type CollabHandler struct {
	wsHandler *ws.Handler
}

// NewCollabHandler creates a new CollabHandler.
func NewCollabHandler(wsHandler *ws.Handler) *CollabHandler {
	return &CollabHandler{
		wsHandler: wsHandler,
	}
}

// Attach handles GET /api/collab - upgrades to WebSocket. Session
// membership is negotiated afterwards through join-session events, so
// the upgrade itself never fails on session state.
func (h *CollabHandler) Attach(c *gin.Context) {
	if err := h.wsHandler.HandleConnection(c.Writer, c.Request); err != nil {
		// Upgrade failures have already written their response.
		return
	}
}

// RegisterRoutes registers the collab handler routes on a Gin router group.
func (h *CollabHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/collab", h.Attach)
}
