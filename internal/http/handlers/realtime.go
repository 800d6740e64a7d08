package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
	"github.com/yungbote/nexusgraph-backend/internal/realtime"
)

type RealtimeHandler struct {
	Log     *logger.Logger
	Sockets *realtime.SocketHub
}

func NewRealtimeHandler(log *logger.Logger, sockets *realtime.SocketHub) *RealtimeHandler {
	return &RealtimeHandler{Log: log.With("handler", "RealtimeHandler"), Sockets: sockets}
}

// GET /api/v1/chat/ws/:client_id
//
// "new" asks the server to assign an id; it is returned in the connect ack.
func (h *RealtimeHandler) ChatSocket(c *gin.Context) {
	clientID := c.Param("client_id")
	h.Log.Debug("socket connect", "client_id", clientID)
	if err := h.Sockets.ServeWS(c.Writer, c.Request, clientID); err != nil {
		// the upgrader already wrote the HTTP error
		h.Log.Warn("socket upgrade failed", "client_id", clientID, "error", err)
	}
}
