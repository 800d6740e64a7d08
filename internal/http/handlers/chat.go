package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/nexusgraph-backend/internal/domain"
	"github.com/yungbote/nexusgraph-backend/internal/http/response"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
	"github.com/yungbote/nexusgraph-backend/internal/realtime"
)

type ChatService interface {
	Respond(ctx context.Context, req types.ChatRequest, sink realtime.Sink) (*types.ChatResponse, error)
	History(ctx context.Context, conversationID string, limit int) ([]*types.ChatTurn, error)
}

type ChatHandler struct {
	log       *logger.Logger
	chat      ChatService
	heartbeat time.Duration
}

func NewChatHandler(log *logger.Logger, chat ChatService, heartbeat time.Duration) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "ChatHandler"), chat: chat, heartbeat: heartbeat}
}

// POST /api/v1/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	if req.Stream {
		h.stream(c, req)
		return
	}
	res, err := h.chat.Respond(c.Request.Context(), req, realtime.NewRecorderSink())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/v1/chat/stream
func (h *ChatHandler) Stream(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	req.Stream = true
	h.stream(c, req)
}

// GET /api/v1/chat/history/:conversation_id?limit=50
func (h *ChatHandler) History(c *gin.Context) {
	turns, err := h.chat.History(c.Request.Context(), c.Param("conversation_id"), queryInt(c, "limit", 50))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"conversation_id": c.Param("conversation_id"), "turns": turns})
}

func (h *ChatHandler) bind(c *gin.Context) (types.ChatRequest, bool) {
	var req types.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return req, false
	}
	if strings.TrimSpace(req.Message) == "" {
		response.RespondError(c, http.StatusBadRequest, realtime.CodeEmptyMessage, errors.New("message is required"))
		return req, false
	}
	return req, true
}

// stream answers on the request itself. Failures after the headers are written travel as
// error envelopes, so the handler never writes a JSON error body here.
func (h *ChatHandler) stream(c *gin.Context, req types.ChatRequest) {
	sink, err := realtime.NewSSESink(c.Writer, h.heartbeat)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "streaming_unsupported", err)
		return
	}
	if _, err := h.chat.Respond(c.Request.Context(), req, sink); err != nil {
		if errors.Is(err, context.Canceled) {
			h.log.Debug("stream client went away")
			return
		}
		h.log.Debug("streamed turn ended with error", "error", err)
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := strings.TrimSpace(c.Query(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
