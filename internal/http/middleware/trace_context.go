package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/nexusgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/nexusgraph-backend/internal/realtime"
)

const (
	HeaderTraceID        = "X-Trace-Id"
	HeaderRequestID      = "X-Request-Id"
	HeaderConversationID = "X-Conversation-Id"
)

// TraceContext attaches ctxutil.TraceData to the request. The conversation comes from the
// route or the X-Conversation-Id header; socket upgrades record their client id. Known ids
// are echoed as response headers.
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		td := &ctxutil.TraceData{
			TraceID:        traceID(c),
			RequestID:      headerOr(c, HeaderRequestID, uuid.NewString),
			ConversationID: strings.TrimSpace(c.Param("conversation_id")),
			ClientID:       socketClientID(c),
		}
		if td.ConversationID == "" {
			td.ConversationID = strings.TrimSpace(c.GetHeader(HeaderConversationID))
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))

		h := c.Writer.Header()
		h.Set(HeaderTraceID, td.TraceID)
		h.Set(HeaderRequestID, td.RequestID)
		if td.ConversationID != "" {
			h.Set(HeaderConversationID, td.ConversationID)
		}
		c.Next()
	}
}

// traceID prefers the active span so log lines join up with exported traces.
func traceID(c *gin.Context) string {
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return headerOr(c, HeaderTraceID, uuid.NewString)
}

func headerOr(c *gin.Context, name string, fallback func() string) string {
	if v := strings.TrimSpace(c.GetHeader(name)); v != "" {
		return v
	}
	return fallback()
}

// socketClientID is empty for server-assigned ids; the hub logs those itself.
func socketClientID(c *gin.Context) string {
	id := strings.TrimSpace(c.Param("client_id"))
	if id == realtime.NewClientID {
		return ""
	}
	return id
}
