package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/nexusgraph-backend/internal/observability"
)

const (
	streamSSE    = "sse"
	streamSocket = "socket"
)

// streamKind reports whether the request was served as a long-lived stream.
func streamKind(c *gin.Context) string {
	if c.IsWebsocket() {
		return streamSocket
	}
	if strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/event-stream") {
		return streamSSE
	}
	return ""
}

// Metrics counts requests and their latency. Chat and job streams stay open for a whole
// turn or job, so they are timed in their own histogram.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		m.ApiInflightInc()
		defer m.ApiInflightDec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if kind := streamKind(c); kind != "" {
			m.ObserveStream(route, kind, time.Since(start))
			return
		}
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
