package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/nexusgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

// RequestLogger writes one line per request. Streams are logged when they end, with their
// transport; a stream the client hung up on is not an error.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		fields = append(fields, ctxutil.LogFields(c.Request.Context())...)
		kind := streamKind(c)
		if kind != "" {
			fields = append(fields, "stream", kind)
			if c.Request.Context().Err() != nil {
				fields = append(fields, "client_gone", true)
			}
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		case kind != "":
			log.Info("stream closed", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
