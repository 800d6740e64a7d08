package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/nexusgraph-backend/internal/http/handlers"
	httpMW "github.com/yungbote/nexusgraph-backend/internal/http/middleware"
	"github.com/yungbote/nexusgraph-backend/internal/observability"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	// MaxMultipartMemory bounds the in-memory part of multipart uploads.
	MaxMultipartMemory int64
	Metrics            *observability.Metrics
	TracingEnabled     bool

	ChatHandler     *httpH.ChatHandler
	RealtimeHandler *httpH.RealtimeHandler
	IngestHandler   *httpH.IngestHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = cfg.MaxMultipartMemory
	}
	if cfg.TracingEnabled {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.TraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"name": cfg.ServiceName, "docs": "/api/v1/health"})
	})

	api := r.Group("/api/v1")
	{
		// Health
		if cfg.HealthHandler != nil {
			api.GET("/health", cfg.HealthHandler.HealthCheck)
			api.GET("/health/ready", cfg.HealthHandler.Ready)
			api.GET("/health/live", cfg.HealthHandler.Live)
		}

		// Chat
		if cfg.ChatHandler != nil {
			api.POST("/chat", cfg.ChatHandler.Chat)
			api.POST("/chat/stream", cfg.ChatHandler.Stream)
			api.GET("/chat/history/:conversation_id", cfg.ChatHandler.History)
		}
		if cfg.RealtimeHandler != nil {
			api.GET("/chat/ws/:client_id", cfg.RealtimeHandler.ChatSocket)
		}

		// Ingestion
		if cfg.IngestHandler != nil {
			api.POST("/ingest/upload", cfg.IngestHandler.Upload)
			api.POST("/ingest/upload/bulk", cfg.IngestHandler.BulkUpload)
			api.GET("/ingest/status", cfg.IngestHandler.List)
			api.GET("/ingest/status/:job_id", cfg.IngestHandler.Status)
			api.DELETE("/ingest/job/:job_id", cfg.IngestHandler.Cancel)
			api.GET("/ingest/events/:job_id", cfg.IngestHandler.Events)
			api.GET("/ingest/documents", cfg.IngestHandler.Documents)
		}
	}

	return r
}
