package app

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	httpx "github.com/yungbote/nexusgraph-backend/internal/http"
	httpH "github.com/yungbote/nexusgraph-backend/internal/http/handlers"
	"github.com/yungbote/nexusgraph-backend/internal/observability"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

// multipartMemory keeps small uploads in memory; larger parts spill to temp files.
const multipartMemory = 32 << 20

type Handlers struct {
	Chat     *httpH.ChatHandler
	Realtime *httpH.RealtimeHandler
	Ingest   *httpH.IngestHandler
	Health   *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, cfg Config, clients Clients, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Chat:     httpH.NewChatHandler(log, services.Chat, cfg.StreamHeartbeat),
		Realtime: httpH.NewRealtimeHandler(log, services.Sockets),
		Ingest:   httpH.NewIngestHandler(log, services.Ingestion, services.Registry, services.Hub),
		Health:   httpH.NewHealthHandler(cfg.AppVersion, healthProbes(clients)),
	}
}

func healthProbes(c Clients) map[string]httpH.Probe {
	probes := map[string]httpH.Probe{
		"database":     nil,
		"analyst_db":   nil,
		"neo4j":        nil,
		"redis":        nil,
		"vector_store": nil,
		"llm":          nil,
	}
	if c.DB != nil {
		probes["database"] = c.DB.Ping
	}
	if c.Analyst != nil {
		probes["analyst_db"] = c.Analyst.Ping
	}
	if c.Graph != nil {
		probes["neo4j"] = c.Graph.Ping
	}
	if c.Bus != nil {
		probes["redis"] = c.Bus.Ping
	}
	if c.Vectors != nil {
		// In-process index: reachable whenever it was built.
		probes["vector_store"] = func(context.Context) error { return nil }
	}
	if c.LLM != nil {
		llm := c.LLM
		probes["llm"] = func(context.Context) error {
			if llm.Model() == "" {
				return errors.New("no model configured")
			}
			return nil
		}
	}
	return probes
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics) *httpx.Server {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	return httpx.NewServer(httpx.RouterConfig{
		Log:                log,
		ServiceName:        cfg.AppName,
		CORSOrigins:        cfg.CORSOrigins,
		MaxMultipartMemory: multipartMemory,
		Metrics:            metrics,
		TracingEnabled:     cfg.OtelEnabled,
		ChatHandler:        handlers.Chat,
		RealtimeHandler:    handlers.Realtime,
		IngestHandler:      handlers.Ingest,
		HealthHandler:      handlers.Health,
	})
}
