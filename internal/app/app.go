package app

import (
	"context"
	"fmt"
	"os"
	"time"

	httpx "github.com/yungbote/nexusgraph-backend/internal/http"
	"github.com/yungbote/nexusgraph-backend/internal/observability"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
	"github.com/yungbote/nexusgraph-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	Server   *httpx.Server

	shutdownOtel func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.Init(log)
	}
	shutdownOtel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		Enabled:     cfg.OtelEnabled,
		ServiceName: cfg.AppName,
		Environment: cfg.Env,
		Version:     cfg.AppVersion,
		Endpoint:    cfg.OtelEndpoint,
		Insecure:    cfg.OtelInsecure,
		SampleRatio: cfg.OtelSampleRatio,
		Headers:     observability.ParseHeaders(cfg.OtelHeaders),
	})

	clients, err := wireClients(context.Background(), log, cfg)
	if err != nil {
		_ = shutdownOtel(context.Background())
		log.Sync()
		return nil, err
	}
	var reposet Repos
	if clients.DB != nil {
		reposet = wireRepos(clients.DB.DB(), log)
	} else {
		reposet = wireRepos(nil, log)
	}
	serviceset := wireServices(log, cfg, clients, reposet)
	handlerset := wireHandlers(log, cfg, clients, serviceset)
	server := wireServer(log, cfg, handlerset, metrics)
	server.OnShutdown(serviceset.Hub.CloseAll)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Server:       server,
		shutdownOtel: shutdownOtel,
	}, nil
}

// Start launches the ingestion workers and, when a bus is configured, the forwarder
// that replays bus messages onto the local push hub.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.Services.Worker.Start(ctx)

	if a.Clients.Bus != nil {
		hub := a.Services.Hub
		if err := a.Clients.Bus.StartForwarder(ctx, func(m realtime.PushMessage) {
			hub.Broadcast(m)
		}); err != nil {
			return fmt.Errorf("start push forwarder: %w", err)
		}
	}
	return nil
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("listening", "addr", a.Cfg.HTTPAddr)
	return a.Server.Run(a.Cfg.HTTPAddr)
}

// Close drains the HTTP server, stops workers, closes sockets and clients, then
// flushes telemetry.
func (a *App) Close() {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			a.Log.Warn("http shutdown", "error", err)
		}
	}
	if a.Services.Sockets != nil {
		a.Services.Sockets.CloseAll()
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
		a.Services.Worker.Wait()
	}
	a.Clients.Close(ctx)
	if a.shutdownOtel != nil {
		if err := a.shutdownOtel(ctx); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
