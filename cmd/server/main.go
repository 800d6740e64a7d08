package main

import (
	"context"
	"os"

	"github.com/yungbote/nexusgraph-backend/internal/app"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
	"github.com/yungbote/nexusgraph-backend/internal/platform/shutdown"
)

func main() {
	os.Exit(run())
}

func run() int {
	a, err := app.New()
	if err != nil {
		// app.New failed before or after building its logger; report on a fresh one.
		if log, lerr := logger.New("production"); lerr == nil {
			log.Error("initialize app", "error", err)
			log.Sync()
		}
		return 1
	}
	defer a.Close()

	if err := a.Start(); err != nil {
		a.Log.Error("start app", "error", err)
		return 1
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run() }()

	select {
	case err := <-errCh:
		if err != nil {
			a.Log.Error("server exited", "error", err)
			return 1
		}
		return 0
	case <-ctx.Done():
		a.Log.Info("shutting down")
		return 0
	}
}
