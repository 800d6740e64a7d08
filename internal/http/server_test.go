package http

import (
	"context"
	"io"
	"net"
	stdhttp "net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
	"github.com/yungbote/nexusgraph-backend/internal/realtime"
)

func TestServerShutdownEndsPushStreams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := realtime.NewHub(logger.Nop())
	engine := gin.New()
	engine.GET("/events", func(c *gin.Context) {
		sub := hub.NewSubscriber()
		defer hub.CloseSubscriber(sub)
		hub.AddChannel(sub, realtime.JobChannel("job-1"))
		hub.ServeHTTP(c.Writer, c.Request, sub)
	})
	srv := &Server{Engine: engine}
	srv.OnShutdown(hub.CloseAll)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	resp, err := stdhttp.Get("http://" + ln.Addr().String() + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	require.Equal(t, 1, hub.Subscribers(realtime.JobChannel("job-1")))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, srv.Shutdown(ctx))
	require.Less(t, time.Since(start), 2*time.Second)

	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("Serve did not return after Shutdown")
	}
	_, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, 0, hub.Subscribers(realtime.JobChannel("job-1")))

	late := hub.NewSubscriber()
	select {
	case _, ok := <-late.Outbound:
		require.False(t, ok, "subscriber created after shutdown should be closed")
	default:
		t.Fatalf("subscriber created after shutdown is still open")
	}
}
