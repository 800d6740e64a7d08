package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/nexusgraph-backend/internal/observability"
)

func TestMetricsTimesStreamsApart(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := observability.Init(nil)

	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/plain", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/events", func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.String(http.StatusOK, "data: {}\n\n")
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plain", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/events", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`ng_api_requests_total{method="GET",route="/plain",status="200"} 1`,
		`ng_stream_duration_seconds_count{route="/events",transport="sse"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in metrics output", want)
		}
	}
	if strings.Contains(out, `route="/events",status=`) {
		t.Fatalf("stream was counted as a plain request")
	}
}
