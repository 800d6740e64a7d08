package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	ServiceHealthy   = "healthy"
	ServiceUnhealthy = "unhealthy"
	ServiceDisabled  = "disabled"

	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Probe checks one dependency. A nil Probe marks the service as disabled.
type Probe func(ctx context.Context) error

type HealthReport struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

type HealthHandler struct {
	version string
	probes  map[string]Probe
	timeout time.Duration
}

func NewHealthHandler(version string, probes map[string]Probe) *HealthHandler {
	return &HealthHandler{version: version, probes: probes, timeout: 3 * time.Second}
}

// GET /api/v1/health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, h.Report(c.Request.Context()))
}

// GET /api/v1/health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	rep := h.Report(c.Request.Context())
	status := http.StatusOK
	if rep.Status != StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, rep)
}

// GET /api/v1/health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive", "timestamp": time.Now().UTC()})
}

// Report probes every configured dependency concurrently. A failing probe degrades the
// report; a disabled one does not.
func (h *HealthHandler) Report(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	var mu sync.Mutex
	services := make(map[string]string, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name, probe := name, h.probes[name]
		if probe == nil {
			mu.Lock()
			services[name] = ServiceDisabled
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			state := ServiceHealthy
			if err := probe(gctx); err != nil {
				state = ServiceUnhealthy
			}
			mu.Lock()
			services[name] = state
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := StatusHealthy
	for _, s := range services {
		if s == ServiceUnhealthy {
			status = StatusDegraded
			break
		}
	}
	return HealthReport{
		Status:    status,
		Version:   h.version,
		Timestamp: time.Now().UTC(),
		Services:  services,
	}
}
