package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

type Metrics struct {
	registry *prometheus.Registry

	apiRequests   *prometheus.CounterVec
	apiLatency    *prometheus.HistogramVec
	apiInflight   prometheus.Gauge
	streamTime    *prometheus.HistogramVec
	turns         *prometheus.CounterVec
	stepEvents    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	activeSockets prometheus.Gauge
	droppedEvents *prometheus.CounterVec
	jobsFinished  *prometheus.CounterVec
	jobsActive    prometheus.Gauge
	storeOps      *prometheus.CounterVec
	storeLatency  *prometheus.HistogramVec
	bootstraps    *prometheus.CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current returns the process metrics, or nil before Init. All methods are nil-safe.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("prometheus metrics initialized")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ng_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ng_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ng_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		streamTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ng_stream_duration_seconds",
			Help:    "Lifetime of SSE and socket streams in seconds by route/transport.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 3600},
		}, []string{"route", "transport"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ng_chat_turns_total",
			Help: "Chat turns by transport and outcome.",
		}, []string{"transport", "outcome"}),
		stepEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ng_step_events_total",
			Help: "Step events emitted by agent and status.",
		}, []string{"agent", "status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ng_agent_stage_duration_seconds",
			Help:    "Agent stage duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"agent", "status"}),
		activeSockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ng_active_sockets",
			Help: "Connected chat sockets.",
		}),
		droppedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ng_stream_dropped_events_total",
			Help: "Outbound events discarded after a transport failure.",
		}, []string{"kind"}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ng_ingestion_jobs_total",
			Help: "Ingestion jobs by terminal status.",
		}, []string{"status"}),
		jobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ng_ingestion_jobs_active",
			Help: "Ingestion jobs pending or processing.",
		}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ng_store_operations_total",
			Help: "Backing store operations by store/operation/status.",
		}, []string{"store", "operation", "status"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ng_store_operation_duration_seconds",
			Help:    "Backing store operation latency in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"store", "operation", "status"}),
		bootstraps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ng_provider_bootstrap_total",
			Help: "Provider bootstrap attempts by provider/backend/outcome/code.",
		}, []string{"provider", "backend", "outcome", "code"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight, m.streamTime,
		m.turns, m.stepEvents, m.stageDuration,
		m.activeSockets, m.droppedEvents,
		m.jobsFinished, m.jobsActive,
		m.storeOps, m.storeLatency, m.bootstraps,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

// ObserveStream records how long a streaming response stayed open.
func (m *Metrics) ObserveStream(route, transport string, dur time.Duration) {
	if m == nil {
		return
	}
	m.streamTime.WithLabelValues(route, transport).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncTurn(transport, outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(transport, outcome).Inc()
}

func (m *Metrics) IncStepEvent(agent, status string) {
	if m == nil {
		return
	}
	m.stepEvents.WithLabelValues(agent, status).Inc()
}

func (m *Metrics) ObserveStage(agent, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(agent, status).Observe(dur.Seconds())
}

func (m *Metrics) SocketConnected() {
	if m == nil {
		return
	}
	m.activeSockets.Inc()
}

func (m *Metrics) SocketDisconnected() {
	if m == nil {
		return
	}
	m.activeSockets.Dec()
}

func (m *Metrics) IncDroppedEvent(kind string) {
	if m == nil {
		return
	}
	m.droppedEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.jobsActive.Inc()
}

func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.jobsActive.Dec()
	m.jobsFinished.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveStoreOp(store, operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.storeOps.WithLabelValues(store, operation, status).Inc()
	m.storeLatency.WithLabelValues(store, operation, status).Observe(dur.Seconds())
}

func (m *Metrics) ObserveProviderBootstrap(provider, backend, outcome, code string) {
	if m == nil {
		return
	}
	m.bootstraps.WithLabelValues(provider, backend, outcome, code).Inc()
}
