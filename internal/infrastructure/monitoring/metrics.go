package monitoring

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GriffinCanCode/uihost/internal/sandbox"
	"github.com/GriffinCanCode/uihost/internal/store"
)

const namespace = "uihost"

// Metrics holds all Prometheus metrics. It implements store.Observer,
// sandbox.Observer and document.Observer.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Store metrics
	PointersLive   *prometheus.GaugeVec
	Allocations    *prometheus.CounterVec
	Frees          *prometheus.CounterVec
	allocByKind    map[store.Kind]prometheus.Counter
	freeByKind     map[store.Kind]prometheus.Counter
	liveByKind     map[store.Kind]prometheus.Gauge

	// Document metrics
	DocumentsActive *prometheus.GaugeVec
	DocumentsTotal  *prometheus.CounterVec

	// Guest metrics
	GuestCalls    *prometheus.CounterVec
	GuestDuration *prometheus.HistogramVec
	GuestTraps    *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	Uptime    prometheus.GaugeFunc
	startTime time.Time

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for the JSON stats endpoint
type Snapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	ActiveDocuments   int64   `json:"active_documents"`
	ActiveConnections int64   `json:"active_connections"`
	GuestCalls        int64   `json:"guest_calls"`
	GuestTraps        int64   `json:"guest_traps"`
	UptimeSeconds     float64 `json:"uptime_seconds"`

	totalDuration float64
}

// Totals is a cross-document sum exposed as gauges
type Totals struct {
	Frames      int
	Attachments int
}

// NewMetrics creates metrics registered on a fresh registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.NewRegistry())
}

// NewMetricsWith registers metrics on reg
func NewMetricsWith(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "path"}),
		ResponseSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
		}, []string{"method", "path"}),

		PointersLive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pointers_live",
			Help:      "Live store pointers by kind across documents",
		}, []string{"kind"}),
		Allocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pointer_allocations_total",
			Help:      "Pointers allocated by kind",
		}, []string{"kind"}),
		Frees: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pointer_frees_total",
			Help:      "Pointers reclaimed by kind",
		}, []string{"kind"}),

		DocumentsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "documents_active",
			Help:      "Open documents by engine",
		}, []string{"engine"}),
		DocumentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents created by engine",
		}, []string{"engine"}),

		GuestCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guest_calls_total",
			Help:      "Guest entries by engine and operation",
		}, []string{"engine", "op"}),
		GuestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "guest_call_duration_seconds",
			Help:      "Guest call duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"engine", "op"}),
		GuestTraps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guest_traps_total",
			Help:      "Guest calls that trapped, by engine and cause",
		}, []string{"engine", "cause"}),

		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Number of active WebSocket connections",
		}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "Total number of WebSocket messages",
		}, []string{"direction", "type"}),
	}

	m.Uptime = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Process uptime in seconds",
	}, func() float64 { return time.Since(m.startTime).Seconds() })

	m.allocByKind = make(map[store.Kind]prometheus.Counter, len(store.Kinds))
	m.freeByKind = make(map[store.Kind]prometheus.Counter, len(store.Kinds))
	m.liveByKind = make(map[store.Kind]prometheus.Gauge, len(store.Kinds))
	for _, k := range store.Kinds {
		m.allocByKind[k] = m.Allocations.WithLabelValues(k.String())
		m.freeByKind[k] = m.Frees.WithLabelValues(k.String())
		m.liveByKind[k] = m.PointersLive.WithLabelValues(k.String())
	}
	return m
}

// Registry returns the registry the metrics live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WatchTotals exports frame and attachment totals, read from fn at scrape
// time
func (m *Metrics) WatchTotals(fn func() Totals) {
	factory := promauto.With(m.registry)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "frames_open",
		Help:      "Open store frames across documents",
	}, func() float64 { return float64(fn().Frames) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "attachment_edges",
		Help:      "Attachment graph entries across documents",
	}, func() float64 { return float64(fn().Attachments) })
}

// PointerAllocated implements store.Observer
func (m *Metrics) PointerAllocated(kind store.Kind) {
	if c, ok := m.allocByKind[kind]; ok {
		c.Inc()
		m.liveByKind[kind].Inc()
	}
}

// PointerFreed implements store.Observer
func (m *Metrics) PointerFreed(kind store.Kind) {
	if c, ok := m.freeByKind[kind]; ok {
		c.Inc()
		m.liveByKind[kind].Dec()
	}
}

// GuestCall implements sandbox.Observer
func (m *Metrics) GuestCall(engine sandbox.Engine, op string, duration time.Duration, err error) {
	m.GuestCalls.WithLabelValues(string(engine), op).Inc()
	m.GuestDuration.WithLabelValues(string(engine), op).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.GuestCalls++
	if err != nil && !errors.Is(err, sandbox.ErrNoExport) {
		m.snapshot.GuestTraps++
	}
	m.mu.Unlock()

	if err != nil && !errors.Is(err, sandbox.ErrNoExport) {
		m.GuestTraps.WithLabelValues(string(engine), trapCause(err)).Inc()
	}
}

// DocumentOpened implements document.Observer
func (m *Metrics) DocumentOpened(engine sandbox.Engine) {
	m.DocumentsActive.WithLabelValues(string(engine)).Inc()
	m.DocumentsTotal.WithLabelValues(string(engine)).Inc()
	m.mu.Lock()
	m.snapshot.ActiveDocuments++
	m.mu.Unlock()
}

// DocumentClosed implements document.Observer
func (m *Metrics) DocumentClosed(engine sandbox.Engine) {
	m.DocumentsActive.WithLabelValues(string(engine)).Dec()
	m.mu.Lock()
	m.snapshot.ActiveDocuments--
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns current values for the JSON stats endpoint
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	if s.TotalRequests > 0 {
		s.AvgResponseTimeMs = s.totalDuration / float64(s.TotalRequests) * 1000
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
