// Package metrics exposes prometheus instrumentation for the HTTP API and the
// backing store.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gltg/bmp-api/internal/query"
	"github.com/gltg/bmp-api/internal/schema"
)

// Metrics holds the collectors registered for one process.
type Metrics struct {
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal *prometheus.CounterVec
	// RequestDuration is the latency of HTTP requests.
	RequestDuration *prometheus.HistogramVec
	// StoreOperations counts store calls (count, fetch, get) by outcome.
	StoreOperations *prometheus.CounterVec
	// StoreDuration is the latency of store calls.
	StoreDuration *prometheus.HistogramVec
	// OpenSessions is the number of store sessions currently held.
	OpenSessions prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bmp_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bmp_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		StoreOperations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bmp_store_operations_total",
				Help: "Total number of backing store operations",
			},
			[]string{"operation", "resource", "status"},
		),
		StoreDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bmp_store_operation_duration_seconds",
				Help:    "Backing store operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "resource"},
		),
		OpenSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "bmp_store_open_sessions",
			Help: "Backing store sessions currently held",
		}),
	}
}

// InstrumentStore wraps st so that every session and operation is recorded.
func (m *Metrics) InstrumentStore(st query.Store) query.Store {
	return &instrumentedStore{next: st, m: m}
}

type instrumentedStore struct {
	next query.Store
	m    *Metrics
}

func (s *instrumentedStore) Session(ctx context.Context) (query.Session, error) {
	sess, err := s.next.Session(ctx)
	if err != nil {
		s.m.StoreOperations.WithLabelValues("session", "", "error").Inc()
		return nil, err
	}
	s.m.OpenSessions.Inc()
	return &instrumentedSession{next: sess, m: s.m}, nil
}

type instrumentedSession struct {
	next   query.Session
	m      *Metrics
	closed bool
}

func (s *instrumentedSession) observe(op, resource string, start time.Time, err error) {
	status := "ok"
	switch {
	case err == nil:
	case query.IsNotFound(err):
		status = "not_found"
	default:
		status = "error"
	}
	s.m.StoreOperations.WithLabelValues(op, resource, status).Inc()
	s.m.StoreDuration.WithLabelValues(op, resource).Observe(time.Since(start).Seconds())
}

func (s *instrumentedSession) Count(ctx context.Context, p *query.Plan) (int, error) {
	start := time.Now()
	n, err := s.next.Count(ctx, p)
	s.observe("count", p.Schema().Name, start, err)
	return n, err
}

func (s *instrumentedSession) Fetch(ctx context.Context, p *query.Plan, offset, limit int) ([]query.Row, error) {
	start := time.Now()
	rows, err := s.next.Fetch(ctx, p, offset, limit)
	s.observe("fetch", p.Schema().Name, start, err)
	return rows, err
}

func (s *instrumentedSession) Get(ctx context.Context, sc *schema.Schema, id interface{}) (query.Row, error) {
	start := time.Now()
	row, err := s.next.Get(ctx, sc, id)
	s.observe("get", sc.Name, start, err)
	return row, err
}

func (s *instrumentedSession) Close() error {
	if !s.closed {
		s.closed = true
		s.m.OpenSessions.Dec()
	}
	return s.next.Close()
}
