// Package metrics exposes a private-per-world Prometheus registry
// tracking the handful of gauges and counters spec.md §8's testable
// properties care about: queue lengths, drop counts, auth failures
// and reconnect attempts.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every metric a single World updates and exposes. Each
// World owns its own Registry rather than registering on the global
// default one, so the fan-out across many worlds in one process never
// collides on metric names and a test can Gather() in isolation.
type Metrics struct {
	Registry *prometheus.Registry

	ClientConnected  prometheus.Gauge
	BufferedBytes    prometheus.Gauge
	InactiveBytes    prometheus.Gauge
	HistoryBytes     prometheus.Gauge
	DroppedBuffered  prometheus.Counter
	DroppedInactive  prometheus.Counter
	AuthFailures     prometheus.Counter
	ReconnectAttempt prometheus.Counter
}

// New creates a fresh registry and registers every metric on it,
// labeling each with the owning world's name.
func New(world string) *Metrics {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"world": world}

	return &Metrics{
		Registry: reg,
		ClientConnected: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace:   "mooproxy",
			Name:        "client_connected",
			Help:        "1 if a client is currently connected, 0 otherwise.",
			ConstLabels: constLabels,
		}),
		BufferedBytes: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace:   "mooproxy",
			Name:        "buffered_queue_bytes",
			Help:        "Total byte length of the buffered line queue.",
			ConstLabels: constLabels,
		}),
		InactiveBytes: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace:   "mooproxy",
			Name:        "inactive_queue_bytes",
			Help:        "Total byte length of the inactive line queue.",
			ConstLabels: constLabels,
		}),
		HistoryBytes: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace:   "mooproxy",
			Name:        "history_queue_bytes",
			Help:        "Total byte length of the history line queue.",
			ConstLabels: constLabels,
		}),
		DroppedBuffered: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace:   "mooproxy",
			Name:        "dropped_buffered_total",
			Help:        "Lines dropped from the buffered queue by trimming.",
			ConstLabels: constLabels,
		}),
		DroppedInactive: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace:   "mooproxy",
			Name:        "dropped_inactive_total",
			Help:        "Lines dropped from the inactive queue by trimming.",
			ConstLabels: constLabels,
		}),
		AuthFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace:   "mooproxy",
			Name:        "auth_failures_total",
			Help:        "Client authentication attempts that failed verification.",
			ConstLabels: constLabels,
		}),
		ReconnectAttempt: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace:   "mooproxy",
			Name:        "reconnect_attempts_total",
			Help:        "Server reconnect attempts made after a lost connection.",
			ConstLabels: constLabels,
		}),
	}
}

// WorldSnapshot is the subset of World state the metrics gauges track.
// It is a plain struct rather than a dependency on internal/domain/world
// so this package has no import cycle back into the domain layer; the
// engine fills one in from a *world.World each tick.
type WorldSnapshot struct {
	ClientConnected bool
	BufferedBytes   int64
	InactiveBytes   int64
	HistoryBytes    int64
	DroppedBuffered int64
	DroppedInactive int64
}

// Observe sets every gauge from snap and advances the monotonic
// counters by however much they grew since the last Observe call. It
// is safe to call every main-loop pass.
func (m *Metrics) Observe(snap WorldSnapshot, prevDroppedBuffered, prevDroppedInactive *int64) {
	if snap.ClientConnected {
		m.ClientConnected.Set(1)
	} else {
		m.ClientConnected.Set(0)
	}
	m.BufferedBytes.Set(float64(snap.BufferedBytes))
	m.InactiveBytes.Set(float64(snap.InactiveBytes))
	m.HistoryBytes.Set(float64(snap.HistoryBytes))

	if d := snap.DroppedBuffered - *prevDroppedBuffered; d > 0 {
		m.DroppedBuffered.Add(float64(d))
	}
	*prevDroppedBuffered = snap.DroppedBuffered

	if d := snap.DroppedInactive - *prevDroppedInactive; d > 0 {
		m.DroppedInactive.Add(float64(d))
	}
	*prevDroppedInactive = snap.DroppedInactive
}

// Server binds a tiny /metrics endpoint to addr (intended to be a
// localhost-only address; the caller decides this — the package has
// no opinion beyond serving what it's given) exposing reg via
// promhttp.HandlerFor. It does not block; call Shutdown to stop it.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

// Serve starts listening on addr and serving reg's metrics in the
// background, returning once the listener is bound so callers can log
// or report the actual address (useful when addr has a ":0" port).
func Serve(addr string, reg *prometheus.Registry) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Handler: mux}
	s := &Server{httpServer: srv, listener: ln}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return
		}
	}()

	return s, nil
}

// Addr returns the address the server ended up bound to.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Shutdown stops the server, waiting up to the given timeout for
// in-flight scrapes to finish.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
