// Package metrics exposes operational counters and a /health endpoint over
// HTTP, grounded on the original metrics collector and its Prometheus text
// exposition, now backed by prometheus/client_golang.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector tracks request counts, active task gauge, and uptime.
type Collector struct {
	requestsTotal   *prometheus.CounterVec
	activeTasks     prometheus.Gauge
	checkoutResults *prometheus.CounterVec
	startTime       time.Time
}

// NewCollector registers the lazabot metric family against reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lazabot_requests_total",
			Help: "Total number of outbound HTTP requests, partitioned by outcome.",
		}, []string{"outcome"}),
		activeTasks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lazabot_active_tasks",
			Help: "Number of currently running executor tasks.",
		}),
		checkoutResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lazabot_checkout_results_total",
			Help: "Total number of checkout attempts, partitioned by outcome.",
		}, []string{"outcome"}),
		startTime: time.Now(),
	}
}

// IncRequest records an outbound request outcome ("success" or "failure").
func (c *Collector) IncRequest(outcome string) {
	c.requestsTotal.WithLabelValues(outcome).Inc()
}

// IncCheckout records a checkout attempt outcome ("success" or "failure").
func (c *Collector) IncCheckout(outcome string) {
	c.checkoutResults.WithLabelValues(outcome).Inc()
}

// SetActiveTasks reports the current number of running executor tasks.
func (c *Collector) SetActiveTasks(n int) {
	c.activeTasks.Set(float64(n))
}

// Uptime returns how long the collector has been running.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// HealthChecker reports whether a dependency the process relies on is
// reachable; returning a nil error means healthy.
type HealthChecker func(ctx context.Context) error

// Server exposes /metrics and /health on its own listener, separate from the
// application's primary traffic.
type Server struct {
	httpServer *http.Server
}

// NewServer builds a metrics HTTP server bound to addr. health is consulted
// on every GET /health; a nil health always reports healthy.
func NewServer(addr string, reg *prometheus.Registry, health HealthChecker) *Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintf(w, `{"status":"error","reason":%q}`, err.Error())
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// ListenAndServe blocks serving /metrics and /health until Shutdown is
// called, returning nil on a clean shutdown.
func (s *Server) ListenAndServe() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
