package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"jarconsole/internal/models"
)

// Collector owns the console's Prometheus series.
type Collector struct {
	pollTicks      prometheus.Counter
	pollResults    *prometheus.CounterVec
	serviceRunning *prometheus.GaugeVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec

	mu    sync.Mutex
	known map[string]string
}

// NewCollector registers the console series with reg. A nil reg uses the
// default Prometheus registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Collector{
		pollTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "jarconsole_poll_ticks_total",
			Help: "Total status poll ticks completed",
		}),
		pollResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jarconsole_poll_results_total",
			Help: "Status poll outcomes by result",
		}, []string{"result"}),
		serviceRunning: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "jarconsole_service_running",
			Help: "Whether a JAR service is running (1) or stopped (0)",
		}, []string{"id", "name"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		known: make(map[string]string),
	}
}

// ObservePoll counts one finished tick and its outcome.
func (c *Collector) ObservePoll(result string) {
	c.pollTicks.Inc()
	c.pollResults.WithLabelValues(result).Inc()
}

// ObserveList sets the running gauge for every service in the accepted list
// and drops series for services that disappeared.
func (c *Collector) ObserveList(entry models.StatusEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]string, len(entry.Items))
	for _, item := range entry.Items {
		value := 0.0
		if item.Running() {
			value = 1
		}
		if prev, ok := c.known[item.ID]; ok && prev != item.Name {
			c.serviceRunning.DeleteLabelValues(item.ID, prev)
		}
		c.serviceRunning.WithLabelValues(item.ID, item.Name).Set(value)
		seen[item.ID] = item.Name
	}
	for id, name := range c.known {
		if _, ok := seen[id]; !ok {
			c.serviceRunning.DeleteLabelValues(id, name)
		}
	}
	c.known = seen
}

// Middleware records request counts and latency per route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		pattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		c.httpRequests.WithLabelValues(r.Method, pattern, strconv.Itoa(status)).Inc()
		c.httpDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}
