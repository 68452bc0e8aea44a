package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"jarconsole/internal/models"
)

func TestCollector_ObservePoll(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.ObservePoll("accepted")
	c.ObservePoll("accepted")
	c.ObservePoll("error")

	assert.Equal(t, 3.0, testutil.ToFloat64(c.pollTicks))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.pollResults.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pollResults.WithLabelValues("error")))
}

func TestCollector_ObserveListTracksServices(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.ObserveList(models.StatusEntry{Items: []models.ServiceItem{
		{ID: "a", Name: "auth", Status: models.StatusRunning},
		{ID: "b", Name: "billing", Status: models.StatusStopped},
	}})
	assert.Equal(t, 2, testutil.CollectAndCount(c.serviceRunning))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.serviceRunning.WithLabelValues("a", "auth")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.serviceRunning.WithLabelValues("b", "billing")))

	c.ObserveList(models.StatusEntry{Items: []models.ServiceItem{
		{ID: "a", Name: "auth-v2", Status: models.StatusStopped},
	}})
	assert.Equal(t, 1, testutil.CollectAndCount(c.serviceRunning))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.serviceRunning.WithLabelValues("a", "auth-v2")))
}

func TestCollector_MiddlewareUsesRoutePattern(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/api/services/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/services/abc", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/api/services/{id}", "418")))
}

func TestCollector_MiddlewareKeepsFlusher(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(c.Middleware)

	flushable := false
	r.Get("/stream", func(w http.ResponseWriter, _ *http.Request) {
		var f http.Flusher
		f, flushable = w.(http.Flusher)
		_, _ = w.Write([]byte("chunk"))
		if flushable {
			f.Flush()
		}
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))

	assert.True(t, flushable)
	assert.True(t, rec.Flushed)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/stream", "200")))
}
