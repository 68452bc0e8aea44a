package server

import (
	"context"
	"embed"
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"jarconsole/internal/history"
	"jarconsole/internal/metrics"
	"jarconsole/internal/models"
	"jarconsole/internal/poller"
	"jarconsole/internal/routes"
	"jarconsole/internal/storage"
)

//go:embed static/*
var embeddedStatic embed.FS

var validate = validator.New()

const (
	defaultHistoryLimit = 200
	maxUploadBytes      = 256 << 20
)

// Actions are the panel operations the console proxies for the browser view.
type Actions interface {
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Create(ctx context.Context, name, fileName string, file io.Reader) error
	Files(ctx context.Context, id string) (models.Envelope[[]string], error)
	Download(ctx context.Context, id, name string, w io.Writer) (int64, error)
	Upload(ctx context.Context, id, name string, file io.Reader) error
}

// Options wires the server to the rest of the console.
type Options struct {
	Addr    string
	Poller  *poller.Poller
	Actions Actions
	Storage *storage.HistoryStorage
	Metrics *metrics.Collector
	// MetricsHandler serves /metrics. Defaults to the global Prometheus handler.
	MetricsHandler http.Handler
	Logger         zerolog.Logger
	HistoryLimit   int
}

// Server wraps HTTP serving of API, route tree and static assets.
type Server struct {
	httpServer   *http.Server
	router       chi.Router
	logger       zerolog.Logger
	poller       *poller.Poller
	actions      Actions
	storage      *storage.HistoryStorage
	metrics      *metrics.Collector
	staticFS     fs.FS
	routes       *routes.Table[http.Handler]
	historyLimit int
}

// New creates a configured HTTP server for the console.
func New(opts Options) *Server {
	staticFS, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		panic("static assets missing: " + err.Error())
	}

	s := &Server{
		router:       chi.NewRouter(),
		logger:       opts.Logger,
		poller:       opts.Poller,
		actions:      opts.Actions,
		storage:      opts.Storage,
		metrics:      opts.Metrics,
		staticFS:     staticFS,
		historyLimit: opts.HistoryLimit,
	}
	if s.historyLimit <= 0 {
		s.historyLimit = defaultHistoryLimit
	}
	s.routes = routes.NewTable(routes.AppManage(s.jarView))

	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	s.setupMiddleware()
	s.setupRoutes(metricsHandler)
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts the server down.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
}

func (s *Server) setupRoutes(metricsHandler http.Handler) {
	s.router.Handle("/metrics", metricsHandler)
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, routes.JarPath, http.StatusFound)
	})

	s.mountRouteTable()

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/routes", s.handleRoutes)
		r.Get("/history", s.handleHistory)
		r.Get("/uptime", s.handleUptime)
		r.Get("/timeline", s.handleTimeline)

		r.Get("/services", s.handleServices)
		r.Post("/services", s.handleCreate)
		r.Get("/services/ws", s.handleServicesWS)
		r.Put("/services/{id}/start", s.handleAction(s.actions.Start))
		r.Put("/services/{id}/stop", s.handleAction(s.actions.Stop))
		r.Delete("/services/{id}", s.handleAction(s.actions.Delete))
		r.Get("/services/{id}/files", s.handleFiles)
		r.Get("/services/{id}/files/{name}", s.handleDownload)
		r.Post("/services/{id}/files", s.handleUpload)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"polling": s.poller.Active(),
	})
}

func (s *Server) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.routes.Menu())
}

func (s *Server) handleServices(w http.ResponseWriter, _ *http.Request) {
	items := s.poller.List().Items()
	writeJSON(w, http.StatusOK, models.Envelope[[]models.ServiceItem]{
		Code: models.CodeSuccess,
		Data: &items,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, s.historyLimit)
	writeJSON(w, http.StatusOK, s.storage.HistoryN(limit))
}

func (s *Server) handleUptime(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, s.historyLimit)
	writeJSON(w, http.StatusOK, metrics.ComputeServiceUptime(s.storage.HistoryN(limit), time.Now().UTC()))
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	points := history.DefaultTimelinePoints
	if raw := r.URL.Query().Get("points"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 && value <= 1000 {
			points = value
		}
	}

	entries := s.storage.History()
	end := time.Now().UTC()
	start := end.Add(-time.Hour)
	if len(entries) > 0 && entries[0].Timestamp.Before(start) {
		start = entries[0].Timestamp
	}

	var latest *models.StatusEntry
	if entry, ok := s.storage.Latest(); ok {
		latest = &entry
	}
	timelines := history.BuildServiceTimelines(entries, latest, start, end, points)
	if timelines == nil {
		timelines = []models.ServiceTimeline{}
	}
	writeJSON(w, http.StatusOK, timelines)
}

func parseLimit(r *http.Request, fallback int) int {
	if fallback <= 0 {
		return fallback
	}
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > fallback {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.Envelope[struct{}]{Code: status, Message: message})
}
