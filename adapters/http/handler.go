// Package http provides the REST transport for the content services.
package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/artpar/cmscore/adapters/metrics"
	"github.com/artpar/cmscore/app"
	"github.com/artpar/cmscore/pkg/wire"
)

// UserHeader carries the id of the acting user.
const UserHeader = "X-User-ID"

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// Services bundles the application services the handler serves.
type Services struct {
	Schemas    *app.SchemaService
	Items      *app.ItemService
	References *app.ReferenceService
	Views      *app.ViewService
}

// Handler serves the content API.
type Handler struct {
	schemas *app.SchemaService
	items   *app.ItemService
	refs    *app.ReferenceService
	views   *app.ViewService
	codecs  *wire.Registry
	logger  zerolog.Logger
}

// NewHandler creates a new content API handler.
func NewHandler(svc Services, codecs *wire.Registry, logger zerolog.Logger) *Handler {
	return &Handler{
		schemas: svc.Schemas,
		items:   svc.Items,
		refs:    svc.References,
		views:   svc.Views,
		codecs:  codecs,
		logger:  logger.With().Str("component", "http").Logger(),
	}
}

// Routes returns the content API routes, meant to be mounted under a prefix.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/models", func(r chi.Router) {
		r.Get("/", h.listModels)
		r.Post("/", h.createModel)
		r.Route("/{modelID}", func(r chi.Router) {
			r.Get("/", h.getModel)
			r.Patch("/", h.updateModel)
			r.Delete("/", h.deleteModel)
			r.Get("/items", h.listItems)
			r.Post("/items", h.createItem)
			r.Post("/items/search", h.searchItems)
			r.Get("/views", h.listViews)
			r.Post("/views", h.createView)
			r.Post("/views/validate", h.validateView)
		})
	})

	r.Route("/groups", func(r chi.Router) {
		r.Get("/", h.listGroups)
		r.Post("/", h.createGroup)
		r.Get("/{groupID}", h.getGroup)
		r.Patch("/{groupID}", h.updateGroup)
		r.Delete("/{groupID}", h.deleteGroup)
	})

	r.Route("/schemas/{schemaID}", func(r chi.Router) {
		r.Get("/", h.getSchema)
		r.Post("/fields", h.addField)
		r.Put("/fields/{fieldID}", h.updateField)
		r.Delete("/fields/{fieldID}", h.removeField)
		r.Put("/order", h.reorderFields)
		r.Put("/title", h.setTitleField)
	})

	r.Route("/items", func(r chi.Router) {
		r.Post("/publish", h.publishItems)
		r.Route("/{itemID}", func(r chi.Router) {
			r.Get("/", h.getItem)
			r.Patch("/", h.updateItem)
			r.Delete("/", h.deleteItem)
			r.Get("/history", h.itemHistory)
			r.Get("/referenced", h.referencedItems)
			r.Post("/unpublish", h.transition(h.items.Unpublish))
			r.Post("/review", h.transition(h.items.RequestReview))
			r.Post("/review/cancel", h.transition(h.items.CancelReview))
			r.Post("/review/approve", h.transition(h.items.ApproveReview))
			r.Post("/groups/{groupField}/instances", h.addInstance)
			r.Delete("/groups/{groupField}/instances/{itemGroupID}", h.removeInstance)
			r.Put("/groups/{groupField}/order", h.reorderInstances)
		})
	})

	r.Route("/views/{viewID}", func(r chi.Router) {
		r.Get("/", h.getView)
		r.Put("/", h.updateView)
		r.Delete("/", h.deleteView)
		r.Get("/items", h.viewItems)
	})

	return r
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	store HealthChecker
}

// HealthChecker reports whether a backing store is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewHealthHandler creates a new health handler. store may be nil.
func NewHealthHandler(store HealthChecker) *HealthHandler {
	return &HealthHandler{store: store}
}

// Liveness returns a simple liveness check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness checks if the store can serve requests.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.store != nil {
		if err := h.store.HealthCheck(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics        *metrics.Collector
	MetricsHandler http.Handler // mounted at MetricsPath when set
	MetricsPath    string       // default: /metrics
	APIPrefix      string       // default: /api/v1
	RequestTimeout time.Duration
	Version        string
}

// NewRouter creates the main HTTP router.
func NewRouter(h *Handler, health *HealthHandler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger, cfg.MetricsPath))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics, cfg.MetricsPath))
	}

	r.Get("/health", health.Liveness)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, VersionResponse{Version: cfg.Version, Service: "cmscore"})
	})
	if cfg.MetricsHandler != nil {
		r.Handle(cfg.MetricsPath, cfg.MetricsHandler)
	}

	r.Mount(cfg.APIPrefix, h.Routes())
	return r
}

func internalPath(path, metricsPath string) bool {
	return strings.HasPrefix(path, "/health") || path == metricsPath
}

// NewMetricsMiddleware creates middleware that records request metrics
// labelled by route pattern.
func NewMetricsMiddleware(m *metrics.Collector, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if internalPath(r.URL.Path, metricsPath) {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				route = rc.RoutePattern()
			}
			route = metrics.RouteLabel(route)
			m.RequestsTotal.WithLabelValues(r.Method, route, statusLabel(ww.Status())).Inc()
			m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// statusLabel returns a string label for the status code.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if internalPath(r.URL.Path, metricsPath) {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
