package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kirychukyurii/dr-orchestrator/internal/metrics"
	"github.com/kirychukyurii/dr-orchestrator/internal/repository"
	"github.com/kirychukyurii/dr-orchestrator/internal/service"
)

// Services groups the domain services exposed over HTTP
type Services struct {
	Datacenters service.DatacenterService
	Router      service.RouterService
	Failover    service.FailoverService
	Links       service.LinkService
	Incidents   service.IncidentService
	Capacity    service.CapacityService
	Catalog     service.CatalogService
}

// StatusInfo describes the running instance for GET /api/status
type StatusInfo struct {
	StorageBackend    string
	StartedAt         time.Time
	Jobs              func() []string
	FailoverInterval  time.Duration
	LinkProbeInterval time.Duration
	IncidentSweep     time.Duration
}

// Handler holds the HTTP handlers and dependencies
type Handler struct {
	datacenters service.DatacenterService
	router      service.RouterService
	failover    service.FailoverService
	links       service.LinkService
	incidents   service.IncidentService
	capacity    service.CapacityService
	catalog     service.CatalogService
	metrics     *metrics.Metrics
	status      StatusInfo
	logger      *slog.Logger
	basePath    string
}

// NewHandler creates a new HTTP handler
func NewHandler(services Services, status StatusInfo, m *metrics.Metrics, basePath string, logger *slog.Logger) *Handler {
	return &Handler{
		datacenters: services.Datacenters,
		router:      services.Router,
		failover:    services.Failover,
		links:       services.Links,
		incidents:   services.Incidents,
		capacity:    services.Capacity,
		catalog:     services.Catalog,
		metrics:     m,
		status:      status,
		logger:      logger,
		basePath:    basePath,
	}
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.loggingMiddleware)
	r.Use(h.metricsMiddleware)
	r.Use(middleware.Recoverer)

	routesHandler := h.createRoutes()

	// If base path is configured, mount routes on that path
	if h.basePath != "" {
		r.Mount(h.basePath, routesHandler)
	} else {
		r.Mount("/", routesHandler)
	}

	return r
}

// createRoutes creates the API routes
func (h *Handler) createRoutes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.GetStatus)

		r.Route("/datacenters", func(r chi.Router) {
			r.Get("/", h.ListDatacenters)
			r.Post("/", h.CreateDatacenter)
			r.Get("/nearest", h.FindNearestDatacenter)
			r.Get("/status", h.GetDatacenterStatusOverview)
			r.Get("/statistics", h.GetDatacenterStatistics)
			r.Get("/{id}", h.GetDatacenter)
			r.Put("/{id}", h.UpdateDatacenter)
			r.Delete("/{id}", h.DeleteDatacenter)
			r.Get("/{id}/health", h.CheckDatacenterHealth)
			r.Put("/{id}/status", h.UpdateDatacenterStatus)
		})

		r.Route("/routes", func(r chi.Router) {
			r.Get("/", h.ListRoutes)
			r.Post("/", h.CreateRoute)
			r.Post("/optimal", h.DetermineOptimalDatacenter)
			r.Get("/history", h.GetRoutingHistory)
			r.Get("/statistics", h.GetRoutingStatistics)
			r.Get("/{id}", h.GetRoute)
			r.Put("/{id}", h.UpdateRoute)
			r.Delete("/{id}", h.DeleteRoute)
		})

		r.Route("/failover", func(r chi.Router) {
			r.Get("/", h.ListFailoverConfigs)
			r.Post("/", h.CreateFailoverConfig)
			r.Get("/history", h.GetFailoverHistory)
			r.Get("/statistics", h.GetFailoverStatistics)
			r.Get("/{id}", h.GetFailoverConfig)
			r.Put("/{id}", h.UpdateFailoverConfig)
			r.Delete("/{id}", h.DeleteFailoverConfig)
			r.Get("/{id}/active", h.GetActiveDatacenter)
			r.Post("/{id}/auto", h.PerformAutoFailover)
			r.Post("/{id}/failover", h.ManualFailover)
			r.Post("/{id}/failback", h.ManualFailback)
		})

		r.Route("/links", func(r chi.Router) {
			r.Get("/", h.ListLinks)
			r.Post("/", h.CreateLink)
			r.Get("/alternatives", h.GetAlternativeRoutes)
			r.Get("/statistics", h.GetLinkStatistics)
			r.Get("/{id}", h.GetLink)
			r.Put("/{id}", h.UpdateLink)
			r.Delete("/{id}", h.DeleteLink)
			r.Post("/{id}/health", h.CheckLinkHealth)
			r.Get("/{id}/history", h.GetLinkHealthHistory)
			r.Post("/{id}/bandwidth-test", h.TestLinkBandwidth)
		})

		r.Route("/incidents", func(r chi.Router) {
			r.Get("/", h.ListIncidents)
			r.Post("/", h.CreateIncident)
			r.Get("/active", h.ListActiveIncidents)
			r.Get("/history", h.GetIncidentHistory)
			r.Get("/statistics", h.GetIncidentStatistics)
			r.Get("/{id}", h.GetIncident)
			r.Put("/{id}", h.UpdateIncident)
			r.Delete("/{id}", h.DeleteIncident)
			r.Put("/{id}/status", h.UpdateIncidentStatus)
			r.Post("/{id}/actions", h.AddIncidentAction)
			r.Put("/{id}/actions/{actionId}/status", h.UpdateIncidentActionStatus)
			r.Post("/{id}/playbook", h.ApplyPlaybook)
			r.Post("/{id}/recover", h.ExecuteRecoveryProcedures)
		})

		r.Route("/capacity", func(r chi.Router) {
			r.Get("/statistics", h.GetCapacityStatistics)
			r.Route("/plans", func(r chi.Router) {
				r.Get("/", h.ListCapacityPlans)
				r.Post("/", h.CreateCapacityPlan)
				r.Get("/{id}", h.GetCapacityPlan)
				r.Put("/{id}", h.UpdateCapacityPlan)
				r.Delete("/{id}", h.DeleteCapacityPlan)
				r.Post("/{id}/actions", h.AddScalingAction)
				r.Put("/{id}/actions/{actionId}/status", h.UpdateScalingActionStatus)
			})
			r.Get("/{dcId}/analysis", h.AnalyzeCapacityNeeds)
			r.Post("/{dcId}/stress-test", h.PerformStressTest)
		})

		r.Route("/catalog/offerings", func(r chi.Router) {
			r.Get("/", h.ListOfferings)
			r.Post("/", h.CreateOffering)
			r.Get("/{id}", h.GetOffering)
			r.Put("/{id}", h.UpdateOffering)
			r.Delete("/{id}", h.DeleteOffering)
			r.Post("/{id}/cost", h.CalculateCost)
		})
	})

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	return r
}

// loggingMiddleware logs HTTP requests
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records request counts and latency by route pattern
func (h *Handler) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.ObserveHTTP(r.Method, route, status, time.Since(start))
	})
}

// errorResponse represents an error response
type errorResponse struct {
	Error string `json:"error"`
}

// respondJSON writes a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response",
			slog.String("error", err.Error()),
		)
	}
}

// respondError writes an error response
func (h *Handler) respondError(w http.ResponseWriter, statusCode int, message string) {
	h.respondJSON(w, statusCode, errorResponse{Error: message})
}

// respondServiceError maps a service error onto its HTTP status. Unexpected errors
// are logged and hidden behind the operation description.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error, operation string, attrs ...any) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrValidation):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrConflict):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNoRouteAvailable):
		h.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("failed to "+operation, append(attrs, slog.String("error", err.Error()))...)
		h.respondError(w, http.StatusInternalServerError, "failed to "+operation)
	}
}

// decodeJSON reads the request body into v, answering 400 on malformed input
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %s", err))
		return false
	}
	return true
}

// queryLimit parses the optional limit query parameter; zero means everything
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer")
	}
	return limit, nil
}
