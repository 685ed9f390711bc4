package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirychukyurii/dr-orchestrator/internal/model"
)

// DetermineOptimalDatacenter handles POST /api/routes/optimal
func (h *Handler) DetermineOptimalDatacenter(w http.ResponseWriter, r *http.Request) {
	var req model.RoutingRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	result, err := h.router.DetermineOptimalDatacenter(r.Context(), &req)
	if err != nil {
		h.respondServiceError(w, err, "determine optimal datacenter",
			slog.String("strategy", string(req.Strategy)),
		)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// ListRoutes handles GET /api/routes
func (h *Handler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.router.ListRoutes(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "list routes")
		return
	}

	h.respondJSON(w, http.StatusOK, routes)
}

// CreateRoute handles POST /api/routes
func (h *Handler) CreateRoute(w http.ResponseWriter, r *http.Request) {
	var route model.GeographicRoute
	if !h.decodeJSON(w, r, &route) {
		return
	}

	created, err := h.router.CreateRoute(r.Context(), &route)
	if err != nil {
		h.respondServiceError(w, err, "create route")
		return
	}

	h.respondJSON(w, http.StatusCreated, created)
}

// GetRoute handles GET /api/routes/{id}
func (h *Handler) GetRoute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	route, err := h.router.GetRoute(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "get route", slog.String("route", id))
		return
	}

	h.respondJSON(w, http.StatusOK, route)
}

// UpdateRoute handles PUT /api/routes/{id}
func (h *Handler) UpdateRoute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var route model.GeographicRoute
	if !h.decodeJSON(w, r, &route) {
		return
	}

	updated, err := h.router.UpdateRoute(r.Context(), id, &route)
	if err != nil {
		h.respondServiceError(w, err, "update route", slog.String("route", id))
		return
	}

	h.respondJSON(w, http.StatusOK, updated)
}

// DeleteRoute handles DELETE /api/routes/{id}
func (h *Handler) DeleteRoute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.router.DeleteRoute(r.Context(), id); err != nil {
		h.respondServiceError(w, err, "delete route", slog.String("route", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetRoutingHistory handles GET /api/routes/history?limit=
func (h *Handler) GetRoutingHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, h.router.History(limit))
}

// GetRoutingStatistics handles GET /api/routes/statistics
func (h *Handler) GetRoutingStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.router.Statistics(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "get routing statistics")
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}
