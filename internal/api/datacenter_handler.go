package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kirychukyurii/dr-orchestrator/internal/model"
)

// nearestResponse is returned by GET /api/datacenters/nearest
type nearestResponse struct {
	Datacenter *model.Datacenter `json:"datacenter"`
	Distance   float64           `json:"distance"` // km
}

// statusRequest is the body of PUT /api/datacenters/{id}/status
type statusRequest struct {
	Status model.DatacenterStatus `json:"status"`
}

// ListDatacenters handles GET /api/datacenters
func (h *Handler) ListDatacenters(w http.ResponseWriter, r *http.Request) {
	var (
		datacenters []model.Datacenter
		err         error
	)

	switch q := r.URL.Query(); {
	case q.Get("region") != "":
		datacenters, err = h.datacenters.ListByRegion(r.Context(), q.Get("region"))
	case q.Get("country") != "":
		datacenters, err = h.datacenters.ListByCountry(r.Context(), q.Get("country"))
	default:
		datacenters, err = h.datacenters.ListDatacenters(r.Context())
	}
	if err != nil {
		h.respondServiceError(w, err, "list datacenters")
		return
	}

	h.respondJSON(w, http.StatusOK, datacenters)
}

// CreateDatacenter handles POST /api/datacenters
func (h *Handler) CreateDatacenter(w http.ResponseWriter, r *http.Request) {
	var dc model.Datacenter
	if !h.decodeJSON(w, r, &dc) {
		return
	}

	created, err := h.datacenters.CreateDatacenter(r.Context(), &dc)
	if err != nil {
		h.respondServiceError(w, err, "create datacenter")
		return
	}

	h.respondJSON(w, http.StatusCreated, created)
}

// GetDatacenter handles GET /api/datacenters/{id}
func (h *Handler) GetDatacenter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dc, err := h.datacenters.GetDatacenter(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "get datacenter", slog.String("datacenter", id))
		return
	}

	h.respondJSON(w, http.StatusOK, dc)
}

// UpdateDatacenter handles PUT /api/datacenters/{id}
func (h *Handler) UpdateDatacenter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var dc model.Datacenter
	if !h.decodeJSON(w, r, &dc) {
		return
	}

	updated, err := h.datacenters.UpdateDatacenter(r.Context(), id, &dc)
	if err != nil {
		h.respondServiceError(w, err, "update datacenter", slog.String("datacenter", id))
		return
	}

	h.respondJSON(w, http.StatusOK, updated)
}

// UpdateDatacenterStatus handles PUT /api/datacenters/{id}/status
func (h *Handler) UpdateDatacenterStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req statusRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.datacenters.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.respondServiceError(w, err, "update datacenter status", slog.String("datacenter", id))
		return
	}

	h.respondJSON(w, http.StatusOK, updated)
}

// DeleteDatacenter handles DELETE /api/datacenters/{id}?force=true
func (h *Handler) DeleteDatacenter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "force must be a boolean")
			return
		}
		force = v
	}

	if err := h.datacenters.DeleteDatacenter(r.Context(), id, force); err != nil {
		h.respondServiceError(w, err, "delete datacenter", slog.String("datacenter", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// FindNearestDatacenter handles GET /api/datacenters/nearest?lat=&lon=
func (h *Handler) FindNearestDatacenter(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "lat must be a number")
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "lon must be a number")
		return
	}

	dc, distance, err := h.datacenters.FindNearest(r.Context(), model.Coordinates{Latitude: lat, Longitude: lon})
	if err != nil {
		h.respondServiceError(w, err, "find nearest datacenter")
		return
	}

	h.respondJSON(w, http.StatusOK, nearestResponse{Datacenter: dc, Distance: distance})
}

// CheckDatacenterHealth handles GET /api/datacenters/{id}/health
func (h *Handler) CheckDatacenterHealth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	health, err := h.datacenters.CheckHealth(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "check datacenter health", slog.String("datacenter", id))
		return
	}

	h.respondJSON(w, http.StatusOK, health)
}

// GetDatacenterStatusOverview handles GET /api/datacenters/status
func (h *Handler) GetDatacenterStatusOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.datacenters.StatusOverview(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "get datacenter status overview")
		return
	}

	h.respondJSON(w, http.StatusOK, overview)
}

// GetDatacenterStatistics handles GET /api/datacenters/statistics
func (h *Handler) GetDatacenterStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.datacenters.Statistics(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "get datacenter statistics")
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}
