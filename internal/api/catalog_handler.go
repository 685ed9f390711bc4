package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirychukyurii/dr-orchestrator/internal/model"
)

// costRequest is the body of POST /api/catalog/offerings/{id}/cost
type costRequest struct {
	Usage model.Resources `json:"usage"`
	Hours float64         `json:"hours"`
}

// ListOfferings handles GET /api/catalog/offerings
func (h *Handler) ListOfferings(w http.ResponseWriter, r *http.Request) {
	offerings, err := h.catalog.ListOfferings(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "list offerings")
		return
	}

	h.respondJSON(w, http.StatusOK, offerings)
}

// CreateOffering handles POST /api/catalog/offerings
func (h *Handler) CreateOffering(w http.ResponseWriter, r *http.Request) {
	var o model.ServiceOffering
	if !h.decodeJSON(w, r, &o) {
		return
	}

	created, err := h.catalog.CreateOffering(r.Context(), &o)
	if err != nil {
		h.respondServiceError(w, err, "create offering")
		return
	}

	h.respondJSON(w, http.StatusCreated, created)
}

// GetOffering handles GET /api/catalog/offerings/{id}
func (h *Handler) GetOffering(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	o, err := h.catalog.GetOffering(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "get offering", slog.String("offering", id))
		return
	}

	h.respondJSON(w, http.StatusOK, o)
}

// UpdateOffering handles PUT /api/catalog/offerings/{id}
func (h *Handler) UpdateOffering(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var o model.ServiceOffering
	if !h.decodeJSON(w, r, &o) {
		return
	}

	updated, err := h.catalog.UpdateOffering(r.Context(), id, &o)
	if err != nil {
		h.respondServiceError(w, err, "update offering", slog.String("offering", id))
		return
	}

	h.respondJSON(w, http.StatusOK, updated)
}

// DeleteOffering handles DELETE /api/catalog/offerings/{id}
func (h *Handler) DeleteOffering(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.catalog.DeleteOffering(r.Context(), id); err != nil {
		h.respondServiceError(w, err, "delete offering", slog.String("offering", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CalculateCost handles POST /api/catalog/offerings/{id}/cost
func (h *Handler) CalculateCost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req costRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	estimate, err := h.catalog.CalculateCost(r.Context(), id, req.Usage, req.Hours)
	if err != nil {
		h.respondServiceError(w, err, "calculate cost", slog.String("offering", id))
		return
	}

	h.respondJSON(w, http.StatusOK, estimate)
}
