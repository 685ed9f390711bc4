package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirychukyurii/dr-orchestrator/internal/model"
)

// ListLinks handles GET /api/links
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.links.ListLinks(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "list links")
		return
	}

	h.respondJSON(w, http.StatusOK, links)
}

// CreateLink handles POST /api/links
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var link model.NetworkLink
	if !h.decodeJSON(w, r, &link) {
		return
	}

	created, err := h.links.CreateLink(r.Context(), &link)
	if err != nil {
		h.respondServiceError(w, err, "create link")
		return
	}

	h.respondJSON(w, http.StatusCreated, created)
}

// GetLink handles GET /api/links/{id}
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	link, err := h.links.GetLink(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "get link", slog.String("link", id))
		return
	}

	h.respondJSON(w, http.StatusOK, link)
}

// UpdateLink handles PUT /api/links/{id}
func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var link model.NetworkLink
	if !h.decodeJSON(w, r, &link) {
		return
	}

	updated, err := h.links.UpdateLink(r.Context(), id, &link)
	if err != nil {
		h.respondServiceError(w, err, "update link", slog.String("link", id))
		return
	}

	h.respondJSON(w, http.StatusOK, updated)
}

// DeleteLink handles DELETE /api/links/{id}
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.links.DeleteLink(r.Context(), id); err != nil {
		h.respondServiceError(w, err, "delete link", slog.String("link", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CheckLinkHealth handles POST /api/links/{id}/health
func (h *Handler) CheckLinkHealth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.links.CheckLinkHealth(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "check link health", slog.String("link", id))
		return
	}

	h.respondJSON(w, http.StatusOK, record)
}

// GetLinkHealthHistory handles GET /api/links/{id}/history?limit=
func (h *Handler) GetLinkHealthHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit, err := queryLimit(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.links.HealthHistory(r.Context(), id, limit)
	if err != nil {
		h.respondServiceError(w, err, "get link health history", slog.String("link", id))
		return
	}

	h.respondJSON(w, http.StatusOK, records)
}

// TestLinkBandwidth handles POST /api/links/{id}/bandwidth-test
func (h *Handler) TestLinkBandwidth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.links.TestLinkBandwidth(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "test link bandwidth", slog.String("link", id))
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// GetAlternativeRoutes handles GET /api/links/alternatives?source=&target=
func (h *Handler) GetAlternativeRoutes(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	target := r.URL.Query().Get("target")
	if source == "" || target == "" {
		h.respondError(w, http.StatusBadRequest, "source and target are required")
		return
	}

	routes, err := h.links.AlternativeRoutes(r.Context(), source, target)
	if err != nil {
		h.respondServiceError(w, err, "find alternative routes",
			slog.String("source", source),
			slog.String("target", target),
		)
		return
	}

	h.respondJSON(w, http.StatusOK, routes)
}

// GetLinkStatistics handles GET /api/links/statistics
func (h *Handler) GetLinkStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.links.Statistics(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "get link statistics")
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}
