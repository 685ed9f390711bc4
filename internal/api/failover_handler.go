package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirychukyurii/dr-orchestrator/internal/model"
)

// reasonRequest is the optional body of manual failover and failback
type reasonRequest struct {
	Reason string `json:"reason"`
}

// ListFailoverConfigs handles GET /api/failover
func (h *Handler) ListFailoverConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.failover.ListConfigs(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "list failover configs")
		return
	}

	h.respondJSON(w, http.StatusOK, configs)
}

// CreateFailoverConfig handles POST /api/failover
func (h *Handler) CreateFailoverConfig(w http.ResponseWriter, r *http.Request) {
	var cfg model.FailoverConfig
	if !h.decodeJSON(w, r, &cfg) {
		return
	}

	created, err := h.failover.CreateConfig(r.Context(), &cfg)
	if err != nil {
		h.respondServiceError(w, err, "create failover config")
		return
	}

	h.respondJSON(w, http.StatusCreated, created)
}

// GetFailoverConfig handles GET /api/failover/{id}
func (h *Handler) GetFailoverConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cfg, err := h.failover.GetConfig(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "get failover config", slog.String("failover_config", id))
		return
	}

	h.respondJSON(w, http.StatusOK, cfg)
}

// UpdateFailoverConfig handles PUT /api/failover/{id}
func (h *Handler) UpdateFailoverConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var cfg model.FailoverConfig
	if !h.decodeJSON(w, r, &cfg) {
		return
	}

	updated, err := h.failover.UpdateConfig(r.Context(), id, &cfg)
	if err != nil {
		h.respondServiceError(w, err, "update failover config", slog.String("failover_config", id))
		return
	}

	h.respondJSON(w, http.StatusOK, updated)
}

// DeleteFailoverConfig handles DELETE /api/failover/{id}
func (h *Handler) DeleteFailoverConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.failover.DeleteConfig(r.Context(), id); err != nil {
		h.respondServiceError(w, err, "delete failover config", slog.String("failover_config", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetActiveDatacenter handles GET /api/failover/{id}/active
func (h *Handler) GetActiveDatacenter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	active, err := h.failover.ActiveDatacenter(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "get active datacenter", slog.String("failover_config", id))
		return
	}

	h.respondJSON(w, http.StatusOK, active)
}

// PerformAutoFailover handles POST /api/failover/{id}/auto
func (h *Handler) PerformAutoFailover(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.failover.PerformAutoFailover(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "evaluate failover", slog.String("failover_config", id))
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// ManualFailover handles POST /api/failover/{id}/failover
func (h *Handler) ManualFailover(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	reason, ok := h.decodeReason(w, r)
	if !ok {
		return
	}

	result, err := h.failover.ManualFailover(r.Context(), id, reason)
	if err != nil {
		h.respondServiceError(w, err, "perform failover", slog.String("failover_config", id))
		return
	}

	h.respondSwitchResult(w, result)
}

// ManualFailback handles POST /api/failover/{id}/failback
func (h *Handler) ManualFailback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	reason, ok := h.decodeReason(w, r)
	if !ok {
		return
	}

	result, err := h.failover.ManualFailback(r.Context(), id, reason)
	if err != nil {
		h.respondServiceError(w, err, "perform failback", slog.String("failover_config", id))
		return
	}

	h.respondSwitchResult(w, result)
}

// GetFailoverHistory handles GET /api/failover/history?limit=
func (h *Handler) GetFailoverHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, h.failover.History(limit))
}

// GetFailoverStatistics handles GET /api/failover/statistics
func (h *Handler) GetFailoverStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.failover.Statistics(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "get failover statistics")
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}

// decodeReason reads the optional reason body; an empty body is accepted
func (h *Handler) decodeReason(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req reasonRequest
	if err := decodeOptional(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return "", false
	}
	return req.Reason, true
}

// respondSwitchResult answers 200 for an applied switch and 500 with the result
// attached when the switcher failed
func (h *Handler) respondSwitchResult(w http.ResponseWriter, result *model.FailoverResult) {
	if !result.Success {
		h.respondJSON(w, http.StatusInternalServerError, result)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// decodeOptional decodes the request body into v unless the body is empty
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
