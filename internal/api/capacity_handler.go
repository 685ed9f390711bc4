package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirychukyurii/dr-orchestrator/internal/model"
)

// scalingStatusRequest is the body of PUT /api/capacity/plans/{id}/actions/{actionId}/status
type scalingStatusRequest struct {
	Status model.ScalingStatus `json:"status"`
}

// ListCapacityPlans handles GET /api/capacity/plans?datacenter=
func (h *Handler) ListCapacityPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.capacity.ListPlans(r.Context(), r.URL.Query().Get("datacenter"))
	if err != nil {
		h.respondServiceError(w, err, "list capacity plans")
		return
	}

	h.respondJSON(w, http.StatusOK, plans)
}

// CreateCapacityPlan handles POST /api/capacity/plans
func (h *Handler) CreateCapacityPlan(w http.ResponseWriter, r *http.Request) {
	var plan model.CapacityPlan
	if !h.decodeJSON(w, r, &plan) {
		return
	}

	created, err := h.capacity.CreatePlan(r.Context(), &plan)
	if err != nil {
		h.respondServiceError(w, err, "create capacity plan")
		return
	}

	h.respondJSON(w, http.StatusCreated, created)
}

// GetCapacityPlan handles GET /api/capacity/plans/{id}
func (h *Handler) GetCapacityPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	plan, err := h.capacity.GetPlan(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "get capacity plan", slog.String("plan", id))
		return
	}

	h.respondJSON(w, http.StatusOK, plan)
}

// UpdateCapacityPlan handles PUT /api/capacity/plans/{id}
func (h *Handler) UpdateCapacityPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var plan model.CapacityPlan
	if !h.decodeJSON(w, r, &plan) {
		return
	}

	updated, err := h.capacity.UpdatePlan(r.Context(), id, &plan)
	if err != nil {
		h.respondServiceError(w, err, "update capacity plan", slog.String("plan", id))
		return
	}

	h.respondJSON(w, http.StatusOK, updated)
}

// DeleteCapacityPlan handles DELETE /api/capacity/plans/{id}
func (h *Handler) DeleteCapacityPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.capacity.DeletePlan(r.Context(), id); err != nil {
		h.respondServiceError(w, err, "delete capacity plan", slog.String("plan", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddScalingAction handles POST /api/capacity/plans/{id}/actions
func (h *Handler) AddScalingAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var action model.ScalingAction
	if !h.decodeJSON(w, r, &action) {
		return
	}

	updated, err := h.capacity.AddScalingAction(r.Context(), id, &action)
	if err != nil {
		h.respondServiceError(w, err, "add scaling action", slog.String("plan", id))
		return
	}

	h.respondJSON(w, http.StatusCreated, updated)
}

// UpdateScalingActionStatus handles PUT /api/capacity/plans/{id}/actions/{actionId}/status
func (h *Handler) UpdateScalingActionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actionID := chi.URLParam(r, "actionId")

	var req scalingStatusRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.capacity.UpdateScalingActionStatus(r.Context(), id, actionID, req.Status)
	if err != nil {
		h.respondServiceError(w, err, "update scaling action status",
			slog.String("plan", id),
			slog.String("action", actionID),
		)
		return
	}

	h.respondJSON(w, http.StatusOK, updated)
}

// AnalyzeCapacityNeeds handles GET /api/capacity/{dcId}/analysis
func (h *Handler) AnalyzeCapacityNeeds(w http.ResponseWriter, r *http.Request) {
	dcID := chi.URLParam(r, "dcId")

	analysis, err := h.capacity.AnalyzeCapacityNeeds(r.Context(), dcID)
	if err != nil {
		h.respondServiceError(w, err, "analyze capacity needs", slog.String("datacenter", dcID))
		return
	}

	h.respondJSON(w, http.StatusOK, analysis)
}

// PerformStressTest handles POST /api/capacity/{dcId}/stress-test
func (h *Handler) PerformStressTest(w http.ResponseWriter, r *http.Request) {
	dcID := chi.URLParam(r, "dcId")

	var scenario model.StressScenario
	if !h.decodeJSON(w, r, &scenario) {
		return
	}

	result, err := h.capacity.PerformStressTest(r.Context(), dcID, scenario)
	if err != nil {
		h.respondServiceError(w, err, "perform stress test", slog.String("datacenter", dcID))
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// GetCapacityStatistics handles GET /api/capacity/statistics
func (h *Handler) GetCapacityStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.capacity.Statistics(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "get capacity statistics")
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}
