package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirychukyurii/dr-orchestrator/internal/model"
	"github.com/kirychukyurii/dr-orchestrator/internal/service"
)

// incidentStatusRequest is the body of PUT /api/incidents/{id}/status
type incidentStatusRequest struct {
	Status   model.IncidentStatus `json:"status"`
	Override bool                 `json:"override"`
}

// actionStatusRequest is the body of PUT /api/incidents/{id}/actions/{actionId}/status
type actionStatusRequest struct {
	Status model.ActionStatus `json:"status"`
}

// ListIncidents handles GET /api/incidents?type=&severity=&status=
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.IncidentFilter{
		Type:     model.IncidentType(q.Get("type")),
		Severity: model.Severity(q.Get("severity")),
		Status:   model.IncidentStatus(q.Get("status")),
	}

	incidents, err := h.incidents.ListIncidents(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, err, "list incidents")
		return
	}

	h.respondJSON(w, http.StatusOK, incidents)
}

// ListActiveIncidents handles GET /api/incidents/active
func (h *Handler) ListActiveIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := h.incidents.ActiveIncidents(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "list active incidents")
		return
	}

	h.respondJSON(w, http.StatusOK, incidents)
}

// CreateIncident handles POST /api/incidents
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var inc model.Incident
	if !h.decodeJSON(w, r, &inc) {
		return
	}

	created, err := h.incidents.CreateIncident(r.Context(), &inc)
	if err != nil {
		h.respondServiceError(w, err, "create incident")
		return
	}

	h.respondJSON(w, http.StatusCreated, created)
}

// GetIncident handles GET /api/incidents/{id}
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inc, err := h.incidents.GetIncident(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "get incident", slog.String("incident", id))
		return
	}

	h.respondJSON(w, http.StatusOK, inc)
}

// UpdateIncident handles PUT /api/incidents/{id}
func (h *Handler) UpdateIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var inc model.Incident
	if !h.decodeJSON(w, r, &inc) {
		return
	}

	updated, err := h.incidents.UpdateIncident(r.Context(), id, &inc)
	if err != nil {
		h.respondServiceError(w, err, "update incident", slog.String("incident", id))
		return
	}

	h.respondJSON(w, http.StatusOK, updated)
}

// DeleteIncident handles DELETE /api/incidents/{id}
func (h *Handler) DeleteIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.incidents.DeleteIncident(r.Context(), id); err != nil {
		h.respondServiceError(w, err, "delete incident", slog.String("incident", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateIncidentStatus handles PUT /api/incidents/{id}/status
func (h *Handler) UpdateIncidentStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req incidentStatusRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.incidents.UpdateStatus(r.Context(), id, req.Status, req.Override)
	if err != nil {
		h.respondServiceError(w, err, "update incident status", slog.String("incident", id))
		return
	}

	h.respondJSON(w, http.StatusOK, updated)
}

// AddIncidentAction handles POST /api/incidents/{id}/actions
func (h *Handler) AddIncidentAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var action model.IncidentAction
	if !h.decodeJSON(w, r, &action) {
		return
	}

	updated, err := h.incidents.AddAction(r.Context(), id, &action)
	if err != nil {
		h.respondServiceError(w, err, "add incident action", slog.String("incident", id))
		return
	}

	h.respondJSON(w, http.StatusCreated, updated)
}

// UpdateIncidentActionStatus handles PUT /api/incidents/{id}/actions/{actionId}/status
func (h *Handler) UpdateIncidentActionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actionID := chi.URLParam(r, "actionId")

	var req actionStatusRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.incidents.UpdateActionStatus(r.Context(), id, actionID, req.Status)
	if err != nil {
		h.respondServiceError(w, err, "update incident action status",
			slog.String("incident", id),
			slog.String("action", actionID),
		)
		return
	}

	h.respondJSON(w, http.StatusOK, updated)
}

// ApplyPlaybook handles POST /api/incidents/{id}/playbook
func (h *Handler) ApplyPlaybook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	updated, err := h.incidents.ApplyPlaybook(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "apply playbook", slog.String("incident", id))
		return
	}

	h.respondJSON(w, http.StatusOK, updated)
}

// ExecuteRecoveryProcedures handles POST /api/incidents/{id}/recover
func (h *Handler) ExecuteRecoveryProcedures(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.incidents.ExecuteRecoveryProcedures(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err, "execute recovery procedures", slog.String("incident", id))
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// GetIncidentHistory handles GET /api/incidents/history?limit=
func (h *Handler) GetIncidentHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, h.incidents.History(limit))
}

// GetIncidentStatistics handles GET /api/incidents/statistics
func (h *Handler) GetIncidentStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.incidents.Statistics(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "get incident statistics")
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}
