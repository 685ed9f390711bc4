package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirychukyurii/dr-orchestrator/internal/config"
	"github.com/kirychukyurii/dr-orchestrator/internal/history"
	"github.com/kirychukyurii/dr-orchestrator/internal/metrics"
	"github.com/kirychukyurii/dr-orchestrator/internal/model"
	"github.com/kirychukyurii/dr-orchestrator/internal/repository"
)

const defaultActionTimeout = 2 * time.Minute

// IncidentFilter selects incidents; empty fields match everything
type IncidentFilter struct {
	Type     model.IncidentType
	Severity model.Severity
	Status   model.IncidentStatus
}

func (f IncidentFilter) match(inc *model.Incident) bool {
	return (f.Type == "" || inc.Type == f.Type) &&
		(f.Severity == "" || inc.Severity == f.Severity) &&
		(f.Status == "" || inc.Status == f.Status)
}

// IncidentService defines the interface for incident coordination
type IncidentService interface {
	CreateIncident(ctx context.Context, inc *model.Incident) (*model.Incident, error)
	GetIncident(ctx context.Context, id string) (*model.Incident, error)
	UpdateIncident(ctx context.Context, id string, inc *model.Incident) (*model.Incident, error)
	DeleteIncident(ctx context.Context, id string) error
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]model.Incident, error)
	ActiveIncidents(ctx context.Context) ([]model.Incident, error)
	UpdateStatus(ctx context.Context, id string, status model.IncidentStatus, override bool) (*model.Incident, error)
	AddAction(ctx context.Context, id string, action *model.IncidentAction) (*model.Incident, error)
	UpdateActionStatus(ctx context.Context, id, actionID string, status model.ActionStatus) (*model.Incident, error)
	ApplyPlaybook(ctx context.Context, id string) (*model.Incident, error)
	ExecuteRecoveryProcedures(ctx context.Context, id string) (*model.RecoveryResult, error)
	SweepActive(ctx context.Context) error
	History(limit int) []model.IncidentEvent
	Statistics(ctx context.Context) (*model.IncidentStatistics, error)
}

// incidentService implements IncidentService interface
type incidentService struct {
	store         repository.Store[model.Incident]
	dcService     DatacenterService
	executor      ActionExecutor
	actionTimeout time.Duration
	history       *history.Ring[model.IncidentEvent]
	metrics       *metrics.Metrics
	logger        *slog.Logger
	mu            sync.Mutex
}

// NewIncidentService creates a new incident service
func NewIncidentService(
	store repository.Store[model.Incident],
	dcService DatacenterService,
	executor ActionExecutor,
	cfg config.IncidentConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) IncidentService {
	timeout := cfg.ActionTimeout
	if timeout <= 0 {
		timeout = defaultActionTimeout
	}
	return &incidentService{
		store:         store,
		dcService:     dcService,
		executor:      executor,
		actionTimeout: timeout,
		history:       history.NewRing[model.IncidentEvent](cfg.HistorySize),
		metrics:       m,
		logger:        logger,
	}
}

// CreateIncident registers a detected incident with the playbook of its type
func (s *incidentService) CreateIncident(ctx context.Context, inc *model.Incident) (*model.Incident, error) {
	if err := s.validateIncident(ctx, inc); err != nil {
		return nil, err
	}
	if inc.ID == "" {
		inc.ID = newID("incident")
	}

	now := time.Now().UTC()
	inc.Status = model.IncidentStatusDetected
	inc.Actions = []model.IncidentAction{}
	inc.ResponseStartedAt = nil
	inc.ResolvedAt = nil
	if inc.DetectedAt.IsZero() {
		inc.DetectedAt = now
	}
	inc.UpdatedAt = now
	if pb, ok := playbookFor(inc.Type); ok {
		inc.Playbook = pb.Name
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Get(ctx, inc.ID); err == nil {
		return nil, conflictError("incident %s already exists", inc.ID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check incident %s: %w", inc.ID, err)
	}

	if err := s.store.Put(ctx, inc.ID, *inc); err != nil {
		return nil, fmt.Errorf("failed to store incident %s: %w", inc.ID, err)
	}
	s.record(inc, "created", "", fmt.Sprintf("%s incident detected in %s", inc.Type, strings.Join(inc.AffectedDCs, ", ")))
	s.refreshActiveGauge(ctx)

	s.logger.Warn("incident detected",
		slog.String("incident_id", inc.ID),
		slog.String("type", string(inc.Type)),
		slog.String("severity", string(inc.Severity)),
		slog.String("affected", strings.Join(inc.AffectedDCs, ",")),
	)

	return inc, nil
}

// GetIncident returns an incident by id
func (s *incidentService) GetIncident(ctx context.Context, id string) (*model.Incident, error) {
	inc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get incident %s: %w", id, err)
	}
	return &inc, nil
}

// UpdateIncident changes the description, severity and affected datacenters.
// Status and actions have their own operations.
func (s *incidentService) UpdateIncident(ctx context.Context, id string, update *model.Incident) (*model.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get incident %s: %w", id, err)
	}

	if update.Description != "" {
		inc.Description = update.Description
	}
	if update.Severity != "" {
		inc.Severity = update.Severity
	}
	if update.AffectedDCs != nil {
		inc.AffectedDCs = append([]string(nil), update.AffectedDCs...)
	}
	if err := s.validateIncident(ctx, &inc); err != nil {
		return nil, err
	}
	inc.UpdatedAt = time.Now().UTC()

	if err := s.store.Put(ctx, id, inc); err != nil {
		return nil, fmt.Errorf("failed to store incident %s: %w", id, err)
	}
	return &inc, nil
}

// DeleteIncident removes an incident
func (s *incidentService) DeleteIncident(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete incident %s: %w", id, err)
	}
	s.refreshActiveGauge(ctx)
	return nil
}

// ListIncidents returns the incidents matching the filter ordered by id
func (s *incidentService) ListIncidents(ctx context.Context, filter IncidentFilter) ([]model.Incident, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}

	out := make([]model.Incident, 0, len(all))
	for i := range all {
		if filter.match(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// ActiveIncidents returns every incident that is not resolved
func (s *incidentService) ActiveIncidents(ctx context.Context) ([]model.Incident, error) {
	all, err := s.ListIncidents(ctx, IncidentFilter{})
	if err != nil {
		return nil, err
	}

	out := make([]model.Incident, 0, len(all))
	for _, inc := range all {
		if inc.Status != model.IncidentStatusResolved {
			out = append(out, inc)
		}
	}
	return out, nil
}

// UpdateStatus moves an incident through its lifecycle
func (s *incidentService) UpdateStatus(ctx context.Context, id string, status model.IncidentStatus, override bool) (*model.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get incident %s: %w", id, err)
	}

	previous := inc.Status
	changed, err := transitionIncident(ctx, &inc, status, override, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !changed {
		return &inc, nil
	}

	if err := s.store.Put(ctx, id, inc); err != nil {
		return nil, fmt.Errorf("failed to store incident %s: %w", id, err)
	}
	s.record(&inc, "status", "", fmt.Sprintf("status changed from %s to %s", previous, inc.Status))
	s.refreshActiveGauge(ctx)

	s.logger.Info("incident status changed",
		slog.String("incident_id", id),
		slog.String("old_status", string(previous)),
		slog.String("new_status", string(inc.Status)),
		slog.Bool("override", override),
	)

	return &inc, nil
}

// AddAction appends a pending action to an incident
func (s *incidentService) AddAction(ctx context.Context, id string, action *model.IncidentAction) (*model.Incident, error) {
	if err := validateAction(action); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get incident %s: %w", id, err)
	}
	if inc.Status == model.IncidentStatusResolved {
		return nil, conflictError("incident %s is resolved", id)
	}

	a := newAction(action)
	inc.Actions = append(inc.Actions, a)
	inc.UpdatedAt = time.Now().UTC()

	if err := s.store.Put(ctx, id, inc); err != nil {
		return nil, fmt.Errorf("failed to store incident %s: %w", id, err)
	}
	s.record(&inc, "action", a.ID, "action added: "+a.Description)

	return &inc, nil
}

// UpdateActionStatus moves an action through pending, in-progress and completed or failed
func (s *incidentService) UpdateActionStatus(ctx context.Context, id, actionID string, status model.ActionStatus) (*model.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get incident %s: %w", id, err)
	}

	action, ok := inc.Action(actionID)
	if !ok {
		return nil, fmt.Errorf("action %s of incident %s: %w", actionID, id, repository.ErrNotFound)
	}

	previous := action.Status
	now := time.Now().UTC()
	if err := transitionAction(action, status, now); err != nil {
		return nil, err
	}
	if previous == status {
		return &inc, nil
	}
	inc.UpdatedAt = now

	if err := s.store.Put(ctx, id, inc); err != nil {
		return nil, fmt.Errorf("failed to store incident %s: %w", id, err)
	}
	s.record(&inc, "action", actionID, fmt.Sprintf("action moved from %s to %s", previous, status))

	return &inc, nil
}

// ApplyPlaybook appends the actions of the playbook of the incident type
func (s *incidentService) ApplyPlaybook(ctx context.Context, id string) (*model.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get incident %s: %w", id, err)
	}
	if inc.Status == model.IncidentStatusResolved {
		return nil, conflictError("incident %s is resolved", id)
	}

	pb, ok := playbookFor(inc.Type)
	if !ok {
		return nil, validationError("no playbook for incident type %s", inc.Type)
	}

	for i := range pb.Actions {
		inc.Actions = append(inc.Actions, newAction(&pb.Actions[i]))
	}
	inc.Playbook = pb.Name
	inc.UpdatedAt = time.Now().UTC()

	if err := s.store.Put(ctx, id, inc); err != nil {
		return nil, fmt.Errorf("failed to store incident %s: %w", id, err)
	}
	s.record(&inc, "playbook", "", fmt.Sprintf("playbook %s applied with %d actions", pb.Name, len(pb.Actions)))

	s.logger.Info("playbook applied",
		slog.String("incident_id", id),
		slog.String("playbook", pb.Name),
		slog.Int("actions", len(pb.Actions)),
	)

	return &inc, nil
}

// ExecuteRecoveryProcedures runs every pending automatic action of the incident.
// Actions are claimed under the lock and executed outside it, each bounded by the
// action timeout; a failing action never stops its siblings. The incident is
// resolved once it has actions and all of them completed. An incident without
// actions is left open on purpose: the periodic sweep would otherwise resolve every
// incident the moment it is reported, before anyone has attached a remediation.
func (s *incidentService) ExecuteRecoveryProcedures(ctx context.Context, id string) (*model.RecoveryResult, error) {
	inc, claimed, err := s.claimActions(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &model.RecoveryResult{
		IncidentID: id,
		Errors:     []string{},
	}

	type outcome struct {
		result string
		err    error
	}
	outcomes := make(map[string]outcome, len(claimed))
	for i := range claimed {
		action := &claimed[i]

		actionCtx, cancel := context.WithTimeout(ctx, s.actionTimeout)
		res, execErr := s.executor.Execute(actionCtx, inc, action)
		cancel()

		outcomes[action.ID] = outcome{result: res, err: execErr}

		kind := string(model.RemediationNotify)
		if action.Remediation != nil {
			kind = string(action.Remediation.Kind)
		}
		if execErr != nil {
			s.metrics.ObserveIncidentAction(kind, string(model.ActionFailed))
			result.Errors = append(result.Errors, fmt.Sprintf("action %s (%s): %v", action.ID, action.Description, execErr))
			s.logger.Error("incident action failed",
				slog.String("incident_id", id),
				slog.String("action_id", action.ID),
				slog.String("error", execErr.Error()),
			)
			continue
		}
		s.metrics.ObserveIncidentAction(kind, string(model.ActionCompleted))
		result.ActionsExecuted++
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload incident %s: %w", id, err)
	}

	now := time.Now().UTC()
	for actionID, o := range outcomes {
		action, ok := current.Action(actionID)
		if !ok || action.Status != model.ActionInProgress {
			continue
		}
		if o.err != nil {
			action.Error = o.err.Error()
			_ = transitionAction(action, model.ActionFailed, now)
		} else {
			action.Result = o.result
			_ = transitionAction(action, model.ActionCompleted, now)
		}
		s.record(&current, "action", actionID, "action "+string(action.Status))
	}

	if current.Status != model.IncidentStatusResolved && current.AllActionsCompleted() {
		if _, err := transitionIncident(ctx, &current, model.IncidentStatusResolved, false, now); err != nil {
			return nil, err
		}
		s.record(&current, "status", "", "all actions completed, incident resolved")
		s.logger.Info("incident resolved",
			slog.String("incident_id", id),
			slog.Int("actions", len(current.Actions)),
		)
	}
	current.UpdatedAt = now

	if err := s.store.Put(ctx, id, current); err != nil {
		return nil, fmt.Errorf("failed to store incident %s: %w", id, err)
	}
	s.refreshActiveGauge(ctx)

	result.TotalActions = len(current.Actions)
	result.Success = len(result.Errors) == 0
	result.Status = current.Status

	s.record(&current, "recovery", "", fmt.Sprintf("recovery executed %d of %d claimed actions", result.ActionsExecuted, len(claimed)))

	return result, nil
}

// claimActions moves a detected incident to responding and marks its pending
// automatic actions in progress so concurrent recoveries do not run them twice
func (s *incidentService) claimActions(ctx context.Context, id string) (*model.Incident, []model.IncidentAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get incident %s: %w", id, err)
	}

	now := time.Now().UTC()
	if inc.Status == model.IncidentStatusDetected {
		if _, err := transitionIncident(ctx, &inc, model.IncidentStatusResponding, false, now); err != nil {
			return nil, nil, err
		}
		s.record(&inc, "status", "", "recovery started, incident responding")
	}

	var claimed []model.IncidentAction
	for i := range inc.Actions {
		a := &inc.Actions[i]
		if a.Type != model.ActionAutomatic || a.Status != model.ActionPending {
			continue
		}
		if err := transitionAction(a, model.ActionInProgress, now); err != nil {
			return nil, nil, err
		}
		claimed = append(claimed, *a)
	}
	inc.UpdatedAt = now

	if err := s.store.Put(ctx, id, inc); err != nil {
		return nil, nil, fmt.Errorf("failed to store incident %s: %w", id, err)
	}

	snapshot := inc.Clone()
	return &snapshot, claimed, nil
}

// SweepActive runs recovery for every active incident with pending automatic actions
// or whose actions all completed
func (s *incidentService) SweepActive(ctx context.Context) error {
	active, err := s.ActiveIncidents(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for i := range active {
		inc := &active[i]
		if !hasPendingAutomatic(inc) && !inc.AllActionsCompleted() {
			continue
		}

		res, err := s.ExecuteRecoveryProcedures(ctx, inc.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !res.Success {
			s.logger.Warn("incident recovery incomplete",
				slog.String("incident_id", inc.ID),
				slog.Int("errors", len(res.Errors)),
			)
		}
	}
	return errors.Join(errs...)
}

func hasPendingAutomatic(inc *model.Incident) bool {
	for _, a := range inc.Actions {
		if a.Type == model.ActionAutomatic && a.Status == model.ActionPending {
			return true
		}
	}
	return false
}

// History returns the most recent incident events, oldest first
func (s *incidentService) History(limit int) []model.IncidentEvent {
	return s.history.Last(limit)
}

// Statistics aggregates incidents. The mean resolution time only covers resolved incidents.
func (s *incidentService) Statistics(ctx context.Context) (*model.IncidentStatistics, error) {
	all, err := s.ListIncidents(ctx, IncidentFilter{})
	if err != nil {
		return nil, err
	}

	stats := &model.IncidentStatistics{
		Total:      len(all),
		ByType:     make(map[string]int),
		BySeverity: make(map[string]int),
		ByStatus:   make(map[string]int),
	}

	var resolved int
	var resolution time.Duration
	for _, inc := range all {
		stats.ByType[string(inc.Type)]++
		stats.BySeverity[string(inc.Severity)]++
		stats.ByStatus[string(inc.Status)]++
		if inc.Status != model.IncidentStatusResolved {
			stats.Active++
		} else if inc.ResolvedAt != nil {
			resolved++
			resolution += inc.ResolvedAt.Sub(inc.DetectedAt)
		}

		stats.TotalActions += len(inc.Actions)
		for _, a := range inc.Actions {
			switch a.Status {
			case model.ActionCompleted:
				stats.CompletedActions++
			case model.ActionFailed:
				stats.FailedActions++
			}
		}
	}
	if resolved > 0 {
		stats.AverageResolutionTime = resolution.Seconds() / float64(resolved)
	}

	return stats, nil
}

// record appends an event to the incident history
func (s *incidentService) record(inc *model.Incident, kind, actionID, message string) {
	s.history.Append(model.IncidentEvent{
		IncidentID: inc.ID,
		Kind:       kind,
		Status:     inc.Status,
		ActionID:   actionID,
		Message:    message,
		Timestamp:  time.Now().UTC(),
	})
}

func (s *incidentService) refreshActiveGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	active, err := s.ActiveIncidents(ctx)
	if err != nil {
		return
	}
	s.metrics.SetActiveIncidents(len(active))
}

func (s *incidentService) validateIncident(ctx context.Context, inc *model.Incident) error {
	if !inc.Type.Valid() {
		return validationError("unknown incident type %q", inc.Type)
	}
	if inc.Severity == "" {
		inc.Severity = model.SeverityMedium
	}
	if !inc.Severity.Valid() {
		return validationError("unknown severity %q", inc.Severity)
	}
	if len(inc.AffectedDCs) == 0 {
		return validationError("at least one affected datacenter is required")
	}
	for _, id := range inc.AffectedDCs {
		if _, err := s.dcService.GetDatacenter(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return validationError("unknown datacenter %s", id)
			}
			return err
		}
	}
	return nil
}

func validateAction(action *model.IncidentAction) error {
	if strings.TrimSpace(action.Description) == "" {
		return validationError("action description is required")
	}
	if action.Type == "" {
		action.Type = model.ActionManual
	}
	if action.Type != model.ActionAutomatic && action.Type != model.ActionManual {
		return validationError("unknown action type %q", action.Type)
	}
	if action.Remediation != nil {
		switch action.Remediation.Kind {
		case model.RemediationFailover, model.RemediationFailback, model.RemediationNotify:
		case model.RemediationDatacenterStatus:
			if v := model.DatacenterStatus(action.Remediation.Value); v != "" && !v.Valid() {
				return validationError("unknown datacenter status %q", v)
			}
		default:
			return validationError("unknown remediation kind %q", action.Remediation.Kind)
		}
	}
	return nil
}

// newAction copies a template into a fresh pending action
func newAction(tpl *model.IncidentAction) model.IncidentAction {
	a := model.IncidentAction{
		ID:          newID("action"),
		Description: tpl.Description,
		Type:        tpl.Type,
		Status:      model.ActionPending,
	}
	if a.Type == "" {
		a.Type = model.ActionManual
	}
	if tpl.Remediation != nil {
		r := *tpl.Remediation
		a.Remediation = &r
	}
	return a
}
