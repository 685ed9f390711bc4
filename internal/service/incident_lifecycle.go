package service

import (
	"context"
	"fmt"
	"time"

	"github.com/looplab/fsm"

	"github.com/kirychukyurii/dr-orchestrator/internal/model"
)

const (
	eventRespond  = "respond"
	eventMitigate = "mitigate"
	eventResolve  = "resolve"
)

// incidentEvents only move forward: detected -> responding -> mitigated -> resolved,
// skipping intermediate states is allowed
var incidentEvents = fsm.Events{
	{
		Name: eventRespond,
		Src:  []string{string(model.IncidentStatusDetected)},
		Dst:  string(model.IncidentStatusResponding),
	},
	{
		Name: eventMitigate,
		Src:  []string{string(model.IncidentStatusDetected), string(model.IncidentStatusResponding)},
		Dst:  string(model.IncidentStatusMitigated),
	},
	{
		Name: eventResolve,
		Src: []string{
			string(model.IncidentStatusDetected),
			string(model.IncidentStatusResponding),
			string(model.IncidentStatusMitigated),
		},
		Dst: string(model.IncidentStatusResolved),
	},
}

var statusEvents = map[model.IncidentStatus]string{
	model.IncidentStatusResponding: eventRespond,
	model.IncidentStatusMitigated:  eventMitigate,
	model.IncidentStatusResolved:   eventResolve,
}

// newIncidentMachine builds the lifecycle machine of an incident at its current status.
// Entering responding stamps the response start, entering resolved the resolution.
func newIncidentMachine(inc *model.Incident, now time.Time) *fsm.FSM {
	return fsm.NewFSM(
		string(inc.Status),
		incidentEvents,
		fsm.Callbacks{
			"enter_" + string(model.IncidentStatusResponding): func(_ context.Context, _ *fsm.Event) {
				if inc.ResponseStartedAt == nil {
					t := now
					inc.ResponseStartedAt = &t
				}
			},
			"enter_" + string(model.IncidentStatusResolved): func(_ context.Context, _ *fsm.Event) {
				t := now
				inc.ResolvedAt = &t
			},
		},
	)
}

// transitionIncident moves the incident to status. Moving to the current status is a
// no-op. Backward moves are refused with ErrConflict unless override is set.
// It reports whether the status changed.
func transitionIncident(ctx context.Context, inc *model.Incident, to model.IncidentStatus, override bool, now time.Time) (bool, error) {
	if !to.Valid() {
		return false, validationError("unknown incident status %q", to)
	}
	if inc.Status == to {
		return false, nil
	}

	machine := newIncidentMachine(inc, now)

	if event, ok := statusEvents[to]; ok && machine.Can(event) {
		if err := machine.Event(ctx, event); err != nil {
			return false, fmt.Errorf("failed to move incident %s to %s: %w", inc.ID, to, err)
		}
		inc.Status = model.IncidentStatus(machine.Current())
		inc.UpdatedAt = now
		return true, nil
	}

	if !override {
		return false, conflictError("incident %s cannot move from %s back to %s", inc.ID, inc.Status, to)
	}

	machine.SetState(string(to))
	inc.Status = model.IncidentStatus(machine.Current())
	switch to {
	case model.IncidentStatusDetected:
		inc.ResponseStartedAt = nil
		inc.ResolvedAt = nil
	case model.IncidentStatusResponding, model.IncidentStatusMitigated:
		inc.ResolvedAt = nil
		if inc.ResponseStartedAt == nil {
			t := now
			inc.ResponseStartedAt = &t
		}
	}
	inc.UpdatedAt = now
	return true, nil
}

// actionTransitions lists the allowed action status changes. A failed action may be
// retried by moving it back to pending.
var actionTransitions = map[model.ActionStatus][]model.ActionStatus{
	model.ActionPending:    {model.ActionInProgress, model.ActionCompleted, model.ActionFailed},
	model.ActionInProgress: {model.ActionCompleted, model.ActionFailed},
	model.ActionFailed:     {model.ActionPending},
}

// transitionAction moves an action to status, stamping start and completion times
func transitionAction(action *model.IncidentAction, to model.ActionStatus, now time.Time) error {
	if !to.Valid() {
		return validationError("unknown action status %q", to)
	}
	if action.Status == to {
		return nil
	}

	allowed := false
	for _, next := range actionTransitions[action.Status] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return conflictError("action %s cannot move from %s to %s", action.ID, action.Status, to)
	}

	switch to {
	case model.ActionPending:
		action.CompletedAt = nil
		action.Error = ""
		action.Result = ""
	case model.ActionInProgress:
		if action.StartedAt == nil {
			t := now
			action.StartedAt = &t
		}
	case model.ActionCompleted, model.ActionFailed:
		if action.StartedAt == nil {
			t := now
			action.StartedAt = &t
		}
		t := now
		action.CompletedAt = &t
	}
	action.Status = to
	return nil
}
