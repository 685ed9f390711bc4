package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirychukyurii/dr-orchestrator/internal/model"
)

// ActionExecutor runs the remediation of an automatic incident action and returns a
// short description of what it did
type ActionExecutor interface {
	Execute(ctx context.Context, inc *model.Incident, action *model.IncidentAction) (string, error)
}

// remediationExecutor maps remediation kinds onto registry and failover operations
type remediationExecutor struct {
	dcService       DatacenterService
	failoverService FailoverService
	logger          *slog.Logger
}

// NewActionExecutor creates the default executor
func NewActionExecutor(dcService DatacenterService, failoverService FailoverService, logger *slog.Logger) ActionExecutor {
	return &remediationExecutor{
		dcService:       dcService,
		failoverService: failoverService,
		logger:          logger,
	}
}

// Execute dispatches on the remediation kind
func (e *remediationExecutor) Execute(ctx context.Context, inc *model.Incident, action *model.IncidentAction) (string, error) {
	if action.Remediation == nil {
		return e.notify(inc, action), nil
	}

	switch action.Remediation.Kind {
	case model.RemediationNotify:
		return e.notify(inc, action), nil
	case model.RemediationFailover:
		return e.switchPairs(ctx, inc, action.Remediation.Target, model.FailoverActionFailover)
	case model.RemediationFailback:
		return e.switchPairs(ctx, inc, action.Remediation.Target, model.FailoverActionFailback)
	case model.RemediationDatacenterStatus:
		return e.setStatus(ctx, inc, action.Remediation)
	default:
		return "", fmt.Errorf("unknown remediation kind %q", action.Remediation.Kind)
	}
}

func (e *remediationExecutor) notify(inc *model.Incident, action *model.IncidentAction) string {
	e.logger.Warn("incident notification",
		slog.String("incident_id", inc.ID),
		slog.String("type", string(inc.Type)),
		slog.String("severity", string(inc.Severity)),
		slog.String("affected", strings.Join(inc.AffectedDCs, ",")),
		slog.String("action", action.Description),
	)
	return "notification sent"
}

// switchPairs fails over (or back) the given pair, or every pair whose primary is
// one of the affected datacenters
func (e *remediationExecutor) switchPairs(ctx context.Context, inc *model.Incident, target string, action model.FailoverAction) (string, error) {
	var ids []string
	if target != "" {
		ids = []string{target}
	} else {
		cfgs, err := e.failoverService.ListConfigs(ctx)
		if err != nil {
			return "", err
		}
		for _, cfg := range cfgs {
			if !containsString(inc.AffectedDCs, cfg.PrimaryDC) {
				continue
			}
			if action == model.FailoverActionFailback && cfg.ActiveSide != model.SideSecondary {
				continue
			}
			ids = append(ids, cfg.ID)
		}
		if len(ids) == 0 {
			return "", fmt.Errorf("no failover config covers affected datacenters %s", strings.Join(inc.AffectedDCs, ", "))
		}
	}

	reason := fmt.Sprintf("incident %s (%s)", inc.ID, inc.Type)
	var errs []error
	var done []string
	for _, id := range ids {
		var (
			res *model.FailoverResult
			err error
		)
		if action == model.FailoverActionFailback {
			res, err = e.failoverService.ManualFailback(ctx, id, reason)
		} else {
			res, err = e.failoverService.ManualFailover(ctx, id, reason)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", action, id, err))
			continue
		}
		if !res.Success {
			errs = append(errs, fmt.Errorf("%s %s: %s", action, id, res.Reason))
			continue
		}
		done = append(done, id)
	}

	if err := errors.Join(errs...); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s completed for %s", action, strings.Join(done, ", ")), nil
}

// setStatus moves the target datacenter, or every affected one, to the given status
func (e *remediationExecutor) setStatus(ctx context.Context, inc *model.Incident, r *model.Remediation) (string, error) {
	status := model.DatacenterStatus(r.Value)
	if status == "" {
		status = model.DatacenterStatusMaintenance
	}

	targets := inc.AffectedDCs
	if r.Target != "" {
		targets = []string{r.Target}
	}
	if len(targets) == 0 {
		return "", fmt.Errorf("no datacenter to move to %s", status)
	}

	var errs []error
	for _, id := range targets {
		if _, err := e.dcService.UpdateStatus(ctx, id, status); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s set to %s", strings.Join(targets, ", "), status), nil
}
