package model

import "time"

// IncidentType classifies the cause of an incident
type IncidentType string

const (
	IncidentPowerOutage     IncidentType = "power-outage"
	IncidentNetworkFailure  IncidentType = "network-failure"
	IncidentHardwareFailure IncidentType = "hardware-failure"
	IncidentNaturalDisaster IncidentType = "natural-disaster"
)

// Valid reports whether t is a known incident type
func (t IncidentType) Valid() bool {
	switch t {
	case IncidentPowerOutage, IncidentNetworkFailure, IncidentHardwareFailure, IncidentNaturalDisaster:
		return true
	}
	return false
}

// Severity is shared by incidents and scaling actions
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// IncidentStatus represents incident lifecycle states
type IncidentStatus string

const (
	IncidentStatusDetected   IncidentStatus = "detected"
	IncidentStatusResponding IncidentStatus = "responding"
	IncidentStatusMitigated  IncidentStatus = "mitigated"
	IncidentStatusResolved   IncidentStatus = "resolved"
)

// Valid reports whether s is a known incident status
func (s IncidentStatus) Valid() bool {
	switch s {
	case IncidentStatusDetected, IncidentStatusResponding, IncidentStatusMitigated, IncidentStatusResolved:
		return true
	}
	return false
}

// ActionType tells whether an action is run by the coordinator or an operator
type ActionType string

const (
	ActionAutomatic ActionType = "automatic"
	ActionManual    ActionType = "manual"
)

// ActionStatus represents incident action states
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in-progress"
	ActionCompleted  ActionStatus = "completed"
	ActionFailed     ActionStatus = "failed"
)

// Valid reports whether s is a known action status
func (s ActionStatus) Valid() bool {
	switch s {
	case ActionPending, ActionInProgress, ActionCompleted, ActionFailed:
		return true
	}
	return false
}

// RemediationKind names what an automatic action does
type RemediationKind string

const (
	RemediationFailover         RemediationKind = "failover"
	RemediationFailback         RemediationKind = "failback"
	RemediationDatacenterStatus RemediationKind = "datacenter-status"
	RemediationNotify           RemediationKind = "notify"
)

// Remediation describes the step an automatic action executes
type Remediation struct {
	Kind   RemediationKind `json:"kind"`
	Target string          `json:"target,omitempty"` // failover config id or datacenter id
	Value  string          `json:"value,omitempty"`  // e.g. target datacenter status
}

// IncidentAction is a recovery step owned by an incident
type IncidentAction struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Type        ActionType   `json:"type"`
	Status      ActionStatus `json:"status"`
	Remediation *Remediation `json:"remediation,omitempty"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Result      string       `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Incident tracks a disruption and the response to it
type Incident struct {
	ID                string           `json:"id"`
	Type              IncidentType     `json:"type"`
	Severity          Severity         `json:"severity"`
	AffectedDCs       []string         `json:"affected_dcs"`
	Description       string           `json:"description"`
	DetectedAt        time.Time        `json:"detected_at"`
	ResponseStartedAt *time.Time       `json:"response_started_at,omitempty"`
	ResolvedAt        *time.Time       `json:"resolved_at,omitempty"`
	Status            IncidentStatus   `json:"status"`
	Actions           []IncidentAction `json:"actions"`
	Playbook          string           `json:"playbook"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Action returns the action with the given id
func (i *Incident) Action(id string) (*IncidentAction, bool) {
	for idx := range i.Actions {
		if i.Actions[idx].ID == id {
			return &i.Actions[idx], true
		}
	}
	return nil, false
}

// AllActionsCompleted reports whether the incident has actions and all of them completed
func (i *Incident) AllActionsCompleted() bool {
	if len(i.Actions) == 0 {
		return false
	}
	for _, a := range i.Actions {
		if a.Status != ActionCompleted {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the incident
func (i Incident) Clone() Incident {
	i.AffectedDCs = append([]string(nil), i.AffectedDCs...)
	i.ResponseStartedAt = cloneTime(i.ResponseStartedAt)
	i.ResolvedAt = cloneTime(i.ResolvedAt)

	actions := make([]IncidentAction, len(i.Actions))
	for idx, a := range i.Actions {
		a.StartedAt = cloneTime(a.StartedAt)
		a.CompletedAt = cloneTime(a.CompletedAt)
		if a.Remediation != nil {
			r := *a.Remediation
			a.Remediation = &r
		}
		actions[idx] = a
	}
	i.Actions = actions
	return i
}

// RecoveryResult is returned by recovery execution
type RecoveryResult struct {
	IncidentID      string         `json:"incident_id"`
	Success         bool           `json:"success"`
	ActionsExecuted int            `json:"actions_executed"`
	TotalActions    int            `json:"total_actions"`
	Errors          []string       `json:"errors"`
	Status          IncidentStatus `json:"status"`
}

// IncidentEvent is an entry of the incident history log
type IncidentEvent struct {
	IncidentID string         `json:"incident_id"`
	Kind       string         `json:"kind"` // created, status, action, recovery
	Status     IncidentStatus `json:"status"`
	ActionID   string         `json:"action_id,omitempty"`
	Message    string         `json:"message"`
	Timestamp  time.Time      `json:"timestamp"`
}

// IncidentStatistics aggregates incidents
type IncidentStatistics struct {
	Total                 int            `json:"total"`
	Active                int            `json:"active"`
	ByType                map[string]int `json:"by_type"`
	BySeverity            map[string]int `json:"by_severity"`
	ByStatus              map[string]int `json:"by_status"`
	TotalActions          int            `json:"total_actions"`
	CompletedActions      int            `json:"completed_actions"`
	FailedActions         int            `json:"failed_actions"`
	AverageResolutionTime float64        `json:"average_resolution_time"` // seconds
}

// Playbook is a named list of action templates applied to an incident
type Playbook struct {
	Name    string           `json:"name"`
	Type    IncidentType     `json:"type"`
	Actions []IncidentAction `json:"actions"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
