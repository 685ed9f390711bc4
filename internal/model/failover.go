package model

import "time"

// FailoverSide identifies which datacenter of a pair carries traffic
type FailoverSide string

const (
	SidePrimary   FailoverSide = "primary"
	SideSecondary FailoverSide = "secondary"
)

// FailoverAction is the outcome of a failover evaluation
type FailoverAction string

const (
	FailoverActionNone     FailoverAction = "none"
	FailoverActionFailover FailoverAction = "failover"
	FailoverActionFailback FailoverAction = "failback"
)

// FailoverTrigger tells who initiated a switch
type FailoverTrigger string

const (
	TriggerAutomatic FailoverTrigger = "automatic"
	TriggerManual    FailoverTrigger = "manual"
)

// HealthCheckSettings controls how a failover pair is probed
type HealthCheckSettings struct {
	Interval int `json:"interval"` // seconds
	Timeout  int `json:"timeout"`  // seconds
	Retries  int `json:"retries"`
}

// FailoverConfig pairs a primary datacenter with its standby
type FailoverConfig struct {
	ID                     string              `json:"id"`
	Name                   string              `json:"name,omitempty"`
	PrimaryDC              string              `json:"primary_dc"`
	SecondaryDC            string              `json:"secondary_dc"`
	AutoFailover           bool                `json:"auto_failover"`
	FailoverThreshold      int                 `json:"failover_threshold"`       // seconds
	RecoveryTimeObjective  int                 `json:"recovery_time_objective"`  // seconds
	RecoveryPointObjective int                 `json:"recovery_point_objective"` // seconds
	HealthChecks           HealthCheckSettings `json:"health_checks"`
	ActiveSide             FailoverSide        `json:"active_side"`
	LastActionAt           *time.Time          `json:"last_action_at,omitempty"`
	CreatedAt              time.Time           `json:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at"`
}

// ActiveDC returns the datacenter currently carrying traffic for the pair
func (c *FailoverConfig) ActiveDC() string {
	if c.ActiveSide == SideSecondary {
		return c.SecondaryDC
	}
	return c.PrimaryDC
}

// Threshold returns the cooldown window as a duration
func (c *FailoverConfig) Threshold() time.Duration {
	return time.Duration(c.FailoverThreshold) * time.Second
}

// RTO returns the recovery time objective as a duration
func (c *FailoverConfig) RTO() time.Duration {
	return time.Duration(c.RecoveryTimeObjective) * time.Second
}

// InCooldown reports whether an automatic action is still blocked at now
func (c *FailoverConfig) InCooldown(now time.Time) bool {
	if c.LastActionAt == nil {
		return false
	}
	return now.Sub(*c.LastActionAt) < c.Threshold()
}

// Clone returns a copy that shares no pointers with c
func (c FailoverConfig) Clone() FailoverConfig {
	if c.LastActionAt != nil {
		t := *c.LastActionAt
		c.LastActionAt = &t
	}
	return c
}

// FailoverEvent is an entry of the failover history log
type FailoverEvent struct {
	ID        string          `json:"id"`
	ConfigID  string          `json:"config_id"`
	Action    FailoverAction  `json:"action"`
	Trigger   FailoverTrigger `json:"trigger"`
	FromDC    string          `json:"from_dc"`
	ToDC      string          `json:"to_dc"`
	Reason    string          `json:"reason"`
	Success   bool            `json:"success"`
	Error     string          `json:"error,omitempty"`
	Duration  int64           `json:"duration"` // milliseconds
	Timestamp time.Time       `json:"timestamp"`
}

// FailoverResult is returned by automatic and manual failover operations
type FailoverResult struct {
	Success          bool           `json:"success"`
	Action           FailoverAction `json:"action"`
	Reason           string         `json:"reason"`
	PrimaryHealthy   *bool          `json:"primary_healthy,omitempty"`
	SecondaryHealthy *bool          `json:"secondary_healthy,omitempty"`
	Event            *FailoverEvent `json:"event,omitempty"`
}

// FailoverStatistics aggregates failover configs and history
type FailoverStatistics struct {
	TotalConfigs       int     `json:"total_configs"`
	AutoFailoverConfig int     `json:"auto_failover_configs"`
	FailedOverConfigs  int     `json:"failed_over_configs"`
	TotalEvents        int     `json:"total_events"`
	Failovers          int     `json:"failovers"`
	Failbacks          int     `json:"failbacks"`
	Automatic          int     `json:"automatic"`
	Manual             int     `json:"manual"`
	Failed             int     `json:"failed"`
	SuccessRate        float64 `json:"success_rate"`
	AverageDuration    int64   `json:"average_duration"` // milliseconds
}

// ActiveDatacenter represents the currently active datacenter of a failover pair stored in etcd
type ActiveDatacenter struct {
	ConfigID    string       `json:"config_id"`
	Datacenter  string       `json:"datacenter"`
	Side        FailoverSide `json:"side"`
	ActivatedAt time.Time    `json:"activated_at"`
	ActivatedBy string       `json:"activated_by"` // "automatic", "manual"
	Reason      string       `json:"reason,omitempty"`
}
