package model

import "time"

// PlanStatus represents capacity plan states
type PlanStatus string

const (
	PlanDraft       PlanStatus = "draft"
	PlanApproved    PlanStatus = "approved"
	PlanImplemented PlanStatus = "implemented"
	PlanReviewed    PlanStatus = "reviewed"
)

// Valid reports whether s is a known plan status
func (s PlanStatus) Valid() bool {
	switch s {
	case PlanDraft, PlanApproved, PlanImplemented, PlanReviewed:
		return true
	}
	return false
}

// ScalingType describes the direction of a scaling action
type ScalingType string

const (
	ScaleUp   ScalingType = "scale-up"
	ScaleDown ScalingType = "scale-down"
	ScaleOut  ScalingType = "scale-out"
	ScaleIn   ScalingType = "scale-in"
)

// Valid reports whether t is a known scaling type
func (t ScalingType) Valid() bool {
	switch t {
	case ScaleUp, ScaleDown, ScaleOut, ScaleIn:
		return true
	}
	return false
}

// ScalingStatus represents scaling action states
type ScalingStatus string

const (
	ScalingPlanned    ScalingStatus = "planned"
	ScalingInProgress ScalingStatus = "in-progress"
	ScalingCompleted  ScalingStatus = "completed"
	ScalingCancelled  ScalingStatus = "cancelled"
)

// Period is a planning window
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ScalingAction is a planned change of capacity
type ScalingAction struct {
	ID                 string        `json:"id"`
	Type               ScalingType   `json:"type"`
	Resource           Resource      `json:"resource"`
	Amount             float64       `json:"amount"`
	Priority           Severity      `json:"priority"`
	EstimatedCost      float64       `json:"estimated_cost"`
	ImplementationDate time.Time     `json:"implementation_date"`
	Status             ScalingStatus `json:"status"`
}

// CapacityPlan holds projected demand for a datacenter over a period
type CapacityPlan struct {
	ID              string          `json:"id"`
	DatacenterID    string          `json:"dc_id"`
	Period          Period          `json:"period"`
	CurrentCapacity Resources       `json:"current_capacity"`
	ProjectedDemand Resources       `json:"projected_demand"`
	ScalingActions  []ScalingAction `json:"scaling_actions"`
	Status          PlanStatus      `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// EstimatedCost sums the estimated cost of every non-cancelled scaling action
func (p *CapacityPlan) EstimatedCost() float64 {
	var total float64
	for _, a := range p.ScalingActions {
		if a.Status != ScalingCancelled {
			total += a.EstimatedCost
		}
	}
	return total
}

// Clone returns a deep copy of the plan
func (p CapacityPlan) Clone() CapacityPlan {
	p.ScalingActions = append([]ScalingAction(nil), p.ScalingActions...)
	return p
}

// ScalingRecommendation is emitted by capacity analysis and stress tests
type ScalingRecommendation struct {
	Resource      Resource    `json:"resource"`
	Type          ScalingType `json:"type"`
	Amount        float64     `json:"amount"`
	Priority      Severity    `json:"priority"`
	EstimatedCost float64     `json:"estimated_cost"`
	Reason        string      `json:"reason"`
}

// CapacityAnalysis is the result of a capacity gap analysis
type CapacityAnalysis struct {
	DatacenterID       string                  `json:"dc_id"`
	PlanID             string                  `json:"plan_id"`
	CurrentCapacity    Resources               `json:"current_capacity"`
	ProjectedDemand    Resources               `json:"projected_demand"`
	CapacityGap        Resources               `json:"capacity_gap"`
	Recommendations    []ScalingRecommendation `json:"recommendations"`
	TotalEstimatedCost float64                 `json:"total_estimated_cost"`
	AnalyzedAt         time.Time               `json:"analyzed_at"`
}

// StressScenario describes the load applied during a stress test, in percent per resource
type StressScenario struct {
	Name     string    `json:"name"`
	Load     Resources `json:"load"`
	Duration int       `json:"duration"` // seconds
}

// ResourceStressResult is the simulated outcome for one resource
type ResourceStressResult struct {
	Resource   Resource `json:"resource"`
	MaxUsage   float64  `json:"max_usage"`
	Threshold  float64  `json:"threshold"`
	Bottleneck bool     `json:"bottleneck"`
}

// StressTestResult is returned by a stress test
type StressTestResult struct {
	DatacenterID    string                  `json:"dc_id"`
	Scenario        StressScenario          `json:"scenario"`
	Results         []ResourceStressResult  `json:"results"`
	Bottlenecks     []string                `json:"bottlenecks"`
	Recommendations []ScalingRecommendation `json:"recommendations"`
	Success         bool                    `json:"success"`
	ExecutedAt      time.Time               `json:"executed_at"`
}

// CapacityStatistics aggregates capacity plans
type CapacityStatistics struct {
	TotalPlans           int            `json:"total_plans"`
	ByStatus             map[string]int `json:"by_status"`
	TotalScalingActions  int            `json:"total_scaling_actions"`
	ScalingByStatus      map[string]int `json:"scaling_by_status"`
	AverageEstimatedCost float64        `json:"average_estimated_cost"`
}
