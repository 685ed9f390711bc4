package model

import "time"

// RoutingStrategy selects how a target datacenter is chosen
type RoutingStrategy string

const (
	StrategyNearest       RoutingStrategy = "nearest"
	StrategyLowestLatency RoutingStrategy = "lowest-latency"
	StrategyLeastLoaded   RoutingStrategy = "least-loaded"
	StrategyCostOptimized RoutingStrategy = "cost-optimized"
)

// Valid reports whether s is a known strategy
func (s RoutingStrategy) Valid() bool {
	switch s {
	case StrategyNearest, StrategyLowestLatency, StrategyLeastLoaded, StrategyCostOptimized:
		return true
	}
	return false
}

// UserLocation is where client traffic originates
type UserLocation struct {
	Country     string      `json:"country"`
	Region      string      `json:"region"`
	City        string      `json:"city"`
	Coordinates Coordinates `json:"coordinates"`
}

// RouteMetrics are the estimated properties of a route
type RouteMetrics struct {
	Latency   float64 `json:"latency"`   // ms
	Bandwidth float64 `json:"bandwidth"` // Mbps
	Cost      float64 `json:"cost"`
}

// GeographicRoute binds a user location to a target datacenter
type GeographicRoute struct {
	ID              string          `json:"id"`
	UserLocation    UserLocation    `json:"user_location"`
	TargetDC        string          `json:"target_dc"`
	RoutingStrategy RoutingStrategy `json:"routing_strategy"`
	Metrics         RouteMetrics    `json:"metrics"`
	LastUpdated     time.Time       `json:"last_updated"`
}

// RoutingRequest asks the router for a target datacenter
type RoutingRequest struct {
	UserLocation UserLocation    `json:"user_location"`
	Strategy     RoutingStrategy `json:"strategy"`
	Candidates   []string        `json:"candidates,omitempty"`
}

// RoutingDecision is an entry of the routing history log
type RoutingDecision struct {
	RouteID      string          `json:"route_id"`
	UserLocation UserLocation    `json:"user_location"`
	Strategy     RoutingStrategy `json:"strategy"`
	TargetDC     string          `json:"target_dc"`
	Distance     float64         `json:"distance"` // km
	Metrics      RouteMetrics    `json:"metrics"`
	Candidates   int             `json:"candidates"`
	ProcessingMs float64         `json:"processing_ms"`
	Timestamp    time.Time       `json:"timestamp"`
}

// RoutingResult is returned by the router
type RoutingResult struct {
	TargetDC string          `json:"target_dc"`
	Distance float64         `json:"distance"`
	Route    GeographicRoute `json:"route"`
}

// RoutingStatistics aggregates routes and routing history
type RoutingStatistics struct {
	TotalRoutes       int            `json:"total_routes"`
	ByStrategy        map[string]int `json:"by_strategy"`
	ByTarget          map[string]int `json:"by_target"`
	AverageMetrics    RouteMetrics   `json:"average_metrics"`
	HistorySize       int            `json:"history_size"`
	AverageProcessing float64        `json:"average_processing_ms"`
}
