package model

import "time"

// DatacenterStatus represents possible datacenter states
type DatacenterStatus string

const (
	DatacenterStatusActive      DatacenterStatus = "active"
	DatacenterStatusMaintenance DatacenterStatus = "maintenance"
	DatacenterStatusOffline     DatacenterStatus = "offline"
)

// Valid reports whether the status is one of the known datacenter states
func (s DatacenterStatus) Valid() bool {
	switch s {
	case DatacenterStatusActive, DatacenterStatusMaintenance, DatacenterStatusOffline:
		return true
	}
	return false
}

// Coordinates is a point on the globe in decimal degrees
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinates are within the WGS84 ranges
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Datacenter represents a physical or virtual compute site
type Datacenter struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Country     string           `json:"country"`
	Region      string           `json:"region"`
	City        string           `json:"city"`
	Coordinates Coordinates      `json:"coordinates"`
	Status      DatacenterStatus `json:"status"`
	Capacity    Resources        `json:"capacity"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// DatacenterHealth is a point-in-time health snapshot of a datacenter
type DatacenterHealth struct {
	DatacenterID string           `json:"datacenter_id"`
	Status       DatacenterStatus `json:"status"`
	Healthy      bool             `json:"healthy"`
	Uptime       float64          `json:"uptime"` // percentage of healthy probes in the retained window
	LastCheck    time.Time        `json:"last_check"`
	Message      string           `json:"message,omitempty"`
}

// DatacenterStatusOverview summarizes datacenter states
type DatacenterStatusOverview struct {
	Total       int                       `json:"total"`
	Active      int                       `json:"active"`
	Maintenance int                       `json:"maintenance"`
	Offline     int                       `json:"offline"`
	ByRegion    map[string]map[string]int `json:"by_region"` // region -> status -> count
}

// DatacenterStatistics aggregates datacenter attributes
type DatacenterStatistics struct {
	Total           int            `json:"total"`
	ByRegion        map[string]int `json:"by_region"`
	ByCountry       map[string]int `json:"by_country"`
	TotalCapacity   Resources      `json:"total_capacity"`
	AverageCapacity Resources      `json:"average_capacity"`
}
