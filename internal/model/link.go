package model

import "time"

// LinkType classifies an inter-datacenter link
type LinkType string

const (
	LinkTypePrimary LinkType = "primary"
	LinkTypeBackup  LinkType = "backup"
	LinkTypePeering LinkType = "peering"
)

// Valid reports whether t is a known link type
func (t LinkType) Valid() bool {
	switch t {
	case LinkTypePrimary, LinkTypeBackup, LinkTypePeering:
		return true
	}
	return false
}

// LinkStatus represents possible link states
type LinkStatus string

const (
	LinkStatusActive   LinkStatus = "active"
	LinkStatusDegraded LinkStatus = "degraded"
	LinkStatusDown     LinkStatus = "down"
)

// Valid reports whether s is a known link status
func (s LinkStatus) Valid() bool {
	switch s {
	case LinkStatusActive, LinkStatusDegraded, LinkStatusDown:
		return true
	}
	return false
}

// NetworkLink is a directed link from one datacenter to another
type NetworkLink struct {
	ID        string     `json:"id"`
	SourceDC  string     `json:"source_dc"`
	TargetDC  string     `json:"target_dc"`
	Type      LinkType   `json:"type"`
	Bandwidth float64    `json:"bandwidth"` // Mbps
	Latency   float64    `json:"latency"`   // ms
	Status    LinkStatus `json:"status"`
	Provider  string     `json:"provider"`
	LastCheck time.Time  `json:"last_check"`
}

// LinkProbeResult is what a link probe observed
type LinkProbeResult struct {
	Status    LinkStatus `json:"status"`
	Latency   float64    `json:"latency"` // -1 when down
	Bandwidth float64    `json:"bandwidth"`
}

// LinkHealthRecord is an entry of the network history log
type LinkHealthRecord struct {
	LinkID    string     `json:"link_id"`
	Status    LinkStatus `json:"status"`
	Latency   float64    `json:"latency"`
	Bandwidth float64    `json:"bandwidth"`
	Error     string     `json:"error,omitempty"`
	CheckedAt time.Time  `json:"checked_at"`
}

// BandwidthClass classifies measured against declared bandwidth
type BandwidthClass string

const (
	BandwidthOptimal  BandwidthClass = "optimal"
	BandwidthGood     BandwidthClass = "good"
	BandwidthPoor     BandwidthClass = "poor"
	BandwidthCritical BandwidthClass = "critical"
)

// BandwidthTestResult is returned by a link bandwidth test
type BandwidthTestResult struct {
	LinkID         string         `json:"link_id"`
	Declared       float64        `json:"declared"`
	Measured       float64        `json:"measured"`
	Efficiency     float64        `json:"efficiency"` // percent
	Classification BandwidthClass `json:"classification"`
	TestedAt       time.Time      `json:"tested_at"`
}

// AlternativeRoute is a path of links between two datacenters
type AlternativeRoute struct {
	Datacenters  []string `json:"datacenters"`
	Links        []string `json:"links"`
	Hops         int      `json:"hops"`
	TotalLatency float64  `json:"total_latency"`
	MinBandwidth float64  `json:"min_bandwidth"`
	Direct       bool     `json:"direct"`
}

// LinkStatistics aggregates links
type LinkStatistics struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	ByType         map[string]int `json:"by_type"`
	ByProvider     map[string]int `json:"by_provider"`
	AverageLatency float64        `json:"average_latency"`
	TotalBandwidth float64        `json:"total_bandwidth"`
	HistorySize    int            `json:"history_size"`
}

// LinkSweepResult summarizes a probe of every link
type LinkSweepResult struct {
	Checked  int      `json:"checked"`
	Active   int      `json:"active"`
	Degraded int      `json:"degraded"`
	Down     int      `json:"down"`
	Errors   []string `json:"errors"`
}
