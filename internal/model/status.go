package model

import "time"

// ServiceStatus represents the current status of the dr-orchestrator service
type ServiceStatus struct {
	StorageBackend     string    `json:"storage_backend"`     // memory | etcd
	HealthProbe        string    `json:"health_probe"`        // status | nomad
	StartedAt          time.Time `json:"started_at"`          // When this instance started
	Uptime             int64     `json:"uptime"`              // Uptime in milliseconds
	Datacenters        int       `json:"datacenters"`         // Number of registered datacenters
	ActiveDatacenters  int       `json:"active_datacenters"`  // Datacenters with status active
	FailoverConfigs    int       `json:"failover_configs"`    // Number of failover pairs
	FailedOverConfigs  int       `json:"failed_over_configs"` // Pairs currently served by the secondary
	NetworkLinks       int       `json:"network_links"`       // Number of monitored links
	LinksDown          int       `json:"links_down"`          // Links with status down
	ActiveIncidents    int       `json:"active_incidents"`    // Incidents not yet resolved
	SchedulerJobs      []string  `json:"scheduler_jobs"`      // Names of running periodic jobs
	FailoverInterval   int64     `json:"failover_interval"`   // Auto-failover evaluation interval in milliseconds
	LinkProbeInterval  int64     `json:"link_probe_interval"` // Link sweep interval in milliseconds
	IncidentSweepEvery int64     `json:"incident_sweep"`      // Incident recovery sweep interval in milliseconds
}
