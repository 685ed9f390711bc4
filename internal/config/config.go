package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageEtcd   = "etcd"
)

// Health probes
const (
	ProbeStatus = "status"
	ProbeNomad  = "nomad"
)

// Config represents the application configuration
type Config struct {
	Server          ServerConfig         `koanf:"server"`
	Log             LogConfig            `koanf:"log"`
	Cache           CacheConfig          `koanf:"cache"`
	Storage         StorageConfig        `koanf:"storage"`
	HealthCheck     HealthCheckConfig    `koanf:"health_check"`
	Failover        FailoverConfig       `koanf:"failover"`
	Network         NetworkConfig        `koanf:"network"`
	Routing         RoutingConfig        `koanf:"routing"`
	Incident        IncidentConfig       `koanf:"incident"`
	Capacity        CapacityConfig       `koanf:"capacity"`
	Catalog         CatalogConfig        `koanf:"catalog"`
	Datacenters     []DatacenterConfig   `koanf:"datacenters"`
	Links           []LinkConfig         `koanf:"links"`
	FailoverConfigs []FailoverPairConfig `koanf:"failover_configs"`
	Offerings       []OfferingConfig     `koanf:"offerings"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	BasePath        string        `koanf:"base_path"` // Optional base path for reverse proxy (e.g., "/dr")
}

// LogConfig represents logger configuration
type LogConfig struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // json | text
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

// StorageConfig selects where entities are persisted
type StorageConfig struct {
	Backend string     `koanf:"backend"` // memory | etcd
	Etcd    EtcdConfig `koanf:"etcd"`
}

// EtcdConfig represents etcd connection configuration
type EtcdConfig struct {
	Endpoints   []string      `koanf:"endpoints"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
	Username    string        `koanf:"username"`
	Password    string        `koanf:"password"`
	Prefix      string        `koanf:"prefix"`
	TLS         *TLSConfig    `koanf:"tls"`
}

// HealthCheckConfig represents datacenter health probing configuration
type HealthCheckConfig struct {
	Probe          string               `koanf:"probe"` // status | nomad
	HistorySize    int                  `koanf:"history_size"`
	Clusters       []NomadClusterConfig `koanf:"clusters"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker"`
}

// NomadClusterConfig binds a datacenter to the Nomad cluster that runs it
type NomadClusterConfig struct {
	Datacenter string        `koanf:"datacenter"`
	Region     string        `koanf:"region"`
	Address    string        `koanf:"address"`
	Timeout    time.Duration `koanf:"timeout"`
	TLS        *TLSConfig    `koanf:"tls"`
}

// CircuitBreakerConfig tunes the breaker wrapped around each cluster probe
type CircuitBreakerConfig struct {
	MaxRequests      uint32        `koanf:"max_requests"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
}

// FailoverConfig represents the periodic auto-failover evaluation
type FailoverConfig struct {
	Enabled     bool          `koanf:"enabled"`
	Interval    time.Duration `koanf:"interval"`
	RetryDelay  time.Duration `koanf:"retry_delay"` // pause between health check retries
	HistorySize int           `koanf:"history_size"`
}

// NetworkConfig represents network link monitoring configuration
type NetworkConfig struct {
	Enabled          bool          `koanf:"enabled"`
	ProbeInterval    time.Duration `koanf:"probe_interval"`
	ProbeConcurrency int           `koanf:"probe_concurrency"`
	ProbesPerSecond  float64       `koanf:"probes_per_second"`
	HistorySize      int           `koanf:"history_size"`
	MaxRouteDepth    int           `koanf:"max_route_depth"`
}

// RoutingConfig represents geographic routing configuration
type RoutingConfig struct {
	HistorySize    int                      `koanf:"history_size"`
	LatencyPerKm   float64                  `koanf:"latency_per_km"`
	ExcludeOffline bool                     `koanf:"exclude_offline"`
	DefaultPricing PricingConfig            `koanf:"default_pricing"`
	Pricing        map[string]PricingConfig `koanf:"pricing"` // country -> pricing
}

// PricingConfig is the traffic price model of a country
type PricingConfig struct {
	Multiplier float64 `koanf:"multiplier"`
	BaseRate   float64 `koanf:"base_rate"`
	CostPerKm  float64 `koanf:"cost_per_km"`
}

// IncidentConfig represents incident coordination configuration
type IncidentConfig struct {
	Enabled       bool          `koanf:"enabled"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	ActionTimeout time.Duration `koanf:"action_timeout"`
	HistorySize   int           `koanf:"history_size"`
}

// CapacityConfig represents capacity planning configuration
type CapacityConfig struct {
	StressJitter     float64                       `koanf:"stress_jitter"`
	UnitRates        map[string]float64            `koanf:"unit_rates"`
	GapThresholds    map[string]GapThresholdConfig `koanf:"gap_thresholds"`
	StressThresholds map[string]float64            `koanf:"stress_thresholds"`
}

// GapThresholdConfig sets the strict gap limits above which a recommendation escalates
type GapThresholdConfig struct {
	High     float64 `koanf:"high"`
	Critical float64 `koanf:"critical"`
}

// CatalogConfig represents the service catalog configuration
type CatalogConfig struct {
	DefaultOffering string `koanf:"default_offering"`
}

// DatacenterConfig is a datacenter registered at startup
type DatacenterConfig struct {
	ID        string          `koanf:"id"`
	Name      string          `koanf:"name"`
	Country   string          `koanf:"country"`
	Region    string          `koanf:"region"`
	City      string          `koanf:"city"`
	Latitude  float64         `koanf:"latitude"`
	Longitude float64         `koanf:"longitude"`
	Status    string          `koanf:"status"`
	Capacity  ResourcesConfig `koanf:"capacity"`
}

// ResourcesConfig holds one value per capacity dimension
type ResourcesConfig struct {
	CPU     float64 `koanf:"cpu"`
	Memory  float64 `koanf:"memory"`
	Storage float64 `koanf:"storage"`
	Network float64 `koanf:"network"`
}

// LinkConfig is a network link registered at startup
type LinkConfig struct {
	ID        string  `koanf:"id"`
	SourceDC  string  `koanf:"source_dc"`
	TargetDC  string  `koanf:"target_dc"`
	Type      string  `koanf:"type"`
	Bandwidth float64 `koanf:"bandwidth"`
	Latency   float64 `koanf:"latency"`
	Provider  string  `koanf:"provider"`
}

// FailoverPairConfig is a failover configuration registered at startup
type FailoverPairConfig struct {
	ID                     string `koanf:"id"`
	Name                   string `koanf:"name"`
	PrimaryDC              string `koanf:"primary_dc"`
	SecondaryDC            string `koanf:"secondary_dc"`
	AutoFailover           bool   `koanf:"auto_failover"`
	FailoverThreshold      int    `koanf:"failover_threshold"`
	RecoveryTimeObjective  int    `koanf:"recovery_time_objective"`
	RecoveryPointObjective int    `koanf:"recovery_point_objective"`
	HealthCheckInterval    int    `koanf:"health_check_interval"`
	HealthCheckTimeout     int    `koanf:"health_check_timeout"`
	HealthCheckRetries     int    `koanf:"health_check_retries"`
}

// OfferingConfig is a catalog offering registered at startup
type OfferingConfig struct {
	ID          string          `koanf:"id"`
	Name        string          `koanf:"name"`
	Tier        string          `koanf:"tier"`
	Description string          `koanf:"description"`
	UnitPrices  ResourcesConfig `koanf:"unit_prices"`
	SLA         float64         `koanf:"sla"`
	RTO         int             `koanf:"rto"`
	RPO         int             `koanf:"rpo"`
}

// TLSConfig represents TLS configuration for etcd and Nomad clients
type TLSConfig struct {
	CA                 string `koanf:"ca"`
	Cert               string `koanf:"cert"`
	Key                string `koanf:"key"`
	ServerName         string `koanf:"server_name"`
	InsecureSkipVerify bool   `koanf:"insecure_skip_verify"`
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Load YAML config
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.applyDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when a key is absent from the file
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log:   LogConfig{Level: "info", Format: "json"},
		Cache: CacheConfig{TTL: 10 * time.Second},
		Storage: StorageConfig{
			Backend: StorageMemory,
			Etcd: EtcdConfig{
				DialTimeout: 5 * time.Second,
				Prefix:      "dr-orchestrator",
			},
		},
		HealthCheck: HealthCheckConfig{
			Probe:       ProbeStatus,
			HistorySize: 100,
			CircuitBreaker: CircuitBreakerConfig{
				MaxRequests:      1,
				Interval:         time.Minute,
				Timeout:          30 * time.Second,
				FailureThreshold: 3,
			},
		},
		Failover: FailoverConfig{
			Enabled:     true,
			Interval:    30 * time.Second,
			RetryDelay:  time.Second,
			HistorySize: 1000,
		},
		Network: NetworkConfig{
			Enabled:          true,
			ProbeInterval:    time.Minute,
			ProbeConcurrency: 8,
			ProbesPerSecond:  20,
			HistorySize:      1000,
			MaxRouteDepth:    3,
		},
		Routing: RoutingConfig{
			HistorySize:    1000,
			LatencyPerKm:   0.01,
			ExcludeOffline: true,
			DefaultPricing: PricingConfig{Multiplier: 1.0, BaseRate: 0.10, CostPerKm: 0.0002},
		},
		Incident: IncidentConfig{
			Enabled:       true,
			SweepInterval: time.Minute,
			ActionTimeout: 2 * time.Minute,
			HistorySize:   1000,
		},
		Capacity: CapacityConfig{
			StressJitter: 0.2,
		},
	}
}

// applyDefaults fills values that a file may have zeroed out explicitly
func (c *Config) applyDefaults() {
	d := Default()
	if c.HealthCheck.Probe == "" {
		c.HealthCheck.Probe = d.HealthCheck.Probe
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Storage.Etcd.Prefix == "" {
		c.Storage.Etcd.Prefix = d.Storage.Etcd.Prefix
	}
	if c.Routing.DefaultPricing.Multiplier == 0 {
		c.Routing.DefaultPricing = d.Routing.DefaultPricing
	}
	if c.Network.MaxRouteDepth == 0 {
		c.Network.MaxRouteDepth = d.Network.MaxRouteDepth
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	switch c.Storage.Backend {
	case StorageMemory:
	case StorageEtcd:
		if len(c.Storage.Etcd.Endpoints) == 0 {
			return fmt.Errorf("storage.etcd.endpoints is required for the etcd backend")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q", StorageMemory, StorageEtcd)
	}

	switch c.HealthCheck.Probe {
	case ProbeStatus:
	case ProbeNomad:
		if len(c.HealthCheck.Clusters) == 0 {
			return fmt.Errorf("health_check.clusters is required for the nomad probe")
		}
		for i, cluster := range c.HealthCheck.Clusters {
			if cluster.Datacenter == "" {
				return fmt.Errorf("health_check.clusters[%d].datacenter is required", i)
			}
			if cluster.Address == "" {
				return fmt.Errorf("health_check.clusters[%d].address is required", i)
			}
		}
	default:
		return fmt.Errorf("health_check.probe must be %q or %q", ProbeStatus, ProbeNomad)
	}

	if c.Failover.Enabled && c.Failover.Interval <= 0 {
		return fmt.Errorf("failover.interval must be positive when failover evaluation is enabled")
	}
	if c.Network.Enabled && c.Network.ProbeInterval <= 0 {
		return fmt.Errorf("network.probe_interval must be positive when link monitoring is enabled")
	}
	if c.Incident.Enabled && c.Incident.SweepInterval <= 0 {
		return fmt.Errorf("incident.sweep_interval must be positive when the incident sweep is enabled")
	}
	if c.Network.MaxRouteDepth < 1 {
		return fmt.Errorf("network.max_route_depth must be at least 1")
	}
	if c.Capacity.StressJitter < 0 {
		return fmt.Errorf("capacity.stress_jitter must not be negative")
	}

	ids := make(map[string]struct{}, len(c.Datacenters))
	for i, dc := range c.Datacenters {
		if dc.ID == "" {
			return fmt.Errorf("datacenters[%d].id is required", i)
		}
		if _, dup := ids[dc.ID]; dup {
			return fmt.Errorf("datacenters[%d].id %q is duplicated", i, dc.ID)
		}
		ids[dc.ID] = struct{}{}
	}

	for i, fc := range c.FailoverConfigs {
		if fc.PrimaryDC == fc.SecondaryDC {
			return fmt.Errorf("failover_configs[%d]: primary_dc and secondary_dc must differ", i)
		}
	}

	return nil
}
