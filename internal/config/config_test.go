package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, ProbeStatus, cfg.HealthCheck.Probe)
	assert.Equal(t, 1000, cfg.Routing.HistorySize)
	assert.True(t, cfg.Routing.ExcludeOffline)
	assert.Equal(t, 3, cfg.Network.MaxRouteDepth)
	assert.Equal(t, 30*time.Second, cfg.Failover.Interval)
	assert.InDelta(t, 0.2, cfg.Capacity.StressJitter, 1e-9)
}

func TestLoad_Full(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":8080"
  base_path: "/dr"
log:
  level: debug
storage:
  backend: etcd
  etcd:
    endpoints: ["127.0.0.1:2379"]
    prefix: "dr"
health_check:
  probe: nomad
  clusters:
    - datacenter: dc-minsk
      region: eu
      address: "http://10.0.0.1:4646"
      timeout: 3s
routing:
  latency_per_km: 0.02
  pricing:
    BY:
      multiplier: 0.8
      base_rate: 0.05
      cost_per_km: 0.0001
datacenters:
  - id: dc-minsk
    name: Minsk
    country: BY
    region: eu-east
    city: Minsk
    latitude: 53.9
    longitude: 27.56
    status: active
    capacity:
      cpu: 100
      memory: 512
failover_configs:
  - id: fo-1
    primary_dc: dc-minsk
    secondary_dc: dc-moscow
    auto_failover: true
    failover_threshold: 60
    recovery_time_objective: 300
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dr", cfg.Server.BasePath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"127.0.0.1:2379"}, cfg.Storage.Etcd.Endpoints)
	assert.Equal(t, 5*time.Second, cfg.Storage.Etcd.DialTimeout)
	require.Len(t, cfg.HealthCheck.Clusters, 1)
	assert.Equal(t, 3*time.Second, cfg.HealthCheck.Clusters[0].Timeout)
	assert.InDelta(t, 0.8, cfg.Routing.Pricing["BY"].Multiplier, 1e-9)
	require.Len(t, cfg.Datacenters, 1)
	assert.InDelta(t, 512.0, cfg.Datacenters[0].Capacity.Memory, 1e-9)
	require.Len(t, cfg.FailoverConfigs, 1)
	assert.True(t, cfg.FailoverConfigs[0].AutoFailover)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, false},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, false},
		{"etcd without endpoints", func(c *Config) { c.Storage.Backend = StorageEtcd }, false},
		{"nomad without clusters", func(c *Config) { c.HealthCheck.Probe = ProbeNomad }, false},
		{"nomad cluster without address", func(c *Config) {
			c.HealthCheck.Probe = ProbeNomad
			c.HealthCheck.Clusters = []NomadClusterConfig{{Datacenter: "dc-1"}}
		}, false},
		{"zero failover interval", func(c *Config) { c.Failover.Interval = 0 }, false},
		{"zero failover interval disabled", func(c *Config) {
			c.Failover.Enabled = false
			c.Failover.Interval = 0
		}, true},
		{"negative jitter", func(c *Config) { c.Capacity.StressJitter = -1 }, false},
		{"duplicate datacenter", func(c *Config) {
			c.Datacenters = []DatacenterConfig{{ID: "dc-1"}, {ID: "dc-1"}}
		}, false},
		{"same primary and secondary", func(c *Config) {
			c.FailoverConfigs = []FailoverPairConfig{{PrimaryDC: "dc-1", SecondaryDC: "dc-1"}}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
