package repository

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	nomad "github.com/hashicorp/nomad/api"

	"github.com/kirychukyurii/dr-orchestrator/internal/config"
	"github.com/kirychukyurii/dr-orchestrator/internal/model"
	"github.com/kirychukyurii/dr-orchestrator/internal/util"
)

// NomadRepository defines the Nomad API operations used to probe datacenter health
type NomadRepository interface {
	ListNodes(ctx context.Context, datacenter string) ([]model.Node, error)
	CheckLeader(ctx context.Context, datacenter string) (string, error)
	ClusterHealth(ctx context.Context, datacenter string) (*model.ClusterHealth, error)
	HasCluster(datacenter string) bool
	GetClusterNames() []string
}

// clusterMetadata stores metadata about a cluster
type clusterMetadata struct {
	datacenter string
	region     string
	address    string
	client     *nomad.Client
}

// nomadRepository implements NomadRepository interface
type nomadRepository struct {
	clusters map[string]*clusterMetadata
	logger   *slog.Logger
}

// NewNomadRepository creates a Nomad client for every configured datacenter cluster.
// Clusters are not contacted here: an unreachable cluster is a datacenter failure the
// probe has to report, not a startup error.
func NewNomadRepository(clusters []config.NomadClusterConfig, logger *slog.Logger) (NomadRepository, error) {
	metas := make(map[string]*clusterMetadata, len(clusters))

	for i, cluster := range clusters {
		if _, exists := metas[cluster.Datacenter]; exists {
			return nil, fmt.Errorf("duplicate nomad cluster for datacenter %s", cluster.Datacenter)
		}

		client, err := createNomadClient(cluster)
		if err != nil {
			return nil, fmt.Errorf("failed to create client for cluster at index %d: %w", i, err)
		}

		metas[cluster.Datacenter] = &clusterMetadata{
			datacenter: cluster.Datacenter,
			region:     cluster.Region,
			address:    cluster.Address,
			client:     client,
		}

		logger.Info("initialized nomad cluster",
			slog.String("datacenter", cluster.Datacenter),
			slog.String("region", cluster.Region),
			slog.String("address", cluster.Address),
		)
	}

	return &nomadRepository{
		clusters: metas,
		logger:   logger,
	}, nil
}

// createNomadClient creates a Nomad API client for a cluster
func createNomadClient(cluster config.NomadClusterConfig) (*nomad.Client, error) {
	nomadConfig := nomad.DefaultConfig()
	nomadConfig.Address = cluster.Address

	// Set region if specified (used for API calls)
	if cluster.Region != "" {
		nomadConfig.Region = cluster.Region
	}

	timeout := cluster.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if cluster.TLS != nil {
		tlsConfig, err := util.LoadTLSConfig(cluster.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		httpClient.Transport = &http.Transport{TLSClientConfig: tlsConfig}
	}
	nomadConfig.HttpClient = httpClient

	client, err := nomad.NewClient(nomadConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Nomad client: %w", err)
	}

	return client, nil
}

// ListNodes returns all nodes in the cluster of the datacenter
func (r *nomadRepository) ListNodes(ctx context.Context, datacenter string) ([]model.Node, error) {
	meta, ok := r.clusters[datacenter]
	if !ok {
		return nil, fmt.Errorf("cluster for datacenter %s not found", datacenter)
	}

	q := (&nomad.QueryOptions{}).WithContext(ctx)
	nodes, _, err := meta.client.Nodes().List(q)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	result := make([]model.Node, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, model.Node{
			ID:                    n.ID,
			Name:                  n.Name,
			Drain:                 n.Drain,
			SchedulingEligibility: n.SchedulingEligibility,
			Status:                n.Status,
		})
	}

	r.logger.Debug("listed nodes",
		slog.String("datacenter", datacenter),
		slog.String("region", meta.region),
		slog.Int("count", len(result)),
	)

	return result, nil
}

// CheckLeader returns the address of the elected leader, empty when there is none
func (r *nomadRepository) CheckLeader(_ context.Context, datacenter string) (string, error) {
	meta, ok := r.clusters[datacenter]
	if !ok {
		return "", fmt.Errorf("cluster for datacenter %s not found", datacenter)
	}

	leader, err := meta.client.Status().Leader()
	if err != nil {
		return "", fmt.Errorf("failed to get leader: %w", err)
	}

	r.logger.Debug("checked cluster leader",
		slog.String("datacenter", datacenter),
		slog.String("region", meta.region),
		slog.String("leader", leader),
	)

	return leader, nil
}

// ClusterHealth combines the leader check with node readiness
func (r *nomadRepository) ClusterHealth(ctx context.Context, datacenter string) (*model.ClusterHealth, error) {
	leader, err := r.CheckLeader(ctx, datacenter)
	if err != nil {
		return nil, err
	}

	health := &model.ClusterHealth{Datacenter: datacenter, Leader: leader}
	if leader == "" {
		return health, nil
	}

	nodes, err := r.ListNodes(ctx, datacenter)
	if err != nil {
		return nil, err
	}

	health.NodesTotal = len(nodes)
	for i := range nodes {
		if nodes[i].IsReady() {
			health.NodesReady++
		}
	}

	return health, nil
}

// HasCluster reports whether a Nomad cluster is configured for the datacenter
func (r *nomadRepository) HasCluster(datacenter string) bool {
	_, ok := r.clusters[datacenter]
	return ok
}

// GetClusterNames returns the datacenters with a configured cluster (sorted alphabetically)
func (r *nomadRepository) GetClusterNames() []string {
	names := make([]string, 0, len(r.clusters))
	for name := range r.clusters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
