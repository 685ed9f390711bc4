package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/kirychukyurii/dr-orchestrator/internal/config"
	"github.com/kirychukyurii/dr-orchestrator/internal/model"
	"github.com/kirychukyurii/dr-orchestrator/internal/util"
)

// ActiveDatacenterRepository stores which datacenter serves each failover pair
type ActiveDatacenterRepository interface {
	// WriteActiveDatacenter writes the active datacenter information of a failover pair
	WriteActiveDatacenter(ctx context.Context, info *model.ActiveDatacenter) error

	// ReadActiveDatacenter reads the active datacenter information of a failover pair
	ReadActiveDatacenter(ctx context.Context, configID string) (*model.ActiveDatacenter, error)
}

// NewEtcdClient creates an etcd client and verifies the cluster is reachable
func NewEtcdClient(cfg config.EtcdConfig, logger *slog.Logger) (*clientv3.Client, error) {
	etcdCfg := clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	}

	// Configure TLS if provided
	if cfg.TLS != nil {
		tlsConfig, err := util.LoadTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		etcdCfg.TLS = tlsConfig
	}

	client, err := clientv3.New(etcdCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Status(ctx, cfg.Endpoints[0]); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	logger.Info("connected to etcd cluster",
		slog.Any("endpoints", cfg.Endpoints),
		slog.String("prefix", cfg.Prefix),
	)

	return client, nil
}

// etcdStore implements Store on top of etcd, one JSON document per key
type etcdStore[T any] struct {
	client     *clientv3.Client
	prefix     string
	collection string
	logger     *slog.Logger
}

// NewEtcdStore creates a store keeping entities under <prefix>/<collection>/<id>
func NewEtcdStore[T any](client *clientv3.Client, prefix, collection string, logger *slog.Logger) Store[T] {
	return &etcdStore[T]{
		client:     client,
		prefix:     prefix,
		collection: collection,
		logger:     logger,
	}
}

// Get reads the entity stored under id
func (s *etcdStore[T]) Get(ctx context.Context, id string) (T, error) {
	var value T

	resp, err := s.client.Get(ctx, entityKey(s.prefix, s.collection, id))
	if err != nil {
		return value, fmt.Errorf("failed to read %s/%s from etcd: %w", s.collection, id, err)
	}
	if len(resp.Kvs) == 0 {
		return value, ErrNotFound
	}

	if err := json.Unmarshal(resp.Kvs[0].Value, &value); err != nil {
		return value, fmt.Errorf("failed to unmarshal %s/%s: %w", s.collection, id, err)
	}
	return value, nil
}

// List reads every entity of the collection ordered by key
func (s *etcdStore[T]) List(ctx context.Context) ([]T, error) {
	resp, err := s.client.Get(ctx, collectionPrefix(s.prefix, s.collection),
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s from etcd: %w", s.collection, err)
	}

	out := make([]T, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var value T
		if err := json.Unmarshal(kv.Value, &value); err != nil {
			s.logger.Warn("skipping undecodable entry",
				slog.String("key", string(kv.Key)),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, value)
	}
	return out, nil
}

// Put writes the entity stored under id
func (s *etcdStore[T]) Put(ctx context.Context, id string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", s.collection, id, err)
	}

	if _, err := s.client.Put(ctx, entityKey(s.prefix, s.collection, id), string(data)); err != nil {
		return fmt.Errorf("failed to write %s/%s to etcd: %w", s.collection, id, err)
	}

	s.logger.Debug("wrote entity to etcd",
		slog.String("collection", s.collection),
		slog.String("id", id),
	)
	return nil
}

// Delete removes the entity stored under id
func (s *etcdStore[T]) Delete(ctx context.Context, id string) error {
	resp, err := s.client.Delete(ctx, entityKey(s.prefix, s.collection, id))
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s from etcd: %w", s.collection, id, err)
	}
	if resp.Deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// etcdActiveRepository implements ActiveDatacenterRepository on etcd
type etcdActiveRepository struct {
	client *clientv3.Client
	prefix string
	logger *slog.Logger
}

// NewEtcdActiveDatacenterRepository creates an etcd-backed active datacenter repository
func NewEtcdActiveDatacenterRepository(client *clientv3.Client, prefix string, logger *slog.Logger) ActiveDatacenterRepository {
	return &etcdActiveRepository{client: client, prefix: prefix, logger: logger}
}

// WriteActiveDatacenter writes the active datacenter information to etcd
func (e *etcdActiveRepository) WriteActiveDatacenter(ctx context.Context, info *model.ActiveDatacenter) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal active datacenter info: %w", err)
	}

	if _, err := e.client.Put(ctx, activeKey(e.prefix, info.ConfigID), string(data)); err != nil {
		return fmt.Errorf("failed to write active datacenter to etcd: %w", err)
	}

	e.logger.Debug("wrote active datacenter to etcd",
		slog.String("config_id", info.ConfigID),
		slog.String("datacenter", info.Datacenter),
	)
	return nil
}

// ReadActiveDatacenter reads the active datacenter information from etcd
func (e *etcdActiveRepository) ReadActiveDatacenter(ctx context.Context, configID string) (*model.ActiveDatacenter, error) {
	resp, err := e.client.Get(ctx, activeKey(e.prefix, configID))
	if err != nil {
		return nil, fmt.Errorf("failed to read active datacenter from etcd: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, ErrNotFound
	}

	var info model.ActiveDatacenter
	if err := json.Unmarshal(resp.Kvs[0].Value, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal active datacenter info: %w", err)
	}
	return &info, nil
}

// memoryActiveRepository keeps active datacenter records in process memory
type memoryActiveRepository struct {
	mu      sync.RWMutex
	records map[string]model.ActiveDatacenter
}

// NewMemoryActiveDatacenterRepository creates an in-memory active datacenter repository
func NewMemoryActiveDatacenterRepository() ActiveDatacenterRepository {
	return &memoryActiveRepository{records: make(map[string]model.ActiveDatacenter)}
}

// WriteActiveDatacenter stores the record for the failover pair
func (m *memoryActiveRepository) WriteActiveDatacenter(_ context.Context, info *model.ActiveDatacenter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[info.ConfigID] = *info
	return nil
}

// ReadActiveDatacenter returns the record for the failover pair
func (m *memoryActiveRepository) ReadActiveDatacenter(_ context.Context, configID string) (*model.ActiveDatacenter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.records[configID]
	if !ok {
		return nil, ErrNotFound
	}
	return &info, nil
}

func collectionPrefix(prefix, collection string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + collection + "/"
}

func entityKey(prefix, collection, id string) string {
	return collectionPrefix(prefix, collection) + id
}

func activeKey(prefix, configID string) string {
	return entityKey(prefix, "failover/active", configID)
}
