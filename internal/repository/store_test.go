package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirychukyurii/dr-orchestrator/internal/model"
)

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[model.Datacenter](nil)

	_, err := s.Get(ctx, "dc-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "dc-2", model.Datacenter{ID: "dc-2", Name: "Moscow"}))
	require.NoError(t, s.Put(ctx, "dc-1", model.Datacenter{ID: "dc-1", Name: "Minsk"}))

	dc, err := s.Get(ctx, "dc-1")
	require.NoError(t, err)
	assert.Equal(t, "Minsk", dc.Name)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "dc-1", list[0].ID, "list is ordered by id")

	require.NoError(t, s.Delete(ctx, "dc-1"))
	assert.ErrorIs(t, s.Delete(ctx, "dc-1"), ErrNotFound)
}

func TestMemoryStore_CloneIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[model.Incident](model.Incident.Clone)

	inc := model.Incident{ID: "inc-1", Actions: []model.IncidentAction{{ID: "a-1", Status: model.ActionPending}}}
	require.NoError(t, s.Put(ctx, inc.ID, inc))

	inc.Actions[0].Status = model.ActionFailed

	got, err := s.Get(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, model.ActionPending, got.Actions[0].Status)

	got.Actions[0].Status = model.ActionCompleted
	again, err := s.Get(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, model.ActionPending, again.Actions[0].Status)
}

func TestMemoryActiveDatacenterRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryActiveDatacenterRepository()

	_, err := repo.ReadActiveDatacenter(ctx, "fo-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.WriteActiveDatacenter(ctx, &model.ActiveDatacenter{ConfigID: "fo-1", Datacenter: "dc-2"}))

	info, err := repo.ReadActiveDatacenter(ctx, "fo-1")
	require.NoError(t, err)
	assert.Equal(t, "dc-2", info.Datacenter)
}

func TestEtcdKeys(t *testing.T) {
	assert.Equal(t, "dr-orchestrator/datacenters/", collectionPrefix("dr-orchestrator", "datacenters"))
	assert.Equal(t, "dr-orchestrator/datacenters/dc-1", entityKey("dr-orchestrator/", "datacenters", "dc-1"))
	assert.Equal(t, "dr-orchestrator/failover/active/fo-1", activeKey("dr-orchestrator", "fo-1"))
}
