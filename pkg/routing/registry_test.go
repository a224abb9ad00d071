package routing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/dialtone/pkg/adapters/memory"
	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/aretw0/dialtone/pkg/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterResolve(t *testing.T) {
	ctx := context.Background()
	reg := routing.NewRegistry(memory.NewRouteStore())

	_, err := reg.Register(ctx, "+1 (555) 010-0000", "support", "Support Line", domain.VoiceSettings{Voice: "alice"})
	require.NoError(t, err)

	entry, err := reg.Resolve(ctx, "+15550100000")
	require.NoError(t, err)
	assert.Equal(t, "support", entry.FlowID)
	assert.Equal(t, "alice", entry.Voice.Voice)

	_, err = reg.Resolve(ctx, "+15559999999")
	assert.ErrorIs(t, err, domain.ErrRouteNotFound)

	require.NoError(t, reg.Unregister(ctx, "+15550100000"))
	_, err = reg.Resolve(ctx, "+15550100000")
	assert.ErrorIs(t, err, domain.ErrRouteNotFound)
}

func TestRegistry_RejectsIncompleteRoutes(t *testing.T) {
	reg := routing.NewRegistry(memory.NewRouteStore())
	_, err := reg.Register(context.Background(), "", "support", "", domain.VoiceSettings{})
	assert.Error(t, err)
	_, err = reg.Register(context.Background(), "+1555", "", "", domain.VoiceSettings{})
	assert.Error(t, err)
}

func TestRegistry_SharedStoreVisibility(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRouteStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	a := routing.NewRegistry(store, routing.WithClock(clock))
	b := routing.NewRegistry(store, routing.WithClock(clock), routing.WithCacheTTL(time.Minute))

	_, err := a.Register(ctx, "+1555", "v1", "", domain.VoiceSettings{})
	require.NoError(t, err)

	// b has never seen the number: it reads through to the store.
	entry, err := b.Resolve(ctx, "+1555")
	require.NoError(t, err)
	assert.Equal(t, "v1", entry.FlowID)

	_, err = a.Register(ctx, "+1555", "v2", "", domain.VoiceSettings{})
	require.NoError(t, err)

	entry, _ = b.Resolve(ctx, "+1555")
	assert.Equal(t, "v1", entry.FlowID, "cached until the TTL expires")

	now = now.Add(2 * time.Minute)
	entry, _ = b.Resolve(ctx, "+1555")
	assert.Equal(t, "v2", entry.FlowID)
}

type failingStore struct{ *memory.RouteStore }

func (failingStore) Get(context.Context, string) (domain.RouteEntry, error) {
	return domain.RouteEntry{}, errors.New("store down")
}

func TestRegistry_StoreErrorsAreNotRouteMisses(t *testing.T) {
	reg := routing.NewRegistry(failingStore{memory.NewRouteStore()})
	_, err := reg.Resolve(context.Background(), "+1555")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRouteNotFound)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	reg := routing.NewRegistry(memory.NewRouteStore())
	_, err := reg.Register(ctx, "+1555", "support", "", domain.VoiceSettings{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := reg.Resolve(ctx, "+1555")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := reg.Register(ctx, "+1555", "support", "", domain.VoiceSettings{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
