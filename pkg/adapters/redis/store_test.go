package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/dialtone/pkg/adapters/redis"
	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/aretw0/dialtone/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := setupMiniredis(t)
	ports.RunSessionStoreContract(t, redis.NewFromClient(client))
}

func TestRedisRouteStore_Contract(t *testing.T) {
	_, client := setupMiniredis(t)
	ports.RunRouteStoreContract(t, redis.NewRouteStore(client, "dialtone:"))
}

func TestRedisStore_TTL(t *testing.T) {
	mr, client := setupMiniredis(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Minute), redis.WithPrefix("test:"))
	ctx := context.Background()

	s := &domain.Session{CallID: "CA1", LastActivity: time.Now()}
	require.NoError(t, store.Save(ctx, "CA1", s))
	assert.True(t, mr.Exists("test:CA1"))

	mr.FastForward(2 * time.Minute)

	_, err := store.Load(ctx, "CA1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids, "expired sessions are pruned from the index")
}

func TestRedisStore_IdleSince(t *testing.T) {
	_, client := setupMiniredis(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.Save(ctx, "old", &domain.Session{CallID: "old", LastActivity: now.Add(-10 * time.Minute)}))
	require.NoError(t, store.Save(ctx, "fresh", &domain.Session{CallID: "fresh", LastActivity: now}))

	ids, err := store.IdleSince(ctx, now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, ids)

	// Saving again moves the call back out of the idle range.
	require.NoError(t, store.Save(ctx, "old", &domain.Session{CallID: "old", LastActivity: now}))
	ids, err = store.IdleSince(ctx, now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, ids)
}
