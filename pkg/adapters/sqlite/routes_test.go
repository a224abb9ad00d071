package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/dialtone/pkg/adapters/sqlite"
	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/aretw0/dialtone/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.RouteStore = (*sqlite.RouteStore)(nil)

func newRouteStore(t *testing.T, path string) *sqlite.RouteStore {
	t.Helper()
	store, err := sqlite.NewRouteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteRouteStore_Contract(t *testing.T) {
	store := newRouteStore(t, filepath.Join(t.TempDir(), "routes.db"))
	ports.RunRouteStoreContract(t, store)
}

func TestSQLiteRouteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "routes.db")

	first, err := sqlite.NewRouteStore(path)
	require.NoError(t, err)
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, first.Put(ctx, domain.RouteEntry{
		Number: "+15550100000", FlowID: "support", UpdatedAt: updated,
	}))
	require.NoError(t, first.Close())

	second := newRouteStore(t, path)
	got, err := second.Get(ctx, "+15550100000")
	require.NoError(t, err)
	assert.Equal(t, "support", got.FlowID)
	assert.True(t, updated.Equal(got.UpdatedAt))
}

func TestNewRouteStore_RequiresDSN(t *testing.T) {
	_, err := sqlite.NewRouteStore("  ")
	assert.Error(t, err)
}
