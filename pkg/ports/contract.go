package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	callID := fmt.Sprintf("contract-call-%d", time.Now().UnixNano())

	t.Run("Save and Load", func(t *testing.T) {
		s := &domain.Session{
			CallID:        callID,
			FlowID:        "support",
			FlowVersion:   3,
			CurrentNodeID: "collect_reason",
			Variables:     map[string]string{"reason": "billing"},
			LastActivity:  time.Now().UTC().Truncate(time.Second),
			Seq:           7,
		}
		require.NoError(t, store.Save(ctx, callID, s))

		loaded, err := store.Load(ctx, callID)
		require.NoError(t, err)
		assert.Equal(t, "collect_reason", loaded.CurrentNodeID)
		assert.Equal(t, 3, loaded.FlowVersion)
		assert.Equal(t, "billing", loaded.Variables["reason"])
		assert.Equal(t, uint64(7), loaded.Seq)
		assert.True(t, s.LastActivity.Equal(loaded.LastActivity))
	})

	t.Run("Loaded copies are isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx, callID)
		require.NoError(t, err)
		loaded.Variables["reason"] = "mutated"

		again, err := store.Load(ctx, callID)
		require.NoError(t, err)
		assert.Equal(t, "billing", again.Variables["reason"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+callID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("List", func(t *testing.T) {
		other := callID + "-2"
		require.NoError(t, store.Save(ctx, other, &domain.Session{CallID: other}))
		defer func() { _ = store.Delete(ctx, other) }()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, callID)
		assert.Contains(t, ids, other)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, callID))
		_, err := store.Load(ctx, callID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
		assert.NoError(t, store.Delete(ctx, callID), "Deleting twice is not an error")
	})
}

// RunRouteStoreContract verifies a RouteStore implementation.
func RunRouteStoreContract(t *testing.T, store RouteStore) {
	ctx := context.Background()
	entry := domain.RouteEntry{
		Number:    "+15550100000",
		FlowID:    "support",
		FlowName:  "Support Line",
		Voice:     domain.VoiceSettings{Voice: "alice", Language: "en-US"},
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}

	t.Run("Put and Get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, entry))
		got, err := store.Get(ctx, entry.Number)
		require.NoError(t, err)
		assert.Equal(t, entry.FlowID, got.FlowID)
		assert.Equal(t, entry.FlowName, got.FlowName)
		assert.Equal(t, entry.Voice, got.Voice)
	})

	t.Run("Put replaces", func(t *testing.T) {
		updated := entry
		updated.FlowID = "sales"
		require.NoError(t, store.Put(ctx, updated))
		got, err := store.Get(ctx, entry.Number)
		require.NoError(t, err)
		assert.Equal(t, "sales", got.FlowID)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "+10000000000")
		assert.ErrorIs(t, err, domain.ErrRouteNotFound)
	})

	t.Run("List", func(t *testing.T) {
		entries, err := store.List(ctx)
		require.NoError(t, err)
		var numbers []string
		for _, e := range entries {
			numbers = append(numbers, e.Number)
		}
		assert.Contains(t, numbers, entry.Number)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, entry.Number))
		_, err := store.Get(ctx, entry.Number)
		assert.ErrorIs(t, err, domain.ErrRouteNotFound)
		assert.NoError(t, store.Delete(ctx, entry.Number))
	})
}
