package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/F4txhr/pla/pkg/db/models"
)

func TestStore_ImportAndList(t *testing.T) {
	store := createStore(t, 13)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	all := importAddresses(t, store, 5)
	for _, p := range all {
		assert.Equal(t, models.StatusUnknown, p.Status)
		assert.Zero(t, p.LatencyMs)
		assert.Nil(t, p.LastChecked)
	}

	// Re-importing the same addresses inserts nothing.
	inserted, err := store.ImportProxies(ctx, []*models.Proxy{
		{Address: all[0].Address},
		{Address: "172.16.3.1:1080"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	unknown, err := store.UnknownProxies(ctx)
	require.NoError(t, err)
	assert.Len(t, unknown, 6)
}

func TestStore_ResetAndOutcomes(t *testing.T) {
	store := createStore(t, 14)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	all := importAddresses(t, store, 4)

	require.NoError(t, store.ResetForCheck(ctx, all))

	// A repeated reset leaves the population exactly where one left it.
	require.NoError(t, store.ResetForCheck(ctx, all))
	inFlight, err := store.ListProxies(ctx, 0, 100, models.StatusTesting)
	require.NoError(t, err)
	require.Len(t, inFlight, 4)
	for _, p := range inFlight {
		assert.Zero(t, p.LatencyMs)
	}

	now := time.Now().UTC().Truncate(time.Second)
	updates := make([]*models.Proxy, 0, len(all))
	for i, p := range all {
		cp := *p
		cp.LastChecked = &now
		if i%2 == 0 {
			cp.Status = models.StatusOnline
			cp.LatencyMs = uint32(100 + i)
		} else {
			cp.Status = models.StatusOffline
		}
		updates = append(updates, &cp)
	}
	require.NoError(t, store.WriteOutcomes(ctx, updates))

	online, err := store.ListProxies(ctx, 0, 100, models.StatusOnline)
	require.NoError(t, err)
	assert.Len(t, online, 2)

	stillTesting, err := store.ListProxies(ctx, 0, 100, models.StatusTesting)
	require.NoError(t, err)
	assert.Empty(t, stillTesting)
}

func TestStore_MetaRoundTrip(t *testing.T) {
	store := createStore(t, 15)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	v, err := store.GetMeta(ctx, models.MetaKeyLastUpdated)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, store.SetMeta(ctx, models.MetaKeyLastUpdated, "v1"))
	require.NoError(t, store.SetMeta(ctx, models.MetaKeyLastUpdated, "v2"))

	v, err = store.GetMeta(ctx, models.MetaKeyLastUpdated)
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}
