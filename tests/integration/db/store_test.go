package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgdb "github.com/F4txhr/pla/pkg/db"
	"github.com/F4txhr/pla/pkg/db/models"
)

func TestStore_ImportAndList(t *testing.T) {
	store := createStore(t, "pla_test_import")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
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
		{Address: "172.16.1.1:1080"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	unknown, err := store.UnknownProxies(ctx)
	require.NoError(t, err)
	assert.Len(t, unknown, 6)
}

func TestStore_ResetAndOutcomes(t *testing.T) {
	store := createStore(t, "pla_test_outcomes")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	all := importAddresses(t, store, 4)

	require.NoError(t, store.ResetForCheck(ctx, all))
	inFlight, err := store.ListProxies(ctx, 0, pkgdb.PageSize, models.StatusTesting)
	require.NoError(t, err)
	require.Len(t, inFlight, 4)

	// Resetting again just inserts fresher row versions of the same
	// state; FINAL must still report one "testing" row per id.
	require.NoError(t, store.ResetForCheck(ctx, all))
	inFlight, err = store.ListProxies(ctx, 0, pkgdb.PageSize, models.StatusTesting)
	require.NoError(t, err)
	require.Len(t, inFlight, 4)
	for _, p := range inFlight {
		assert.Zero(t, p.LatencyMs)
	}

	// FINAL reads must observe the newest row version per id, so the
	// outcome write supersedes the reset.
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
			cp.LatencyMs = 0
		}
		updates = append(updates, &cp)
	}
	require.NoError(t, store.WriteOutcomes(ctx, updates))

	online, err := store.ListProxies(ctx, 0, pkgdb.PageSize, models.StatusOnline)
	require.NoError(t, err)
	assert.Len(t, online, 2)
	for _, p := range online {
		require.NotNil(t, p.LastChecked)
		assert.GreaterOrEqual(t, p.LatencyMs, uint32(100))
	}

	stillTesting, err := store.ListProxies(ctx, 0, pkgdb.PageSize, models.StatusTesting)
	require.NoError(t, err)
	assert.Empty(t, stillTesting)
}

func TestStore_StaleTesting(t *testing.T) {
	store := createStore(t, "pla_test_stale")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	all := importAddresses(t, store, 3)
	require.NoError(t, store.ResetForCheck(ctx, all))

	stale, err := store.StaleTesting(ctx, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stale)

	stale, err = store.StaleTesting(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, stale, 3)
}

func TestStore_Stats(t *testing.T) {
	store := createStore(t, "pla_test_stats")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	all := importAddresses(t, store, 3)

	now := time.Now().UTC().Truncate(time.Second)
	up := *all[0]
	up.Status = models.StatusOnline
	up.LatencyMs = 55
	up.LastChecked = &now
	require.NoError(t, store.WriteOutcomes(ctx, []*models.Proxy{&up}))
	require.NoError(t, store.SetMeta(ctx, models.MetaKeyLastUpdated, now.Format(time.RFC3339)))

	stats, err := store.ProxyStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.Total)
	assert.Equal(t, uint64(1), stats.ByStatus[models.StatusOnline])
	assert.Equal(t, uint64(2), stats.ByStatus[models.StatusUnknown])
	assert.Equal(t, now.Format(time.RFC3339), stats.LastUpdated)
}

func TestStore_TunnelsAndAccounts(t *testing.T) {
	store := createStore(t, "pla_test_tunnels")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tun := &models.Tunnel{Name: "edge", Domain: "edge.example.com"}
	require.NoError(t, store.UpsertTunnel(ctx, tun))
	require.NotEmpty(t, tun.ID)

	// Upsert with the same id replaces the row version.
	time.Sleep(10 * time.Millisecond)
	tun.Domain = "edge2.example.com"
	require.NoError(t, store.UpsertTunnel(ctx, tun))

	ts, err := store.ListTunnels(ctx)
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, "edge2.example.com", ts[0].Domain)

	require.NoError(t, store.DeleteTunnel(ctx, tun.ID))

	acct := &models.Account{Username: "ops"}
	require.NoError(t, store.UpsertAccount(ctx, acct))
	as, err := store.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, as, 1)
	assert.NotEmpty(t, as[0].UUID)
}

func TestStore_MetaRoundTrip(t *testing.T) {
	store := createStore(t, "pla_test_meta")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	missing, err := store.GetMeta(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, missing)

	require.NoError(t, store.SetMeta(ctx, "k", "v1"))
	require.NoError(t, store.SetMeta(ctx, "k", "v2"))

	got, err := store.GetMeta(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
}
