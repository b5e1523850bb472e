package checker

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/F4txhr/pla/pkg/db"
	"github.com/F4txhr/pla/pkg/db/models"
	"github.com/F4txhr/pla/pkg/probe"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		name        string
		records     int
		size        int
		wantBatches int
		wantLast    int
	}{
		{name: "exact multiple", records: 50, size: 25, wantBatches: 2, wantLast: 25},
		{name: "remainder batch", records: 1005, size: 25, wantBatches: 41, wantLast: 5},
		{name: "single short batch", records: 7, size: 25, wantBatches: 1, wantLast: 7},
		{name: "size one", records: 3, size: 1, wantBatches: 3, wantLast: 1},
		{name: "empty population", records: 0, size: 25, wantBatches: 0},
		{name: "invalid size falls back", records: 30, size: 0, wantBatches: 2, wantLast: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := make([]*models.Proxy, tt.records)
			for i := range records {
				records[i] = &models.Proxy{ID: fmt.Sprintf("p%04d", i)}
			}

			batches := Partition(records, tt.size)
			require.Len(t, batches, tt.wantBatches)
			if tt.wantBatches == 0 {
				return
			}
			assert.Len(t, batches[len(batches)-1], tt.wantLast)

			// Concatenating the batches must reconstruct the input exactly.
			var flat []*models.Proxy
			for _, b := range batches {
				flat = append(flat, b...)
			}
			require.Len(t, flat, tt.records)
			for i, p := range flat {
				assert.Equal(t, records[i].ID, p.ID)
			}
		})
	}
}

// newOracleServer returns a health endpoint that reports every address
// reachable with the given latency.
func newOracleServer(t *testing.T, latency uint32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, r.URL.Query().Get("proxy"))
		_, _ = fmt.Fprintf(w, `{"latency_ms":%d}`, latency)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newChecker(t *testing.T, store db.Store, oracleURL string, cfg Config) *Checker {
	t.Helper()
	oracle := probe.NewOracle(probe.OracleOpts{
		BaseURL: oracleURL,
		Timeout: 2 * time.Second,
		RPS:     10000,
		Burst:   10000,
	})
	prober := probe.NewProber(oracle, 16, zaptest.NewLogger(t))
	t.Cleanup(prober.Stop)
	return New(store, prober, nil, cfg, zaptest.NewLogger(t))
}

func seedProxies(t *testing.T, store db.Store, n int) []*models.Proxy {
	t.Helper()
	ctx := context.Background()

	in := make([]*models.Proxy, n)
	for i := range in {
		in[i] = &models.Proxy{Address: fmt.Sprintf("10.0.0.%d:1080", i)}
	}
	inserted, err := store.ImportProxies(ctx, in)
	require.NoError(t, err)
	require.Equal(t, n, inserted)

	all, err := store.AllProxies(ctx)
	require.NoError(t, err)
	require.Len(t, all, n)
	return all
}

func waitForRun(t *testing.T, c *Checker) RunStatus {
	t.Helper()
	var st RunStatus
	require.Eventually(t, func() bool {
		runs := c.Status()
		if len(runs) == 0 {
			return false
		}
		st = runs[0]
		return st.Done
	}, 5*time.Second, 10*time.Millisecond)
	return st
}

func TestTriggerAllReachable(t *testing.T) {
	srv := newOracleServer(t, 42)
	store := db.NewMem()
	c := newChecker(t, store, srv.URL, Config{BatchSize: 10, Parallelism: 2})
	seedProxies(t, store, 30)

	scheduled, err := c.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30, scheduled)

	st := waitForRun(t, c)
	assert.Equal(t, 30, st.Scheduled)
	assert.Equal(t, 3, st.Batches)
	assert.Equal(t, int64(30), st.Processed)
	assert.Equal(t, int64(30), st.Online)
	assert.Equal(t, int64(0), st.Offline)
	assert.Equal(t, int64(0), st.FailedBatches)
	require.NotNil(t, st.FinishedAt)

	all, err := store.AllProxies(context.Background())
	require.NoError(t, err)
	for _, p := range all {
		assert.Equal(t, models.StatusOnline, p.Status)
		assert.Equal(t, uint32(42), p.LatencyMs)
		require.NotNil(t, p.LastChecked)
	}

	// The trigger also stamps the last-updated metadata.
	last, err := store.GetMeta(context.Background(), models.MetaKeyLastUpdated)
	require.NoError(t, err)
	assert.NotEmpty(t, last)
}

func TestTriggerOracleDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	store := db.NewMem()
	c := newChecker(t, store, srv.URL, Config{BatchSize: 10, Parallelism: 2})
	seedProxies(t, store, 20)

	scheduled, err := c.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, scheduled)

	st := waitForRun(t, c)
	assert.Equal(t, int64(20), st.Offline)
	assert.Equal(t, int64(0), st.Online)

	all, err := store.AllProxies(context.Background())
	require.NoError(t, err)
	for _, p := range all {
		assert.Equal(t, models.StatusOffline, p.Status)
		assert.Equal(t, uint32(0), p.LatencyMs)
		require.NotNil(t, p.LastChecked)
	}
}

func TestTriggerMixedOutcomes(t *testing.T) {
	// Addresses ending in an even host octet are reachable.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := r.URL.Query().Get("proxy")
		var host int
		_, err := fmt.Sscanf(addr, "10.0.0.%d:1080", &host)
		require.NoError(t, err)
		if host%2 != 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, `{"latency_ms":7}`)
	}))
	t.Cleanup(srv.Close)

	store := db.NewMem()
	c := newChecker(t, store, srv.URL, Config{BatchSize: 4, Parallelism: 3})
	seedProxies(t, store, 10)

	_, err := c.Trigger(context.Background())
	require.NoError(t, err)

	st := waitForRun(t, c)
	assert.Equal(t, int64(5), st.Online)
	assert.Equal(t, int64(5), st.Offline)
	assert.Equal(t, 3, st.Batches)

	online, err := store.ListProxies(context.Background(), 0, db.PageSize, models.StatusOnline)
	require.NoError(t, err)
	require.Len(t, online, 5)
	for _, p := range online {
		assert.Equal(t, uint32(7), p.LatencyMs)
	}
}

func TestTriggerEmptyPopulation(t *testing.T) {
	srv := newOracleServer(t, 1)
	store := db.NewMem()
	c := newChecker(t, store, srv.URL, Config{BatchSize: 25, Parallelism: 2})

	scheduled, err := c.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, scheduled)
	assert.Empty(t, c.Status())

	// Nothing was mutated, not even the metadata stamp.
	last, err := store.GetMeta(context.Background(), models.MetaKeyLastUpdated)
	require.NoError(t, err)
	assert.Empty(t, last)
}

func TestTriggerSurvivesCancelledRequestContext(t *testing.T) {
	srv := newOracleServer(t, 5)
	store := db.NewMem()
	c := newChecker(t, store, srv.URL, Config{BatchSize: 5, Parallelism: 2})
	seedProxies(t, store, 15)

	ctx, cancel := context.WithCancel(context.Background())
	scheduled, err := c.Trigger(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, scheduled)

	// The HTTP request that triggered the cycle goes away immediately.
	cancel()

	st := waitForRun(t, c)
	assert.Equal(t, int64(15), st.Processed)
	assert.Equal(t, int64(15), st.Online)
}

func TestCheckBatchSynchronous(t *testing.T) {
	srv := newOracleServer(t, 12)
	store := db.NewMem()
	c := newChecker(t, store, srv.URL, Config{BatchSize: 25, Parallelism: 2})
	all := seedProxies(t, store, 5)

	processed, err := c.CheckBatch(context.Background(), all[:3])
	require.NoError(t, err)
	assert.Equal(t, 3, processed)

	// Outcomes are durable before CheckBatch returns.
	online, err := store.ListProxies(context.Background(), 0, db.PageSize, models.StatusOnline)
	require.NoError(t, err)
	assert.Len(t, online, 3)

	unknown, err := store.UnknownProxies(context.Background())
	require.NoError(t, err)
	assert.Len(t, unknown, 2)
}

func TestCheckBatchEmpty(t *testing.T) {
	srv := newOracleServer(t, 1)
	c := newChecker(t, db.NewMem(), srv.URL, Config{})

	processed, err := c.CheckBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, processed)
}

func TestReconcileStale(t *testing.T) {
	srv := newOracleServer(t, 1)
	store := db.NewMem()
	c := newChecker(t, store, srv.URL, Config{BatchSize: 25, Parallelism: 2, StaleAfter: 20 * time.Millisecond})
	all := seedProxies(t, store, 6)

	// Half the population gets stuck mid-cycle.
	require.NoError(t, store.ResetForCheck(context.Background(), all[:3]))
	time.Sleep(50 * time.Millisecond)

	reconciled, err := c.ReconcileStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, reconciled)

	offline, err := store.ListProxies(context.Background(), 0, db.PageSize, models.StatusOffline)
	require.NoError(t, err)
	require.Len(t, offline, 3)
	for _, p := range offline {
		assert.Equal(t, uint32(0), p.LatencyMs)
	}

	// Untouched records keep their status.
	unknown, err := store.UnknownProxies(context.Background())
	require.NoError(t, err)
	assert.Len(t, unknown, 3)
}

func TestReconcileStaleRespectsThreshold(t *testing.T) {
	srv := newOracleServer(t, 1)
	store := db.NewMem()
	c := newChecker(t, store, srv.URL, Config{StaleAfter: time.Hour})
	all := seedProxies(t, store, 4)

	require.NoError(t, store.ResetForCheck(context.Background(), all))

	// Freshly reset records are in flight, not stale.
	reconciled, err := c.ReconcileStale(context.Background())
	require.NoError(t, err)
	assert.Zero(t, reconciled)

	inFlight, err := store.ListProxies(context.Background(), 0, db.PageSize, models.StatusTesting)
	require.NoError(t, err)
	assert.Len(t, inFlight, 4)
}

func TestStatusNewestFirst(t *testing.T) {
	srv := newOracleServer(t, 1)
	store := db.NewMem()
	c := newChecker(t, store, srv.URL, Config{BatchSize: 25, Parallelism: 2})
	seedProxies(t, store, 3)

	_, err := c.Trigger(context.Background())
	require.NoError(t, err)
	waitForRun(t, c)

	_, err = c.Trigger(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		runs := c.Status()
		return len(runs) == 2 && runs[0].Done && runs[1].Done
	}, 5*time.Second, 10*time.Millisecond)

	runs := c.Status()
	assert.False(t, runs[0].StartedAt.Before(runs[1].StartedAt))
}
