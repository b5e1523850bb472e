package kv

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/F4txhr/pla/pkg/db/models"
	"github.com/F4txhr/pla/pkg/kv"
	"github.com/F4txhr/pla/pkg/redis"
)

// createStore connects to the Redis instance named by REDIS_HOST, selects
// an isolated database number, and flushes it on cleanup. Tests calling it
// are skipped when no instance is configured. The wiring matches the
// STORE_BACKEND=redis path: the shared client wrapper feeds kv.New.
func createStore(t *testing.T, dbNum int) *kv.Store {
	t.Helper()

	if os.Getenv("REDIS_HOST") == "" {
		t.Skip("REDIS_HOST not set, skipping Redis integration test")
	}
	t.Setenv("REDIS_DB", fmt.Sprintf("%d", dbNum))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger := zaptest.NewLogger(t)
	client, err := redis.NewClient(ctx, logger)
	require.NoError(t, err, "failed to connect to Redis")

	store := kv.New(client, logger)

	t.Cleanup(func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer flushCancel()

		if err := client.GetClient().FlushDB(flushCtx).Err(); err != nil {
			t.Logf("failed to flush redis db %d: %v", dbNum, err)
		}
		if err := client.Close(); err != nil {
			t.Logf("failed to close redis client: %v", err)
		}
	})

	return store
}

// importAddresses seeds n fresh records and returns them in stored order.
func importAddresses(t *testing.T, store *kv.Store, n int) []*models.Proxy {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	in := make([]*models.Proxy, n)
	for i := range in {
		in[i] = &models.Proxy{Address: fmt.Sprintf("172.16.2.%d:1080", i)}
	}
	inserted, err := store.ImportProxies(ctx, in)
	require.NoError(t, err)
	require.Equal(t, n, inserted)

	all, err := store.AllProxies(ctx)
	require.NoError(t, err)
	require.Len(t, all, n)
	return all
}
