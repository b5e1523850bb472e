package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/F4txhr/pla/pkg/db"
	"github.com/F4txhr/pla/pkg/db/models"
)

// createStore connects to the ClickHouse instance named by CLICKHOUSE_ADDR
// and provisions an isolated database that is dropped on cleanup. Tests
// calling it are skipped when no instance is configured.
func createStore(t *testing.T, dbName string) *db.DB {
	t.Helper()

	if os.Getenv("CLICKHOUSE_ADDR") == "" {
		t.Skip("CLICKHOUSE_ADDR not set, skipping ClickHouse integration test")
	}
	t.Setenv("PLA_DB", dbName)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := db.New(ctx, zaptest.NewLogger(t))
	require.NoError(t, err, "failed to create ClickHouse store")

	t.Cleanup(func() {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dropCancel()

		dropQuery := fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", dbName)
		if err := store.Exec(dropCtx, dropQuery); err != nil {
			t.Logf("failed to drop database %s: %v", dbName, err)
		}
		if err := store.Close(); err != nil {
			t.Logf("failed to close store: %v", err)
		}
	})

	return store
}

// importAddresses seeds n fresh records and returns them in stored order.
func importAddresses(t *testing.T, store *db.DB, n int) []*models.Proxy {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	in := make([]*models.Proxy, n)
	for i := range in {
		in[i] = &models.Proxy{Address: fmt.Sprintf("172.16.0.%d:1080", i)}
	}
	inserted, err := store.ImportProxies(ctx, in)
	require.NoError(t, err)
	require.Equal(t, n, inserted)

	all, err := store.AllProxies(ctx)
	require.NoError(t, err)
	require.Len(t, all, n)
	return all
}
