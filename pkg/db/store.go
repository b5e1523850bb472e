package db

import (
	"context"
	"time"

	"github.com/F4txhr/pla/pkg/db/models"
)

// PageSize is the maximum number of rows a single ListProxies call returns.
// Callers that need the full population loop pages until an empty page.
const PageSize = 1000

// Store is the record store behind the dashboard. Two backends implement
// it: the ClickHouse store in this package and the Redis KV store in
// pkg/kv. All proxy mutations are bulk writes; the check pipeline never
// issues one write per probe.
type Store interface {
	// ListProxies returns one page of proxies, optionally filtered by
	// status. Page numbering starts at 0.
	ListProxies(ctx context.Context, page, pageSize int, status string) ([]*models.Proxy, error)

	// AllProxies loops pages until an empty page and returns the full
	// population.
	AllProxies(ctx context.Context) ([]*models.Proxy, error)

	// ImportProxies bulk-inserts new records. Status is forced to
	// "unknown", latency to 0 and last_checked to nil regardless of the
	// input. Records whose address already exists (or repeats within the
	// input) are skipped. Returns the number of records inserted.
	ImportProxies(ctx context.Context, proxies []*models.Proxy) (int, error)

	// ResetForCheck marks the given records as "testing" with zero
	// latency in a single bulk write, so readers never observe a
	// half-reset population.
	ResetForCheck(ctx context.Context, proxies []*models.Proxy) error

	// WriteOutcomes bulk-upserts probe results (status, latency,
	// last_checked) by id.
	WriteOutcomes(ctx context.Context, proxies []*models.Proxy) error

	// UnknownProxies returns every record still at status "unknown".
	UnknownProxies(ctx context.Context) ([]*models.Proxy, error)

	// StaleTesting returns records stuck at "testing" since before the
	// given time.
	StaleTesting(ctx context.Context, before time.Time) ([]*models.Proxy, error)

	// ProxyStats summarizes the population by status.
	ProxyStats(ctx context.Context) (*models.ProxyStats, error)

	ListTunnels(ctx context.Context) ([]*models.Tunnel, error)
	UpsertTunnel(ctx context.Context, t *models.Tunnel) error
	DeleteTunnel(ctx context.Context, id string) error

	ListAccounts(ctx context.Context) ([]*models.Account, error)
	UpsertAccount(ctx context.Context, a *models.Account) error
	DeleteAccount(ctx context.Context, id string) error

	SetMeta(ctx context.Context, key, value string) error
	GetMeta(ctx context.Context, key string) (string, error)

	Close() error
}
