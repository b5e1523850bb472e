package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"github.com/F4txhr/pla/pkg/db/models"
)

// ListProxies returns one page of proxies ordered by creation time.
func (db *DB) ListProxies(ctx context.Context, page, pageSize int, status string) ([]*models.Proxy, error) {
	if pageSize <= 0 || pageSize > PageSize {
		pageSize = PageSize
	}
	if page < 0 {
		page = 0
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
	`, models.ColumnsToNameList(models.ProxyColumns), db.Name, models.ProxiesTableName)

	args := make([]any, 0, 3)
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at, id LIMIT ? OFFSET ?"
	args = append(args, pageSize, page*pageSize)

	var rows []models.Proxy
	if err := db.Select(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list proxies: %w", err)
	}
	return toProxyPtrs(rows), nil
}

// AllProxies loads the full population, looping pages until an empty page.
func (db *DB) AllProxies(ctx context.Context) ([]*models.Proxy, error) {
	var all []*models.Proxy
	for page := 0; ; page++ {
		rows, err := db.ListProxies(ctx, page, PageSize, "")
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return all, nil
		}
		all = append(all, rows...)
	}
}

// ImportProxies bulk-inserts new records with fresh ids, skipping
// addresses already present in the active set. Dedup is best-effort: it
// reads the current address set before the insert, there is no unique
// constraint behind it.
func (db *DB) ImportProxies(ctx context.Context, proxies []*models.Proxy) (int, error) {
	if len(proxies) == 0 {
		return 0, nil
	}

	existing, err := db.addressSet(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	fresh := make([]*models.Proxy, 0, len(proxies))
	for _, p := range proxies {
		if p.Address == "" {
			continue
		}
		if _, dup := existing[p.Address]; dup {
			continue
		}
		existing[p.Address] = struct{}{}

		fresh = append(fresh, &models.Proxy{
			ID:          uuid.NewString(),
			Address:     p.Address,
			Status:      models.StatusUnknown,
			LatencyMs:   0,
			LastChecked: nil,
			Geo:         p.Geo,
			Org:         p.Org,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	if len(fresh) == 0 {
		return 0, nil
	}
	if err := db.insertProxies(ctx, fresh); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

// ResetForCheck writes "testing" rows for the given records in one bulk
// insert. Latency is zeroed; last_checked and the descriptive metadata
// are carried through unchanged.
func (db *DB) ResetForCheck(ctx context.Context, proxies []*models.Proxy) error {
	if len(proxies) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]*models.Proxy, 0, len(proxies))
	for _, p := range proxies {
		reset := *p
		reset.Status = models.StatusTesting
		reset.LatencyMs = 0
		reset.UpdatedAt = now
		rows = append(rows, &reset)
	}
	return db.insertProxies(ctx, rows)
}

// WriteOutcomes bulk-upserts terminal probe results by id.
func (db *DB) WriteOutcomes(ctx context.Context, proxies []*models.Proxy) error {
	if len(proxies) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]*models.Proxy, 0, len(proxies))
	for _, p := range proxies {
		row := *p
		row.UpdatedAt = now
		rows = append(rows, &row)
	}
	return db.insertProxies(ctx, rows)
}

// UnknownProxies returns every record never probed.
func (db *DB) UnknownProxies(ctx context.Context) ([]*models.Proxy, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE status = ?
		ORDER BY created_at, id
	`, models.ColumnsToNameList(models.ProxyColumns), db.Name, models.ProxiesTableName)

	var rows []models.Proxy
	if err := db.Select(ctx, &rows, query, models.StatusUnknown); err != nil {
		return nil, fmt.Errorf("unknown proxies: %w", err)
	}
	return toProxyPtrs(rows), nil
}

// StaleTesting returns records stuck at "testing" since before the cutoff.
func (db *DB) StaleTesting(ctx context.Context, before time.Time) ([]*models.Proxy, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		WHERE status = ? AND updated_at < ?
		ORDER BY created_at, id
	`, models.ColumnsToNameList(models.ProxyColumns), db.Name, models.ProxiesTableName)

	var rows []models.Proxy
	if err := db.Select(ctx, &rows, query, models.StatusTesting, before.UTC()); err != nil {
		return nil, fmt.Errorf("stale testing proxies: %w", err)
	}
	return toProxyPtrs(rows), nil
}

// ProxyStats counts the population by status.
func (db *DB) ProxyStats(ctx context.Context) (*models.ProxyStats, error) {
	query := fmt.Sprintf(`
		SELECT status, count() AS total
		FROM "%s"."%s" FINAL
		GROUP BY status
	`, db.Name, models.ProxiesTableName)

	var rows []struct {
		Status string `ch:"status"`
		Total  uint64 `ch:"total"`
	}
	if err := db.Select(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("proxy stats: %w", err)
	}

	stats := &models.ProxyStats{ByStatus: make(map[string]uint64, len(rows))}
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.Total
		stats.Total += r.Total
	}

	lastUpdated, err := db.GetMeta(ctx, models.MetaKeyLastUpdated)
	if err == nil {
		stats.LastUpdated = lastUpdated
	}
	return stats, nil
}

// insertProxies is the single bulk-write path shared by import, reset and
// outcome persistence.
func (db *DB) insertProxies(ctx context.Context, proxies []*models.Proxy) error {
	query := fmt.Sprintf(
		`INSERT INTO "%s"."%s" (%s) VALUES`,
		db.Name, models.ProxiesTableName, models.ColumnsToNameList(models.ProxyColumns),
	)
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, p := range proxies {
		err = batch.Append(
			p.ID,
			p.Address,
			p.Status,
			p.LatencyMs,
			p.LastChecked,
			p.Geo,
			p.Org,
			p.CreatedAt,
			p.UpdatedAt,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

func (db *DB) addressSet(ctx context.Context) (map[string]struct{}, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT address
		FROM "%s"."%s" FINAL
	`, db.Name, models.ProxiesTableName)

	var rows []struct {
		Address string `ch:"address"`
	}
	if err := db.Select(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load address set: %w", err)
	}

	set := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		set[r.Address] = struct{}{}
	}
	return set, nil
}

func toProxyPtrs(rows []models.Proxy) []*models.Proxy {
	out := make([]*models.Proxy, 0, len(rows))
	for i := range rows {
		out = append(out, &rows[i])
	}
	return out
}
