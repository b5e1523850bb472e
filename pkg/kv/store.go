// Package kv is the key/value variant of the record store, kept for
// deployments without ClickHouse. One hash per record, an id index set
// per collection, pipelined bulk writes so every bulk operation stays a
// single round trip.
package kv

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/google/uuid"

	"github.com/F4txhr/pla/pkg/db"
	"github.com/F4txhr/pla/pkg/db/models"
	"github.com/F4txhr/pla/pkg/redis"
)

const (
	proxyKeyPrefix   = "pla:proxy:"
	proxyIndexKey    = "pla:proxies"
	tunnelKeyPrefix  = "pla:tunnel:"
	tunnelIndexKey   = "pla:tunnels"
	accountKeyPrefix = "pla:account:"
	accountIndexKey  = "pla:accounts"
	metaKeyPrefix    = "pla:meta:"
)

// Store implements db.Store on Redis.
type Store struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

var _ db.Store = (*Store)(nil)

// New wraps an established Redis connection as a record store.
func New(client *redis.Client, logger *zap.Logger) *Store {
	return &Store{rdb: client.GetClient(), logger: logger}
}

func (s *Store) ListProxies(ctx context.Context, page, pageSize int, status string) ([]*models.Proxy, error) {
	if pageSize <= 0 || pageSize > db.PageSize {
		pageSize = db.PageSize
	}
	if page < 0 {
		page = 0
	}

	rows, err := s.loadAllProxies(ctx)
	if err != nil {
		return nil, err
	}
	if status != "" {
		filtered := rows[:0]
		for _, p := range rows {
			if p.Status == status {
				filtered = append(filtered, p)
			}
		}
		rows = filtered
	}

	start := page * pageSize
	if start >= len(rows) {
		return nil, nil
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], nil
}

func (s *Store) AllProxies(ctx context.Context) ([]*models.Proxy, error) {
	var all []*models.Proxy
	for page := 0; ; page++ {
		rows, err := s.ListProxies(ctx, page, db.PageSize, "")
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return all, nil
		}
		all = append(all, rows...)
	}
}

func (s *Store) ImportProxies(ctx context.Context, proxies []*models.Proxy) (int, error) {
	existing, err := s.loadAllProxies(ctx)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		seen[p.Address] = struct{}{}
	}

	now := time.Now().UTC()
	pipe := s.rdb.Pipeline()
	inserted := 0
	for _, p := range proxies {
		if p.Address == "" {
			continue
		}
		if _, dup := seen[p.Address]; dup {
			continue
		}
		seen[p.Address] = struct{}{}

		rec := &models.Proxy{
			ID:        uuid.NewString(),
			Address:   p.Address,
			Status:    models.StatusUnknown,
			Geo:       p.Geo,
			Org:       p.Org,
			CreatedAt: now,
			UpdatedAt: now,
		}
		pipe.HSet(ctx, proxyKeyPrefix+rec.ID, proxyFields(rec))
		pipe.SAdd(ctx, proxyIndexKey, rec.ID)
		inserted++
	}
	if inserted == 0 {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("import proxies: %w", err)
	}
	return inserted, nil
}

func (s *Store) ResetForCheck(ctx context.Context, proxies []*models.Proxy) error {
	if len(proxies) == 0 {
		return nil
	}

	now := time.Now().UTC()
	pipe := s.rdb.Pipeline()
	for _, p := range proxies {
		pipe.HSet(ctx, proxyKeyPrefix+p.ID, map[string]interface{}{
			"status":     models.StatusTesting,
			"latency_ms": 0,
			"updated_at": now.Format(time.RFC3339),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reset proxies: %w", err)
	}
	return nil
}

func (s *Store) WriteOutcomes(ctx context.Context, proxies []*models.Proxy) error {
	if len(proxies) == 0 {
		return nil
	}

	now := time.Now().UTC()
	pipe := s.rdb.Pipeline()
	for _, p := range proxies {
		fields := map[string]interface{}{
			"status":     p.Status,
			"latency_ms": p.LatencyMs,
			"updated_at": now.Format(time.RFC3339),
		}
		if p.LastChecked != nil {
			fields["last_checked"] = p.LastChecked.UTC().Format(time.RFC3339)
		}
		pipe.HSet(ctx, proxyKeyPrefix+p.ID, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write outcomes: %w", err)
	}
	return nil
}

func (s *Store) UnknownProxies(ctx context.Context) ([]*models.Proxy, error) {
	rows, err := s.loadAllProxies(ctx)
	if err != nil {
		return nil, err
	}

	var unknown []*models.Proxy
	for _, p := range rows {
		if p.Status == models.StatusUnknown {
			unknown = append(unknown, p)
		}
	}
	return unknown, nil
}

func (s *Store) StaleTesting(ctx context.Context, before time.Time) ([]*models.Proxy, error) {
	rows, err := s.loadAllProxies(ctx)
	if err != nil {
		return nil, err
	}

	var stale []*models.Proxy
	for _, p := range rows {
		if p.Status == models.StatusTesting && p.UpdatedAt.Before(before) {
			stale = append(stale, p)
		}
	}
	return stale, nil
}

func (s *Store) ProxyStats(ctx context.Context) (*models.ProxyStats, error) {
	rows, err := s.loadAllProxies(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.ProxyStats{ByStatus: make(map[string]uint64)}
	for _, p := range rows {
		stats.ByStatus[p.Status]++
		stats.Total++
	}
	stats.LastUpdated, _ = s.GetMeta(ctx, models.MetaKeyLastUpdated)
	return stats, nil
}

func (s *Store) ListTunnels(ctx context.Context) ([]*models.Tunnel, error) {
	ids, err := s.rdb.SMembers(ctx, tunnelIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list tunnels: %w", err)
	}

	out := make([]*models.Tunnel, 0, len(ids))
	for _, id := range ids {
		vals, err := s.rdb.HGetAll(ctx, tunnelKeyPrefix+id).Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		t := &models.Tunnel{
			ID:        vals["id"],
			Name:      vals["name"],
			Domain:    vals["domain"],
			Status:    vals["status"],
			CreatedAt: parseTime(vals["created_at"]),
			UpdatedAt: parseTime(vals["updated_at"]),
		}
		if lc := parseTimePtr(vals["last_checked"]); lc != nil {
			t.LastChecked = lc
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) UpsertTunnel(ctx context.Context, t *models.Tunnel) error {
	if t.Name == "" || t.Domain == "" {
		return fmt.Errorf("tunnel name and domain are required")
	}

	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
		t.CreatedAt = now
	}
	if t.Status == "" {
		t.Status = models.StatusUnknown
	}
	t.UpdatedAt = now

	fields := map[string]interface{}{
		"id":         t.ID,
		"name":       t.Name,
		"domain":     t.Domain,
		"status":     t.Status,
		"created_at": t.CreatedAt.Format(time.RFC3339),
		"updated_at": t.UpdatedAt.Format(time.RFC3339),
	}
	if t.LastChecked != nil {
		fields["last_checked"] = t.LastChecked.UTC().Format(time.RFC3339)
	}

	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, tunnelKeyPrefix+t.ID, fields)
	pipe.SAdd(ctx, tunnelIndexKey, t.ID)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) DeleteTunnel(ctx context.Context, id string) error {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, tunnelKeyPrefix+id)
	pipe.SRem(ctx, tunnelIndexKey, id)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	ids, err := s.rdb.SMembers(ctx, accountIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	out := make([]*models.Account, 0, len(ids))
	for _, id := range ids {
		vals, err := s.rdb.HGetAll(ctx, accountKeyPrefix+id).Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		out = append(out, &models.Account{
			ID:        vals["id"],
			Username:  vals["username"],
			UUID:      vals["uuid"],
			CreatedAt: parseTime(vals["created_at"]),
			UpdatedAt: parseTime(vals["updated_at"]),
		})
	}
	return out, nil
}

func (s *Store) UpsertAccount(ctx context.Context, a *models.Account) error {
	if a.Username == "" {
		return fmt.Errorf("account username is required")
	}

	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = uuid.NewString()
		a.CreatedAt = now
	}
	if a.UUID == "" {
		a.UUID = uuid.NewString()
	}
	a.UpdatedAt = now

	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, accountKeyPrefix+a.ID, map[string]interface{}{
		"id":         a.ID,
		"username":   a.Username,
		"uuid":       a.UUID,
		"created_at": a.CreatedAt.Format(time.RFC3339),
		"updated_at": a.UpdatedAt.Format(time.RFC3339),
	})
	pipe.SAdd(ctx, accountIndexKey, a.ID)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, accountKeyPrefix+id)
	pipe.SRem(ctx, accountIndexKey, id)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, metaKeyPrefix+key, value, 0).Err()
}

func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, metaKeyPrefix+key).Result()
	if err == goredis.Nil {
		return "", nil
	}
	return val, err
}

func (s *Store) Close() error { return nil } // connection is owned by redis.Client

func (s *Store) loadAllProxies(ctx context.Context) ([]*models.Proxy, error) {
	ids, err := s.rdb.SMembers(ctx, proxyIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load proxy index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, proxyKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != goredis.Nil {
		return nil, fmt.Errorf("load proxies: %w", err)
	}

	rows := make([]*models.Proxy, 0, len(ids))
	for _, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		rows = append(rows, proxyFromFields(vals))
	}
	sortByCreation(rows)
	return rows, nil
}

func proxyFields(p *models.Proxy) map[string]interface{} {
	fields := map[string]interface{}{
		"id":         p.ID,
		"address":    p.Address,
		"status":     p.Status,
		"latency_ms": p.LatencyMs,
		"geo":        p.Geo,
		"org":        p.Org,
		"created_at": p.CreatedAt.Format(time.RFC3339),
		"updated_at": p.UpdatedAt.Format(time.RFC3339),
	}
	if p.LastChecked != nil {
		fields["last_checked"] = p.LastChecked.UTC().Format(time.RFC3339)
	}
	return fields
}

func proxyFromFields(vals map[string]string) *models.Proxy {
	latency, _ := strconv.ParseUint(vals["latency_ms"], 10, 32)
	p := &models.Proxy{
		ID:        vals["id"],
		Address:   vals["address"],
		Status:    vals["status"],
		LatencyMs: uint32(latency),
		Geo:       vals["geo"],
		Org:       vals["org"],
		CreatedAt: parseTime(vals["created_at"]),
		UpdatedAt: parseTime(vals["updated_at"]),
	}
	p.LastChecked = parseTimePtr(vals["last_checked"])
	return p
}

func parseTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339, v)
	return t
}

func parseTimePtr(v string) *time.Time {
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}

func sortByCreation(rows []*models.Proxy) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
}
