package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/F4txhr/pla/pkg/db/models"
)

// Mem is an in-memory Store for local development and tests. It mirrors
// the dashboard's development simulator: state lives for the lifetime of
// the process and resets on restart.
type Mem struct {
	mu       sync.RWMutex
	proxies  map[string]*models.Proxy
	tunnels  map[string]*models.Tunnel
	accounts map[string]*models.Account
	meta     map[string]string
}

var _ Store = (*Mem)(nil)

// NewMem returns an empty in-memory store.
func NewMem() *Mem {
	return &Mem{
		proxies:  make(map[string]*models.Proxy),
		tunnels:  make(map[string]*models.Tunnel),
		accounts: make(map[string]*models.Account),
		meta:     make(map[string]string),
	}
}

func (m *Mem) ListProxies(_ context.Context, page, pageSize int, status string) ([]*models.Proxy, error) {
	if pageSize <= 0 || pageSize > PageSize {
		pageSize = PageSize
	}
	if page < 0 {
		page = 0
	}

	m.mu.RLock()
	rows := make([]*models.Proxy, 0, len(m.proxies))
	for _, p := range m.proxies {
		if status != "" && p.Status != status {
			continue
		}
		cp := *p
		rows = append(rows, &cp)
	}
	m.mu.RUnlock()

	sortProxies(rows)

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

func (m *Mem) AllProxies(ctx context.Context) ([]*models.Proxy, error) {
	var all []*models.Proxy
	for page := 0; ; page++ {
		rows, err := m.ListProxies(ctx, page, PageSize, "")
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return all, nil
		}
		all = append(all, rows...)
	}
}

func (m *Mem) ImportProxies(_ context.Context, proxies []*models.Proxy) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := make(map[string]struct{}, len(m.proxies))
	for _, p := range m.proxies {
		existing[p.Address] = struct{}{}
	}

	now := time.Now().UTC()
	inserted := 0
	for _, p := range proxies {
		if p.Address == "" {
			continue
		}
		if _, dup := existing[p.Address]; dup {
			continue
		}
		existing[p.Address] = struct{}{}

		rec := &models.Proxy{
			ID:        uuid.NewString(),
			Address:   p.Address,
			Status:    models.StatusUnknown,
			Geo:       p.Geo,
			Org:       p.Org,
			CreatedAt: now,
			UpdatedAt: now,
		}
		m.proxies[rec.ID] = rec
		inserted++
	}
	return inserted, nil
}

func (m *Mem) ResetForCheck(_ context.Context, proxies []*models.Proxy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, p := range proxies {
		rec, ok := m.proxies[p.ID]
		if !ok {
			continue
		}
		rec.Status = models.StatusTesting
		rec.LatencyMs = 0
		rec.UpdatedAt = now
	}
	return nil
}

func (m *Mem) WriteOutcomes(_ context.Context, proxies []*models.Proxy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, p := range proxies {
		rec, ok := m.proxies[p.ID]
		if !ok {
			cp := *p
			cp.UpdatedAt = now
			m.proxies[cp.ID] = &cp
			continue
		}
		rec.Status = p.Status
		rec.LatencyMs = p.LatencyMs
		rec.LastChecked = p.LastChecked
		rec.UpdatedAt = now
	}
	return nil
}

func (m *Mem) UnknownProxies(_ context.Context) ([]*models.Proxy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var unknown []*models.Proxy
	for _, p := range m.proxies {
		if p.Status == models.StatusUnknown {
			cp := *p
			unknown = append(unknown, &cp)
		}
	}
	sortProxies(unknown)
	return unknown, nil
}

func (m *Mem) StaleTesting(_ context.Context, before time.Time) ([]*models.Proxy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stale []*models.Proxy
	for _, p := range m.proxies {
		if p.Status == models.StatusTesting && p.UpdatedAt.Before(before) {
			cp := *p
			stale = append(stale, &cp)
		}
	}
	sortProxies(stale)
	return stale, nil
}

func (m *Mem) ProxyStats(_ context.Context) (*models.ProxyStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.ProxyStats{ByStatus: make(map[string]uint64)}
	for _, p := range m.proxies {
		stats.ByStatus[p.Status]++
		stats.Total++
	}
	stats.LastUpdated = m.meta[models.MetaKeyLastUpdated]
	return stats, nil
}

func (m *Mem) ListTunnels(_ context.Context) ([]*models.Tunnel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]*models.Tunnel, 0, len(m.tunnels))
	for _, t := range m.tunnels {
		cp := *t
		rows = append(rows, &cp)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	return rows, nil
}

func (m *Mem) UpsertTunnel(_ context.Context, t *models.Tunnel) error {
	if t.Name == "" || t.Domain == "" {
		return fmt.Errorf("tunnel name and domain are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
		t.CreatedAt = now
	}
	if t.Status == "" {
		t.Status = models.StatusUnknown
	}
	t.UpdatedAt = now

	cp := *t
	m.tunnels[cp.ID] = &cp
	return nil
}

func (m *Mem) DeleteTunnel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tunnels, id)
	return nil
}

func (m *Mem) ListAccounts(_ context.Context) ([]*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]*models.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		cp := *a
		rows = append(rows, &cp)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	return rows, nil
}

func (m *Mem) UpsertAccount(_ context.Context, a *models.Account) error {
	if a.Username == "" {
		return fmt.Errorf("account username is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = uuid.NewString()
		a.CreatedAt = now
	}
	if a.UUID == "" {
		a.UUID = uuid.NewString()
	}
	a.UpdatedAt = now

	cp := *a
	m.accounts[cp.ID] = &cp
	return nil
}

func (m *Mem) DeleteAccount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, id)
	return nil
}

func (m *Mem) SetMeta(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[key] = value
	return nil
}

func (m *Mem) GetMeta(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meta[key], nil
}

func (m *Mem) Close() error { return nil }

func sortProxies(rows []*models.Proxy) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
}
