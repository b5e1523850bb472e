package models

import (
	"time"
)

const ProxiesTableName = "proxies"

// Proxy status values. Status is mutated only by the check pipeline:
// reset writes "testing", outcome persistence writes "online"/"offline".
const (
	StatusUnknown = "unknown"
	StatusTesting = "testing"
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ProxyColumns defines the schema for the proxies table.
var ProxyColumns = []ColumnDef{
	{Name: "id", Type: "String"},
	{Name: "address", Type: "String", Codec: "ZSTD(1)"},
	{Name: "status", Type: "LowCardinality(String)"},
	{Name: "latency_ms", Type: "UInt32"},
	{Name: "last_checked", Type: "Nullable(DateTime)"},
	{Name: "geo", Type: "LowCardinality(String)"},
	{Name: "org", Type: "String", Codec: "ZSTD(1)"},
	{Name: "created_at", Type: "DateTime"},
	// version column; millisecond precision keeps reset and outcome
	// writes within the same second ordered
	{Name: "updated_at", Type: "DateTime64(3)"},
}

// Proxy represents one proxy record in the dashboard.
type Proxy struct {
	ID          string     `json:"id" ch:"id"`
	Address     string     `json:"address" ch:"address"` // host:port, optionally with credentials
	Status      string     `json:"status" ch:"status"`
	LatencyMs   uint32     `json:"latency_ms" ch:"latency_ms"`
	LastChecked *time.Time `json:"last_checked" ch:"last_checked"` // nil until first completed probe
	Geo         string     `json:"geo" ch:"geo"`
	Org         string     `json:"org" ch:"org"`
	CreatedAt   time.Time  `json:"created_at" ch:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" ch:"updated_at"`
}

// ProxyStats summarizes the population for the dashboard landing page.
type ProxyStats struct {
	Total       uint64            `json:"total"`
	ByStatus    map[string]uint64 `json:"by_status"`
	LastUpdated string            `json:"last_updated,omitempty"`
}
