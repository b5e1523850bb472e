package models

import "time"

const TunnelsTableName = "tunnels"

// TunnelColumns defines the schema for the tunnels table.
var TunnelColumns = []ColumnDef{
	{Name: "id", Type: "String"},
	{Name: "name", Type: "String"},
	{Name: "domain", Type: "String"},
	{Name: "status", Type: "LowCardinality(String)"},
	{Name: "last_checked", Type: "Nullable(DateTime)"},
	{Name: "created_at", Type: "DateTime"},
	{Name: "updated_at", Type: "DateTime64(3)"},
}

// Tunnel represents a named tunnel domain shown on the dashboard.
type Tunnel struct {
	ID          string     `json:"id" ch:"id"`
	Name        string     `json:"name" ch:"name"`
	Domain      string     `json:"domain" ch:"domain"`
	Status      string     `json:"status" ch:"status"`
	LastChecked *time.Time `json:"last_checked" ch:"last_checked"`
	CreatedAt   time.Time  `json:"created_at" ch:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" ch:"updated_at"`
}
