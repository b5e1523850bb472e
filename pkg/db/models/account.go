package models

import "time"

const AccountsTableName = "accounts"

// AccountColumns defines the schema for the accounts table.
var AccountColumns = []ColumnDef{
	{Name: "id", Type: "String"},
	{Name: "username", Type: "String"},
	{Name: "uuid", Type: "String"},
	{Name: "created_at", Type: "DateTime"},
	{Name: "updated_at", Type: "DateTime64(3)"},
}

// Account is a VPN account entry (username plus the client UUID embedded
// into generated configuration links).
type Account struct {
	ID        string    `json:"id" ch:"id"`
	Username  string    `json:"username" ch:"username"`
	UUID      string    `json:"uuid" ch:"uuid"`
	CreatedAt time.Time `json:"created_at" ch:"created_at"`
	UpdatedAt time.Time `json:"updated_at" ch:"updated_at"`
}
