package models

import "time"

const MetadataTableName = "metadata"

// MetaKeyLastUpdated records when the proxy population was last touched
// by an import or a check cycle.
const MetaKeyLastUpdated = "last_updated_timestamp"

// MetadataColumns defines the schema for the metadata key/value table.
var MetadataColumns = []ColumnDef{
	{Name: "key", Type: "String"},
	{Name: "value", Type: "String"},
	{Name: "updated_at", Type: "DateTime64(3)"},
}

// Metadata is a single key/value entry.
type Metadata struct {
	Key       string    `json:"key" ch:"key"`
	Value     string    `json:"value" ch:"value"`
	UpdatedAt time.Time `json:"updated_at" ch:"updated_at"`
}
