package models

import (
	"fmt"
	"strings"
)

// ColumnDef defines a single column for a table.
// This is the single source of truth for table schemas, shared by the
// CREATE TABLE statements and the INSERT column lists in pkg/db.
type ColumnDef struct {
	// Name is the column name.
	Name string

	// Type is the ClickHouse data type (e.g., "UInt32", "String", "DateTime").
	Type string

	// Codec is the optional compression codec (e.g., "ZSTD(1)").
	// Leave empty for no codec.
	Codec string
}

// SQL returns the full column definition for CREATE TABLE statements.
// Example: "address String CODEC(ZSTD(1))"
func (c ColumnDef) SQL() string {
	if c.Codec != "" {
		return fmt.Sprintf("%s %s CODEC(%s)", c.Name, c.Type, c.Codec)
	}
	return fmt.Sprintf("%s %s", c.Name, c.Type)
}

// ColumnsToSchemaSQL renders the column list of a CREATE TABLE statement.
func ColumnsToSchemaSQL(cols []ColumnDef) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, c.SQL())
	}
	return strings.Join(parts, ",\n\t\t\t")
}

// ColumnsToNameList renders "a, b, c" for INSERT statements.
func ColumnsToNameList(cols []ColumnDef) string {
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Name)
	}
	return strings.Join(names, ", ")
}
