package db

import (
	"context"
	"fmt"
	"time"

	"github.com/F4txhr/pla/pkg/db/models"
)

// SetMeta upserts a metadata key in one round trip.
func (db *DB) SetMeta(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(
		`INSERT INTO "%s"."%s" (%s) VALUES (?, ?, ?)`,
		db.Name, models.MetadataTableName, models.ColumnsToNameList(models.MetadataColumns),
	)
	return db.Exec(ctx, query, key, value, time.Now().UTC())
}

// GetMeta reads a metadata key. A missing key returns an empty string.
func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	query := fmt.Sprintf(`
		SELECT value
		FROM "%s"."%s" FINAL
		WHERE key = ?
	`, db.Name, models.MetadataTableName)

	var rows []struct {
		Value string `ch:"value"`
	}
	if err := db.Select(ctx, &rows, query, key); err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].Value, nil
}
