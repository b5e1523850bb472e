package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/F4txhr/pla/pkg/db/models"
)

// ListTunnels returns all tunnels ordered by creation time.
func (db *DB) ListTunnels(ctx context.Context) ([]*models.Tunnel, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		ORDER BY created_at, id
	`, models.ColumnsToNameList(models.TunnelColumns), db.Name, models.TunnelsTableName)

	var rows []models.Tunnel
	if err := db.Select(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list tunnels: %w", err)
	}

	out := make([]*models.Tunnel, 0, len(rows))
	for i := range rows {
		out = append(out, &rows[i])
	}
	return out, nil
}

// UpsertTunnel inserts or updates a tunnel. A missing id means creation.
func (db *DB) UpsertTunnel(ctx context.Context, t *models.Tunnel) error {
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

	query := fmt.Sprintf(
		`INSERT INTO "%s"."%s" (%s) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		db.Name, models.TunnelsTableName, models.ColumnsToNameList(models.TunnelColumns),
	)
	return db.Exec(ctx, query,
		t.ID, t.Name, t.Domain, t.Status, t.LastChecked, t.CreatedAt, t.UpdatedAt,
	)
}

// DeleteTunnel removes a tunnel by id.
func (db *DB) DeleteTunnel(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM "%s"."%s" WHERE id = ?`, db.Name, models.TunnelsTableName)
	return db.Exec(ctx, query, id)
}
