package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/F4txhr/pla/pkg/db/models"
)

// ListAccounts returns all VPN accounts ordered by creation time.
func (db *DB) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM "%s"."%s" FINAL
		ORDER BY created_at, id
	`, models.ColumnsToNameList(models.AccountColumns), db.Name, models.AccountsTableName)

	var rows []models.Account
	if err := db.Select(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	out := make([]*models.Account, 0, len(rows))
	for i := range rows {
		out = append(out, &rows[i])
	}
	return out, nil
}

// UpsertAccount inserts or updates a VPN account. A missing client UUID is
// generated server-side.
func (db *DB) UpsertAccount(ctx context.Context, a *models.Account) error {
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

	query := fmt.Sprintf(
		`INSERT INTO "%s"."%s" (%s) VALUES (?, ?, ?, ?, ?)`,
		db.Name, models.AccountsTableName, models.ColumnsToNameList(models.AccountColumns),
	)
	return db.Exec(ctx, query, a.ID, a.Username, a.UUID, a.CreatedAt, a.UpdatedAt)
}

// DeleteAccount removes an account by id.
func (db *DB) DeleteAccount(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM "%s"."%s" WHERE id = ?`, db.Name, models.AccountsTableName)
	return db.Exec(ctx, query, id)
}
