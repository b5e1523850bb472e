package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/F4txhr/pla/pkg/db/clickhouse"
	"github.com/F4txhr/pla/pkg/db/models"
	"github.com/F4txhr/pla/pkg/utils"
)

const (
	ReplacingMergeTree = "ReplacingMergeTree"
)

// DB is the ClickHouse-backed record store.
type DB struct {
	clickhouse.Client
	Name string
}

var _ Store = (*DB)(nil)

// New connects to ClickHouse and ensures the dashboard tables exist.
func New(ctx context.Context, logger *zap.Logger) (*DB, error) {
	name := utils.Env("PLA_DB", "pla")

	client, err := clickhouse.New(ctx, logger.With(zap.String("db", name)), name)
	if err != nil {
		return nil, err
	}

	db := &DB{Client: client, Name: name}
	if err := db.InitializeDB(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// InitializeDB creates the database and tables if they do not already exist.
func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Info("Initializing dashboard database", zap.String("database", db.Name))

	if err := db.CreateDbIfNotExists(ctx, db.Name); err != nil {
		return fmt.Errorf("failed to create database %s: %w", db.Name, err)
	}

	if err := db.initProxies(ctx); err != nil {
		return err
	}
	if err := db.initTunnels(ctx); err != nil {
		return err
	}
	if err := db.initAccounts(ctx); err != nil {
		return err
	}
	if err := db.initMetadata(ctx); err != nil {
		return err
	}

	return nil
}

// initProxies creates the proxies table. ReplacingMergeTree(updated_at)
// keyed on id means every bulk write is an insert of new row versions;
// reads use FINAL to observe the latest version per id.
func (db *DB) initProxies(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			%s
		) ENGINE = %s(updated_at)
		ORDER BY id
	`, db.Name, models.ProxiesTableName, models.ColumnsToSchemaSQL(models.ProxyColumns), ReplacingMergeTree)

	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", models.ProxiesTableName, err)
	}
	return nil
}

func (db *DB) initTunnels(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			%s
		) ENGINE = %s(updated_at)
		ORDER BY id
	`, db.Name, models.TunnelsTableName, models.ColumnsToSchemaSQL(models.TunnelColumns), ReplacingMergeTree)

	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", models.TunnelsTableName, err)
	}
	return nil
}

func (db *DB) initAccounts(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			%s
		) ENGINE = %s(updated_at)
		ORDER BY id
	`, db.Name, models.AccountsTableName, models.ColumnsToSchemaSQL(models.AccountColumns), ReplacingMergeTree)

	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", models.AccountsTableName, err)
	}
	return nil
}

func (db *DB) initMetadata(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			%s
		) ENGINE = %s(updated_at)
		ORDER BY key
	`, db.Name, models.MetadataTableName, models.ColumnsToSchemaSQL(models.MetadataColumns), ReplacingMergeTree)

	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", models.MetadataTableName, err)
	}
	return nil
}
