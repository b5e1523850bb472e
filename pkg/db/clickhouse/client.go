package clickhouse

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/F4txhr/pla/pkg/retry"
	"github.com/F4txhr/pla/pkg/utils"
)

// Client wraps a ClickHouse connection used by the record store.
type Client struct {
	Logger   *zap.Logger
	Db       driver.Conn
	Database string
}

// New initializes a new ClickHouse client with connection pooling and a
// ping-with-backoff so the dashboard survives the store coming up late.
func New(ctx context.Context, logger *zap.Logger, dbName string) (Client, error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	client := Client{Logger: logger, Database: dbName}
	retryConfig := retry.DefaultConfig()

	dsn := utils.Env("CLICKHOUSE_ADDR", "clickhouse://localhost:9000?sslmode=disable")
	addr, username, password := parseDSN(dsn)

	options := &clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: "default", // connect to default first; InitializeDB creates the target
			Username: username,
			Password: password,
		},
		DialTimeout:     30 * time.Second,
		MaxOpenConns:    utils.EnvInt("CLICKHOUSE_MAX_OPEN_CONNS", 20),
		MaxIdleConns:    utils.EnvInt("CLICKHOUSE_MAX_IDLE_CONNS", 10),
		ConnMaxLifetime: utils.EnvDuration("CLICKHOUSE_CONN_MAX_LIFETIME", time.Hour),
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		Settings: clickhouse.Settings{
			"prefer_column_name_to_alias": 1,
		},
	}

	err := retry.WithBackoff(connCtx, retryConfig, logger, "clickhouse_connection", func() error {
		conn, err := clickhouse.Open(options)
		if err != nil {
			return fmt.Errorf("failed to open clickhouse connection: %w", err)
		}

		client.Db = conn

		client.Logger.Debug("Pinging ClickHouse connection")
		if err := client.Db.Ping(connCtx); err != nil {
			return fmt.Errorf("failed to ping clickhouse: %w", err)
		}

		client.Logger.Info("ClickHouse connection pool configured",
			zap.String("database", dbName),
			zap.String("addr", addr),
		)
		return nil
	})
	if err != nil {
		return Client{}, err
	}

	return client, nil
}

// CreateDbIfNotExists creates the target database when it is missing.
func (c Client) CreateDbIfNotExists(ctx context.Context, name string) error {
	return c.Db.Exec(ctx, fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS "%s"`, name))
}

// Exec runs a statement with no result set.
func (c Client) Exec(ctx context.Context, query string, args ...any) error {
	return c.Db.Exec(ctx, query, args...)
}

// Select scans a result set into dest.
func (c Client) Select(ctx context.Context, dest any, query string, args ...any) error {
	return c.Db.Select(ctx, dest, query, args...)
}

// PrepareBatch starts a bulk insert.
func (c Client) PrepareBatch(ctx context.Context, query string) (driver.Batch, error) {
	return c.Db.PrepareBatch(ctx, query)
}

// Close terminates the underlying connection.
func (c Client) Close() error {
	return c.Db.Close()
}

// parseDSN extracts the host:port and credentials from a clickhouse:// DSN.
func parseDSN(dsn string) (addr, username, password string) {
	addr = "localhost:9000"
	u, err := url.Parse(dsn)
	if err != nil {
		return addr, "default", ""
	}
	if u.Host != "" {
		addr = u.Host
		if !strings.Contains(addr, ":") {
			addr += ":9000"
		}
	}
	username = "default"
	if u.User != nil {
		if name := u.User.Username(); name != "" {
			username = name
		}
		password, _ = u.User.Password()
	}
	return addr, username, password
}
