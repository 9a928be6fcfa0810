// Package postgres stores events and link tombstones in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/pressly/goose/v3"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/connect"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/logger"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/store/postgres/migrations"
)

const (
	// DefaultMaxIdleConns is the default maximum number of idle connections
	DefaultMaxIdleConns = 5
	// DefaultConnMaxLifetime is the default maximum connection lifetime
	DefaultConnMaxLifetime = 5 * time.Minute
)

// Options configures the connection pool and its start-up retry.
type Options struct {
	DSN          string
	MaxOpenConns int
	Retry        connect.Options
}

// Connect opens the pool and waits until the database answers.
func Connect(ctx context.Context, opts Options, log logger.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(min(DefaultMaxIdleConns, opts.MaxOpenConns))
	}
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	retry := opts.Retry
	retry.Service = "postgres"
	retry.Addr = dsnAddr(opts.DSN)

	if err := connect.WithRetry(ctx, retry, db.PingContext, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// dsnAddr returns host[:port]/dbname for URL style DSNs so credentials never
// reach the logs. Keyword style DSNs are not parsed.
func dsnAddr(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return "postgres"
	}
	return u.Host + u.Path
}

// execRequireRows turns a statement that touched no rows into notFoundErr.
func execRequireRows(result sql.Result, notFoundErr error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}
