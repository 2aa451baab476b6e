package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverMySQL      = "mysql"
	DriverSQLite     = "sqlite3"
	DriverClickHouse = "clickhouse"
)

type Opts struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration // default 5s
}

// Open opens a *sqlx.DB for driver, applies pool limits and pings it.
func Open(driver, dsn string, opts Opts) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty %s DSN", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return db, nil
}

// NewFeatureStoreConnection opens the MySQL or SQLite database holding the
// client feature table.
func NewFeatureStoreConnection(driver, dsn string, opts Opts) (*sqlx.DB, error) {
	switch driver {
	case DriverMySQL:
		return Open(driver, dsn, opts)
	case DriverSQLite:
		// a single writer avoids SQLITE_BUSY during import
		opts.MaxOpenConns = 1
		return Open(driver, dsn, opts)
	default:
		return nil, fmt.Errorf("unsupported feature store driver %q", driver)
	}
}

// NewClickHouseConnection opens the prediction log store.
// dsn e.g. clickhouse://default:@localhost:9000/scoring?dial_timeout=5s&compress=true
func NewClickHouseConnection(dsn string, opts Opts) (*sqlx.DB, error) {
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 3 * time.Second
	}
	return Open(DriverClickHouse, dsn, opts)
}
