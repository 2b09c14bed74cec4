package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmehdipour/customers-api/internal/config"
	"github.com/jmoiron/sqlx"
	"go.nhat.io/otelsql"
	"go.opentelemetry.io/otel/attribute"
)

// PoolOpts tunes database/sql pooling for a connection.
type PoolOpts struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

func PoolFromConfig(c config.DatabaseConfig) PoolOpts {
	return PoolOpts{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		PingTimeout:     c.PingTimeout,
	}
}

// open registers an otelsql wrapper around driverName, opens dsn through it
// and pings. The returned *sqlx.DB keeps the original driver name so sqlx
// picks the right bind type.
func open(driverName, dsn string, system attribute.KeyValue, opts PoolOpts) (*sqlx.DB, error) {
	wrapped, err := otelsql.Register(driverName,
		otelsql.WithSystem(system),
		otelsql.TraceQueryWithoutArgs(),
		otelsql.TraceRowsAffected(),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql for %s: %w", driverName, err)
	}

	sqlDB, err := sql.Open(wrapped, dsn)
	if err != nil {
		return nil, err
	}
	if err := otelsql.RecordStats(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("record %s stats: %w", driverName, err)
	}

	db := sqlx.NewDb(sqlDB, driverName)
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
		return nil, err
	}

	return db, nil
}
