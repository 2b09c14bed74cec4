package db

import (
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
)

// NewClickHouseConnection opens the audit store used by the audit worker,
// e.g. clickhouse://default:@localhost:9000/customers?dial_timeout=5s.
func NewClickHouseConnection(dsn string, opts PoolOpts) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty ClickHouse DSN")
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 3 * time.Second
	}
	return open("clickhouse", dsn, attribute.String("db.system", "clickhouse"), opts)
}
