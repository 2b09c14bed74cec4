package db

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

// NewMySQLConnection opens the customers store. The DSN needs parseTime=true
// so DATETIME columns scan into time.Time.
func NewMySQLConnection(dsn string, opts PoolOpts) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty MySQL DSN")
	}
	return open("mysql", dsn, semconv.DBSystemMySQL, opts)
}
