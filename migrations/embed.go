// Package migrations embeds the schema applied by the migrate command.
package migrations

import "embed"

// MySQL holds the customers/outbox schema; ClickHouse the audit table.
var (
	//go:embed 001_init.sql
	MySQL string

	//go:embed clickhouse/*.sql
	ClickHouse embed.FS
)
