package cmd

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmehdipour/customers-api/internal/config"
	"github.com/jmehdipour/customers-api/internal/db"
	"github.com/jmehdipour/customers-api/internal/logger"
	"github.com/jmehdipour/customers-api/migrations"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateClickHouse bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the customers and outbox tables (and the ClickHouse audit table with --clickhouse)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.PoolFromConfig(cfg.MySQL))
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sqlDB.Close()

		// the DSN carries multiStatements=true
		if _, err := sqlDB.Exec(migrations.MySQL); err != nil {
			return fmt.Errorf("exec mysql migration: %w", err)
		}
		logger.Log.Info("mysql migration complete")

		if !migrateClickHouse {
			return nil
		}

		chDB, err := db.NewClickHouseConnection(cfg.ClickHouse.DSN, db.PoolFromConfig(cfg.ClickHouse))
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer chDB.Close()

		if err := applyClickHouse(chDB, migrations.ClickHouse); err != nil {
			return err
		}
		logger.Log.Info("clickhouse migration complete")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateClickHouse, "clickhouse", false, "also create the ClickHouse audit table")
}

// applyClickHouse runs every *.sql file in order, one statement per Exec.
func applyClickHouse(chDB *sqlx.DB, fsys fs.FS) error {
	files, err := fs.Glob(fsys, "clickhouse/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, name := range files {
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		for _, stmt := range strings.Split(string(b), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := chDB.Exec(stmt); err != nil {
				return fmt.Errorf("exec %s: %w", name, err)
			}
		}
		logger.Log.Info("applied", zap.String("file", name))
	}
	return nil
}
