package cmd

import (
	"fmt"

	"github.com/jmehdipour/customers-api/internal/config"
	"github.com/jmehdipour/customers-api/internal/db"
	"github.com/jmehdipour/customers-api/internal/logger"
	"github.com/jmehdipour/customers-api/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo customers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.PoolFromConfig(cfg.MySQL))
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		n, err := seedCustomers(sqlDB)
		if err != nil {
			return err
		}

		logger.Log.Info("seed completed", zap.Int("customers", n))
		return nil
	},
}

var demoCustomers = []model.CustomerFields{
	{Name: "Acme Corp", Email: "contact@acme.test", Phone: "9000000001"},
	{Name: "Foobar LLC", Email: "hello@foobar.test", Phone: "9000000002"},
	{Name: "Beta Testers", Email: "beta@testers.test", Phone: "8000000003"},
	{Name: "Globex", Email: "info@globex.test", Phone: "8000000004"},
	{Name: "Initech", Email: "office@initech.test", Phone: "7000000005"},
}

// seedCustomers upserts the demo customers keyed on their unique email. Seeded
// rows bypass the outbox.
func seedCustomers(dbx *sqlx.DB) (int, error) {
	const q = `
INSERT INTO customers
    (name, email, phone, created_at, updated_at)
VALUES
    (?, ?, ?, NOW(), NOW())
ON DUPLICATE KEY UPDATE
    name       = VALUES(name),
    phone      = VALUES(phone),
    updated_at = NOW()
`
	tx, err := dbx.Beginx()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, c := range demoCustomers {
		if _, err := tx.Exec(q, c.Name, c.Email, c.Phone); err != nil {
			return 0, fmt.Errorf("insert customer %q: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit customers: %w", err)
	}
	return len(demoCustomers), nil
}
