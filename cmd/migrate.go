package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/frahmantamala/expense-tracker/db/migrations"
	"github.com/frahmantamala/expense-tracker/internal"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	_ "gorm.io/driver/sqlite"
)

var (
	migrateCmd = &cobra.Command{
		RunE:  runMigration,
		Use:   "migrate",
		Short: "to run db migration files under db/migrations",
	}
	migrateRollback bool
)

func init() {
	migrateCmd.Flags().BoolVarP(&migrateRollback, "rollback", "r", false, "to rollback the latest version of sql migration")
}

func runMigration(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(configDir)
	if err != nil {
		return err
	}

	dialect, err := gooseDialect(cfg.Storage.Driver)
	if err != nil {
		return err
	}

	db, err := goose.OpenDBWithDriver(sqlDriverName(cfg.Storage.Driver), cfg.Storage.Source)
	if err != nil {
		return fmt.Errorf("goose: failed to open DB: %w", err)
	}
	defer db.Close()

	return migrate(ctx, db, dialect, migrateRollback)
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case internal.StorageDriverPostgres:
		return "postgres", nil
	case internal.StorageDriverSQLite:
		return "sqlite3", nil
	}
	return "", fmt.Errorf("storage driver %q has no migrations", driver)
}

func migrate(ctx context.Context, db *sql.DB, dialect string, rollback bool) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetTableName("schema_migrations")
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose: %w", err)
	}

	command := "up"
	if rollback {
		command = "down"
	}
	if err := goose.RunContext(ctx, command, db, "."); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
