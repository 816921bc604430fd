package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/fieldline/fieldline/internal"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

var (
	migrateCmd = &cobra.Command{
		RunE:  runMigration,
		Use:   "migrate",
		Short: "to run db migration files under db/migrations/<driver> directory",
	}
	migrateRollback bool
	migrateDir      string
)

func init() {
	migrateCmd.Flags().BoolVarP(&migrateRollback, "rollback", "r", false, "to rollback the latest version of sql migration")
	migrateCmd.PersistentFlags().StringVarP(&migrateDir, "dir", "d", "", "sql migrations directory (default db/migrations/<driver>)")
}

func gooseDialect(driver string) string {
	if driver == internal.DriverSQLite {
		return "sqlite3"
	}
	return "postgres"
}

func runMigration(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := setup()
	if err != nil {
		return err
	}

	db, err := initDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	dir := migrateDir
	if dir == "" {
		dir = filepath.Join("db", "migrations", cfg.Database.Driver)
	}

	if err := goose.SetDialect(gooseDialect(cfg.Database.Driver)); err != nil {
		return fmt.Errorf("goose: %w", err)
	}
	goose.SetTableName("schema_migrations")

	command := "up"
	if migrateRollback {
		command = "down"
	}
	if err := goose.RunContext(ctx, command, db.SQL.DB, dir); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}

	return nil
}
