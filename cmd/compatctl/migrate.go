package main

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/nerrad567/gray-logic-compat/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-compat/migrations"
)

func migrateCmd() *Command {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	var (
		dbPath string
		down   bool
		status bool
	)
	fs.StringVar(&dbPath, "db", "", "catalogue database (required)")
	fs.BoolVar(&down, "down", false, "roll back the most recent migration")
	fs.BoolVar(&status, "status", false, "only list applied and pending migrations")

	return &Command{
		Flags: fs,
		Usage: "migrate --db <path> [flags]",
		Short: "Apply, roll back or list catalogue database migrations",
		Long: "Bring the catalogue database schema up to date. --down rolls back the\n" +
			"most recent migration; --status changes nothing.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			if dbPath == "" {
				return errors.New("--db is required")
			}
			if down && status {
				return errors.New("--down and --status are mutually exclusive")
			}

			db, err := database.Open(ctx, database.Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close() //nolint:errcheck // Read-mostly; each migration commits on its own

			switch {
			case down:
				applied, _, err := db.MigrationStatus(ctx, migrations.FS)
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					o.Println("nothing to roll back")
					break
				}
				if err := db.MigrateDown(ctx, migrations.FS); err != nil {
					return fmt.Errorf("rolling back: %w", err)
				}
				o.Println("rolled back", applied[len(applied)-1].Version)
			case !status:
				if err := db.Migrate(ctx, migrations.FS); err != nil {
					return fmt.Errorf("running migrations: %w", err)
				}
			}

			return printMigrationStatus(ctx, o, db)
		},
	}
}

func printMigrationStatus(ctx context.Context, o *IO, db *database.DB) error {
	applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		return err
	}
	o.Printf("%s: %d applied, %d pending\n", db.Path(), len(applied), len(pending))
	for _, m := range applied {
		o.Printf("  applied  %s  %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	for _, m := range pending {
		o.Printf("  pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}
