package main

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
	"github.com/nerrad567/gray-logic-compat/internal/catalogdb"
	"github.com/nerrad567/gray-logic-compat/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-compat/internal/source"
	"github.com/nerrad567/gray-logic-compat/migrations"
)

func importCmd() *Command {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	var (
		lf     loadFlags
		dbPath string
	)
	lf.register(fs)
	fs.StringVar(&dbPath, "db", "", "catalogue database to write (required)")

	return &Command{
		Flags: fs,
		Usage: "import --db <path> [flags]",
		Short: "Copy a catalogue into a SQLite catalogue database",
		Long: "Fetch and validate the catalogue at --source and replace the contents of\n" +
			"the catalogue database. compatd can then load it as sqlite://<path>.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			if dbPath == "" {
				return errors.New("--db is required")
			}
			if lf.source == "" {
				return errNoSource
			}

			raw, err := source.NewFetcher(source.Config{Timeout: lf.timeout}).Fetch(ctx, lf.source)
			if err != nil {
				return err
			}
			payload, err := catalog.DecodePayload(raw)
			if err != nil {
				return err
			}

			db, err := database.Open(ctx, database.Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close() //nolint:errcheck // Best-effort close after the write committed

			if err := db.Migrate(ctx, migrations.FS); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}

			store := catalogdb.NewStore(db.DB)
			if err := store.ReplaceCatalog(ctx, payload); err != nil {
				return err
			}
			n, err := store.DeviceCount(ctx)
			if err != nil {
				return err
			}

			o.Printf("imported %d devices (updateTime %d) into %s\n", n, payload.UpdateTime, db.Path())
			return nil
		},
	}
}
