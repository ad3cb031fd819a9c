package catalogdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
)

const metaUpdateTime = "update_time"

// Store reads and writes catalogues and load history.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an open, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ReplaceCatalog atomically replaces the stored catalogue with p.
//
// Parameters:
//   - ctx: Context for cancellation
//   - p: The catalogue; every device must have a model
//
// Returns:
//   - error: catalog.ErrMissingModel (wrapped) or a database error
func (s *Store) ReplaceCatalog(ctx context.Context, p catalog.Payload) error {
	if err := catalog.Validate(p.SupportDevices); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM catalog_devices"); err != nil {
		return fmt.Errorf("clearing devices: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO catalog_devices (position, model, payload) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, dev := range p.SupportDevices {
		raw, err := json.Marshal(dev)
		if err != nil {
			return fmt.Errorf("marshalling device %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, i, dev.DeviceInfo.Model, string(raw)); err != nil {
			return fmt.Errorf("inserting device %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO catalog_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaUpdateTime, strconv.FormatInt(p.UpdateTime, 10),
	); err != nil {
		return fmt.Errorf("writing update time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing catalogue: %w", err)
	}
	return nil
}

// ReadPayload returns the stored catalogue in source order.
//
// Returns:
//   - catalog.Payload: The catalogue as it was imported
//   - error: ErrEmptyCatalog if nothing was imported, ErrCorruptRecord on a bad row
func (s *Store) ReadPayload(ctx context.Context) (catalog.Payload, error) {
	var updateTime string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM catalog_meta WHERE key = ?", metaUpdateTime).Scan(&updateTime)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Payload{}, ErrEmptyCatalog
	}
	if err != nil {
		return catalog.Payload{}, fmt.Errorf("reading update time: %w", err)
	}

	p := catalog.Payload{SupportDevices: []catalog.RawDevice{}}
	p.UpdateTime, err = strconv.ParseInt(updateTime, 10, 64)
	if err != nil {
		return catalog.Payload{}, fmt.Errorf("%w: update time %q", ErrCorruptRecord, updateTime)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT position, payload FROM catalog_devices ORDER BY position")
	if err != nil {
		return catalog.Payload{}, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var position int
		var raw string
		if err := rows.Scan(&position, &raw); err != nil {
			return catalog.Payload{}, fmt.Errorf("scanning device: %w", err)
		}
		var dev catalog.RawDevice
		if err := json.Unmarshal([]byte(raw), &dev); err != nil {
			return catalog.Payload{}, fmt.Errorf("%w: position %d: %w", ErrCorruptRecord, position, err)
		}
		p.SupportDevices = append(p.SupportDevices, dev)
	}
	if err := rows.Err(); err != nil {
		return catalog.Payload{}, fmt.Errorf("iterating devices: %w", err)
	}

	return p, nil
}

// DeviceCount returns the number of stored devices.
func (s *Store) DeviceCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM catalog_devices").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting devices: %w", err)
	}
	return n, nil
}
