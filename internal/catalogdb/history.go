package catalogdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LoadRecord is one catalogue load attempt.
type LoadRecord struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	RowCount    int       `json:"rowCount"`
	DeviceCount int       `json:"deviceCount"`
	UpdateTime  int64     `json:"updateTime"`
	LoadedAt    time.Time `json:"loadedAt"`
	Error       string    `json:"error,omitempty"`
}

// Failed reports whether the load attempt failed.
func (r LoadRecord) Failed() bool {
	return r.Error != ""
}

// LoadFilter controls which load records ListLoads returns.
type LoadFilter struct {
	Source     string // optional: exact source location
	FailedOnly bool
	Limit      int // default 50, max 200
	Offset     int
}

// LoadList is a page of load records, most recent first.
type LoadList struct {
	Loads  []LoadRecord `json:"loads"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

const (
	defaultLoadLimit = 50
	maxLoadLimit     = 200

	// timeLayout has a fixed width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// RecordLoad inserts a load record. ID and LoadedAt are generated if empty.
func (s *Store) RecordLoad(ctx context.Context, rec *LoadRecord) error {
	if rec.ID == "" {
		rec.ID = "load-" + uuid.NewString()[:8]
	}
	if rec.LoadedAt.IsZero() {
		rec.LoadedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO load_history (id, source, row_count, device_count, update_time, loaded_at, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Source, rec.RowCount, rec.DeviceCount, rec.UpdateTime,
		rec.LoadedAt.UTC().Format(timeLayout),
		nullableString(rec.Error),
	)
	if err != nil {
		return fmt.Errorf("inserting load record: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ListLoads returns load records matching filter, most recent first.
func (s *Store) ListLoads(ctx context.Context, filter LoadFilter) (*LoadList, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLoadLimit
	}
	if filter.Limit > maxLoadLimit {
		filter.Limit = maxLoadLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.FailedOnly {
		conditions = append(conditions, "error IS NOT NULL")
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM load_history " + where //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting load records: %w", err)
	}

	query := "SELECT id, source, row_count, device_count, update_time, loaded_at, error FROM load_history " + //nolint:gosec // WHERE built from parameterised conditions
		where + " ORDER BY loaded_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying load records: %w", err)
	}
	defer rows.Close()

	loads := []LoadRecord{}
	for rows.Next() {
		var rec LoadRecord
		var loadedAt string
		var loadErr sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.RowCount, &rec.DeviceCount,
			&rec.UpdateTime, &loadedAt, &loadErr); err != nil {
			return nil, fmt.Errorf("scanning load record: %w", err)
		}
		rec.Error = loadErr.String
		rec.LoadedAt, err = time.Parse(timeLayout, loadedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing load timestamp %q: %w", loadedAt, err)
		}
		loads = append(loads, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating load records: %w", err)
	}

	return &LoadList{
		Loads:  loads,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}
