package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ychetra/demo-light/internal/infrastructure/database"
)

// sqliteTimeLayout is fixed-width so stored timestamps sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

// SQLiteStore persists device states in the device_status table and logs
// every upsert to device_status_history.
type SQLiteStore struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLiteStore wraps an open, migrated database.
func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// All implements Store.
func (s *SQLiteStore) All(ctx context.Context) ([]State, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT device_name, status, updated_at FROM device_status ORDER BY device_name")
	if err != nil {
		return nil, fmt.Errorf("%w: querying device status: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	states := make([]State, 0)
	for rows.Next() {
		var st State
		var updatedAt string
		if err := rows.Scan(&st.DeviceName, &st.Status, &updatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning device status: %w", ErrStoreUnavailable, err)
		}
		if st.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating device status: %w", ErrStoreUnavailable, err)
	}
	return states, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, name string) (State, error) {
	st := State{DeviceName: name}
	var updatedAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT status, updated_at FROM device_status WHERE device_name = ?", name,
	).Scan(&st.Status, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, ErrDeviceNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("%w: querying device %s: %w", ErrStoreUnavailable, name, err)
	}

	if st.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
		return State{}, err
	}
	return st, nil
}

// Upsert implements Store. The state row and the history row are written
// in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, name, status string) error {
	at := s.now().UTC().Format(sqliteTimeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: starting transaction: %w", ErrStoreUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO device_status (device_name, status, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (device_name) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at`,
		name, status, at,
	); err != nil {
		return fmt.Errorf("%w: upserting %s: %w", ErrStoreUnavailable, name, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO device_status_history (device_name, status, recorded_at) VALUES (?, ?, ?)",
		name, status, at,
	); err != nil {
		return fmt.Errorf("%w: recording history for %s: %w", ErrStoreUnavailable, name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing upsert: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// History implements HistoryReader.
func (s *SQLiteStore) History(ctx context.Context, name string, limit int) ([]HistoryEntry, error) {
	limit = clampHistoryLimit(limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_name, status, recorded_at
		FROM device_status_history
		WHERE device_name = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`,
		name, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: querying history: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var e HistoryEntry
		var recordedAt string
		if err := rows.Scan(&e.ID, &e.DeviceName, &e.Status, &recordedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning history: %w", ErrStoreUnavailable, err)
		}
		if e.RecordedAt, err = parseSQLiteTime(recordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating history: %w", ErrStoreUnavailable, err)
	}
	return entries, nil
}

// DailyUsage implements HistoryReader.
func (s *SQLiteStore) DailyUsage(ctx context.Context, days int) ([]DailyCount, error) {
	cutoff := reportCutoff(s.now(), clampReportDays(days)).Format(sqliteTimeLayout)

	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(recorded_at, 1, 10) AS day,
		       COUNT(*),
		       SUM(CASE WHEN lower(status) = 'on' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN lower(status) = 'off' THEN 1 ELSE 0 END)
		FROM device_status_history
		WHERE recorded_at >= ?
		GROUP BY day
		ORDER BY day DESC`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: querying daily usage: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	counts := make([]DailyCount, 0)
	for rows.Next() {
		var dc DailyCount
		if err := rows.Scan(&dc.Day, &dc.Changes, &dc.On, &dc.Off); err != nil {
			return nil, fmt.Errorf("%w: scanning daily usage: %w", ErrStoreUnavailable, err)
		}
		counts = append(counts, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating daily usage: %w", ErrStoreUnavailable, err)
	}
	return counts, nil
}

// parseSQLiteTime accepts the fixed layout and plain RFC3339 for rows
// written by hand.
func parseSQLiteTime(value string) (time.Time, error) {
	if t, err := time.Parse(sqliteTimeLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}
