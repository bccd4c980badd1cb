package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists device states in PostgreSQL. The schema comes
// from migrations.Postgres via postgres.Migrate.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore wraps a connected pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// All implements Store.
func (s *PostgresStore) All(ctx context.Context) ([]State, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT device_name, status, updated_at FROM device_status ORDER BY device_name")
	if err != nil {
		return nil, fmt.Errorf("%w: querying device status: %w", ErrStoreUnavailable, err)
	}

	states, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (State, error) {
		var st State
		err := row.Scan(&st.DeviceName, &st.Status, &st.UpdatedAt)
		st.UpdatedAt = st.UpdatedAt.UTC()
		return st, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading device status: %w", ErrStoreUnavailable, err)
	}
	if states == nil {
		states = []State{}
	}
	return states, nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, name string) (State, error) {
	st := State{DeviceName: name}
	err := s.pool.QueryRow(ctx,
		"SELECT status, updated_at FROM device_status WHERE device_name = $1", name,
	).Scan(&st.Status, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, ErrDeviceNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("%w: querying device %s: %w", ErrStoreUnavailable, name, err)
	}
	st.UpdatedAt = st.UpdatedAt.UTC()
	return st, nil
}

// Upsert implements Store.
func (s *PostgresStore) Upsert(ctx context.Context, name, status string) error {
	at := s.now()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO device_status (device_name, status, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (device_name) DO UPDATE SET
				status = EXCLUDED.status,
				updated_at = EXCLUDED.updated_at`,
			name, status, at,
		); err != nil {
			return fmt.Errorf("upserting %s: %w", name, err)
		}

		if _, err := tx.Exec(ctx,
			"INSERT INTO device_status_history (device_name, status, recorded_at) VALUES ($1, $2, $3)",
			name, status, at,
		); err != nil {
			return fmt.Errorf("recording history for %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// History implements HistoryReader.
func (s *PostgresStore) History(ctx context.Context, name string, limit int) ([]HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, device_name, status, recorded_at
		FROM device_status_history
		WHERE device_name = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2`,
		name, clampHistoryLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: querying history: %w", ErrStoreUnavailable, err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (HistoryEntry, error) {
		var e HistoryEntry
		err := row.Scan(&e.ID, &e.DeviceName, &e.Status, &e.RecordedAt)
		e.RecordedAt = e.RecordedAt.UTC()
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading history: %w", ErrStoreUnavailable, err)
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	return entries, nil
}

// DailyUsage implements HistoryReader.
func (s *PostgresStore) DailyUsage(ctx context.Context, days int) ([]DailyCount, error) {
	cutoff := reportCutoff(s.now(), clampReportDays(days))

	rows, err := s.pool.Query(ctx, `
		SELECT to_char(recorded_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE lower(status) = 'on'),
		       COUNT(*) FILTER (WHERE lower(status) = 'off')
		FROM device_status_history
		WHERE recorded_at >= $1
		GROUP BY day
		ORDER BY day DESC`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: querying daily usage: %w", ErrStoreUnavailable, err)
	}

	counts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (DailyCount, error) {
		var dc DailyCount
		var changes, on, off int64
		err := row.Scan(&dc.Day, &changes, &on, &off)
		dc.Changes, dc.On, dc.Off = int(changes), int(on), int(off)
		return dc, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading daily usage: %w", ErrStoreUnavailable, err)
	}
	if counts == nil {
		counts = []DailyCount{}
	}
	return counts, nil
}
