package device

import (
	"context"
	"time"
)

// History and report bounds.
const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 200

	DefaultReportDays = 31
	MaxReportDays     = 366
)

// Store persists the last known status of each device.
//
// Implementations must be safe for concurrent use. Upsert is atomic per
// call; All returns one State per device in no particular order.
type Store interface {
	// All returns every stored device state. An empty store returns an
	// empty slice and no error.
	All(ctx context.Context) ([]State, error)

	// Get returns one device state or ErrDeviceNotFound.
	Get(ctx context.Context, name string) (State, error)

	// Upsert creates or replaces the state for name, stamping it with the
	// current time.
	Upsert(ctx context.Context, name, status string) error
}

// HistoryReader is implemented by stores that keep a status log.
type HistoryReader interface {
	// History returns up to limit entries for name, newest first.
	// limit <= 0 means DefaultHistoryLimit; values above MaxHistoryLimit
	// are clamped.
	History(ctx context.Context, name string, limit int) ([]HistoryEntry, error)

	// DailyUsage returns per-UTC-day counts for the last days days
	// (today included), newest first. Days without changes are omitted.
	DailyUsage(ctx context.Context, days int) ([]DailyCount, error)
}

func clampHistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return min(limit, MaxHistoryLimit)
}

func clampReportDays(days int) int {
	if days <= 0 {
		return DefaultReportDays
	}
	return min(days, MaxReportDays)
}

// reportCutoff returns midnight UTC at the start of the oldest day covered
// by a days-long report ending on now.
func reportCutoff(now time.Time, days int) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))
}

const dayLayout = "2006-01-02"
