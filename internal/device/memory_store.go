package device

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps states and history in process memory.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	states  map[string]State
	history []HistoryEntry
	nextID  int64

	now func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]State),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// All implements Store.
func (s *MemoryStore) All(ctx context.Context) ([]State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]State, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st)
	}
	return out, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, name string) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[name]
	if !ok {
		return State{}, ErrDeviceNotFound
	}
	return st, nil
}

// Upsert implements Store.
func (s *MemoryStore) Upsert(ctx context.Context, name, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now()
	s.states[name] = State{DeviceName: name, Status: status, UpdatedAt: at}

	s.nextID++
	s.history = append(s.history, HistoryEntry{
		ID:         s.nextID,
		DeviceName: name,
		Status:     status,
		RecordedAt: at,
	})
	return nil
}

// History implements HistoryReader.
func (s *MemoryStore) History(ctx context.Context, name string, limit int) ([]HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = clampHistoryLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]HistoryEntry, 0, limit)
	for i := len(s.history) - 1; i >= 0 && len(out) < limit; i-- {
		if s.history[i].DeviceName == name {
			out = append(out, s.history[i])
		}
	}
	return out, nil
}

// DailyUsage implements HistoryReader.
func (s *MemoryStore) DailyUsage(ctx context.Context, days int) ([]DailyCount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cutoff := reportCutoff(s.now(), clampReportDays(days))

	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[string]*DailyCount)
	for _, h := range s.history {
		if h.RecordedAt.Before(cutoff) {
			continue
		}
		day := h.RecordedAt.UTC().Format(dayLayout)
		dc, ok := byDay[day]
		if !ok {
			dc = &DailyCount{Day: day}
			byDay[day] = dc
		}
		dc.Changes++
		switch strings.ToLower(h.Status) {
		case "on":
			dc.On++
		case "off":
			dc.Off++
		}
	}

	out := make([]DailyCount, 0, len(byDay))
	for _, dc := range byDay {
		out = append(out, *dc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day > out[j].Day })
	return out, nil
}
