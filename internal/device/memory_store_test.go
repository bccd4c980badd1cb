package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, func(*testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStore_History(t *testing.T) {
	testHistoryContract(t, func(*testing.T) (Store, HistoryReader, func(time.Time)) {
		s := NewMemoryStore()
		return s, s, func(at time.Time) { s.now = func() time.Time { return at } }
	})
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Upsert(ctx, "L1R1_B1", "on"), context.Canceled)
	_, err := s.All(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
