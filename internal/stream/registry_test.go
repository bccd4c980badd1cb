package stream

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddRemove(t *testing.T) {
	r := NewRegistry()
	a := newFakeSubscriber("a")
	b := newFakeSubscriber("b")

	assert.True(t, r.Add(a))
	assert.True(t, r.Add(b))
	assert.False(t, r.Add(a), "second add of same subscriber")
	assert.Equal(t, 2, r.Len())

	assert.True(t, r.Remove(a))
	assert.False(t, r.Remove(a), "second remove")
	assert.False(t, registered(r, a))
	assert.True(t, registered(r, b))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_RemoveUnknown(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Remove(newFakeSubscriber("ghost")))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_SnapshotKeepsJoinOrder(t *testing.T) {
	r := NewRegistry()
	subs := []*fakeSubscriber{newFakeSubscriber("1"), newFakeSubscriber("2"), newFakeSubscriber("3"), newFakeSubscriber("4")}
	for _, s := range subs {
		r.Add(s)
	}
	r.Remove(subs[1])

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "1", snap[0].ID())
	assert.Equal(t, "3", snap[1].ID())
	assert.Equal(t, "4", snap[2].ID())

	// Index is rebuilt after the shift.
	assert.True(t, r.Remove(subs[3]))
	assert.Equal(t, []string{"1", "3"}, ids(r.Snapshot()))
}

func TestRegistry_SnapshotIsCopy(t *testing.T) {
	r := NewRegistry()
	r.Add(newFakeSubscriber("a"))

	snap := r.Snapshot()
	r.Add(newFakeSubscriber("b"))

	assert.Len(t, snap, 1)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_Drain(t *testing.T) {
	r := NewRegistry()
	r.Add(newFakeSubscriber("a"))
	r.Add(newFakeSubscriber("b"))

	drained := r.Drain()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, r.Len())
	assert.True(t, r.Add(newFakeSubscriber("a")), "registry usable after drain")
}

func TestRegistry_ConcurrentAddRemove(t *testing.T) {
	r := NewRegistry()
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := newFakeSubscriber(fmt.Sprintf("sub-%d", i))
			r.Add(s)
			_ = r.Snapshot()
			if i%2 == 0 {
				r.Remove(s)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n/2, r.Len())
}

func ids(subs []Subscriber) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.ID()
	}
	return out
}
