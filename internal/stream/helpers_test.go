package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ychetra/demo-light/internal/device"
)

// fakeSubscriber records every message it accepts.
type fakeSubscriber struct {
	id string

	mu        sync.Mutex
	msgs      [][]byte
	sendErr   error
	snapshots int
	closes    int
}

func newFakeSubscriber(id string) *fakeSubscriber {
	return &fakeSubscriber{id: id}
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) Send(msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeSubscriber) SendSnapshot(frames [][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.snapshots++
	f.msgs = append(f.msgs, frames...)
	return nil
}

func (f *fakeSubscriber) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	if f.sendErr == nil {
		f.sendErr = ErrSubscriberClosed
	}
	return nil
}

func (f *fakeSubscriber) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *fakeSubscriber) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.msgs))
	for i, m := range f.msgs {
		out[i] = string(m)
	}
	return out
}

func (f *fakeSubscriber) snapshotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshots
}

func (f *fakeSubscriber) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// registered reports whether sub is in r's current snapshot.
func registered(r *Registry, sub Subscriber) bool {
	for _, s := range r.Snapshot() {
		if s.ID() == sub.ID() {
			return true
		}
	}
	return false
}

var errStoreDown = errors.New("store down")

// failingStore fails every call.
type failingStore struct{}

func (failingStore) All(context.Context) ([]device.State, error) { return nil, errStoreDown }
func (failingStore) Get(context.Context, string) (device.State, error) {
	return device.State{}, errStoreDown
}
func (failingStore) Upsert(context.Context, string, string) error { return errStoreDown }

// recordingRecorder captures RecordStatus calls.
type recordingRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingRecorder) RecordStatus(name, status string, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name+"="+status)
}

func (r *recordingRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}
