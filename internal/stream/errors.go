package stream

import "errors"

var (
	// ErrSubscriberClosed is returned by Send once a subscriber has closed.
	// The broadcaster removes the subscriber when it sees this error.
	ErrSubscriberClosed = errors.New("stream: subscriber closed")

	// ErrSlowSubscriber is returned by Send when the outbound buffer is full.
	// The message is dropped for that subscriber; the subscriber stays.
	ErrSlowSubscriber = errors.New("stream: subscriber buffer full")

	// ErrSnapshotQueued is returned by SendSnapshot when a snapshot is
	// already waiting to be written.
	ErrSnapshotQueued = errors.New("stream: snapshot already queued")

	// ErrHubClosed is returned after the hub loop has stopped.
	ErrHubClosed = errors.New("stream: hub closed")

	// ErrQueueFull is returned by HandleMessage when the ingest queue is full.
	ErrQueueFull = errors.New("stream: ingest queue full")
)
