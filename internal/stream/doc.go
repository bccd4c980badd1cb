// Package stream fans device telemetry out to live websocket subscribers.
//
// # Architecture
//
//	MQTT callback ──HandleMessage──▶ queue ──▶ Hub loop ──▶ Ingestor ──▶ Store.Upsert
//	                                             │                 └──▶ Broadcaster ──▶ Registry snapshot ──▶ Session.Send
//	websocket ──Session.Serve──Join──────────────┘
//	                                  (Bootstrapper replays Store.All, then Registry.Add)
//
// One goroutine (Hub.Run) executes ingest and join operations in arrival
// order. A join therefore sees every event processed before it in the
// snapshot and receives every event processed after it live; no event is
// lost or reordered for a subscriber across the join.
//
// # Back-pressure
//
//   - HandleMessage never blocks. When the queue is full the message is
//     dropped and counted.
//   - Session.Send never blocks. When a subscriber's outbound buffer is
//     full that one message is dropped for that subscriber only.
//   - A closed subscriber is removed from the Registry on the first failed
//     send.
//
// # Thread Safety
//
// Registry is the only structure mutated from several goroutines (hub loop,
// session teardown, API reads) and is guarded by an RWMutex.
package stream
