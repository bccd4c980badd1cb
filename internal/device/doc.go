// Package device holds the smart-switch domain: events parsed from the
// broker feed, the last known state of each device, and the stores that
// persist it.
//
// # Wire format
//
// Publishers send one JSON object per message. The device is named by
// "device_name" and its status is stored under the lower-cased device name:
//
//	{"device_name": "L1R1_B1", "l1r1_b1": "on", "time": "2026-10-19T12:00:00Z"}
//
// Status lookup by lower-cased name is how the switch firmware and the
// existing dashboards exchange data, so ParseEvent keeps it. A missing
// status key yields an empty status, not an error.
//
// # Stores
//
// Store is the minimal contract the stream engine needs (All, Get,
// Upsert). Four implementations exist:
//
//   - SQLiteStore: default, backed by internal/infrastructure/database
//   - PostgresStore: pgx pool, schema managed by goose
//   - RedisStore: one hash, field per device
//   - MemoryStore: process-local, used in tests and with store.backend=memory
//
// SQLiteStore, PostgresStore and MemoryStore also keep an append-only
// status log and implement HistoryReader.
//
// Every store enforces device-name uniqueness and last-write-wins: an
// Upsert always replaces the previous status and timestamp.
package device
