// Package store provides the SQLite-backed storage collaborator for the
// seed engine.
//
// The schema is derived from the model catalog, not hand-written:
//   - one table per entity type (id TEXT PRIMARY KEY plus one column per
//     scalar field and forward relation)
//   - one join table per plain many-to-many relation
//   - attributed many-to-many relations materialize through their join
//     entity's own table
//
// Identities are UUIDv7 strings, time-sortable for debugging. Lookups are
// always parameterized and always carry ORDER BY id ASC COLLATE BINARY so
// ambiguity detection is deterministic across SQLite versions.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
