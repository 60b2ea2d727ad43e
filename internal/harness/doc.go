// Package harness provides a conformance testing framework for the seed
// engine.
//
// Scenarios are YAML files pairing an inline model catalog (CUE), optional
// pre-existing store records, and a seed document. The harness runs the
// full pipeline against a recording in-memory store and captures a
// deterministic snapshot: the creation plan, per-type counts, association
// count and the exact store call sequence. Snapshots are compared against
// golden files, so any change to ordering, transaction shape or error
// reporting shows up as a diff.
//
// Scenarios run with sequence identities, never UUIDs, so the same scenario
// produces byte-identical snapshots on every run.
package harness
