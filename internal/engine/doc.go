// Package engine implements the seedloom reference-resolution and
// dependency-ordering core.
//
// The engine turns a parsed seed document into a strictly ordered creation
// plan and executes it against a storage collaborator under one transaction.
//
// ARCHITECTURE:
//
// Single-Pass Pipeline:
//  1. Build: raw declarations become EntityNodes. Reference keys are
//     extracted or auto-generated, every key is registered as an unresolved
//     placeholder in the ReferenceTable, fields are classified against the
//     model catalog into scalars and relation declarations.
//  2. Graph: relation declarations become directed "must exist before"
//     edges. Hard edges (forward references, inline children) constrain
//     creation order; deferred edges (reverse collections) only require the
//     parent to exist first.
//  3. Schedule: Kahn's algorithm over hard edges produces the base order;
//     deferred edges are re-applied as a second partial order. Cycles are
//     terminal and reported as a minimal reference-key path.
//  4. Execute: one forward pass creates every record, resolving references
//     through the ReferenceTable and external lookups through the
//     LookupCache. Many-to-many associations run after all creates, still
//     inside the same transaction. Any failure rolls the whole run back.
//
// The engine is strictly single-threaded per invocation: creation order
// encodes correctness, so there is nothing to parallelize. A Loader owns its
// ReferenceTable and LookupCache; concurrent hosts run independent Loaders.
package engine
