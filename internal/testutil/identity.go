// Package testutil provides deterministic collaborators for engine and
// store tests: a sequence identity generator and a recording in-memory
// store.
package testutil

import (
	"fmt"
	"sync"
)

// SequenceIdentities generates "id-1", "id-2", ... in order.
//
// Unlike the production UUIDv7 generator, sequences can be reset for test
// reuse, so the same scenario produces byte-identical results on every run.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SequenceIdentities struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIdentities creates a generator with the given prefix.
// An empty prefix defaults to "id".
func NewSequenceIdentities(prefix string) *SequenceIdentities {
	if prefix == "" {
		prefix = "id"
	}
	return &SequenceIdentities{prefix: prefix}
}

// Generate returns the next identity in the sequence.
func (g *SequenceIdentities) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts the sequence. The next Generate returns "{prefix}-1".
func (g *SequenceIdentities) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
