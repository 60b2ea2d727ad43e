package engine

// ReferenceTable maps reference keys to nodes and, once materialized, to
// store identities.
//
// Lifecycle per entry: registered unresolved during the build pass, resolved
// exactly once by the executor, immutable afterward. One table instance is
// owned by one load invocation - never shared across runs.
type ReferenceTable struct {
	entries map[string]*refEntry
}

type refEntry struct {
	node     *EntityNode
	resolved bool
	identity string
}

// NewReferenceTable creates an empty reference table.
func NewReferenceTable() *ReferenceTable {
	return &ReferenceTable{entries: make(map[string]*refEntry)}
}

// Register adds an unresolved placeholder for a node's key. All keys are
// registered up front so forward references can be validated for existence
// before any graph work. Fails when the key is already taken - reference
// keys share one namespace across all entity types.
func (t *ReferenceTable) Register(node *EntityNode) error {
	if _, exists := t.entries[node.Key]; exists {
		return duplicateKeyError(node.Key, node.Type)
	}
	t.entries[node.Key] = &refEntry{node: node}
	return nil
}

// Node returns the declared node for a key, registered or not yet resolved.
func (t *ReferenceTable) Node(key string) (*EntityNode, bool) {
	e, ok := t.entries[key]
	if !ok {
		return nil, false
	}
	return e.node, true
}

// Exists reports whether a key is declared.
func (t *ReferenceTable) Exists(key string) bool {
	_, ok := t.entries[key]
	return ok
}

// Resolve transitions an entry from unresolved to resolved. Resolving an
// unknown key or resolving twice is an engine invariant violation, not a
// document error.
func (t *ReferenceTable) Resolve(key, identity string) error {
	e, ok := t.entries[key]
	if !ok {
		return internalError("resolve of unregistered key %q", key)
	}
	if e.resolved {
		return internalError("key %q resolved twice", key)
	}
	e.resolved = true
	e.identity = identity
	return nil
}

// Identity returns the store identity for a key. ok is false while the
// entry is still unresolved or the key is unknown.
func (t *ReferenceTable) Identity(key string) (string, bool) {
	e, found := t.entries[key]
	if !found || !e.resolved {
		return "", false
	}
	return e.identity, true
}

// Len returns the number of registered keys.
func (t *ReferenceTable) Len() int {
	return len(t.entries)
}
