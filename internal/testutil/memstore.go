package testutil

import (
	"context"
	"fmt"

	"github.com/seedloom/seedloom/internal/engine"
)

// Row is one stored record.
type Row struct {
	ID     string
	Fields map[string]any
}

// Association is one recorded many-to-many link.
type Association struct {
	OwnerType string
	OwnerID   string
	Relation  string
	TargetID  string
	Attrs     map[string]any
}

// MemStore is an in-memory engine.Store that records every call, for
// asserting on call order, atomicity and lookup memoization. Writes stage
// inside the transaction and only become visible on Commit.
type MemStore struct {
	IDs *SequenceIdentities

	// FailCreateType makes Create fail for that entity type.
	FailCreateType string
	// FailAssociate makes every association call fail.
	FailAssociate bool

	rows         map[string][]Row
	associations []Association

	// Calls records every collaborator call in order, e.g.
	// "begin", "create shop.Category", "lookup shop.Tag", "commit".
	Calls []string
	// LookupCalls counts lookup queries that reached the store.
	LookupCalls int
	// Commits and Rollbacks count transaction outcomes.
	Commits   int
	Rollbacks int
}

// NewMemStore creates an empty recording store.
func NewMemStore() *MemStore {
	return &MemStore{
		IDs:  NewSequenceIdentities("id"),
		rows: make(map[string][]Row),
	}
}

// Seed inserts a pre-existing committed record, for lookup tests.
func (s *MemStore) Seed(entityType, id string, fields map[string]any) {
	s.rows[entityType] = append(s.rows[entityType], Row{ID: id, Fields: fields})
}

// Rows returns the committed records of a type.
func (s *MemStore) Rows(entityType string) []Row {
	return s.rows[entityType]
}

// Row returns the committed record with the given identity.
func (s *MemStore) Row(entityType, id string) (Row, bool) {
	for _, r := range s.rows[entityType] {
		if r.ID == id {
			return r, true
		}
	}
	return Row{}, false
}

// Associations returns the committed association records.
func (s *MemStore) Associations() []Association {
	return s.associations
}

// CreatedCount returns the number of committed records across all types.
func (s *MemStore) CreatedCount() int {
	n := 0
	for _, rows := range s.rows {
		n += len(rows)
	}
	return n
}

// Begin implements engine.Store.
func (s *MemStore) Begin(ctx context.Context) (engine.Tx, error) {
	s.Calls = append(s.Calls, "begin")
	return &memTx{
		store:  s,
		staged: make(map[string][]Row),
	}, nil
}

type memTx struct {
	store        *MemStore
	staged       map[string][]Row
	associations []Association
	done         bool
}

func (t *memTx) Create(ctx context.Context, entityType string, fields map[string]any) (string, error) {
	t.store.Calls = append(t.store.Calls, "create "+entityType)
	if t.store.FailCreateType == entityType {
		return "", fmt.Errorf("injected create failure for %s", entityType)
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	id := t.store.IDs.Generate()
	t.staged[entityType] = append(t.staged[entityType], Row{ID: id, Fields: copied})
	return id, nil
}

func (t *memTx) Lookup(ctx context.Context, entityType string, predicate map[string]any) (string, error) {
	t.store.Calls = append(t.store.Calls, "lookup "+entityType)
	t.store.LookupCalls++

	var matches []string
	scan := func(rows []Row) {
		for _, r := range rows {
			if rowMatches(r, predicate) {
				matches = append(matches, r.ID)
			}
		}
	}
	scan(t.store.rows[entityType])
	scan(t.staged[entityType])

	switch len(matches) {
	case 0:
		return "", engine.ErrLookupNotFound
	case 1:
		return matches[0], nil
	default:
		return "", engine.ErrLookupAmbiguous
	}
}

func rowMatches(r Row, predicate map[string]any) bool {
	for field, want := range predicate {
		if field == "pk" {
			if fmt.Sprintf("%v", want) != r.ID {
				return false
			}
			continue
		}
		got, ok := r.Fields[field]
		if !ok || fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

func (t *memTx) Associate(ctx context.Context, ownerType, ownerID, relation, targetID string) error {
	t.store.Calls = append(t.store.Calls, fmt.Sprintf("associate %s.%s", ownerType, relation))
	if t.store.FailAssociate {
		return fmt.Errorf("injected associate failure for %s.%s", ownerType, relation)
	}
	t.associations = append(t.associations, Association{
		OwnerType: ownerType, OwnerID: ownerID, Relation: relation, TargetID: targetID,
	})
	return nil
}

func (t *memTx) AssociateWithAttributes(ctx context.Context, ownerType, ownerID, relation, targetID string, attrs map[string]any) error {
	t.store.Calls = append(t.store.Calls, fmt.Sprintf("associateAttrs %s.%s", ownerType, relation))
	if t.store.FailAssociate {
		return fmt.Errorf("injected associate failure for %s.%s", ownerType, relation)
	}
	copied := make(map[string]any, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	t.associations = append(t.associations, Association{
		OwnerType: ownerType, OwnerID: ownerID, Relation: relation, TargetID: targetID, Attrs: copied,
	})
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true
	t.store.Calls = append(t.store.Calls, "commit")
	t.store.Commits++
	for entityType, rows := range t.staged {
		t.store.rows[entityType] = append(t.store.rows[entityType], rows...)
	}
	t.store.associations = append(t.store.associations, t.associations...)
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true
	t.store.Calls = append(t.store.Calls, "rollback")
	t.store.Rollbacks++
	return nil
}
