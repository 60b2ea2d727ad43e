package engine

import (
	"context"
	"errors"
)

// Lookup outcome sentinels. Store implementations return these (possibly
// wrapped) from Tx.Lookup; the executor maps them to the user-facing
// LOOKUP_NOT_FOUND and AMBIGUOUS_LOOKUP errors.
var (
	// ErrLookupNotFound means the predicate matched zero records.
	ErrLookupNotFound = errors.New("lookup matched no record")
	// ErrLookupAmbiguous means the predicate matched more than one record.
	ErrLookupAmbiguous = errors.New("lookup matched more than one record")
)

// Store is the storage collaborator consumed by the engine. The engine
// acquires exactly one transaction per load invocation and drives every
// write through it.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one scoped storage transaction. Commit on success, Rollback on the
// first failure; the engine never interleaves other store access into it.
type Tx interface {
	// Create inserts a record and returns its store-assigned identity.
	// fields holds resolved scalar values plus relation fields already
	// resolved to target identities.
	Create(ctx context.Context, entityType string, fields map[string]any) (string, error)

	// Lookup resolves a predicate against existing store data. Returns
	// ErrLookupNotFound or ErrLookupAmbiguous for zero / multiple matches.
	// The predicate key "pk" addresses the primary identity.
	Lookup(ctx context.Context, entityType string, predicate map[string]any) (string, error)

	// Associate links owner and target through a plain many-to-many
	// relation.
	Associate(ctx context.Context, ownerType, ownerID, relation, targetID string) error

	// AssociateWithAttributes creates an attributed join record linking
	// owner and target, with the extra fields merged in.
	AssociateWithAttributes(ctx context.Context, ownerType, ownerID, relation, targetID string, attrs map[string]any) error

	Commit() error
	Rollback() error
}
