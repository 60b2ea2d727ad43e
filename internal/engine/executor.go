package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// executor walks one creation plan against one storage transaction. It is
// single-use: the loader builds a fresh executor per invocation so the
// reference table and lookup cache never outlive the run.
type executor struct {
	refs  *ReferenceTable
	cache *LookupCache
	log   *slog.Logger
}

// run materializes the plan inside a single transaction: a create pass in
// schedule order, then the association pass for many-to-many declarations.
// Any failure at any node rolls the whole run back; the store observes
// either every record or none.
func (e *executor) run(ctx context.Context, store Store, plan *Plan) (*Result, error) {
	tx, err := store.Begin(ctx)
	if err != nil {
		return nil, storageError("beginning transaction", nil, err)
	}

	result, err := e.runInTx(ctx, tx, plan)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			e.log.Error("rollback failed", "error", rbErr)
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, storageError("committing transaction", nil, err)
	}
	return result, nil
}

func (e *executor) runInTx(ctx context.Context, tx Tx, plan *Plan) (*Result, error) {
	result := &Result{Created: make(map[string]int)}

	for _, node := range plan.Order {
		if err := e.materialize(ctx, tx, node); err != nil {
			return nil, err
		}
		result.Created[node.Type]++
	}

	for _, node := range plan.Order {
		n, err := e.associate(ctx, tx, node)
		if err != nil {
			return nil, err
		}
		result.Associations += n
	}
	return result, nil
}

// materialize resolves one node's fields and relations, creates the record,
// and registers the identity - the entry's single unresolved -> resolved
// transition.
func (e *executor) materialize(ctx context.Context, tx Tx, node *EntityNode) error {
	fields := make(map[string]any, len(node.Fields)+len(node.Relations))
	for name, value := range node.Fields {
		fields[name] = value
	}

	for _, rel := range node.Relations {
		switch rel.Kind {
		case RelRef, RelParent:
			// Scheduling guarantees the target was created earlier; an
			// unresolved entry here is an engine bug, not a document error.
			id, ok := e.refs.Identity(rel.TargetKey)
			if !ok {
				return internalError("node %s scheduled before its dependency %q", node, rel.TargetKey)
			}
			fields[rel.Field] = id
		case RelInline:
			id, ok := e.refs.Identity(rel.Child.Key)
			if !ok {
				return internalError("node %s scheduled before inline child %q", node, rel.Child.Key)
			}
			fields[rel.Field] = id
		case RelLookup:
			id, err := e.lookup(ctx, tx, node, rel.TargetType, rel.Predicate)
			if err != nil {
				return err
			}
			fields[rel.Field] = id
		case RelManyToMany:
			// Handled by the association pass.
		}
	}

	identity, err := tx.Create(ctx, node.Type, fields)
	if err != nil {
		return storageError("creating record", node, err)
	}
	node.Identity = identity
	if err := e.refs.Resolve(node.Key, identity); err != nil {
		return err
	}
	e.log.Debug("created record", "type", node.Type, "key", node.Key, "identity", identity)
	return nil
}

// associate runs the many-to-many declarations of one node. Every endpoint
// is already materialized (the create pass completed), so association order
// within one relation simply follows document order. Plain elements use the
// store's association primitive; attributed elements create a join record
// carrying the extra fields.
func (e *executor) associate(ctx context.Context, tx Tx, node *EntityNode) (int, error) {
	count := 0
	for _, rel := range node.Relations {
		if rel.Kind != RelManyToMany {
			continue
		}
		for _, elem := range rel.Elements {
			targetID, err := e.resolveElement(ctx, tx, node, rel, elem)
			if err != nil {
				return count, err
			}
			if elem.Kind == ElemAttributed {
				err = tx.AssociateWithAttributes(ctx, node.Type, node.Identity, rel.Field, targetID, elem.Attrs)
			} else {
				err = tx.Associate(ctx, node.Type, node.Identity, rel.Field, targetID)
			}
			if err != nil {
				return count, storageError(fmt.Sprintf("associating %q", rel.Field), node, err)
			}
			count++
			e.log.Debug("associated records",
				"type", node.Type, "key", node.Key, "relation", rel.Field, "target", targetID)
		}
	}
	return count, nil
}

func (e *executor) resolveElement(ctx context.Context, tx Tx, node *EntityNode, rel RelationDecl, elem M2MElement) (string, error) {
	switch {
	case elem.Child != nil:
		id, ok := e.refs.Identity(elem.Child.Key)
		if !ok {
			return "", internalError("m2m element %q of %s not materialized", elem.Child.Key, node)
		}
		return id, nil
	case elem.Key != "":
		id, ok := e.refs.Identity(elem.Key)
		if !ok {
			return "", internalError("m2m element %q of %s not materialized", elem.Key, node)
		}
		return id, nil
	case elem.Predicate != nil:
		return e.lookup(ctx, tx, node, rel.TargetType, elem.Predicate)
	default:
		return "", internalError("m2m element of %s has no target", node)
	}
}

// lookup resolves a predicate through the memoizing cache and maps the
// store's sentinel outcomes to user-facing errors.
func (e *executor) lookup(ctx context.Context, tx Tx, node *EntityNode, targetType string, predicate map[string]any) (string, error) {
	id, err := e.cache.Resolve(ctx, tx, targetType, predicate)
	if err == nil {
		return id, nil
	}
	switch {
	case errors.Is(err, ErrLookupNotFound):
		return "", &LoadError{
			Code:       ErrCodeLookupNotFound,
			Message:    fmt.Sprintf("no %s record matches %v", targetType, predicate),
			Key:        node.Key,
			EntityType: node.Type,
		}
	case errors.Is(err, ErrLookupAmbiguous):
		return "", &LoadError{
			Code:       ErrCodeAmbiguousLookup,
			Message:    fmt.Sprintf("more than one %s record matches %v", targetType, predicate),
			Key:        node.Key,
			EntityType: node.Type,
		}
	default:
		return "", storageError("looking up record", node, err)
	}
}
