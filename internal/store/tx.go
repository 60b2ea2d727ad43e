package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/seedloom/seedloom/internal/engine"
)

// tx implements engine.Tx over one SQLite transaction.
type tx struct {
	store *Store
	tx    *sql.Tx
}

// Create inserts one record with a freshly generated identity. Columns are
// emitted in sorted field order so the statement text is stable for a given
// shape.
func (t *tx) Create(ctx context.Context, entityType string, fields map[string]any) (string, error) {
	if _, ok := t.store.cat.Entity(entityType); !ok {
		return "", fmt.Errorf("store: unknown entity type %q", entityType)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := []string{"id"}
	placeholders := []string{"?"}
	id := t.store.ids.Generate()
	args := []any{id}
	for _, name := range names {
		v, err := toParam(fields[name])
		if err != nil {
			return "", fmt.Errorf("create %s: field %q: %w", entityType, name, err)
		}
		cols = append(cols, name)
		placeholders = append(placeholders, "?")
		args = append(args, v)
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName(entityType), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := t.tx.ExecContext(ctx, stmt, args...); err != nil {
		return "", fmt.Errorf("create %s: %w", entityType, err)
	}
	return id, nil
}

// Lookup resolves a predicate to exactly one identity. The query asks for
// two rows: zero means not found, two means ambiguous, and the caller never
// silently gets "the first" match.
func (t *tx) Lookup(ctx context.Context, entityType string, predicate map[string]any) (string, error) {
	if _, ok := t.store.cat.Entity(entityType); !ok {
		return "", fmt.Errorf("store: unknown entity type %q", entityType)
	}

	where, args, err := wherePredicate(predicate)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", entityType, err)
	}

	// ORDER BY keeps the ambiguity report deterministic.
	stmt := fmt.Sprintf("SELECT id FROM %s WHERE %s ORDER BY id ASC COLLATE BINARY LIMIT 2",
		tableName(entityType), where)
	rows, err := t.tx.QueryContext(ctx, stmt, args...)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", entityType, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("lookup %s: %w", entityType, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("lookup %s: %w", entityType, err)
	}

	switch len(ids) {
	case 0:
		return "", engine.ErrLookupNotFound
	case 1:
		return ids[0], nil
	default:
		return "", engine.ErrLookupAmbiguous
	}
}

// Associate inserts one plain many-to-many link. Duplicate links collapse
// via the join table's UNIQUE constraint.
func (t *tx) Associate(ctx context.Context, ownerType, ownerID, relation, targetID string) error {
	spec, ok := t.store.joins[ownerType+"."+relation]
	if ok && spec.withID {
		return t.AssociateWithAttributes(ctx, ownerType, ownerID, relation, targetID, nil)
	}
	if !ok {
		return fmt.Errorf("store: no many-to-many relation %s.%s", ownerType, relation)
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s, %s) VALUES (?, ?) ON CONFLICT(%s, %s) DO NOTHING",
		spec.table, spec.ownerCol, spec.targetCol, spec.ownerCol, spec.targetCol)
	if _, err := t.tx.ExecContext(ctx, stmt, ownerID, targetID); err != nil {
		return fmt.Errorf("associate %s.%s: %w", ownerType, relation, err)
	}
	return nil
}

// AssociateWithAttributes creates one join record in the through table,
// carrying the extra attribute columns.
func (t *tx) AssociateWithAttributes(ctx context.Context, ownerType, ownerID, relation, targetID string, attrs map[string]any) error {
	spec, ok := t.store.joins[ownerType+"."+relation]
	if !ok {
		return fmt.Errorf("store: no many-to-many relation %s.%s", ownerType, relation)
	}
	if !spec.withID {
		if len(attrs) > 0 {
			return fmt.Errorf("store: %s.%s carries no join attributes", ownerType, relation)
		}
		return t.Associate(ctx, ownerType, ownerID, relation, targetID)
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	cols := []string{"id", spec.ownerCol, spec.targetCol}
	placeholders := []string{"?", "?", "?"}
	args := []any{t.store.ids.Generate(), ownerID, targetID}
	for _, name := range names {
		v, err := toParam(attrs[name])
		if err != nil {
			return fmt.Errorf("associate %s.%s: attribute %q: %w", ownerType, relation, name, err)
		}
		cols = append(cols, name)
		placeholders = append(placeholders, "?")
		args = append(args, v)
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		spec.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := t.tx.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("associate %s.%s: %w", ownerType, relation, err)
	}
	return nil
}

// Commit implements engine.Tx.
func (t *tx) Commit() error {
	return t.tx.Commit()
}

// Rollback implements engine.Tx.
func (t *tx) Rollback() error {
	return t.tx.Rollback()
}

// wherePredicate compiles a predicate to a parameterized WHERE fragment.
// Fields are sorted for stable statement text; the "pk" field addresses the
// id column. Values are never interpolated.
func wherePredicate(predicate map[string]any) (string, []any, error) {
	if len(predicate) == 0 {
		return "", nil, fmt.Errorf("empty predicate")
	}

	names := make([]string, 0, len(predicate))
	for name := range predicate {
		names = append(names, name)
	}
	sort.Strings(names)

	var parts []string
	var args []any
	for _, name := range names {
		col := name
		if name == "pk" {
			col = "id"
		}
		v, err := toParam(predicate[name])
		if err != nil {
			return "", nil, fmt.Errorf("field %q: %w", name, err)
		}
		parts = append(parts, fmt.Sprintf("%s = ?", col))
		args = append(args, v)
	}
	return strings.Join(parts, " AND "), args, nil
}

// toParam converts a document value to a SQL parameter. Structured values
// (json-typed fields) serialize to JSON text.
func toParam(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool, int, int64, float64:
		return val, nil
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return fmt.Sprintf("%v", val), nil
	}
}
