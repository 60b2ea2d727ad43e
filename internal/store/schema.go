package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seedloom/seedloom/internal/catalog"
)

// tableName mangles a qualified entity type into a SQLite table name:
// "shop.Category" -> "shop_category".
func tableName(qualified string) string {
	return strings.ToLower(strings.ReplaceAll(qualified, ".", "_"))
}

// joinTableName names the join table of a plain many-to-many relation:
// "shop.Product" + "tags" -> "shop_product_tags".
func joinTableName(ownerType, relation string) string {
	return tableName(ownerType) + "_" + strings.ToLower(relation)
}

// columnType maps catalog scalar types to SQLite affinities. Unknown types
// default to TEXT, which SQLite accepts for anything.
func columnType(fieldType string) string {
	switch fieldType {
	case "int", "bool":
		return "INTEGER"
	case "float":
		return "REAL"
	default:
		return "TEXT"
	}
}

// joinSpec describes where one many-to-many relation's links live.
type joinSpec struct {
	table     string
	ownerCol  string
	targetCol string
	// withID is true for through tables, which carry their own identity and
	// attribute columns.
	withID bool
}

// schemaDDL renders the CREATE TABLE statements for a catalog. Statements
// are idempotent and emitted in sorted table order so the schema is stable
// input to diffing and tests.
func schemaDDL(cat *catalog.Catalog) []string {
	names := cat.Entities()
	sort.Strings(names)

	var stmts []string
	for _, name := range names {
		e, _ := cat.Entity(name)
		stmts = append(stmts, entityDDL(e))
	}
	for _, name := range names {
		e, _ := cat.Entity(name)
		relNames := make([]string, 0, len(e.Relations))
		for rn := range e.Relations {
			relNames = append(relNames, rn)
		}
		sort.Strings(relNames)
		for _, rn := range relNames {
			rel := e.Relations[rn]
			if rel.Kind != catalog.KindManyToMany || rel.Through != "" {
				// Through relations live in the join entity's own table,
				// created by the entity loop above.
				continue
			}
			stmts = append(stmts, plainJoinDDL(e.Name, rn, rel.Target))
		}
	}
	return stmts
}

func entityDDL(e *catalog.Entity) string {
	cols := []string{"id TEXT PRIMARY KEY"}

	fieldNames := make([]string, 0, len(e.Fields))
	for fn := range e.Fields {
		fieldNames = append(fieldNames, fn)
	}
	sort.Strings(fieldNames)
	for _, fn := range fieldNames {
		cols = append(cols, fmt.Sprintf("%s %s", fn, columnType(e.Fields[fn])))
	}

	relNames := make([]string, 0, len(e.Relations))
	for rn := range e.Relations {
		relNames = append(relNames, rn)
	}
	sort.Strings(relNames)
	for _, rn := range relNames {
		rel := e.Relations[rn]
		if rel.Kind != catalog.KindForward {
			continue
		}
		cols = append(cols, fmt.Sprintf("%s TEXT REFERENCES %s(id)", rn, tableName(rel.Target)))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		tableName(e.Name), strings.Join(cols, ",\n\t"))
}

func plainJoinDDL(ownerType, relation, targetType string) string {
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n\towner_id TEXT NOT NULL REFERENCES %s(id),\n\ttarget_id TEXT NOT NULL REFERENCES %s(id),\n\tUNIQUE(owner_id, target_id)\n)",
		joinTableName(ownerType, relation), tableName(ownerType), tableName(targetType))
}

// buildJoinSpecs precomputes, per (ownerType, relation), where association
// rows go. Through relations bind to the join entity's forward fields: the
// one targeting the owner type and the one targeting the relation target.
func buildJoinSpecs(cat *catalog.Catalog) (map[string]joinSpec, error) {
	specs := make(map[string]joinSpec)
	for _, name := range cat.Entities() {
		e, _ := cat.Entity(name)
		for rn, rel := range e.Relations {
			if rel.Kind != catalog.KindManyToMany {
				continue
			}
			key := e.Name + "." + rn
			if rel.Through == "" {
				specs[key] = joinSpec{
					table:     joinTableName(e.Name, rn),
					ownerCol:  "owner_id",
					targetCol: "target_id",
				}
				continue
			}
			spec, err := throughSpec(cat, e.Name, rn, rel)
			if err != nil {
				return nil, err
			}
			specs[key] = spec
		}
	}
	return specs, nil
}

func throughSpec(cat *catalog.Catalog, ownerType, relation string, rel catalog.Relation) (joinSpec, error) {
	through, ok := cat.Entity(rel.Through)
	if !ok {
		return joinSpec{}, fmt.Errorf("store: %s.%s through entity %q not in catalog", ownerType, relation, rel.Through)
	}

	relNames := make([]string, 0, len(through.Relations))
	for rn := range through.Relations {
		relNames = append(relNames, rn)
	}
	sort.Strings(relNames)

	spec := joinSpec{table: tableName(rel.Through), withID: true}
	for _, rn := range relNames {
		tr := through.Relations[rn]
		if tr.Kind != catalog.KindForward {
			continue
		}
		switch {
		case tr.Target == ownerType && spec.ownerCol == "":
			spec.ownerCol = rn
		case tr.Target == rel.Target && spec.targetCol == "":
			spec.targetCol = rn
		}
	}
	if spec.ownerCol == "" || spec.targetCol == "" {
		return joinSpec{}, fmt.Errorf("store: through entity %q does not reference both %s and %s",
			rel.Through, ownerType, rel.Target)
	}
	return spec, nil
}
