// Package catalog holds the model catalog: entity type definitions and the
// relation-kind classification the seed engine consults when it turns raw
// document fields into scalar values or relation declarations.
//
// The catalog is the single owner of naming conventions. Reverse-collection
// relation names default here, never in the engine.
package catalog

import (
	"fmt"
	"strings"
)

// Kind classifies a field of an entity type.
type Kind int

const (
	// KindScalar is a plain value column.
	KindScalar Kind = iota
	// KindForward is a single reference held by this entity (FK, one-to-one).
	KindForward
	// KindReverse is a collection of children whose relation points back at
	// this entity.
	KindReverse
	// KindManyToMany is a many-to-many relation, optionally through a join
	// type carrying extra attributes.
	KindManyToMany
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindForward:
		return "forward"
	case KindReverse:
		return "reverse"
	case KindManyToMany:
		return "manyToMany"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Relation describes one relation field of an entity type.
type Relation struct {
	// Name is the field name on the owning entity.
	Name string
	// Kind is KindForward, KindReverse or KindManyToMany.
	Kind Kind
	// Target is the qualified type on the other end ("shop.Product").
	Target string
	// ReverseField is the field on the child that points back at the owner.
	// Only meaningful for KindReverse. Defaulted to the lowercased owner
	// type name when the definition omits it.
	ReverseField string
	// Through is the qualified join type for attributed many-to-many
	// relations. Empty for plain many-to-many.
	Through string
	// ThroughFields lists the extra attribute fields the join type carries.
	ThroughFields []string
}

// Entity describes one entity type: its scalar fields and relations.
type Entity struct {
	// Name is the namespace-qualified type name, e.g. "shop.Category".
	Name string
	// Fields maps scalar field name -> value type
	// ("string", "int", "float", "bool", "date", "json").
	Fields map[string]string
	// Relations maps relation field name -> definition.
	Relations map[string]Relation
}

// Namespace returns the namespace part of the qualified name.
func (e *Entity) Namespace() string {
	ns, _ := SplitName(e.Name)
	return ns
}

// Catalog is an immutable set of entity definitions.
type Catalog struct {
	entities map[string]*Entity
}

// New builds a catalog from entity definitions, applying naming defaults and
// validating cross-references between definitions.
func New(entities ...*Entity) (*Catalog, error) {
	c := &Catalog{entities: make(map[string]*Entity, len(entities))}
	for _, e := range entities {
		if _, _, ok := splitName(e.Name); !ok {
			return nil, fmt.Errorf("catalog: entity name %q is not namespace-qualified", e.Name)
		}
		if _, dup := c.entities[e.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate entity definition %q", e.Name)
		}
		c.entities[e.Name] = e
	}
	for _, e := range c.entities {
		for name, rel := range e.Relations {
			rel.Name = name
			if _, ok := c.entities[rel.Target]; !ok {
				return nil, fmt.Errorf("catalog: %s.%s targets unknown entity %q", e.Name, name, rel.Target)
			}
			if rel.Through != "" {
				if _, ok := c.entities[rel.Through]; !ok {
					return nil, fmt.Errorf("catalog: %s.%s through unknown entity %q", e.Name, name, rel.Through)
				}
			}
			if rel.Kind == KindReverse && rel.ReverseField == "" {
				// Convention-based default: the child points back through a
				// field named after the owner type.
				rel.ReverseField = strings.ToLower(ShortName(e.Name))
			}
			e.Relations[name] = rel
		}
	}
	return c, nil
}

// Entity returns the definition for a qualified type name.
func (c *Catalog) Entity(name string) (*Entity, bool) {
	e, ok := c.entities[name]
	return e, ok
}

// Entities returns all qualified entity names, unordered.
func (c *Catalog) Entities() []string {
	out := make([]string, 0, len(c.entities))
	for name := range c.entities {
		out = append(out, name)
	}
	return out
}

// Classify resolves a field of an entity type to its kind. The relation
// definition is non-nil for the three relation kinds. ok is false when the
// entity type or the field is not in the catalog.
func (c *Catalog) Classify(entityType, field string) (kind Kind, rel *Relation, ok bool) {
	e, found := c.entities[entityType]
	if !found {
		return 0, nil, false
	}
	if r, isRel := e.Relations[field]; isRel {
		return r.Kind, &r, true
	}
	if _, isScalar := e.Fields[field]; isScalar {
		return KindScalar, nil, true
	}
	return 0, nil, false
}

// SplitName splits a qualified type name into namespace and short name.
func SplitName(qualified string) (namespace, short string) {
	ns, short, _ := splitName(qualified)
	return ns, short
}

// ShortName returns the type part of a qualified name.
func ShortName(qualified string) string {
	_, short := SplitName(qualified)
	return short
}

func splitName(qualified string) (namespace, short string, ok bool) {
	i := strings.LastIndex(qualified, ".")
	if i <= 0 || i == len(qualified)-1 {
		return "", qualified, false
	}
	return qualified[:i], qualified[i+1:], true
}

// QualifiedName joins a namespace and type name.
func QualifiedName(namespace, typ string) string {
	return namespace + "." + typ
}
