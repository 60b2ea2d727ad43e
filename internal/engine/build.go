package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seedloom/seedloom/internal/catalog"
	"github.com/seedloom/seedloom/internal/document"
)

const (
	// DefaultRefKeyField is the document field that marks an explicit
	// reference key. The one configurable option the engine exposes.
	DefaultRefKeyField = "$ref"

	refPrefix    = "$"
	lookupPrefix = "@"
)

// builder runs the node-construction pass: raw declarations in, EntityNodes
// and a fully registered ReferenceTable out. The auto-key counters are
// explicit builder state threaded through the pass, never package state, so
// independent invocations cannot interfere.
type builder struct {
	refKeyField string
	cat         *catalog.Catalog
	refs        *ReferenceTable
	nodes       []*EntityNode
	// counters tracks the per-type auto-key ordinal for top-level
	// declarations, in document order starting at 0.
	counters map[string]int
}

// buildNodes constructs all entity nodes (document nodes plus every node
// created by inline, reverse-collection and many-to-many declarations) and
// registers each reference key as an unresolved placeholder.
func buildNodes(doc document.Document, cat *catalog.Catalog, refKeyField string) ([]*EntityNode, *ReferenceTable, error) {
	if refKeyField == "" {
		refKeyField = DefaultRefKeyField
	}
	b := &builder{
		refKeyField: refKeyField,
		cat:         cat,
		refs:        NewReferenceTable(),
		counters:    make(map[string]int),
	}

	for _, ns := range doc.Namespaces() {
		for _, typ := range doc.Types(ns) {
			qualified := catalog.QualifiedName(ns, typ)
			if _, ok := cat.Entity(qualified); !ok {
				return nil, nil, &LoadError{
					Code:       ErrCodeSchemaMismatch,
					Message:    "entity type is not defined by the model catalog",
					EntityType: qualified,
				}
			}
			for _, decl := range doc[ns][typ] {
				if _, err := b.node(qualified, decl, b.autoKey(qualified)); err != nil {
					return nil, nil, err
				}
			}
		}
	}
	return b.nodes, b.refs, nil
}

// autoKey returns a lazy {typeLowercase}_{n} key producer for a top-level
// declaration. The per-type counter only advances when the key is actually
// used - explicit keys do not consume an index.
func (b *builder) autoKey(qualified string) func() string {
	return func() string {
		n := b.counters[qualified]
		b.counters[qualified]++
		return fmt.Sprintf("%s_%d", strings.ToLower(catalog.ShortName(qualified)), n)
	}
}

func fixedKey(key string) func() string {
	return func() string { return key }
}

// node builds one EntityNode from a raw declaration. fallbackKey produces
// the auto-generated key when the declaration carries no explicit one.
func (b *builder) node(entityType string, decl map[string]any, fallbackKey func() string) (*EntityNode, error) {
	node := &EntityNode{
		Type:   entityType,
		Fields: make(map[string]any),
	}
	if raw, ok := decl[b.refKeyField]; ok {
		key, isString := raw.(string)
		if !isString || key == "" {
			return nil, &LoadError{
				Code:       ErrCodeSchemaMismatch,
				Message:    fmt.Sprintf("%s must be a non-empty string", b.refKeyField),
				EntityType: entityType,
			}
		}
		node.Key = key
		node.Explicit = true
	} else {
		node.Key = fallbackKey()
	}

	// Register before descending so children derive their auto keys from a
	// committed parent key and duplicates fail as early as possible.
	if err := b.refs.Register(node); err != nil {
		return nil, err
	}
	node.Ordinal = len(b.nodes)
	b.nodes = append(b.nodes, node)

	// Field names are processed in sorted order. The document parser hands
	// us Go maps, so this is the deterministic stand-in for document order;
	// list-valued declarations keep their literal order.
	names := make([]string, 0, len(decl))
	for name := range decl {
		if name == b.refKeyField {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, field := range names {
		if err := b.classifyField(node, field, decl[field]); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (b *builder) classifyField(node *EntityNode, field string, value any) error {
	kind, rel, ok := b.cat.Classify(node.Type, field)
	if !ok {
		return schemaMismatchError(field, node)
	}

	switch kind {
	case catalog.KindScalar:
		node.Fields[field] = value
		return nil
	case catalog.KindForward:
		return b.forwardRelation(node, field, rel, value)
	case catalog.KindReverse:
		return b.reverseCollection(node, field, rel, value)
	case catalog.KindManyToMany:
		return b.manyToMany(node, field, rel, value)
	default:
		return internalError("unhandled field kind %v for %s.%s", kind, node.Type, field)
	}
}

// forwardRelation classifies a single-reference field: symbolic ref, store
// lookup, inline child, or a bare primary-identity literal (shorthand for a
// pk lookup).
func (b *builder) forwardRelation(node *EntityNode, field string, rel *catalog.Relation, value any) error {
	switch v := value.(type) {
	case string:
		if key, ok := strings.CutPrefix(v, refPrefix); ok {
			node.Relations = append(node.Relations, RelationDecl{
				Field: field, Kind: RelRef, TargetType: rel.Target, TargetKey: key,
			})
			return nil
		}
		if raw, ok := strings.CutPrefix(v, lookupPrefix); ok {
			pred, err := parseLookup(raw, node, field)
			if err != nil {
				return err
			}
			node.Relations = append(node.Relations, RelationDecl{
				Field: field, Kind: RelLookup, TargetType: rel.Target, Predicate: pred,
			})
			return nil
		}
		// Bare literal: resolve against the store's primary identity.
		node.Relations = append(node.Relations, RelationDecl{
			Field: field, Kind: RelLookup, TargetType: rel.Target,
			Predicate: map[string]any{"pk": v},
		})
		return nil
	case map[string]any:
		child, err := b.node(rel.Target, v, fixedKey(node.Key+"_"+field))
		if err != nil {
			return err
		}
		node.Relations = append(node.Relations, RelationDecl{
			Field: field, Kind: RelInline, TargetType: rel.Target, Child: child,
		})
		return nil
	default:
		// Non-string literals (numeric pk) also resolve by identity.
		node.Relations = append(node.Relations, RelationDecl{
			Field: field, Kind: RelLookup, TargetType: rel.Target,
			Predicate: map[string]any{"pk": value},
		})
		return nil
	}
}

// reverseCollection builds the child nodes of a reverse-collection field.
// Each child gets an implicit back-reference to the parent through the
// relation name the catalog supplies; the engine treats that name as opaque.
func (b *builder) reverseCollection(node *EntityNode, field string, rel *catalog.Relation, value any) error {
	list, ok := value.([]any)
	if !ok {
		return &LoadError{
			Code:       ErrCodeSchemaMismatch,
			Message:    fmt.Sprintf("reverse collection %q must be a list of declarations", field),
			Key:        node.Key,
			EntityType: node.Type,
		}
	}
	for i, item := range list {
		decl, isMap := item.(map[string]any)
		if !isMap {
			return &LoadError{
				Code:       ErrCodeSchemaMismatch,
				Message:    fmt.Sprintf("reverse collection %q element %d must be a mapping", field, i),
				Key:        node.Key,
				EntityType: node.Type,
			}
		}
		child, err := b.node(rel.Target, decl, fixedKey(fmt.Sprintf("%s_%s_%d", node.Key, field, i)))
		if err != nil {
			return err
		}
		// The back-reference is declared on the child: parent must exist
		// first (deferred edge), and the executor fills the child's field
		// with the parent's identity.
		child.Relations = append(child.Relations, RelationDecl{
			Field: rel.ReverseField, Kind: RelParent, TargetType: node.Type, TargetKey: node.Key,
		})
	}
	return nil
}

// manyToMany classifies the element list of a many-to-many field. Elements
// impose no creation-order edge on the owner; both ends only need to exist
// before the association runs.
func (b *builder) manyToMany(node *EntityNode, field string, rel *catalog.Relation, value any) error {
	list, ok := value.([]any)
	if !ok {
		return &LoadError{
			Code:       ErrCodeSchemaMismatch,
			Message:    fmt.Sprintf("many-to-many %q must be a list", field),
			Key:        node.Key,
			EntityType: node.Type,
		}
	}

	elements := make([]M2MElement, 0, len(list))
	for i, item := range list {
		switch v := item.(type) {
		case string:
			elem, err := b.m2mStringElement(node, field, v)
			if err != nil {
				return err
			}
			elements = append(elements, elem)
		case map[string]any:
			if rel.Through != "" {
				elem, err := b.attributedElement(node, field, rel, v, i)
				if err != nil {
					return err
				}
				elements = append(elements, elem)
				continue
			}
			child, err := b.node(rel.Target, v, fixedKey(fmt.Sprintf("%s_%s_%d", node.Key, field, i)))
			if err != nil {
				return err
			}
			elements = append(elements, M2MElement{Kind: ElemInline, Child: child})
		default:
			return &LoadError{
				Code:       ErrCodeSchemaMismatch,
				Message:    fmt.Sprintf("many-to-many %q element %d must be a reference, lookup or mapping", field, i),
				Key:        node.Key,
				EntityType: node.Type,
			}
		}
	}

	node.Relations = append(node.Relations, RelationDecl{
		Field: field, Kind: RelManyToMany, TargetType: rel.Target, Elements: elements,
	})
	return nil
}

func (b *builder) m2mStringElement(node *EntityNode, field, v string) (M2MElement, error) {
	if key, ok := strings.CutPrefix(v, refPrefix); ok {
		return M2MElement{Kind: ElemRef, Key: key}, nil
	}
	if raw, ok := strings.CutPrefix(v, lookupPrefix); ok {
		pred, err := parseLookup(raw, node, field)
		if err != nil {
			return M2MElement{}, err
		}
		return M2MElement{Kind: ElemLookup, Predicate: pred}, nil
	}
	return M2MElement{}, &LoadError{
		Code:       ErrCodeSchemaMismatch,
		Message:    fmt.Sprintf("many-to-many %q element %q must start with %s or %s", field, v, refPrefix, lookupPrefix),
		Key:        node.Key,
		EntityType: node.Type,
	}
}

// attributedElement splits an element mapping of a through-relation into the
// join attributes the catalog declares and the single remaining target
// designator.
func (b *builder) attributedElement(node *EntityNode, field string, rel *catalog.Relation, decl map[string]any, idx int) (M2MElement, error) {
	throughFields := make(map[string]bool, len(rel.ThroughFields))
	for _, f := range rel.ThroughFields {
		throughFields[f] = true
	}

	elem := M2MElement{Kind: ElemAttributed, Attrs: make(map[string]any)}
	var targetField string
	var target any

	names := make([]string, 0, len(decl))
	for name := range decl {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if throughFields[name] {
			elem.Attrs[name] = decl[name]
			continue
		}
		if targetField != "" {
			return M2MElement{}, &LoadError{
				Code:       ErrCodeSchemaMismatch,
				Message:    fmt.Sprintf("through element of %q has two target candidates: %q and %q", field, targetField, name),
				Key:        node.Key,
				EntityType: node.Type,
			}
		}
		targetField, target = name, decl[name]
	}
	if targetField == "" {
		return M2MElement{}, &LoadError{
			Code:       ErrCodeSchemaMismatch,
			Message:    fmt.Sprintf("through element of %q declares no target", field),
			Key:        node.Key,
			EntityType: node.Type,
		}
	}

	switch v := target.(type) {
	case string:
		if key, ok := strings.CutPrefix(v, refPrefix); ok {
			elem.Key = key
			return elem, nil
		}
		if raw, ok := strings.CutPrefix(v, lookupPrefix); ok {
			pred, err := parseLookup(raw, node, field)
			if err != nil {
				return M2MElement{}, err
			}
			elem.Predicate = pred
			return elem, nil
		}
		elem.Predicate = map[string]any{"pk": v}
		return elem, nil
	case map[string]any:
		child, err := b.node(rel.Target, v, fixedKey(fmt.Sprintf("%s_%s_%d", node.Key, field, idx)))
		if err != nil {
			return M2MElement{}, err
		}
		elem.Child = child
		return elem, nil
	default:
		elem.Predicate = map[string]any{"pk": target}
		return elem, nil
	}
}

// parseLookup splits the @-shorthand into a predicate map.
//
// Forms:
//
//	@pk:3                    -> {"pk": "3"}
//	@username:alice          -> {"username": "alice"}
//	@name:Acme,country:USA   -> {"name": "Acme", "country": "USA"}
//
// Backslash escapes a literal separator inside a value: "@name:a\,b" keeps
// the comma. No further quoting convention is guessed.
func parseLookup(raw string, node *EntityNode, field string) (map[string]any, error) {
	malformed := func(msg string) *LoadError {
		return &LoadError{
			Code:       ErrCodeSchemaMismatch,
			Message:    fmt.Sprintf("lookup %q on field %q: %s", lookupPrefix+raw, field, msg),
			Key:        node.Key,
			EntityType: node.Type,
		}
	}

	pred := make(map[string]any)
	for _, pair := range splitEscaped(raw, ',') {
		kv := splitEscaped(pair, ':')
		if len(kv) != 2 || kv[0] == "" {
			return nil, malformed("expected field:value pairs separated by commas")
		}
		if _, dup := pred[kv[0]]; dup {
			return nil, malformed(fmt.Sprintf("field %q appears twice", kv[0]))
		}
		pred[kv[0]] = kv[1]
	}
	if len(pred) == 0 {
		return nil, malformed("empty predicate")
	}
	return pred, nil
}

// splitEscaped splits s on sep, honoring backslash escapes. The backslash
// before an escaped separator is dropped; any other backslash is literal.
func splitEscaped(s string, sep byte) []string {
	var parts []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && (s[i+1] == ',' || s[i+1] == ':') {
			cur.WriteByte(s[i+1])
			i++
			continue
		}
		if c == sep {
			parts = append(parts, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	parts = append(parts, cur.String())
	return parts
}
