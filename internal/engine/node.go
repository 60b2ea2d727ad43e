package engine

import "fmt"

// EntityNode is the in-memory representation of one declared record.
type EntityNode struct {
	// Type is the namespace-qualified entity type, e.g. "shop.Category".
	Type string
	// Key is the document-scoped reference key. Unique across the entire
	// document set; auto-generated when the declaration carries none.
	Key string
	// Explicit reports whether Key came from the document rather than the
	// auto-key counter.
	Explicit bool
	// Ordinal is the global build-order index. It drives the deterministic
	// tie-break between concurrently ready nodes during scheduling.
	Ordinal int
	// Fields holds the scalar field values as declared.
	Fields map[string]any
	// Relations holds the classified relation declarations in deterministic
	// field-name order.
	Relations []RelationDecl
	// Identity is the store-assigned identity, set exactly once by the
	// executor when the record is created.
	Identity string
}

func (n *EntityNode) String() string {
	return fmt.Sprintf("%s[%s]", n.Type, n.Key)
}

// RelationKind discriminates the closed set of relation declarations.
// Classification happens once, during the build pass - the graph and
// scheduler never inspect raw document shapes.
type RelationKind int

const (
	// RelInline is a nested declaration creating a new record the owner
	// references directly. The child must exist before the owner.
	RelInline RelationKind = iota
	// RelRef is a symbolic reference ("$key") to another declared node.
	RelRef
	// RelLookup resolves against existing store data by predicate. It never
	// constrains creation order between declared nodes.
	RelLookup
	// RelParent is the implicit back-reference a reverse-collection child
	// holds to its parent. The parent must exist before the child.
	RelParent
	// RelManyToMany is a list of elements associated with the owner after
	// both ends exist.
	RelManyToMany
)

func (k RelationKind) String() string {
	switch k {
	case RelInline:
		return "inline"
	case RelRef:
		return "ref"
	case RelLookup:
		return "lookup"
	case RelParent:
		return "parent"
	case RelManyToMany:
		return "manyToMany"
	default:
		return fmt.Sprintf("RelationKind(%d)", int(k))
	}
}

// RelationDecl is one classified relation declaration on an EntityNode.
// Which members are set depends on Kind:
//
//	RelInline:     Child
//	RelRef:        TargetKey
//	RelLookup:     TargetType, Predicate
//	RelParent:     TargetKey (the parent's reference key)
//	RelManyToMany: TargetType, Elements
type RelationDecl struct {
	// Field is the relation field name on the owning entity. For RelParent
	// it is the child-side field supplied by the catalog.
	Field      string
	Kind       RelationKind
	TargetType string
	TargetKey  string
	Predicate  map[string]any
	Child      *EntityNode
	Elements   []M2MElement
}

// M2MElementKind discriminates many-to-many element declarations.
type M2MElementKind int

const (
	// ElemRef points at a declared node by reference key.
	ElemRef M2MElementKind = iota
	// ElemLookup resolves an existing store record by predicate.
	ElemLookup
	// ElemInline declares a new target record within the list.
	ElemInline
	// ElemAttributed is a reference carrying extra join attributes; it
	// materializes through the store's attributed-join primitive.
	ElemAttributed
)

// M2MElement is one entry of a many-to-many relation declaration, in
// document order.
type M2MElement struct {
	Kind      M2MElementKind
	Key       string
	Predicate map[string]any
	Child     *EntityNode
	// Attrs holds the extra join attributes for ElemAttributed elements.
	Attrs map[string]any
}
