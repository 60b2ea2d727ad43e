package engine

// edgeKind distinguishes how an edge constrains the schedule.
type edgeKind int

const (
	// edgeHard means the source must be created strictly before the target.
	edgeHard edgeKind = iota
	// edgeDeferred means the source (a parent) must exist before the target
	// (its reverse-collection child); excluded from the core order and
	// re-applied in the scheduler's second phase.
	edgeDeferred
)

// depGraph is the directed "must exist before" graph over all nodes.
type depGraph struct {
	nodes []*EntityNode
	// succ[from][to] holds the strongest edge kind between the pair.
	// Multi-edges collapse; a hard edge dominates a deferred one.
	succ map[*EntityNode]map[*EntityNode]edgeKind
}

func (g *depGraph) addEdge(from, to *EntityNode, kind edgeKind) {
	if g.succ[from] == nil {
		g.succ[from] = make(map[*EntityNode]edgeKind)
	}
	if existing, ok := g.succ[from][to]; ok && existing == edgeHard {
		return
	}
	g.succ[from][to] = kind
}

// buildGraph inspects every node's relation declarations and emits edges.
// Symbolic references are validated here, before any store work: an unknown
// or self-referencing key fails the run with zero store writes.
func buildGraph(nodes []*EntityNode, refs *ReferenceTable) (*depGraph, error) {
	g := &depGraph{
		nodes: nodes,
		succ:  make(map[*EntityNode]map[*EntityNode]edgeKind),
	}

	for _, n := range nodes {
		for _, rel := range n.Relations {
			switch rel.Kind {
			case RelInline:
				// The owner holds the child's identity at creation time.
				g.addEdge(rel.Child, n, edgeHard)
			case RelRef:
				target, ok := refs.Node(rel.TargetKey)
				if !ok {
					return nil, unknownReferenceError(rel.TargetKey, n.Key, n.Type)
				}
				if target == n {
					return nil, selfReferenceError(n)
				}
				g.addEdge(target, n, edgeHard)
			case RelParent:
				parent, ok := refs.Node(rel.TargetKey)
				if !ok {
					return nil, internalError("reverse-collection parent %q not registered", rel.TargetKey)
				}
				g.addEdge(parent, n, edgeDeferred)
			case RelLookup:
				// Resolved against the store at materialization time; no
				// ordering constraint between declared nodes.
			case RelManyToMany:
				// Both endpoints must exist before the association, but the
				// relation imposes no creation-order edge. Still validate
				// element references eagerly.
				for _, elem := range rel.Elements {
					if elem.Kind != ElemRef && elem.Kind != ElemAttributed {
						continue
					}
					if elem.Key == "" {
						continue
					}
					if !refs.Exists(elem.Key) {
						return nil, unknownReferenceError(elem.Key, n.Key, n.Type)
					}
				}
			}
		}
	}
	return g, nil
}

// predCount returns per-node in-degrees over the selected edge kinds.
func (g *depGraph) predCount(includeDeferred bool) map[*EntityNode]int {
	in := make(map[*EntityNode]int, len(g.nodes))
	for _, n := range g.nodes {
		in[n] = 0
	}
	for _, targets := range g.succ {
		for to, kind := range targets {
			if kind == edgeDeferred && !includeDeferred {
				continue
			}
			in[to]++
		}
	}
	return in
}
