package engine

import "sort"

// Plan is a strictly ordered creation plan. Given identical input and store
// state, two runs produce the identical plan.
type Plan struct {
	Order []*EntityNode
}

// PlanStep is the serializable form of one plan entry, used by dry-run
// output and golden tests.
type PlanStep struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// Steps returns the plan as (type, key) pairs in creation order.
func (p *Plan) Steps() []PlanStep {
	steps := make([]PlanStep, len(p.Order))
	for i, n := range p.Order {
		steps[i] = PlanStep{Type: n.Type, Key: n.Key}
	}
	return steps
}

// schedule orders nodes so every edge's source precedes its target.
//
// Two phases of Kahn's algorithm: the first runs over hard edges only and
// fixes the base order; the second re-applies deferred edges (parent before
// reverse-collection child) using the base order as priority, so children
// land as early as their parent allows while sibling order stays stable.
// A cycle in either phase is terminal and reported as a minimal key path.
func schedule(g *depGraph) (*Plan, error) {
	base, err := kahn(g, false, func(a, b *EntityNode) bool {
		if a.Ordinal != b.Ordinal {
			return a.Ordinal < b.Ordinal
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Key < b.Key
	})
	if err != nil {
		return nil, err
	}

	pos := make(map[*EntityNode]int, len(base))
	for i, n := range base {
		pos[n] = i
	}
	order, err := kahn(g, true, func(a, b *EntityNode) bool {
		return pos[a] < pos[b]
	})
	if err != nil {
		return nil, err
	}
	return &Plan{Order: order}, nil
}

// kahn runs Kahn's algorithm with a deterministic tie-break among
// concurrently ready nodes. If the ready queue empties before all nodes are
// scheduled, the remainder forms one or more cycles.
func kahn(g *depGraph, includeDeferred bool, less func(a, b *EntityNode) bool) ([]*EntityNode, error) {
	in := g.predCount(includeDeferred)

	ready := make([]*EntityNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		if in[n] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]*EntityNode, 0, len(g.nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for to, kind := range g.succ[next] {
			if kind == edgeDeferred && !includeDeferred {
				continue
			}
			in[to]--
			if in[to] == 0 {
				ready = append(ready, to)
			}
		}
	}

	if len(order) < len(g.nodes) {
		scheduled := make(map[*EntityNode]bool, len(order))
		for _, n := range order {
			scheduled[n] = true
		}
		return nil, cycleError(minimalCycle(g, scheduled, includeDeferred))
	}
	return order, nil
}

// minimalCycle finds the smallest cycle among the unscheduled remainder and
// returns it as reference keys. The cycle is user data, not program logic,
// so "cycle detected" alone is useless - the caller needs the exact path.
func minimalCycle(g *depGraph, scheduled map[*EntityNode]bool, includeDeferred bool) []string {
	var remaining []*EntityNode
	for _, n := range g.nodes {
		if !scheduled[n] {
			remaining = append(remaining, n)
		}
	}

	var best []*EntityNode
	for _, start := range remaining {
		cycle := shortestCycleFrom(g, start, scheduled, includeDeferred)
		if cycle == nil {
			continue
		}
		if best == nil || len(cycle) < len(best) ||
			(len(cycle) == len(best) && cycle[0].Ordinal < best[0].Ordinal) {
			best = cycle
		}
	}

	keys := make([]string, len(best))
	for i, n := range best {
		keys[i] = n.Key
	}
	return keys
}

// shortestCycleFrom BFS-walks successor edges restricted to unscheduled
// nodes and returns the shortest path start -> ... -> start, or nil.
func shortestCycleFrom(g *depGraph, start *EntityNode, scheduled map[*EntityNode]bool, includeDeferred bool) []*EntityNode {
	parent := make(map[*EntityNode]*EntityNode)
	queue := []*EntityNode{start}
	visited := map[*EntityNode]bool{start: true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		// Deterministic neighbor order.
		var neighbors []*EntityNode
		for to, kind := range g.succ[cur] {
			if scheduled[to] || (kind == edgeDeferred && !includeDeferred) {
				continue
			}
			neighbors = append(neighbors, to)
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Ordinal < neighbors[j].Ordinal })

		for _, to := range neighbors {
			if to == start {
				// Reconstruct start -> ... -> cur.
				var path []*EntityNode
				for n := cur; n != nil; n = parent[n] {
					path = append([]*EntityNode{n}, path...)
				}
				return path
			}
			if !visited[to] {
				visited[to] = true
				parent[to] = cur
				queue = append(queue, to)
			}
		}
	}
	return nil
}
