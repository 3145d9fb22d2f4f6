package resolve

// ResolveEdge is one outgoing dependency edge in a ResolveGraph, carrying
// the originating Dependency record so later passes (feature resolution,
// unit graph construction) can reason about optionality, renames, and kind.
type ResolveEdge struct {
	To  PackageId
	Dep Dependency
	// Activated records whether an optional dependency's enabling feature
	// was eventually turned on by the feature resolver (spec.md §3's
	// FeatureAssignment invariant). Non-optional edges are always
	// activated.
	Activated bool
}

// ResolveGraph is the package-level dependency graph produced by the
// Version Resolver: one node per chosen PackageId, per spec.md §3.
type ResolveGraph struct {
	// Root is the workspace root's synthetic PackageId.
	Root PackageId
	// Edges maps a PackageId to its outgoing dependency edges.
	Edges map[PackageId][]*ResolveEdge
	// Summaries holds the chosen Summary for every node, so later passes
	// don't need to re-query the registry.
	Summaries map[PackageId]Summary
}

func newResolveGraph(root PackageId) *ResolveGraph {
	return &ResolveGraph{
		Root:      root,
		Edges:     make(map[PackageId][]*ResolveEdge),
		Summaries: make(map[PackageId]Summary),
	}
}

// Nodes returns all PackageIds in the graph, including the root.
func (g *ResolveGraph) Nodes() []PackageId {
	out := make([]PackageId, 0, len(g.Summaries))
	for id := range g.Summaries {
		out = append(out, id)
	}
	return out
}

// addEdge records that `from` depends on `to` via dep.
func (g *ResolveGraph) addEdge(from, to PackageId, dep Dependency) *ResolveEdge {
	e := &ResolveEdge{To: to, Dep: dep, Activated: !dep.Optional}
	g.Edges[from] = append(g.Edges[from], e)
	return e
}

// Prune discards every package reachable only through a non-Activated
// (unactivated optional) edge, once feature resolution has settled which
// optional edges are actually turned on. Per spec.md §4.2 step 6, the
// resolver speculatively includes optional dependencies and "lets feature
// resolution prune" — this is that pruning pass, applied after
// ResolveFeatures has set every edge's final Activated state.
func (g *ResolveGraph) Prune() {
	reachable := map[PackageId]bool{g.Root: true}
	queue := []PackageId{g.Root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range g.Edges[id] {
			if !e.Activated || reachable[e.To] {
				continue
			}
			reachable[e.To] = true
			queue = append(queue, e.To)
		}
	}

	for id := range g.Summaries {
		if !reachable[id] {
			delete(g.Summaries, id)
			delete(g.Edges, id)
		}
	}
	for id, edges := range g.Edges {
		if !reachable[id] {
			delete(g.Edges, id)
			continue
		}
		kept := edges[:0]
		for _, e := range edges {
			if reachable[e.To] {
				kept = append(kept, e)
			}
		}
		g.Edges[id] = kept
	}
}

// HasCycle reports whether the graph, restricted to non-Dev edges (unless
// includeDev is true), contains a cycle — spec.md §4.2 step 7 / §8.7.
func (g *ResolveGraph) HasCycle(includeDev bool) (chain []PackageId, ok bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[PackageId]int)
	var stack []PackageId

	var visit func(id PackageId) bool
	visit = func(id PackageId) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, e := range g.Edges[id] {
			if e.Dep.Kind == KindDev && !includeDev {
				continue
			}
			switch color[e.To] {
			case white:
				if visit(e.To) {
					return true
				}
			case gray:
				chain = append(append([]PackageId{}, stack...), e.To)
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for id := range g.Summaries {
		if color[id] == white {
			if visit(id) {
				return chain, true
			}
		}
	}
	return nil, false
}
