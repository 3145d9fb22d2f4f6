package resolve

// UnitGraph is the compilation-unit DAG the Unit Graph Builder emits for
// the (external) compilation driver, per spec.md §3/§6.
type UnitGraph struct {
	Roots []UnitKey
	units map[UnitKey]*Unit
	edges map[UnitKey][]UnitKey
}

func newUnitGraph() *UnitGraph {
	return &UnitGraph{
		units: make(map[UnitKey]*Unit),
		edges: make(map[UnitKey][]UnitKey),
	}
}

// Unit looks up a unit by key.
func (g *UnitGraph) Unit(key UnitKey) (*Unit, bool) {
	u, ok := g.units[key]
	return u, ok
}

// Units returns every unit in the graph, in no particular order; callers
// needing determinism should use TopoOrder.
func (g *UnitGraph) Units() []*Unit {
	out := make([]*Unit, 0, len(g.units))
	for _, u := range g.units {
		out = append(out, u)
	}
	return out
}

// DependenciesOf returns the units key depends on.
func (g *UnitGraph) DependenciesOf(key UnitKey) []UnitKey {
	return g.edges[key]
}

func (g *UnitGraph) getOrCreate(u Unit) (*Unit, bool) {
	if existing, ok := g.units[u.Key]; ok {
		return existing, true
	}
	stored := u
	g.units[u.Key] = &stored
	return &stored, false
}

func (g *UnitGraph) addEdge(from, to UnitKey) {
	for _, e := range g.edges[from] {
		if e == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

// TopoOrder returns the units in a stable postorder topological sort
// (dependencies before dependents), per spec.md §6's "stable
// topological order" output contract. Returns an error if the graph
// contains a cycle (it shouldn't, by construction — see unitbuilder.go —
// but this guards spec.md §8 property 7 directly).
func (g *UnitGraph) TopoOrder() ([]*Unit, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[UnitKey]int)
	var order []*Unit

	var visit func(key UnitKey) error
	visit = func(key UnitKey) error {
		color[key] = gray
		for _, dep := range g.edges[key] {
			switch color[dep] {
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			case gray:
				return &unitCycleError{at: key, via: dep}
			}
		}
		color[key] = black
		order = append(order, g.units[key])
		return nil
	}

	// Visit roots first (in declared order) so the resulting order is
	// deterministic across runs with the same graph.
	for _, r := range g.Roots {
		if color[r] == white {
			if err := visit(r); err != nil {
				return nil, err
			}
		}
	}
	for key := range g.units {
		if color[key] == white {
			if err := visit(key); err != nil {
				return nil, err
			}
		}
	}

	return order, nil
}

type unitCycleError struct {
	at, via UnitKey
}

func (e *unitCycleError) Error() string {
	return "unit graph cycle: " + e.at.String() + " -> " + e.via.String()
}

// HostSubtreeConsistent checks spec.md §8 property 8: every unit reachable
// from a Host unit is itself Host. Returns the first offending (parent,
// child) pair found, if any.
func (g *UnitGraph) HostSubtreeConsistent() (parent, child UnitKey, ok bool) {
	for key, u := range g.units {
		if u.Kind != ActivationHost {
			continue
		}
		for _, dep := range g.edges[key] {
			if du, ok := g.units[dep]; ok && du.Kind != ActivationHost {
				return key, dep, true
			}
		}
	}
	return UnitKey{}, UnitKey{}, false
}
