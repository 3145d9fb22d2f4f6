package resolve

import "testing"

// TestBuildUnitGraphHostTargetSplit exercises spec.md §8 scenario S5: a
// package whose proc-macro lib and normal bin both sit atop a shared
// dependency q, with q additionally required as a build-dependency. q's
// lib target must appear as two distinct units: one Host (feeding the
// build script) and one Target (feeding the bin).
func TestBuildUnitGraphHostTargetSplit(t *testing.T) {
	pID := pkg("p", "1.0.0")
	qID := pkg("q", "1.0.0")

	graph := newResolveGraph(pkg("(root)", "0.0.0"))
	graph.Summaries[pID] = Summary{Id: pID}
	graph.Summaries[qID] = Summary{Id: qID}
	graph.addEdge(pID, qID, Dependency{Name: "q", Kind: KindNormal, DefaultFeatures: true})
	graph.addEdge(pID, qID, Dependency{Name: "q", Kind: KindBuild, DefaultFeatures: true})

	manifests := ManifestSet{
		pID: {Id: pID, Targets: []Target{
			{Name: "p", Kind: TargetLib, CrateTypes: []CrateType{CrateProcMacro}},
			{Name: "p-bin", Kind: TargetBin},
		}},
		qID: {Id: qID, Targets: []Target{
			{Name: "q", Kind: TargetLib},
		}},
	}

	assignment := newFeatureAssignment()
	profiles := DefaultProfiles()

	ug, err := BuildUnitGraph(graph, assignment, manifests, profiles, []UnitSelector{
		{Pkg: pID, TargetName: "p-bin", TargetKind: TargetBin, Mode: ModeBuild},
	})
	if err != nil {
		t.Fatal(err)
	}

	var hostQ, targetQ bool
	for _, u := range ug.Units() {
		if u.Pkg.Eq(qID) {
			if u.Kind == ActivationHost {
				hostQ = true
			}
			if u.Kind == ActivationTarget {
				targetQ = true
			}
		}
	}
	if !hostQ || !targetQ {
		t.Fatalf("expected both a Host and a Target unit for q, got host=%v target=%v", hostQ, targetQ)
	}

	if parent, child, ok := ug.HostSubtreeConsistent(); ok {
		t.Errorf("host subtree inconsistency: %s -> %s", parent, child)
	}

	if _, err := ug.TopoOrder(); err != nil {
		t.Errorf("unit graph should be acyclic: %v", err)
	}
}

func TestBuildUnitGraphMissingLibTarget(t *testing.T) {
	pID := pkg("p", "1.0.0")
	graph := newResolveGraph(pkg("(root)", "0.0.0"))
	graph.Summaries[pID] = Summary{Id: pID}

	manifests := ManifestSet{
		pID: {Id: pID, Targets: []Target{{Name: "p-bin", Kind: TargetBin}}},
	}

	_, err := BuildUnitGraph(graph, newFeatureAssignment(), manifests, DefaultProfiles(), []UnitSelector{
		{Pkg: pID, Mode: ModeDoc},
	})
	if err == nil {
		t.Fatal("expected MissingLibTargetError")
	}
	if _, ok := err.(*MissingLibTargetError); !ok {
		t.Fatalf("expected *MissingLibTargetError, got %T: %v", err, err)
	}
}

func TestUnitGraphTopoOrderDependenciesFirst(t *testing.T) {
	pID := pkg("p", "1.0.0")
	qID := pkg("q", "1.0.0")
	graph := newResolveGraph(pkg("(root)", "0.0.0"))
	graph.Summaries[pID] = Summary{Id: pID}
	graph.Summaries[qID] = Summary{Id: qID}
	graph.addEdge(pID, qID, Dependency{Name: "q", Kind: KindNormal, DefaultFeatures: true})

	manifests := ManifestSet{
		pID: {Id: pID, Targets: []Target{{Name: "p", Kind: TargetLib}}},
		qID: {Id: qID, Targets: []Target{{Name: "q", Kind: TargetLib}}},
	}

	ug, err := BuildUnitGraph(graph, newFeatureAssignment(), manifests, DefaultProfiles(), []UnitSelector{
		{Pkg: pID, TargetKind: TargetLib, Mode: ModeBuild},
	})
	if err != nil {
		t.Fatal(err)
	}

	order, err := ug.TopoOrder()
	if err != nil {
		t.Fatal(err)
	}

	qIdx, pIdx := -1, -1
	for i, u := range order {
		if u.Pkg.Eq(qID) {
			qIdx = i
		}
		if u.Pkg.Eq(pID) {
			pIdx = i
		}
	}
	if qIdx == -1 || pIdx == -1 || qIdx > pIdx {
		t.Fatalf("expected q before p in topo order, got q=%d p=%d", qIdx, pIdx)
	}
}
