package resolve

import (
	"context"
	"testing"
)

func buildGraph(t *testing.T, reg *MemoryRegistry, root Summary, opts FeatureOpts, behavior ResolveBehavior) *ResolveGraph {
	t.Helper()
	graph, _, err := Resolve(context.Background(), ResolveParams{
		Root:        []Summary{root},
		Registry:    reg,
		HasDevUnits: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return graph
}

func TestEnableDepFeatureActivatesOptionalDep(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.Add(Summary{
		Id:       pkg("ssl", "1.0.0"),
		Features: map[string][]FeatureDirective{"strong": nil},
	})
	p := Summary{
		Id: pkg("p", "1.0.0"),
		Dependencies: []Dependency{
			{Name: "ssl", VersionReq: "1", Source: testSource(), Optional: true, DefaultFeatures: true},
		},
		Features: map[string][]FeatureDirective{
			"tls": {{Kind: DirectiveEnableDepFeature, Dep: "ssl", DepFeature: "strong"}},
		},
	}
	root := Summary{Id: pkg("root", "0.0.0"), Dependencies: []Dependency{{Name: "p", VersionReq: "^1", Source: testSource(), DefaultFeatures: true, RequestedFeatures: []string{"tls"}}}}
	reg.Add(p)

	graph := buildGraph(t, reg, root, FeatureOpts{}, ResolveV2)

	assignment, err := ResolveFeatures(graph, FeatureOpts{}, ResolveV2)
	if err != nil {
		t.Fatal(err)
	}

	ctx := ActivationContext{Kind: ActivationTarget, ForDev: true}
	if !assignment.Has(p.Id, ctx, "tls") {
		t.Error("expected tls enabled on p")
	}
	if !assignment.Has(pkg("ssl", "1.0.0"), ctx, "strong") {
		t.Error("expected ssl/strong enabled via enable-dep-feature directive")
	}

	var sslEdge *ResolveEdge
	for _, e := range graph.Edges[p.Id] {
		if e.Dep.resolvedName() == "ssl" {
			sslEdge = e
		}
	}
	if sslEdge == nil || !sslEdge.Activated {
		t.Error("expected ssl edge to be activated by the required dep-feature directive")
	}
}

func TestWeakDepFeatureOnlyAppliesIfAlreadyActivated(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.Add(Summary{
		Id:       pkg("ssl", "1.0.0"),
		Features: map[string][]FeatureDirective{"strong": nil},
	})
	p := Summary{
		Id: pkg("p", "1.0.0"),
		Dependencies: []Dependency{
			{Name: "ssl", VersionReq: "1", Source: testSource(), Optional: true, DefaultFeatures: true},
		},
		Features: map[string][]FeatureDirective{
			"tls": {{Kind: DirectiveWeakDepFeature, Dep: "ssl", DepFeature: "strong"}},
		},
	}
	root := Summary{Id: pkg("root", "0.0.0"), Dependencies: []Dependency{{Name: "p", VersionReq: "^1", Source: testSource(), DefaultFeatures: true, RequestedFeatures: []string{"tls"}}}}
	reg.Add(p)

	graph := buildGraph(t, reg, root, FeatureOpts{}, ResolveV2)

	assignment, err := ResolveFeatures(graph, FeatureOpts{}, ResolveV2)
	if err != nil {
		t.Fatal(err)
	}

	ctx := ActivationContext{Kind: ActivationTarget, ForDev: true}
	if assignment.Has(pkg("ssl", "1.0.0"), ctx, "strong") {
		t.Error("weak-dep-feature should not activate ssl on its own")
	}
}

func TestCyclicFeatureError(t *testing.T) {
	reg := NewMemoryRegistry()
	p := Summary{
		Id: pkg("p", "1.0.0"),
		Features: map[string][]FeatureDirective{
			"a": {{Kind: DirectiveSelfFeature, Feature: "b"}},
			"b": {{Kind: DirectiveSelfFeature, Feature: "a"}},
		},
	}
	reg.Add(p)
	root := Summary{Id: pkg("root", "0.0.0"), Dependencies: []Dependency{{Name: "p", VersionReq: "^1", Source: testSource(), DefaultFeatures: true, RequestedFeatures: []string{"a"}}}}

	graph := buildGraph(t, reg, root, FeatureOpts{}, ResolveV2)

	_, err := ResolveFeatures(graph, FeatureOpts{}, ResolveV2)
	if err == nil {
		t.Fatal("expected a cyclic feature error")
	}
	if _, ok := err.(*CyclicFeatureError); !ok {
		t.Fatalf("expected *CyclicFeatureError, got %T: %v", err, err)
	}
}

// TestFeaturesPropagateAcrossNonOptionalEdges exercises spec.md §4.3's "for
// every edge A -> B" rule on a plain transitive chain root -> p -> q, where
// p is not a direct child of the synthetic root (only q's activation is
// reached by walking p's own edge, not root's).
func TestFeaturesPropagateAcrossNonOptionalEdges(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.Add(Summary{
		Id:       pkg("q", "1.0.0"),
		Features: map[string][]FeatureDirective{"default": nil, "x": nil},
	})
	reg.Add(Summary{
		Id: pkg("p", "1.0.0"),
		Dependencies: []Dependency{
			{Name: "q", VersionReq: "1", Source: testSource(), DefaultFeatures: true, RequestedFeatures: []string{"x"}},
		},
	})
	root := Summary{Id: pkg("root", "0.0.0"), Dependencies: []Dependency{dep("p", "^1", KindNormal)}}

	graph := buildGraph(t, reg, root, FeatureOpts{}, ResolveV2)

	assignment, err := ResolveFeatures(graph, FeatureOpts{}, ResolveV2)
	if err != nil {
		t.Fatal(err)
	}

	ctx := ActivationContext{Kind: ActivationTarget, ForDev: true}
	if !assignment.Has(pkg("q", "1.0.0"), ctx, "default") {
		t.Error("expected q's default feature enabled via p's default-features=true edge")
	}
	if !assignment.Has(pkg("q", "1.0.0"), ctx, "x") {
		t.Error("expected q's x feature enabled via p's requested-features edge")
	}
}

func TestV1CollapsesContexts(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.Add(Summary{Id: pkg("p", "1.0.0"), Features: map[string][]FeatureDirective{"x": nil}})
	root := Summary{Id: pkg("root", "0.0.0"), Dependencies: []Dependency{{Name: "p", VersionReq: "^1", Source: testSource(), DefaultFeatures: true, RequestedFeatures: []string{"x"}}}}

	graph := buildGraph(t, reg, root, FeatureOpts{}, ResolveV1)

	assignment, err := ResolveFeatures(graph, FeatureOpts{}, ResolveV1)
	if err != nil {
		t.Fatal(err)
	}

	if !assignment.Has(pkg("p", "1.0.0"), ActivationContext{Kind: ActivationHost, ForDev: true}, "x") {
		t.Error("under V1 every context should see the same collapsed feature set")
	}
}
