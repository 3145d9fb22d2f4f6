package resolve

import (
	"context"
	"testing"
)

func testSource() SourceId {
	return SourceId{Kind: SourceRegistry, URL: "https://example.test/index"}
}

func pkg(name, version string) PackageId {
	return PackageId{Name: name, Version: version, Source: testSource()}
}

func dep(name, req string, kind DependencyKind) Dependency {
	return Dependency{Name: name, VersionReq: req, Source: testSource(), Kind: kind, DefaultFeatures: true}
}

// S1: two candidate versions of foo, a caret requirement picks the newest.
func TestResolveS1PicksNewestMatchingVersion(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.Add(Summary{Id: pkg("foo", "1.0.1")})
	reg.Add(Summary{Id: pkg("foo", "1.0.2")})

	root := Summary{Id: pkg("root", "0.0.0"), Dependencies: []Dependency{dep("foo", "^1", KindNormal)}}

	graph, _, err := Resolve(context.Background(), ResolveParams{
		Root:     []Summary{root},
		Registry: reg,
	})
	if err != nil {
		t.Fatal(err)
	}

	edges := graph.Edges[root.Id]
	if len(edges) != 1 || edges[0].To.Version != "1.0.2" {
		t.Fatalf("expected single edge to foo 1.0.2, got %+v", edges)
	}
}

// S2: bar (pulled in by foo 1.0.2) requires a foo incompatible with 1.0.2,
// forcing a backtrack to foo 1.0.1, which only needs baz.
func TestResolveS2BacktracksOnConflict(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.Add(Summary{
		Id:           pkg("foo", "1.0.2"),
		Dependencies: []Dependency{dep("bar", "^2", KindNormal)},
	})
	reg.Add(Summary{
		Id:           pkg("foo", "1.0.1"),
		Dependencies: []Dependency{dep("baz", "^1", KindNormal)},
	})
	reg.Add(Summary{
		Id:           pkg("bar", "2.0.2"),
		Dependencies: []Dependency{dep("foo", "^2", KindNormal)},
	})
	reg.Add(Summary{Id: pkg("baz", "1.0.0")})

	root := Summary{Id: pkg("root", "0.0.0"), Dependencies: []Dependency{dep("foo", "^1", KindNormal)}}

	graph, _, err := Resolve(context.Background(), ResolveParams{
		Root:     []Summary{root},
		Registry: reg,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := graph.Summaries[pkg("foo", "1.0.1")]; !ok {
		t.Error("expected foo 1.0.1 to be chosen after backtrack")
	}
	if _, ok := graph.Summaries[pkg("bar", "2.0.2")]; ok {
		t.Error("bar should not appear in the final graph")
	}
	if _, ok := graph.Summaries[pkg("baz", "1.0.0")]; !ok {
		t.Error("expected baz 1.0.0 in the final graph")
	}
}

// S3: two packages declaring the same links key, both required.
func TestResolveS3LinksCollision(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.Add(Summary{Id: pkg("a", "1.0.0"), Links: "z"})
	reg.Add(Summary{Id: pkg("b", "1.0.0"), Links: "z"})

	root := Summary{
		Id: pkg("root", "0.0.0"),
		Dependencies: []Dependency{
			dep("a", "^1", KindNormal),
			dep("b", "^1", KindNormal),
		},
	}

	_, _, err := Resolve(context.Background(), ResolveParams{
		Root:     []Summary{root},
		Registry: reg,
	})
	if err == nil {
		t.Fatal("expected a links collision error")
	}
	if _, ok := err.(*LinksCollisionError); !ok {
		t.Fatalf("expected *LinksCollisionError, got %T: %v", err, err)
	}
}

// S4: an optional dependency the package never enables stays out of the
// resolve graph's activated edges.
func TestResolveS4OptionalDepNotEnabled(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.Add(Summary{Id: pkg("ssl", "1.0.0")})
	reg.Add(Summary{
		Id: pkg("net", "1.0.0"),
		Dependencies: []Dependency{
			{Name: "ssl", VersionReq: "1", Source: testSource(), Optional: true, DefaultFeatures: true},
		},
		Features: map[string][]FeatureDirective{},
	})

	root := Summary{Id: pkg("root", "0.0.0"), Dependencies: []Dependency{dep("net", "^1", KindNormal)}}

	graph, _, err := Resolve(context.Background(), ResolveParams{
		Root:     []Summary{root},
		Registry: reg,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ResolveFeatures(graph, FeatureOpts{UsesDefaultFeatures: true}, ResolveV2); err != nil {
		t.Fatal(err)
	}
	graph.Prune()

	if _, ok := graph.Summaries[pkg("ssl", "1.0.0")]; ok {
		t.Error("ssl should be pruned from the resolve graph once feature resolution leaves it unactivated")
	}
}

// S6: a dev-only cycle resolves when dev units are included, and the
// cycle-closing package is simply absent when they are not.
func TestResolveS6DevOnlyCycle(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.Add(Summary{
		Id:           pkg("a", "1.0.0"),
		Dependencies: []Dependency{dep("b", "^1", KindDev)},
	})
	reg.Add(Summary{
		Id:           pkg("b", "1.0.0"),
		Dependencies: []Dependency{dep("a", "^1", KindNormal)},
	})

	root := Summary{Id: pkg("root", "0.0.0"), Dependencies: []Dependency{dep("a", "^1", KindNormal)}}

	graphWithDev, _, err := Resolve(context.Background(), ResolveParams{
		Root:        []Summary{root},
		Registry:    reg,
		HasDevUnits: true,
	})
	if err != nil {
		t.Fatalf("expected dev cycle to resolve successfully, got %v", err)
	}
	if _, ok := graphWithDev.Summaries[pkg("b", "1.0.0")]; !ok {
		t.Error("expected b to be present when dev units are included")
	}

	graphNoDev, _, err := Resolve(context.Background(), ResolveParams{
		Root:        []Summary{root},
		Registry:    reg,
		HasDevUnits: false,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := graphNoDev.Summaries[pkg("b", "1.0.0")]; ok {
		t.Error("b should be absent when dev units are excluded")
	}
}

// TestResolvePublicDependencyConflict exercises spec.md §4.2 step 3's
// simplified public-dependency rule: two publicly re-exported deps with the
// same name but different versions, reached from different sources, are
// rejected once the "public-dependency" unstable opt is enabled.
func TestResolvePublicDependencyConflict(t *testing.T) {
	altSource := SourceId{Kind: SourceRegistry, URL: "https://alt.example.test/index"}

	reg := NewMemoryRegistry()
	reg.Add(Summary{Id: pkg("foo", "1.0.0")})
	reg.Add(Summary{Id: PackageId{Name: "foo", Version: "2.0.0", Source: altSource}})
	reg.Add(Summary{
		Id: pkg("a", "1.0.0"),
		Dependencies: []Dependency{
			{Name: "foo", VersionReq: "^1", Source: testSource(), DefaultFeatures: true, Public: true},
		},
	})
	reg.Add(Summary{
		Id: pkg("b", "1.0.0"),
		Dependencies: []Dependency{
			{Name: "foo", VersionReq: "^2", Source: altSource, DefaultFeatures: true, Public: true},
		},
	})

	root := Summary{
		Id: pkg("root", "0.0.0"),
		Dependencies: []Dependency{
			dep("a", "^1", KindNormal),
			dep("b", "^1", KindNormal),
		},
	}

	_, _, err := Resolve(context.Background(), ResolveParams{
		Root:         []Summary{root},
		Registry:     reg,
		UnstableOpts: map[string]bool{"public-dependency": true},
	})
	if err == nil {
		t.Fatal("expected a public-dependency conflict error")
	}
	if _, ok := err.(*PublicDependencyConflictError); !ok {
		t.Fatalf("expected *PublicDependencyConflictError, got %T: %v", err, err)
	}
}

// TestResolvePublicDependencyAllowedWhenOptDisabled confirms the rule is
// inert unless the unstable opt is set, per spec.md §9(b).
func TestResolvePublicDependencyAllowedWhenOptDisabled(t *testing.T) {
	altSource := SourceId{Kind: SourceRegistry, URL: "https://alt.example.test/index"}

	reg := NewMemoryRegistry()
	reg.Add(Summary{Id: pkg("foo", "1.0.0")})
	reg.Add(Summary{Id: PackageId{Name: "foo", Version: "2.0.0", Source: altSource}})
	reg.Add(Summary{
		Id: pkg("a", "1.0.0"),
		Dependencies: []Dependency{
			{Name: "foo", VersionReq: "^1", Source: testSource(), DefaultFeatures: true, Public: true},
		},
	})
	reg.Add(Summary{
		Id: pkg("b", "1.0.0"),
		Dependencies: []Dependency{
			{Name: "foo", VersionReq: "^2", Source: altSource, DefaultFeatures: true, Public: true},
		},
	})

	root := Summary{
		Id: pkg("root", "0.0.0"),
		Dependencies: []Dependency{
			dep("a", "^1", KindNormal),
			dep("b", "^1", KindNormal),
		},
	}

	_, _, err := Resolve(context.Background(), ResolveParams{
		Root:     []Summary{root},
		Registry: reg,
	})
	if err != nil {
		t.Fatalf("expected resolve to succeed with the unstable opt disabled, got %v", err)
	}
}

func TestResolveNoMatchingVersion(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.Add(Summary{Id: pkg("foo", "0.5.0")})

	root := Summary{Id: pkg("root", "0.0.0"), Dependencies: []Dependency{dep("foo", "^1", KindNormal)}}

	_, _, err := Resolve(context.Background(), ResolveParams{Root: []Summary{root}, Registry: reg})
	if err == nil {
		t.Fatal("expected NoMatchingVersionError")
	}
	if _, ok := err.(*NoMatchingVersionError); !ok {
		t.Fatalf("expected *NoMatchingVersionError, got %T: %v", err, err)
	}
}
