package resolve

import "testing"

func TestEncodeDecodeLockFileRoundTrips(t *testing.T) {
	fooID := pkg("foo", "1.0.2")
	graph := newResolveGraph(pkg("(root)", "0.0.0"))
	graph.Summaries[fooID] = Summary{Id: fooID, Checksum: "deadbeef"}
	graph.addEdge(graph.Root, fooID, Dependency{Name: "foo", Kind: KindNormal, DefaultFeatures: true})
	graph.Edges[graph.Root][0].Activated = true

	data, err := EncodeLockFile(graph, nil)
	if err != nil {
		t.Fatal(err)
	}

	lf, err := DecodeLockFile(data)
	if err != nil {
		t.Fatalf("decode failed: %v\n%s", err, data)
	}
	if len(lf.Package) != 1 || lf.Package[0].Name != "foo" || lf.Package[0].Version != "1.0.2" {
		t.Fatalf("unexpected package list: %+v", lf.Package)
	}
	if lf.Version != currentLockVersion {
		t.Errorf("expected current lockfile version %d, got %d", currentLockVersion, lf.Version)
	}
}

func TestLockedPrefersMatchingSource(t *testing.T) {
	lf := &LockFile{Package: []lockPackage{
		{Name: "foo", Version: "1.0.0", Source: "registry+https://example.test/index"},
	}}

	v, ok := lf.Locked("foo", testSource())
	if !ok || v != "1.0.0" {
		t.Fatalf("expected locked version 1.0.0, got %q ok=%v", v, ok)
	}

	_, ok = lf.Locked("bar", testSource())
	if ok {
		t.Error("expected no locked entry for bar")
	}
}

func TestLoadLockFileMissingIsNil(t *testing.T) {
	lf, err := LoadLockFile("/nonexistent/path/Cargo.lock")
	if err != nil {
		t.Fatal(err)
	}
	if lf != nil {
		t.Error("expected nil LockFile for a missing file")
	}
}
