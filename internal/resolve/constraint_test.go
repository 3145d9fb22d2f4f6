package resolve

import "testing"

func TestCaretRangeDefaultCompatibility(t *testing.T) {
	c, err := NewConstraint("^1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	cases := map[string]bool{
		"1.2.3": true,
		"1.2.4": true,
		"1.9.0": true,
		"2.0.0": false,
		"1.2.2": false,
	}
	for vs, want := range cases {
		v, err := ParseVersion(vs)
		if err != nil {
			t.Fatal(err)
		}
		if got := c.Matches(v); got != want {
			t.Errorf("^1.2.3 matches %s = %v, want %v", vs, got, want)
		}
	}
}

func TestBareVersionIsCaret(t *testing.T) {
	c, err := NewConstraint("1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	v, _ := ParseVersion("1.9.9")
	if !c.Matches(v) {
		t.Error("bare version requirement should default to caret semantics")
	}
}

func TestTildeRangePatchOnly(t *testing.T) {
	c, err := NewConstraint("~1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	v1, _ := ParseVersion("1.2.9")
	v2, _ := ParseVersion("1.3.0")
	if !c.Matches(v1) {
		t.Error("~1.2.3 should match 1.2.9")
	}
	if c.Matches(v2) {
		t.Error("~1.2.3 should not match 1.3.0")
	}
}

func TestIntersectDisjointIsNone(t *testing.T) {
	a, _ := NewConstraint(">=2.0.0")
	b, _ := NewConstraint("<1.0.0")
	if !a.Intersect(b).IsNone() {
		t.Error("disjoint ranges should intersect to none")
	}
}

func TestSortForUpgradeDescending(t *testing.T) {
	vs := []Version{mustVersion("1.0.0"), mustVersion("1.0.2"), mustVersion("1.0.1")}
	SortForUpgrade(vs)
	if vs[0].String() != "1.0.2" || vs[2].String() != "1.0.0" {
		t.Errorf("unexpected order: %v", vs)
	}
}

func TestSortForDowngradeAscending(t *testing.T) {
	vs := []Version{mustVersion("1.0.2"), mustVersion("1.0.0"), mustVersion("1.0.1")}
	SortForDowngrade(vs)
	if vs[0].String() != "1.0.0" || vs[2].String() != "1.0.2" {
		t.Errorf("unexpected order: %v", vs)
	}
}

func mustVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}
