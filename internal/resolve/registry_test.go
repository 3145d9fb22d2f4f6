package resolve

import (
	"context"
	"testing"
)

func TestEnumerateSpellingsCapsAtMax(t *testing.T) {
	// 11 separators would be 2^11 = 2048 combinations uncapped; the cap
	// must hold at maxFuzzySpellings per spec.md §4.1/§9(c).
	name := "a-b-c-d-e-f-g-h-i-j-k"
	spellings := enumerateSpellings(name)
	if len(spellings) > maxFuzzySpellings {
		t.Fatalf("got %d spellings, want <= %d", len(spellings), maxFuzzySpellings)
	}
}

func TestFuzzyQueryResolvesUnderscoreSpelling(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.Add(Summary{Id: pkg("foo_bar", "1.0.0")})

	pending := reg.Query(context.Background(), testSource(), "foo-bar", "^1", QueryFuzzy)
	got, err := pending.BlockUntilReady(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Id.Name != "foo_bar" {
		t.Fatalf("expected fuzzy match on foo_bar, got %+v", got)
	}
}

func TestAlternateNamesReturnsAllExistingSpellings(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.Add(Summary{Id: pkg("foo_bar", "1.0.0")})
	reg.Add(Summary{Id: pkg("foo-bar", "2.0.0")})

	pending := reg.Query(context.Background(), testSource(), "foo-bar", "", QueryAlternateNames)
	got, err := pending.BlockUntilReady(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both spellings returned unfiltered, got %+v", got)
	}
}

func TestExactQueryFiltersByVersionReq(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.Add(Summary{Id: pkg("foo", "1.0.0")})
	reg.Add(Summary{Id: pkg("foo", "2.0.0")})

	pending := reg.Query(context.Background(), testSource(), "foo", "^1", QueryExact)
	got, err := pending.BlockUntilReady(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Id.Version != "1.0.0" {
		t.Fatalf("expected only 1.0.0 to match ^1, got %+v", got)
	}
}

func TestIsYankedReflectsAddedSummary(t *testing.T) {
	reg := NewMemoryRegistry()
	reg.Add(Summary{Id: pkg("foo", "1.0.0"), Yanked: true})

	yanked, err := reg.IsYanked(context.Background(), pkg("foo", "1.0.0")).BlockUntilReady(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !yanked {
		t.Error("expected foo 1.0.0 to be reported yanked")
	}
}
