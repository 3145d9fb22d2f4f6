package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// QueryKind selects the matching strategy for RegistryFacade.Query, per
// spec.md §4.1.
type QueryKind uint8

const (
	// QueryExact matches only the literal requested name.
	QueryExact QueryKind = iota
	// QueryFuzzy additionally includes hyphen/underscore-equivalent names.
	QueryFuzzy
	// QueryAlternateNames returns the set of hyphen/underscore spellings
	// that actually exist, without any version filtering.
	QueryAlternateNames
)

// Pending is returned by RegistryFacade methods that may need to suspend
// on network/IO. Callers must call BlockUntilReady before using Value.
type Pending[T any] struct {
	ready bool
	value T
	err   error
	wait  func(ctx context.Context) (T, error)
}

// Ready constructs an already-resolved Pending value.
func Ready[T any](v T) Pending[T] {
	return Pending[T]{ready: true, value: v}
}

// ReadyErr constructs an already-failed Pending value.
func ReadyErr[T any](err error) Pending[T] {
	return Pending[T]{ready: true, err: err}
}

// Deferred constructs a Pending value that suspends until wait is called.
func Deferred[T any](wait func(ctx context.Context) (T, error)) Pending[T] {
	return Pending[T]{wait: wait}
}

// IsReady reports whether the value is already available without blocking.
func (p Pending[T]) IsReady() bool {
	return p.ready
}

// BlockUntilReady resolves the pending value, suspending on IO if needed.
// Network/IO errors surface here, per spec.md §4.1's failure model.
func (p Pending[T]) BlockUntilReady(ctx context.Context) (T, error) {
	if p.ready {
		return p.value, p.err
	}
	return p.wait(ctx)
}

// RegistryFacade is the uniform query surface over candidate package
// summaries, spec.md §4.1. Implementations may back onto a registry index,
// a git source, a local path, or a Patched wrapper, dispatched by SourceId.
type RegistryFacade interface {
	// Query returns candidates whose name matches and whose version
	// satisfies req (an empty req matches everything, used by
	// QueryAlternateNames).
	Query(ctx context.Context, source SourceId, name, req string, kind QueryKind) Pending[[]Summary]
	// Describe returns a human-readable source description.
	Describe(source SourceId) string
	// IsYanked reports whether a specific package version is yanked.
	IsYanked(ctx context.Context, id PackageId) Pending[bool]
	// RequiresPrecise reports whether source needs a precise revision to
	// be reproducible (git/path do, plain registries don't).
	RequiresPrecise(source SourceId) bool
}

// maxFuzzySpellings caps the hyphen/underscore spelling enumeration at
// 1024, per spec.md §4.1 and §9(c) — an arbitrary but load-bearing
// compatibility quirk, preserved verbatim from the teacher's algorithm
// description (there is no direct teacher code for this since gps operates
// on import paths rather than crate names, but the cap and algorithm shape
// are specified directly in spec.md and kept exact).
const maxFuzzySpellings = 1024

// enumerateSpellings returns every hyphen/underscore variant of name, in a
// deterministic order, capped at maxFuzzySpellings. This is the mechanism
// QueryFuzzy and QueryAlternateNames use to resolve the registry's
// "foo-bar" vs "foo_bar" ambiguity.
func enumerateSpellings(name string) []string {
	positions := make([]int, 0, len(name))
	for i, c := range name {
		if c == '-' || c == '_' {
			positions = append(positions, i)
		}
	}
	if len(positions) == 0 {
		return []string{name}
	}
	if len(positions) > 10 {
		// 2^10 == 1024; cap the bit-enumeration itself, not just the
		// output, to avoid building an exponential intermediate slice.
		positions = positions[:10]
	}

	n := 1 << uint(len(positions))
	if n > maxFuzzySpellings {
		n = maxFuzzySpellings
	}

	out := make([]string, 0, n)
	buf := []byte(name)
	for mask := 0; mask < n; mask++ {
		for bit, pos := range positions {
			if mask&(1<<uint(bit)) != 0 {
				buf[pos] = '_'
			} else {
				buf[pos] = '-'
			}
		}
		out = append(out, string(buf))
	}
	return out
}

// existsFn probes whether a given spelling of a package name exists
// on-disk/in-index; abstracted so registryFacade and tests can supply
// different backends.
type existsFn func(name string) bool

// resolveFuzzyName implements spec.md §4.1's internal algorithm: enumerate
// all spellings and return the first one that exists.
func resolveFuzzyName(name string, exists existsFn) (string, bool) {
	for _, spelling := range enumerateSpellings(name) {
		if exists(spelling) {
			return spelling, true
		}
	}
	return "", false
}

// alternateNames returns every spelling of name that actually exists,
// without version filtering — QueryAlternateNames's contract.
func alternateNames(name string, exists existsFn) []string {
	var out []string
	for _, spelling := range enumerateSpellings(name) {
		if exists(spelling) {
			out = append(out, spelling)
		}
	}
	sort.Strings(out)
	return out
}

// normalizeSpellingKey produces a canonical key for grouping hyphen-
// /underscore-equivalent spellings, used by in-memory registries to index
// candidates regardless of how they were declared.
func normalizeSpellingKey(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

// sourceDescribe is the default Describe() implementation shared by
// RegistryFacade backends, matching the teacher's SourceManager.
func sourceDescribe(source SourceId) string {
	return fmt.Sprintf("[%s] %s", source.Kind, source.Describe())
}
