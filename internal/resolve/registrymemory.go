package resolve

import (
	"context"
	"sort"
	"sync"
)

// MemoryRegistry is a RegistryFacade backed entirely by in-memory Summary
// data, keyed by SourceId. It is the primary backend exercised by the
// solver's test suite (mirroring the teacher's solve_test.go/
// solve_bimodal_test.go string-table fixtures) and is also what the CLI
// driver loads the registry index into before wrapping it in a
// CachedRegistry.
type MemoryRegistry struct {
	mu sync.RWMutex
	// bySource maps a normalized SourceId key to name -> summaries.
	bySource map[string]map[string][]Summary
	yanked   map[PackageId]bool
}

// NewMemoryRegistry constructs an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		bySource: make(map[string]map[string][]Summary),
		yanked:   make(map[PackageId]bool),
	}
}

func sourceKey(s SourceId) string {
	return s.Kind.String() + "|" + s.URL + "|" + s.Ref
}

// Add registers a candidate Summary as available from its own PackageId's
// source.
func (r *MemoryRegistry) Add(s Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sk := sourceKey(s.Id.Source)
	byName, ok := r.bySource[sk]
	if !ok {
		byName = make(map[string][]Summary)
		r.bySource[sk] = byName
	}
	key := normalizeSpellingKey(s.Id.Name)
	byName[key] = append(byName[key], s)
	if s.Yanked {
		r.yanked[s.Id] = true
	}
}

func (r *MemoryRegistry) exists(source SourceId, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byName, ok := r.bySource[sourceKey(source)]
	if !ok {
		return false
	}
	_, ok = byName[normalizeSpellingKey(name)]
	return ok
}

// Query implements RegistryFacade.
func (r *MemoryRegistry) Query(ctx context.Context, source SourceId, name, req string, kind QueryKind) Pending[[]Summary] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byName, ok := r.bySource[sourceKey(source)]
	if !ok {
		return Ready[[]Summary](nil)
	}

	var names []string
	switch kind {
	case QueryAlternateNames:
		names = alternateNames(name, func(n string) bool {
			_, ok := byName[normalizeSpellingKey(n)]
			return ok
		})
		// Every spelling normalizes to the same key, so each bucket is
		// added once.
		var out []Summary
		seen := make(map[string]bool)
		for _, n := range names {
			k := normalizeSpellingKey(n)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, byName[k]...)
		}
		return Ready(out)
	case QueryFuzzy:
		if spelling, found := resolveFuzzyName(name, func(n string) bool {
			_, ok := byName[normalizeSpellingKey(n)]
			return ok
		}); found {
			names = []string{spelling}
		}
	default: // QueryExact
		names = []string{name}
	}

	var cands []Summary
	for _, n := range names {
		cands = append(cands, byName[normalizeSpellingKey(n)]...)
	}

	var constraint ConstraintRange
	var err error
	if req != "" {
		constraint, err = NewConstraint(req)
		if err != nil {
			return ReadyErr[[]Summary](err)
		}
	} else {
		constraint = Any()
	}

	var out []Summary
	for _, s := range cands {
		v, err := ParseVersion(s.Id.Version)
		if err != nil {
			continue
		}
		if !constraint.Matches(v) {
			continue
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Id.Version < out[j].Id.Version
	})
	return Ready(out)
}

// Describe implements RegistryFacade.
func (r *MemoryRegistry) Describe(source SourceId) string {
	return sourceDescribe(source)
}

// IsYanked implements RegistryFacade.
func (r *MemoryRegistry) IsYanked(ctx context.Context, id PackageId) Pending[bool] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Ready(r.yanked[id])
}

// RequiresPrecise implements RegistryFacade.
func (r *MemoryRegistry) RequiresPrecise(source SourceId) bool {
	return source.RequiresPrecise()
}
