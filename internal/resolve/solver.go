package resolve

import (
	"context"
	"log"
	"sort"
)

// ResolveBehavior selects the feature-unification scope used when deciding
// whether two requirements for the same (name, source-id) may coexist.
// The Version Resolver itself only needs to know whether V2 permits a
// second, disjoint-context activation; the Feature Resolver is where the
// distinction mostly matters (spec.md §4.3).
type ResolveBehavior uint8

const (
	// ResolveV1 is the legacy global-union behavior.
	ResolveV1 ResolveBehavior = iota
	// ResolveV2 is the per-activation-context behavior.
	ResolveV2
)

// ResolveParams holds all inputs to a single Version Resolver run.
//
// Only Root and Registry are strictly required; everything else narrows or
// relaxes the search. Mirrors the teacher's SolveParameters in shape and
// doc-comment density (solver.go), generalized from Go import-path
// resolution to Cargo's package/feature model.
type ResolveParams struct {
	// Root is the set of workspace member summaries to resolve from.
	Root []Summary

	// Additional lists extra top-level requirements layered on top of Root,
	// e.g. `--package` adds or `[patch]` overrides.
	Additional []Dependency

	// Registry is the facade backing all candidate queries.
	Registry RegistryFacade

	// Lock is the previous resolution, if any. Locked entries are tried
	// before any other candidate (spec.md §4.2 step 2).
	Lock *LockFile

	// Behavior selects V1 or V2 feature-unification scope.
	Behavior ResolveBehavior

	// HasDevUnits controls whether Dev-kind edges contribute obligations.
	HasDevUnits bool

	// ForceAllTargets disables platform-predicate filtering: every
	// dependency is considered regardless of whether its platform gate
	// matches any of ActiveTriples.
	ForceAllTargets bool

	// ActiveTriples is the set of target triples platform predicates are
	// evaluated against. A nil slice defaults to a single "unknown" triple,
	// whose only cfg atom is target_arch = "unknown".
	ActiveTriples []string

	// Downgrade selects "minimal-versions" candidate ordering instead of
	// the default "maximal" (descending) order.
	Downgrade bool

	// UnstableOpts gates refinements spec.md §9(b) marks as unstable.
	// "public-dependency" enables the public-dependency rule of §4.2 step 3.
	UnstableOpts map[string]bool

	// Trace enables the tracer; TraceLogger defaults to log.Default().
	Trace       bool
	TraceLogger *log.Logger
}

// obligation is an unresolved (requesting-pkg, dep) pair awaiting
// activation, per spec.md §4.2 step 1's queue.
type obligation struct {
	From PackageId
	Dep  Dependency
}

// resolver carries the mutable state of a single resolve attempt: the
// graph under construction, the chosen version per (name, source) scope,
// the links-key owners, and an undo log used to unwind tentative choices
// on backtrack.
type resolver struct {
	params ResolveParams
	ctx    context.Context
	tr     *tracer

	graph  *ResolveGraph
	chosen map[string]PackageId
	links  map[string]PackageId
	undo   []func()

	// publicVersions tracks the chosen version of every dependency activated
	// through a public = true edge, keyed by resolved name rather than
	// scopeKey, so that the rule still catches a clash between two distinct
	// sources publishing the same name (spec.md §4.2 step 3's
	// public-dependency rule).
	publicVersions map[string]PackageId

	// learned holds conflict sets recorded per spec.md §4.2 step 4: each
	// entry maps a subset of scopeKeys to the versions that jointly proved
	// unsatisfiable, so a later state containing the same assignments can be
	// pruned without re-exploring.
	learned []map[string]string

	attempts int
}

// Resolve runs the Version Resolver, implementing spec.md §4.2's algorithm:
// candidate selection with backtracking over conflicts, dev-dependency
// gating, links-collision and cycle detection.
func Resolve(ctx context.Context, params ResolveParams) (*ResolveGraph, []string, error) {
	root := PackageId{Name: "(root)", Version: "0.0.0"}
	graph := newResolveGraph(root)
	graph.Summaries[root] = Summary{Id: root}

	r := &resolver{
		params:         params,
		ctx:            ctx,
		tr:             newTracer(params.Trace, params.TraceLogger),
		graph:          graph,
		chosen:         make(map[string]PackageId),
		links:          make(map[string]PackageId),
		publicVersions: make(map[string]PackageId),
	}

	var queue []obligation
	for _, s := range params.Root {
		graph.Summaries[s.Id] = s
		graph.addEdge(root, s.Id, Dependency{Name: s.Id.Name, VersionReq: s.Id.Version, Source: s.Id.Source, DefaultFeatures: true})
		for _, dep := range s.Dependencies {
			queue = append(queue, obligation{From: s.Id, Dep: dep})
		}
	}
	for _, dep := range params.Additional {
		queue = append(queue, obligation{From: root, Dep: dep})
	}

	if err := r.resolveQueue(queue); err != nil {
		return nil, nil, err
	}

	if chain, ok := graph.HasCycle(false); ok {
		return nil, nil, &CycleDetectedError{Chain: chain}
	}

	var warnings []string
	for id, s := range graph.Summaries {
		if s.Yanked {
			if _, locked := yankedButLocked(params.Lock, id); !locked {
				warnings = append(warnings, "using yanked version "+id.String())
			}
		}
	}
	sort.Strings(warnings)

	return graph, warnings, nil
}

func yankedButLocked(lock *LockFile, id PackageId) (string, bool) {
	if lock == nil {
		return "", false
	}
	v, ok := lock.Locked(id.Name, id.Source)
	return v, ok && v == id.Version
}

// scopeKey identifies the feature-unification scope a dependency activates
// into: one chosen version per (name, source), under V1 and, as a
// simplification here, under V2 too.
func scopeKey(name string, source SourceId) string {
	return sourceKey(source) + "::" + normalizeSpellingKey(name)
}

// checkPublicDependency enforces the simplified public-dependency rule of
// spec.md §4.2 step 3: a dependency reached through a public = true edge
// must resolve to the same version everywhere it is publicly reachable,
// approximated here as a single version per resolved name across the whole
// resolve. Gated behind the "public-dependency" unstable opt per spec.md
// §9(b), which marks this interplay as an unstable refinement.
func (r *resolver) checkPublicDependency(dep Dependency, id PackageId) error {
	if !dep.Public || !r.params.UnstableOpts["public-dependency"] {
		return nil
	}
	name := dep.resolvedName()
	if owner, ok := r.publicVersions[name]; ok {
		if owner.Version != id.Version {
			return &PublicDependencyConflictError{Name: name, Dependent: id, Versions: []string{owner.Version, id.Version}}
		}
		return nil
	}
	r.publicVersions[name] = id
	r.undo = append(r.undo, func() { delete(r.publicVersions, name) })
	return nil
}

// snapshotChosen copies the resolver's current per-scope version choices,
// the unit a learned conflict set is expressed over.
func (r *resolver) snapshotChosen() map[string]string {
	out := make(map[string]string, len(r.chosen))
	for k, id := range r.chosen {
		out[k] = id.Version
	}
	return out
}

// conflictsWithLearned reports whether chosen is a superset of any
// previously learned conflict set, per spec.md §4.2 step 4's "any future
// state containing S may be pruned without re-exploring."
func (r *resolver) conflictsWithLearned(chosen map[string]string) bool {
clause:
	for _, c := range r.learned {
		for k, v := range c {
			if chosen[k] != v {
				continue clause
			}
		}
		return true
	}
	return false
}

func (r *resolver) learn(chosen map[string]string) {
	r.learned = append(r.learned, chosen)
}

func (r *resolver) mark() int { return len(r.undo) }

func (r *resolver) rollback(to int) {
	for i := len(r.undo) - 1; i >= to; i-- {
		r.undo[i]()
	}
	r.undo = r.undo[:to]
}

// resolveQueue processes obligations in declaration order (spec.md §5's
// ordering guarantee), trying each candidate for a newly-seen package and
// backtracking to the next candidate when the rest of the queue can't be
// satisfied under that choice.
func (r *resolver) resolveQueue(queue []obligation) error {
	if len(queue) == 0 {
		return nil
	}
	ob := queue[0]
	rest := queue[1:]

	if ob.Dep.Kind == KindDev && !r.params.HasDevUnits {
		return r.resolveQueue(rest)
	}
	if ob.Dep.Platform != nil && !r.params.ForceAllTargets && !r.platformMatchesAny(*ob.Dep.Platform) {
		return r.resolveQueue(rest)
	}

	key := scopeKey(ob.Dep.resolvedName(), ob.Dep.Source)

	if existing, ok := r.chosen[key]; ok {
		v, err := ParseVersion(existing.Version)
		if err != nil {
			return err
		}
		constraint, err := NewConstraint(ob.Dep.VersionReq)
		if err != nil {
			return err
		}
		if !constraint.Matches(v) {
			return &ConflictingVersionsError{
				Name: ob.Dep.resolvedName(),
				Trace: []conflictStep{
					{From: ob.From, Dep: ob.Dep, Req: ob.Dep.VersionReq},
				},
			}
		}
		mark := r.mark()
		if err := r.checkPublicDependency(ob.Dep, existing); err != nil {
			r.rollback(mark)
			return err
		}
		edge := r.graph.addEdge(ob.From, existing, ob.Dep)
		r.undo = append(r.undo, func() {
			edges := r.graph.Edges[ob.From]
			r.graph.Edges[ob.From] = edges[:len(edges)-1]
		})
		_ = edge
		r.tr.activate(len(r.undo), existing)

		if err := r.resolveQueue(rest); err != nil {
			r.rollback(mark)
			return err
		}
		return nil
	}

	candidates, err := r.candidatesFor(ob.Dep)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return &NoMatchingVersionError{Name: ob.Dep.resolvedName(), Req: ob.Dep.VersionReq}
	}

	var lastErr error = &NoMatchingVersionError{Name: ob.Dep.resolvedName(), Req: ob.Dep.VersionReq, Candidates: summaryVersions(candidates)}

	for _, cand := range candidates {
		mark := r.mark()
		r.attempts++

		hypothetical := r.snapshotChosen()
		hypothetical[key] = cand.Id.Version
		if r.conflictsWithLearned(hypothetical) {
			lastErr = &ConflictingVersionsError{
				Name: ob.Dep.resolvedName(),
				Trace: []conflictStep{
					{From: ob.From, Dep: ob.Dep, Req: ob.Dep.VersionReq},
				},
			}
			continue
		}

		if cand.Links != "" {
			if owner, ok := r.links[cand.Links]; ok && !owner.Eq(cand.Id) {
				lastErr = &LinksCollisionError{Links: cand.Links, First: owner, Other: cand.Id}
				continue
			}
			if _, ok := r.links[cand.Links]; !ok {
				r.links[cand.Links] = cand.Id
				r.undo = append(r.undo, func() { delete(r.links, cand.Links) })
			}
		}

		if err := r.checkPublicDependency(ob.Dep, cand.Id); err != nil {
			lastErr = err
			r.rollback(mark)
			continue
		}

		r.chosen[key] = cand.Id
		r.undo = append(r.undo, func() { delete(r.chosen, key) })

		if _, ok := r.graph.Summaries[cand.Id]; !ok {
			r.graph.Summaries[cand.Id] = cand
			r.undo = append(r.undo, func() { delete(r.graph.Summaries, cand.Id) })
		}

		edge := r.graph.addEdge(ob.From, cand.Id, ob.Dep)
		_ = edge
		r.undo = append(r.undo, func() {
			edges := r.graph.Edges[ob.From]
			r.graph.Edges[ob.From] = edges[:len(edges)-1]
		})

		r.tr.activate(len(r.undo), cand.Id)

		var nextQueue []obligation
		nextQueue = append(nextQueue, rest...)
		for _, dep := range cand.Dependencies {
			nextQueue = append(nextQueue, obligation{From: cand.Id, Dep: dep})
		}

		err := r.resolveQueue(nextQueue)
		if err == nil {
			return nil
		}

		r.learn(r.snapshotChosen())
		r.tr.reject(len(r.undo), cand.Id, err)
		r.rollback(mark)
		r.tr.backtrack(mark, cand.Id)
		lastErr = err
	}

	return lastErr
}

func summaryVersions(ss []Summary) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.Id.Version)
	}
	return out
}

// candidatesFor queries the registry for dep, applying the lockfile-first,
// yanked-filtering, and version/platform filtering rules of spec.md §4.2
// step 2, then sorts per the resolver's ordering policy.
func (r *resolver) candidatesFor(dep Dependency) ([]Summary, error) {
	pending := r.params.Registry.Query(r.ctx, dep.Source, dep.resolvedName(), dep.VersionReq, QueryExact)
	all, err := pending.BlockUntilReady(r.ctx)
	if err != nil {
		return nil, &RegistryError{Source: dep.Source, Cause: err}
	}

	lockedVersion, hasLock := "", false
	if r.params.Lock != nil {
		lockedVersion, hasLock = r.params.Lock.Locked(dep.resolvedName(), dep.Source)
	}

	var out []Summary
	for _, s := range all {
		if s.Yanked && s.Id.Version != lockedVersion {
			continue
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		iLocked := hasLock && out[i].Id.Version == lockedVersion
		jLocked := hasLock && out[j].Id.Version == lockedVersion
		if iLocked != jLocked {
			return iLocked
		}
		vi, erri := ParseVersion(out[i].Id.Version)
		vj, errj := ParseVersion(out[j].Id.Version)
		if erri != nil || errj != nil {
			return out[i].Id.Version > out[j].Id.Version
		}
		if r.params.Downgrade {
			return vi.Less(vj)
		}
		return vj.Less(vi)
	})

	return out, nil
}

func (r *resolver) platformMatchesAny(p PlatformPredicate) bool {
	triples := r.params.ActiveTriples
	if len(triples) == 0 {
		triples = []string{"unknown"}
	}
	for _, triple := range triples {
		if p.Matches(triple, DefaultCfgAtoms(triple)) {
			return true
		}
	}
	return false
}
