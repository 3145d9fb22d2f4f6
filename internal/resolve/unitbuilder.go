package resolve

import "sort"

// PackageManifest carries the subset of manifest intake the Unit Graph
// Builder needs per package: its declared targets. Everything else about a
// manifest (dependency tables, feature map, profile overrides) has already
// been consumed by the Version/Feature Resolver stages or lives in the
// external TOML reader per spec.md §1/§6.
type PackageManifest struct {
	Id      PackageId
	Targets []Target
}

// ManifestSet indexes PackageManifest by PackageId for the builder's
// lookups.
type ManifestSet map[PackageId]PackageManifest

func (ms ManifestSet) lib(id PackageId) (Target, bool) {
	for _, t := range ms[id].Targets {
		if t.Kind == TargetLib {
			return t, true
		}
	}
	return Target{}, false
}

func (ms ManifestSet) customBuild(id PackageId) Target {
	for _, t := range ms[id].Targets {
		if t.Kind == TargetCustomBuild {
			return t
		}
	}
	return Target{Name: "build-script-build", Kind: TargetCustomBuild}
}

// UnitSelector names one root compilation task the caller wants in the
// output graph: a package, one of its targets, and a mode.
type UnitSelector struct {
	Pkg        PackageId
	TargetName string // empty selects TargetKind's first match
	TargetKind TargetKind
	Mode       CompileMode
	// DocDeps requests recursing into doc units for dependency libs too,
	// per spec.md §4.4's "if doc{deps:true}". Only consulted when Mode is
	// Doc or Doctest.
	DocDeps bool
}

// unitBuilder holds the shared state of one BuildUnitGraph call.
type unitBuilder struct {
	graph      *ResolveGraph
	assignment *FeatureAssignment
	manifests  ManifestSet
	profiles   ProfileSet
}

// BuildUnitGraph lowers a resolve graph + feature assignment into a graph
// of compilation units, per spec.md §4.4/§6. selectors names the roots
// (e.g. "build the lib and every bin of the workspace members", "test
// package p", "doc package q").
func BuildUnitGraph(graph *ResolveGraph, assignment *FeatureAssignment, manifests ManifestSet, profiles ProfileSet, selectors []UnitSelector) (*UnitGraph, error) {
	ub := &unitBuilder{graph: graph, assignment: assignment, manifests: manifests, profiles: profiles}
	ug := newUnitGraph()

	for _, sel := range selectors {
		target, err := ub.resolveTarget(sel)
		if err != nil {
			return nil, err
		}

		profileName := ForMode(sel.Mode)
		profile, err := profiles.Lookup(profileName)
		if err != nil {
			return nil, err
		}

		includeDev := sel.Mode == ModeTest || sel.Mode == ModeBench || sel.Mode == ModeDoctest

		u, err := ub.unitFor(ug, sel.Pkg, target, ActivationTarget, sel.Mode, profile, includeDev, sel.DocDeps)
		if err != nil {
			return nil, err
		}
		ug.Roots = append(ug.Roots, u.Key)
	}

	sort.Slice(ug.Roots, func(i, j int) bool { return ug.Roots[i].String() < ug.Roots[j].String() })
	return ug, nil
}

func (ub *unitBuilder) resolveTarget(sel UnitSelector) (Target, error) {
	switch sel.Mode {
	case ModeDoc, ModeDoctest:
		t, ok := ub.manifests.lib(sel.Pkg)
		if !ok {
			return Target{}, &MissingLibTargetError{Package: sel.Pkg, Mode: sel.Mode}
		}
		return t, nil
	}

	for _, t := range ub.manifests[sel.Pkg].Targets {
		if sel.TargetName != "" {
			if t.Name == sel.TargetName {
				if sel.TargetKind != t.Kind {
					return Target{}, &InconsistentTargetKindError{Package: sel.Pkg, Target: t.Name, Mode: sel.Mode}
				}
				return t, nil
			}
			continue
		}
		if t.Kind == sel.TargetKind {
			return t, nil
		}
	}
	if sel.TargetKind == TargetLib {
		return Target{}, &MissingLibTargetError{Package: sel.Pkg, Mode: sel.Mode}
	}
	return Target{}, &InconsistentTargetKindError{Package: sel.Pkg, Target: sel.TargetName, Mode: sel.Mode}
}

// childCompileMode implements spec.md §4.4 step 5's check-or-build-mode:
// a Check parent lowers its normal deps to Check too (rmeta-only), except a
// for-host (proc-macro) child, which must always be fully built since
// proc-macros cannot be consumed from a check-only rmeta.
func childCompileMode(parentMode CompileMode, childIsHost bool) CompileMode {
	if parentMode == ModeCheck && !childIsHost {
		return ModeCheck
	}
	return ModeBuild
}

// unitFor returns the (deduplicated) Unit for (pkg, target, kind, mode,
// profile), constructing it and its dependency edges if not already
// present. includeDev gates whether pkg's own Dev-kind edges contribute
// dependency units — true only at the selector root, since dev
// dependencies are never transitive (spec.md §3's Dependency invariant).
// docDeps is only consulted when mode ends up being Doc/Doctest.
func (ub *unitBuilder) unitFor(ug *UnitGraph, pkg PackageId, target Target, kind ActivationKind, mode CompileMode, profile Profile, includeDev bool, docDeps bool) (*Unit, error) {
	effMode := mode
	if target.Kind != TargetLib && target.Kind != TargetBin && (mode == ModeDoc || mode == ModeDoctest) {
		effMode = ModeBuild
	}

	if effMode == ModeDoc || effMode == ModeDoctest {
		return ub.docUnitFor(ug, pkg, target, kind, effMode, profile, docDeps)
	}

	key := UnitKey{Pkg: pkg, Target: target.Name, Kind: kind, Mode: effMode, Profile: profile.Name}
	if existing, ok := ug.Unit(key); ok {
		return existing, nil
	}

	ctx := ActivationContext{Kind: kind, ForDev: includeDev}
	u := Unit{
		Key:      key,
		Pkg:      pkg,
		Target:   target,
		Profile:  profile,
		Mode:     effMode,
		Kind:     kind,
		Features: ub.assignment.Features(pkg, ctx),
	}
	stored, _ := ug.getOrCreate(u)

	var buildDeps []*ResolveEdge
	for _, e := range ub.graph.Edges[pkg] {
		if !e.Activated {
			continue
		}
		if e.Dep.Kind == KindDev && !includeDev {
			continue
		}
		if e.Dep.Kind == KindBuild {
			buildDeps = append(buildDeps, e)
			continue
		}

		depTarget, ok := ub.manifests.lib(e.To)
		if !ok {
			continue
		}

		childKind := kind
		if kind == ActivationHost || depTarget.IsProcMacro() {
			childKind = ActivationHost
		}
		childMode := childCompileMode(effMode, childKind == ActivationHost && depTarget.IsProcMacro())

		child, err := ub.unitFor(ug, e.To, depTarget, childKind, childMode, mustProfile(ub.profiles, childMode), false, false)
		if err != nil {
			return nil, err
		}
		ug.addEdge(key, child.Key)
	}

	if len(buildDeps) > 0 {
		runKey, err := ub.runCustomBuild(ug, pkg, buildDeps)
		if err != nil {
			return nil, err
		}
		ug.addEdge(key, runKey)
	}

	return stored, nil
}

// docUnitFor implements spec.md §4.4's "Doc / Doctest" branch: dependency
// libs compile in Check (rmeta-only) unless they are proc-macros, which
// must be built; docDeps additionally recurses into doc units for those
// same libs. Build-kind and Dev-kind edges contribute nothing here.
func (ub *unitBuilder) docUnitFor(ug *UnitGraph, pkg PackageId, target Target, kind ActivationKind, mode CompileMode, profile Profile, docDeps bool) (*Unit, error) {
	key := UnitKey{Pkg: pkg, Target: target.Name, Kind: kind, Mode: mode, Profile: profile.Name}
	if existing, ok := ug.Unit(key); ok {
		return existing, nil
	}

	ctx := ActivationContext{Kind: kind, ForDev: false}
	u := Unit{
		Key:      key,
		Pkg:      pkg,
		Target:   target,
		Profile:  profile,
		Mode:     mode,
		Kind:     kind,
		Features: ub.assignment.Features(pkg, ctx),
	}
	stored, _ := ug.getOrCreate(u)

	for _, e := range ub.graph.Edges[pkg] {
		if !e.Activated || e.Dep.Kind == KindDev || e.Dep.Kind == KindBuild {
			continue
		}
		depTarget, ok := ub.manifests.lib(e.To)
		if !ok {
			continue
		}

		childKind := kind
		if kind == ActivationHost || depTarget.IsProcMacro() {
			childKind = ActivationHost
		}

		if depTarget.IsProcMacro() {
			buildProfile := mustProfile(ub.profiles, ModeBuild)
			child, err := ub.unitFor(ug, e.To, depTarget, childKind, ModeBuild, buildProfile, false, false)
			if err != nil {
				return nil, err
			}
			ug.addEdge(key, child.Key)
			continue
		}

		checkProfile := mustProfile(ub.profiles, ModeCheck)
		child, err := ub.unitFor(ug, e.To, depTarget, childKind, ModeCheck, checkProfile, false, false)
		if err != nil {
			return nil, err
		}
		ug.addEdge(key, child.Key)

		if docDeps {
			docChild, err := ub.docUnitFor(ug, e.To, depTarget, childKind, mode, profile, docDeps)
			if err != nil {
				return nil, err
			}
			ug.addEdge(key, docChild.Key)
		}
	}

	return stored, nil
}

// runCustomBuild creates (or reuses) the RunCustomBuild unit for pkg, per
// spec.md §4.4's RunCustomBuild branch: its sole same-package dependency is
// the Build unit of pkg's CustomBuild target (which in turn depends on the
// Host-kind lib units of pkg's Build-kind dependencies), plus a
// RunCustomBuild unit for every transitive lib dependency that declares
// links (spec.md §8 scenario S5 and the post-construction RunCustomBuild
// invariant).
func (ub *unitBuilder) runCustomBuild(ug *UnitGraph, pkg PackageId, buildDeps []*ResolveEdge) (UnitKey, error) {
	runProfile := mustProfile(ub.profiles, ModeRunCustomBuild)
	runTarget := ub.manifests.customBuild(pkg)
	runKey := UnitKey{Pkg: pkg, Target: runTarget.Name, Kind: ActivationHost, Mode: ModeRunCustomBuild, Profile: runProfile.Name}

	if _, ok := ug.Unit(runKey); ok {
		return runKey, nil
	}

	ug.getOrCreate(Unit{
		Key:      runKey,
		Pkg:      pkg,
		Target:   runTarget,
		Profile:  runProfile,
		Mode:     ModeRunCustomBuild,
		Kind:     ActivationHost,
		Features: ub.assignment.Features(pkg, ActivationContext{Kind: ActivationHost, ForDev: false}),
	})

	buildProfile := mustProfile(ub.profiles, ModeBuild)
	buildKey := UnitKey{Pkg: pkg, Target: runTarget.Name, Kind: ActivationHost, Mode: ModeBuild, Profile: buildProfile.Name}
	if _, ok := ug.Unit(buildKey); !ok {
		ug.getOrCreate(Unit{
			Key:      buildKey,
			Pkg:      pkg,
			Target:   runTarget,
			Profile:  buildProfile,
			Mode:     ModeBuild,
			Kind:     ActivationHost,
			Features: ub.assignment.Features(pkg, ActivationContext{Kind: ActivationHost, ForDev: false}),
		})
		for _, e := range buildDeps {
			depTarget, ok := ub.manifests.lib(e.To)
			if !ok {
				continue
			}
			child, err := ub.unitFor(ug, e.To, depTarget, ActivationHost, ModeBuild, buildProfile, false, false)
			if err != nil {
				return UnitKey{}, err
			}
			ug.addEdge(buildKey, child.Key)
		}
	}
	ug.addEdge(runKey, buildKey)

	for _, linked := range ub.linksClosure(pkg) {
		linkedRunKey, err := ub.runCustomBuild(ug, linked, ub.buildDepsOf(linked))
		if err != nil {
			return UnitKey{}, err
		}
		ug.addEdge(runKey, linkedRunKey)
	}

	return runKey, nil
}

// linksClosure returns every package reachable from pkg via activated
// Normal/Build edges (Dev excluded, since dev deps are never transitive)
// whose Summary declares a links key, sorted for determinism.
func (ub *unitBuilder) linksClosure(pkg PackageId) []PackageId {
	seen := map[PackageId]bool{pkg: true}
	var linked []PackageId

	var walk func(id PackageId)
	walk = func(id PackageId) {
		for _, e := range ub.graph.Edges[id] {
			if !e.Activated || e.Dep.Kind == KindDev || seen[e.To] {
				continue
			}
			seen[e.To] = true
			if s, ok := ub.graph.Summaries[e.To]; ok && s.Links != "" {
				linked = append(linked, e.To)
			}
			walk(e.To)
		}
	}
	walk(pkg)

	sort.Slice(linked, func(i, j int) bool { return linked[i].String() < linked[j].String() })
	return linked
}

// buildDepsOf returns pkg's own activated Build-kind edges.
func (ub *unitBuilder) buildDepsOf(pkg PackageId) []*ResolveEdge {
	var deps []*ResolveEdge
	for _, e := range ub.graph.Edges[pkg] {
		if e.Activated && e.Dep.Kind == KindBuild {
			deps = append(deps, e)
		}
	}
	return deps
}

func mustProfile(ps ProfileSet, mode CompileMode) Profile {
	p, err := ps.Lookup(ForMode(mode))
	if err != nil {
		return Profile{Name: ForMode(mode)}
	}
	return p
}
