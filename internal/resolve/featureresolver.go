package resolve

import "strings"

// featureResolver computes a FeatureAssignment over a ResolveGraph by
// walking each package's feature directives to closure, per spec.md §4.3.
// New functionality relative to the teacher (gps resolves one flat set of
// importable packages and has no notion of optional features at all), but
// built in the solver's own worklist idiom: a visiting/done pair per
// feature, mirroring the tri-color cycle check resolvegraph.go already uses
// for package-level cycles.
type featureResolver struct {
	graph      *ResolveGraph
	opts       FeatureOpts
	behavior   ResolveBehavior
	assignment *FeatureAssignment

	visiting map[featureKey]map[string]bool
	stack    map[featureKey][]string

	// propagated marks (PackageId, ActivationContext) pairs whose outgoing
	// edges have already been walked for default/requested-feature
	// propagation, so a cyclic resolve graph terminates.
	propagated map[featureKey]bool
}

// ResolveFeatures computes the FeatureAssignment for every package in graph
// reachable from its workspace members, under opts and behavior.
func ResolveFeatures(graph *ResolveGraph, opts FeatureOpts, behavior ResolveBehavior) (*FeatureAssignment, error) {
	fr := &featureResolver{
		graph:      graph,
		opts:       opts,
		behavior:   behavior,
		assignment: newFeatureAssignment(),
		visiting:   make(map[featureKey]map[string]bool),
		stack:      make(map[featureKey][]string),
		propagated: make(map[featureKey]bool),
	}
	fr.assignment.collapsed = behavior == ResolveV1

	rootCtx := ActivationContext{Kind: ActivationTarget, ForDev: true}
	for _, edge := range graph.Edges[graph.Root] {
		if err := fr.enableInitial(edge.To, rootCtx); err != nil {
			return nil, err
		}
		if err := fr.propagate(edge.To, rootCtx); err != nil {
			return nil, err
		}
	}

	return fr.assignment, nil
}

// propagate walks every already-activated edge out of id, enabling each
// edge's default/requested features on the dependency and recursing into
// it, per spec.md §4.3's "for every edge A -> B" rule. This is what carries
// feature activation across plain (non-optional) dependency edges, not just
// the ones an explicit feature directive names. Visited (id, ctx) pairs are
// tracked so a cyclic resolve graph still terminates.
func (fr *featureResolver) propagate(id PackageId, ctx ActivationContext) error {
	key := featureKey{Id: id, Ctx: fr.collapse(ctx)}
	if fr.propagated[key] {
		return nil
	}
	fr.propagated[key] = true

	for _, edge := range fr.graph.Edges[id] {
		if !edge.Activated {
			continue
		}
		depCtx := depContext(ctx, edge.Dep)
		if err := fr.activateEdgeFeatures(edge, depCtx); err != nil {
			return err
		}
		if err := fr.propagate(edge.To, depCtx); err != nil {
			return err
		}
	}
	return nil
}

func (fr *featureResolver) enableInitial(id PackageId, ctx ActivationContext) error {
	summary, ok := fr.graph.Summaries[id]
	if !ok {
		return nil
	}

	if fr.opts.AllFeatures {
		for f := range summary.Features {
			if err := fr.enable(id, ctx, f); err != nil {
				return err
			}
		}
		for _, dep := range summary.Dependencies {
			if dep.Optional {
				if err := fr.activateOptionalDep(id, ctx, dep.resolvedName()); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if fr.opts.UsesDefaultFeatures {
		if _, ok := summary.Features["default"]; ok {
			if err := fr.enable(id, ctx, "default"); err != nil {
				return err
			}
		}
	}
	for _, f := range fr.opts.Features {
		if err := fr.enableRequested(id, ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// enableRequested dispatches a raw CLI/dependent-requested feature string,
// honoring the "dep:name" namespaced-feature form.
func (fr *featureResolver) enableRequested(id PackageId, ctx ActivationContext, f string) error {
	if fr.opts.NamespacedFeatures && strings.HasPrefix(f, "dep:") {
		return fr.activateOptionalDep(id, ctx, strings.TrimPrefix(f, "dep:"))
	}
	return fr.enable(id, ctx, f)
}

// collapse maps ctx to the single shared key under ResolveV1.
func (fr *featureResolver) collapse(ctx ActivationContext) ActivationContext {
	if fr.behavior == ResolveV1 {
		return collapsedContext
	}
	return ctx
}

// enable activates feature on (id, ctx), expanding its directives to
// closure. Returns FeatureNotFoundError, DepNotOptionalError, or
// CyclicFeatureError per spec.md §7.
func (fr *featureResolver) enable(id PackageId, ctx ActivationContext, feature string) error {
	key := featureKey{Id: id, Ctx: fr.collapse(ctx)}
	set := fr.assignment.ensure(key)

	if set[feature] {
		return nil
	}
	if fr.visiting[key][feature] {
		chain := append(append([]string{}, fr.stack[key]...), feature)
		return &CyclicFeatureError{Package: id, Chain: chain}
	}

	if fr.visiting[key] == nil {
		fr.visiting[key] = make(map[string]bool)
	}
	fr.visiting[key][feature] = true
	fr.stack[key] = append(fr.stack[key], feature)

	summary := fr.graph.Summaries[id]
	directives, declared := summary.Features[feature]

	if !declared {
		unmark := func() {
			delete(fr.visiting[key], feature)
			fr.stack[key] = fr.stack[key][:len(fr.stack[key])-1]
		}
		switch {
		case feature == "default":
			set[feature] = true
			unmark()
			return nil
		case summary.usesImplicitOptionalFeature(feature):
			set[feature] = true
			unmark()
			return fr.activateOptionalDep(id, ctx, feature)
		default:
			unmark()
			return &FeatureNotFoundError{Package: id, Feature: feature}
		}
	}

	for _, d := range directives {
		var err error
		switch d.Kind {
		case DirectiveSelfFeature:
			err = fr.enable(id, ctx, d.Feature)
		case DirectiveEnableOptionalDep:
			err = fr.activateOptionalDep(id, ctx, d.Dep)
		case DirectiveEnableDepFeature:
			err = fr.activateDepFeature(id, ctx, d.Dep, d.DepFeature, true)
		case DirectiveWeakDepFeature:
			err = fr.activateDepFeature(id, ctx, d.Dep, d.DepFeature, false)
		case DirectiveDepPrefix:
			err = fr.activateOptionalDep(id, ctx, d.Dep)
		}
		if err != nil {
			delete(fr.visiting[key], feature)
			fr.stack[key] = fr.stack[key][:len(fr.stack[key])-1]
			return err
		}
	}

	set[feature] = true
	delete(fr.visiting[key], feature)
	fr.stack[key] = fr.stack[key][:len(fr.stack[key])-1]
	return nil
}

// findEdge locates the outgoing edge of id whose dependency resolves to
// depName.
func (fr *featureResolver) findEdge(id PackageId, depName string) *ResolveEdge {
	for _, e := range fr.graph.Edges[id] {
		if e.Dep.resolvedName() == depName {
			return e
		}
	}
	return nil
}

// depContext derives the ActivationContext a dependency is evaluated
// under: Build-kind deps (and anything beneath them) run on the host;
// Dev-kind deps carry ForDev forward; everything else inherits ctx's kind.
func depContext(ctx ActivationContext, dep Dependency) ActivationContext {
	out := ctx
	if dep.Kind == KindBuild {
		out.Kind = ActivationHost
	}
	if dep.Kind == KindDev {
		out.ForDev = true
	}
	return out
}

// activateEdgeFeatures enables edge's default feature (if its dependency
// declaration asks for default-features and the target declares one) and
// every explicitly requested feature, per spec.md §4.3's per-edge rule.
func (fr *featureResolver) activateEdgeFeatures(edge *ResolveEdge, depCtx ActivationContext) error {
	if edge.Dep.DefaultFeatures {
		if summary, ok := fr.graph.Summaries[edge.To]; ok {
			if _, hasDefault := summary.Features["default"]; hasDefault {
				if err := fr.enable(edge.To, depCtx, "default"); err != nil {
					return err
				}
			}
		}
	}
	for _, f := range edge.Dep.RequestedFeatures {
		if err := fr.enable(edge.To, depCtx, f); err != nil {
			return err
		}
	}
	return nil
}

// activateOptionalDep marks depName's edge as activated and enables its
// requested/default features, per spec.md §4.3's optional-dependency rule.
func (fr *featureResolver) activateOptionalDep(id PackageId, ctx ActivationContext, depName string) error {
	edge := fr.findEdge(id, depName)
	if edge == nil {
		return &DepNotOptionalError{Package: id, Dep: depName}
	}
	edge.Activated = true

	depCtx := depContext(ctx, edge.Dep)
	if err := fr.activateEdgeFeatures(edge, depCtx); err != nil {
		return err
	}
	return fr.propagate(edge.To, depCtx)
}

// activateDepFeature handles "dep/feature" (required=true) and
// "dep?/feature" (required=false, weak) directives. A weak reference only
// takes effect if the dependency is already activated from elsewhere; a
// required reference activates it now.
func (fr *featureResolver) activateDepFeature(id PackageId, ctx ActivationContext, depName, depFeature string, required bool) error {
	edge := fr.findEdge(id, depName)
	if edge == nil {
		return &FeatureNotFoundError{Package: id, Feature: depName}
	}
	if !required && !edge.Activated {
		return nil
	}

	depCtx := depContext(ctx, edge.Dep)
	wasActivated := edge.Activated
	if required {
		edge.Activated = true
	}
	if err := fr.enable(edge.To, depCtx, depFeature); err != nil {
		return err
	}
	if required && !wasActivated {
		if err := fr.activateEdgeFeatures(edge, depCtx); err != nil {
			return err
		}
		return fr.propagate(edge.To, depCtx)
	}
	return nil
}
