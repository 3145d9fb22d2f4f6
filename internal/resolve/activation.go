package resolve

// ActivationKind distinguishes a build-script/proc-macro ("Host") context
// from the final artifact ("Target") context, per spec.md §3.
type ActivationKind uint8

const (
	// ActivationTarget is the context building the final artifact for the
	// requested target platform.
	ActivationTarget ActivationKind = iota
	// ActivationHost is the context building something that runs on the
	// machine doing the build: proc-macros and build-script dependencies.
	ActivationHost
)

func (k ActivationKind) String() string {
	if k == ActivationHost {
		return "host"
	}
	return "target"
}

// ActivationContext is the key the Feature Resolver assigns features
// under: which side of the host/target split, and whether dev-only units
// are in play. Under ResolveV1 this collapses to a single key; under
// ResolveV2 it enters the feature-resolution key directly.
type ActivationContext struct {
	Kind   ActivationKind
	ForDev bool
}

// collapsedContext is the single key every ActivationContext maps to under
// ResolveV1's global-union policy.
var collapsedContext = ActivationContext{Kind: ActivationTarget, ForDev: false}

// FeatureOpts carries the user-facing feature flags of spec.md §6:
// --all-features, --no-default-features, and an explicit --features list,
// plus the unstable opt-ins the Feature Resolver's directive handling
// depends on.
type FeatureOpts struct {
	AllFeatures         bool
	UsesDefaultFeatures bool
	Features            []string
	WeakDepFeatures      bool
	NamespacedFeatures   bool
}

// featureKey is the map key FeatureAssignment is built over.
type featureKey struct {
	Id  PackageId
	Ctx ActivationContext
}

// FeatureAssignment maps (PackageId, ActivationContext) to the set of
// enabled feature names, per spec.md §3.
type FeatureAssignment struct {
	sets map[featureKey]map[string]bool
	// collapsed is set under ResolveV1: lookups for any context read the
	// single collapsedContext key.
	collapsed bool
}

func (fa *FeatureAssignment) lookupKey(id PackageId, ctx ActivationContext) featureKey {
	if fa.collapsed {
		ctx = collapsedContext
	}
	return featureKey{Id: id, Ctx: ctx}
}

func newFeatureAssignment() *FeatureAssignment {
	return &FeatureAssignment{sets: make(map[featureKey]map[string]bool)}
}

// Features returns the enabled feature set for (id, ctx), sorted.
func (fa *FeatureAssignment) Features(id PackageId, ctx ActivationContext) []string {
	set := fa.sets[fa.lookupKey(id, ctx)]
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sortStrings(out)
	return out
}

// Has reports whether feature f is enabled for (id, ctx).
func (fa *FeatureAssignment) Has(id PackageId, ctx ActivationContext, f string) bool {
	return fa.sets[fa.lookupKey(id, ctx)][f]
}

func (fa *FeatureAssignment) ensure(key featureKey) map[string]bool {
	set, ok := fa.sets[key]
	if !ok {
		set = make(map[string]bool)
		fa.sets[key] = set
	}
	return set
}

func sortStrings(ss []string) {
	for i := 1; i < len(ss); i++ {
		for j := i; j > 0 && ss[j] < ss[j-1]; j-- {
			ss[j], ss[j-1] = ss[j-1], ss[j]
		}
	}
}
