package resolve

import "fmt"

// PackageId is the triple (name, version, source-id) that globally and
// uniquely identifies a package within a single resolution, per spec.md §3.
type PackageId struct {
	Name    string
	Version string // a concrete SemVer version string, not a range
	Source  SourceId
}

func (id PackageId) String() string {
	return fmt.Sprintf("%s v%s", id.Name, id.Version)
}

// Eq compares two PackageIds for equality, ignoring the Precise field of
// their SourceIds (matching SourceId.Eq's contract).
func (id PackageId) Eq(o PackageId) bool {
	return id.Name == o.Name && id.Version == o.Version && id.Source.Eq(o.Source)
}

// Less provides a deterministic total order over PackageIds, used to make
// iteration and tie-break behavior reproducible (spec.md §5, §8.1).
func (id PackageId) Less(o PackageId) bool {
	if id.Name != o.Name {
		return id.Name < o.Name
	}
	if id.Version != o.Version {
		return id.Version < o.Version
	}
	return id.Source.URL < o.Source.URL
}

// DependencyKind classifies how a Dependency is consumed.
type DependencyKind uint8

const (
	// KindNormal is a regular, transitive runtime dependency.
	KindNormal DependencyKind = iota
	// KindDev is a non-transitive dependency used only by the declaring
	// package's test/example/bench targets.
	KindDev
	// KindBuild is a dependency of the package's build script, consumed
	// only in the Host activation context.
	KindBuild
)

func (k DependencyKind) String() string {
	switch k {
	case KindDev:
		return "dev"
	case KindBuild:
		return "build"
	default:
		return "normal"
	}
}

// Dependency is a declared requirement, per spec.md §3.
type Dependency struct {
	// Name is the name as referenced in the requiring manifest.
	Name string
	// PackageName is the renamed-from package name; defaults to Name.
	PackageName string
	// VersionReq is a SemVer range expression.
	VersionReq string
	Source     SourceId
	Kind       DependencyKind
	Optional   bool
	// DefaultFeatures indicates whether the dependent wants the dep's
	// "default" feature enabled.
	DefaultFeatures bool
	// RequestedFeatures are additional features the dependent asks for.
	RequestedFeatures []string
	// Platform gates when this dependency is even considered; nil means
	// "always".
	Platform *PlatformPredicate
	// Public marks a dependency whose types may leak through the
	// dependent's own public API (spec.md §4.2's public-dependency rule).
	Public bool
}

// resolvedName returns the name this dependency is known by once renamed.
func (d Dependency) resolvedName() string {
	if d.PackageName != "" {
		return d.PackageName
	}
	return d.Name
}

// FeatureDirectiveKind enumerates spec.md §3's FeatureDirective variants.
type FeatureDirectiveKind uint8

const (
	// DirectiveSelfFeature enables another feature of the same package.
	DirectiveSelfFeature FeatureDirectiveKind = iota
	// DirectiveEnableOptionalDep activates an optional dependency edge.
	DirectiveEnableOptionalDep
	// DirectiveEnableDepFeature requires a dep active and enables one of
	// its features.
	DirectiveEnableDepFeature
	// DirectiveWeakDepFeature enables a dep's feature only if the dep is
	// already active from elsewhere.
	DirectiveWeakDepFeature
	// DirectiveDepPrefix is the explicit "dep:name" optional-dep
	// activation, without an implicit same-named feature.
	DirectiveDepPrefix
)

// FeatureDirective is one entry in a package's feature map value.
type FeatureDirective struct {
	Kind FeatureDirectiveKind
	// Feature is the name used by DirectiveSelfFeature.
	Feature string
	// Dep is the dependency name used by DirectiveEnableOptionalDep,
	// DirectiveEnableDepFeature, DirectiveWeakDepFeature, DirectiveDepPrefix.
	Dep string
	// DepFeature is the feature on Dep, used by DirectiveEnableDepFeature
	// and DirectiveWeakDepFeature.
	DepFeature string
}

// Summary is what the registry returns for a candidate package version,
// per spec.md §3.
type Summary struct {
	Id           PackageId
	Dependencies []Dependency
	// Features maps a feature name to its directives.
	Features map[string][]FeatureDirective
	// Links is the native-library key this package declares, if any.
	Links    string
	Checksum string
	Yanked   bool
}

// usesImplicitOptionalFeature reports whether feature name f would, absent a
// "dep:" directive anywhere in the map, implicitly enable optional
// dependency f of the same name. Per spec.md §4.3, mixing "dep:" usage
// suppresses this implicit rule for the whole package.
func (s Summary) usesImplicitOptionalFeature(f string) bool {
	for _, directives := range s.Features {
		for _, d := range directives {
			if d.Kind == DirectiveDepPrefix {
				return false
			}
		}
	}
	for _, dep := range s.Dependencies {
		if dep.Optional && dep.resolvedName() == f {
			return true
		}
	}
	return false
}
