package resolve

import "fmt"

// SourceKind distinguishes the origin of a SourceId.
type SourceKind uint8

const (
	// SourceRegistry is a plain registry index, identified by URL.
	SourceRegistry SourceKind = iota
	// SourceAlternateRegistry is a non-default registry index.
	SourceAlternateRegistry
	// SourceGit is a git repository, identified by URL and ref.
	SourceGit
	// SourcePath is a local filesystem path.
	SourcePath
	// SourcePatched wraps another SourceId with local patch files applied.
	SourcePatched
)

func (k SourceKind) String() string {
	switch k {
	case SourceRegistry:
		return "registry"
	case SourceAlternateRegistry:
		return "alternate-registry"
	case SourceGit:
		return "git"
	case SourcePath:
		return "path"
	case SourcePatched:
		return "patched"
	default:
		return "unknown"
	}
}

// SourceId identifies an origin of packages: a registry URL, a git URL+ref,
// a local path, or a patched wrapper around another SourceId.
//
// Two SourceIds are equal iff Kind and canonical URL+ref match; Precise (the
// exact resolved git commit) is ignored for equality, but is carried through
// to the lockfile for reproducibility, matching spec.md §3.
type SourceId struct {
	Kind SourceKind

	// URL is the registry URL, git remote URL, or local path, depending on
	// Kind. For SourcePatched this is the wrapped source's URL.
	URL string

	// Ref is the git branch/tag/rev the manifest asked for. Empty for
	// non-git sources.
	Ref string

	// Precise is the exact commit a git source resolved to. Not part of
	// equality, but part of lockfile identity.
	Precise string

	// Wraps is set for SourcePatched: the inner SourceId being patched.
	Wraps *SourceId

	// Patches lists paths to patch files applied atop Wraps, in order.
	Patches []string
}

// Eq reports whether two SourceIds refer to the same origin, ignoring
// Precise.
func (s SourceId) Eq(o SourceId) bool {
	if s.Kind != o.Kind || s.URL != o.URL || s.Ref != o.Ref {
		return false
	}
	if s.Kind == SourcePatched {
		if (s.Wraps == nil) != (o.Wraps == nil) {
			return false
		}
		if s.Wraps != nil && !s.Wraps.Eq(*o.Wraps) {
			return false
		}
		if len(s.Patches) != len(o.Patches) {
			return false
		}
		for i := range s.Patches {
			if s.Patches[i] != o.Patches[i] {
				return false
			}
		}
	}
	return true
}

// RequiresPrecise reports whether this source kind needs a precise (pinned)
// revision to be reproducible. Git and path sources do; plain registries
// don't, since a registry version string is already precise.
func (s SourceId) RequiresPrecise() bool {
	switch s.Kind {
	case SourceGit, SourcePath:
		return true
	case SourcePatched:
		return s.Wraps != nil && s.Wraps.RequiresPrecise()
	default:
		return false
	}
}

// Describe produces a human-readable description of the source, e.g. for
// error messages and trace output.
func (s SourceId) Describe() string {
	switch s.Kind {
	case SourceGit:
		if s.Ref != "" {
			return fmt.Sprintf("git repository %s (%s)", s.URL, s.Ref)
		}
		return fmt.Sprintf("git repository %s", s.URL)
	case SourcePath:
		return fmt.Sprintf("local path %s", s.URL)
	case SourceAlternateRegistry:
		return fmt.Sprintf("registry %s", s.URL)
	case SourcePatched:
		base := "unknown source"
		if s.Wraps != nil {
			base = s.Wraps.Describe()
		}
		return fmt.Sprintf("%s (patched, %d patch(es))", base, len(s.Patches))
	default:
		return fmt.Sprintf("registry %s", s.URL)
	}
}

// precedence orders sources for tie-breaking equal versions: path > git >
// registry > alternate registry, per spec.md §4.2.
func (s SourceId) precedence() int {
	switch s.Kind {
	case SourcePath:
		return 3
	case SourceGit:
		return 2
	case SourceRegistry:
		return 1
	default:
		return 0
	}
}

// String implements fmt.Stringer for debug/trace output.
func (s SourceId) String() string {
	return s.Describe()
}
