package resolve

// TargetKind enumerates the kinds of build target a package may declare,
// per spec.md §6's manifest intake (targets are inferred-or-explicit; this
// module consumes them already classified).
type TargetKind uint8

const (
	TargetLib TargetKind = iota
	TargetBin
	TargetExample
	TargetTest
	TargetBench
	TargetCustomBuild
)

func (k TargetKind) String() string {
	switch k {
	case TargetLib:
		return "lib"
	case TargetBin:
		return "bin"
	case TargetExample:
		return "example"
	case TargetTest:
		return "test"
	case TargetBench:
		return "bench"
	case TargetCustomBuild:
		return "custom-build"
	default:
		return "unknown"
	}
}

// CrateType enumerates how a lib target may be emitted. A proc-macro crate
// is the one whose transitive build subtree must run on the host even when
// the rest of the graph targets a foreign platform (spec.md §8 property 8).
type CrateType uint8

const (
	CrateLib CrateType = iota
	CrateRlib
	CrateDylib
	CrateCdylib
	CrateStaticlib
	CrateProcMacro
)

// Target is one compilation target declared (or inferred) by a package's
// manifest.
type Target struct {
	Name       string
	Kind       TargetKind
	CrateTypes []CrateType
	// Required marks a target whose absence is an error for a requested
	// mode (e.g. doctests require a lib target).
	Required bool
}

// IsProcMacro reports whether this target produces a proc-macro crate,
// which forces its entire dependency subtree into the Host activation
// context regardless of what's consuming it.
func (t Target) IsProcMacro() bool {
	for _, ct := range t.CrateTypes {
		if ct == CrateProcMacro {
			return true
		}
	}
	return false
}
