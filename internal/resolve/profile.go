package resolve

// Profile is the resolved build-tuning knobs for a Unit, per spec.md §6's
// `[profile.*]` manifest intake. The core treats profile contents as
// opaque data to thread through to the (external) rustc invocation layer;
// it only needs to know profiles by name and apply a few fields that affect
// unit identity (e.g. panic strategy, which participates in build-script
// vs normal unit separation in real Cargo but is simplified here to a
// pass-through field).
type Profile struct {
	Name     string
	OptLevel string
	Debug    bool
	LTO      bool
	Panic    string
	Incremental bool
}

// ProfileSet is the package-level table of named profiles a workspace
// manifest may declare, plus Cargo's built-in defaults.
type ProfileSet struct {
	byName map[string]Profile
}

// DefaultProfiles returns the built-in dev/release/test/bench profiles
// Cargo always defines, before any manifest `[profile.*]` override is
// applied.
func DefaultProfiles() ProfileSet {
	ps := ProfileSet{byName: map[string]Profile{
		"dev":     {Name: "dev", OptLevel: "0", Debug: true, Incremental: true},
		"release": {Name: "release", OptLevel: "3", Debug: false, LTO: false},
		"test":    {Name: "test", OptLevel: "0", Debug: true, Incremental: true},
		"bench":   {Name: "bench", OptLevel: "3", Debug: false},
	}}
	return ps
}

// Override replaces (or adds) the named profile, as a manifest's
// `[profile.name]` table would.
func (ps *ProfileSet) Override(p Profile) {
	if ps.byName == nil {
		ps.byName = make(map[string]Profile)
	}
	ps.byName[p.Name] = p
}

// Lookup resolves a profile by name, returning ProfileNotFoundError if
// undeclared.
func (ps ProfileSet) Lookup(name string) (Profile, error) {
	p, ok := ps.byName[name]
	if !ok {
		return Profile{}, &ProfileNotFoundError{Name: name}
	}
	return p, nil
}

// ForMode returns the conventional default profile name for a given
// CompileMode: "test"/"bench" unless overridden by an explicit profile
// selector, matching Cargo's own defaulting.
func ForMode(mode CompileMode) string {
	switch mode {
	case ModeTest, ModeDoctest:
		return "test"
	case ModeBench:
		return "bench"
	default:
		return "dev"
	}
}
