package resolve

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a concrete, resolved SemVer version, wrapping
// Masterminds/semver/v3 the same way the teacher's constraints.go wraps
// Masterminds/semver v1 behind gps's own Version/Constraint types.
type Version struct {
	sv *semver.Version
}

// ParseVersion parses a concrete version string.
func ParseVersion(s string) (Version, error) {
	sv, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
	}
	return Version{sv: sv}, nil
}

func (v Version) String() string {
	if v.sv == nil {
		return ""
	}
	return v.sv.String()
}

// Less reports v < o using SemVer precedence rules.
func (v Version) Less(o Version) bool {
	return v.sv.LessThan(o.sv)
}

// Compare returns -1, 0, or 1 comparing v to o.
func (v Version) Compare(o Version) int {
	return v.sv.Compare(o.sv)
}

// bound is one side of a version interval.
type bound struct {
	v        *semver.Version // nil means unbounded
	inclusive bool
}

// ConstraintRange is a VersionReq: an interval of admissible versions, built
// by intersecting every comparator in a requirement string. Unlike the
// teacher's constraints.go (which leans on Masterminds/semver v1's own
// Constraint.Intersect), semver/v3 does not expose constraint-to-constraint
// intersection, so the interval arithmetic here is implemented directly.
// The library parses each comparator's version operand (semver.NewVersion);
// the caret, tilde, exact and </<=/>/>= operators are turned into intervals
// by this file, and Matches compares against those intervals itself. The
// only wildcard accepted is a bare "*" (or an empty requirement).
type ConstraintRange struct {
	lo, hi bound
	// raw holds the original requirement string for String()/equality.
	raw string
	// isNone marks an unsatisfiable (empty) range, e.g. from intersecting
	// two disjoint requirements.
	isNone bool
}

// Any returns a constraint matching every version.
func Any() ConstraintRange {
	return ConstraintRange{raw: "*"}
}

// None returns a constraint matching no version.
func None() ConstraintRange {
	return ConstraintRange{raw: "", isNone: true}
}

// IsAny reports whether c is the unbounded "match anything" constraint.
func (c ConstraintRange) IsAny() bool {
	return !c.isNone && c.lo.v == nil && c.hi.v == nil
}

// IsNone reports whether c is the empty, unsatisfiable constraint.
func (c ConstraintRange) IsNone() bool {
	return c.isNone
}

func (c ConstraintRange) String() string {
	if c.raw != "" {
		return c.raw
	}
	if c.isNone {
		return "<none>"
	}
	return "*"
}

// NewConstraint parses a SemVer requirement expression (comma-separated
// comparators, ANDed together): e.g. "^1.2", "~1.2.3", ">=1, <2", "=1.0.0".
func NewConstraint(expr string) (ConstraintRange, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "*" {
		return Any(), nil
	}

	result := Any()
	for _, clause := range strings.Split(expr, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		c, err := parseComparator(clause)
		if err != nil {
			return ConstraintRange{}, err
		}
		result = result.Intersect(c)
	}
	result.raw = expr
	return result, nil
}

func parseComparator(clause string) (ConstraintRange, error) {
	op := ""
	rest := clause
	for _, candidate := range []string{">=", "<=", ">", "<", "=", "^", "~"} {
		if strings.HasPrefix(clause, candidate) {
			op = candidate
			rest = strings.TrimSpace(clause[len(candidate):])
			break
		}
	}
	rest = strings.TrimSpace(rest)

	sv, err := semver.NewVersion(rest)
	if err != nil {
		return ConstraintRange{}, fmt.Errorf("invalid version requirement %q: %w", clause, err)
	}

	switch op {
	case ">":
		return ConstraintRange{lo: bound{v: sv, inclusive: false}}, nil
	case ">=":
		return ConstraintRange{lo: bound{v: sv, inclusive: true}}, nil
	case "<":
		return ConstraintRange{hi: bound{v: sv, inclusive: false}}, nil
	case "<=":
		return ConstraintRange{hi: bound{v: sv, inclusive: true}}, nil
	case "=":
		return ConstraintRange{
			lo: bound{v: sv, inclusive: true},
			hi: bound{v: sv, inclusive: true},
		}, nil
	case "~":
		return tildeRange(sv), nil
	default: // caret, including bare "1.2.3"
		return caretRange(sv), nil
	}
}

// caretRange implements Cargo's default ("^") compatibility rule: allow
// changes that do not modify the left-most non-zero digit.
func caretRange(v *semver.Version) ConstraintRange {
	var upper semver.Version
	switch {
	case v.Major() > 0:
		upper = v.IncMajor()
	case v.Minor() > 0:
		upper = v.IncMinor()
	default:
		upper = v.IncPatch()
	}
	return ConstraintRange{
		lo: bound{v: v, inclusive: true},
		hi: bound{v: &upper, inclusive: false},
	}
}

// tildeRange implements "~major.minor.patch": allow patch-level changes.
func tildeRange(v *semver.Version) ConstraintRange {
	upper := v.IncMinor()
	return ConstraintRange{
		lo: bound{v: v, inclusive: true},
		hi: bound{v: &upper, inclusive: false},
	}
}

// Matches reports whether version satisfies the constraint.
func (c ConstraintRange) Matches(version Version) bool {
	if c.isNone || version.sv == nil {
		return false
	}
	if c.lo.v != nil {
		cmp := version.sv.Compare(c.lo.v)
		if cmp < 0 || (cmp == 0 && !c.lo.inclusive) {
			return false
		}
	}
	if c.hi.v != nil {
		cmp := version.sv.Compare(c.hi.v)
		if cmp > 0 || (cmp == 0 && !c.hi.inclusive) {
			return false
		}
	}
	return true
}

// MatchesAny reports whether the intersection of c and o admits at least
// one version, per spec.md §4.2 step 3 (constraint conflict detection).
func (c ConstraintRange) MatchesAny(o ConstraintRange) bool {
	return !c.Intersect(o).IsNone()
}

// Intersect computes the tightest constraint satisfying both c and o.
func (c ConstraintRange) Intersect(o ConstraintRange) ConstraintRange {
	if c.isNone || o.isNone {
		return None()
	}

	lo := tighterLower(c.lo, o.lo)
	hi := tighterUpper(c.hi, o.hi)

	if lo.v != nil && hi.v != nil {
		cmp := lo.v.Compare(hi.v)
		if cmp > 0 || (cmp == 0 && !(lo.inclusive && hi.inclusive)) {
			return None()
		}
	}
	return ConstraintRange{lo: lo, hi: hi}
}

func tighterLower(a, b bound) bound {
	if a.v == nil {
		return b
	}
	if b.v == nil {
		return a
	}
	cmp := a.v.Compare(b.v)
	switch {
	case cmp > 0:
		return a
	case cmp < 0:
		return b
	default:
		if !a.inclusive || !b.inclusive {
			return bound{v: a.v, inclusive: false}
		}
		return a
	}
}

func tighterUpper(a, b bound) bound {
	if a.v == nil {
		return b
	}
	if b.v == nil {
		return a
	}
	cmp := a.v.Compare(b.v)
	switch {
	case cmp < 0:
		return a
	case cmp > 0:
		return b
	default:
		if !a.inclusive || !b.inclusive {
			return bound{v: a.v, inclusive: false}
		}
		return a
	}
}

// SortForUpgrade orders versions descending (newest first) — the default
// "maximal" candidate order of spec.md §4.2 step 2.
func SortForUpgrade(vs []Version) {
	sortVersions(vs, false)
}

// SortForDowngrade orders versions ascending (oldest first) — the
// "minimal-versions" candidate order.
func SortForDowngrade(vs []Version) {
	sortVersions(vs, true)
}

func sortVersions(vs []Version, ascending bool) {
	// insertion sort: candidate lists are small, and stability matters for
	// spec.md §5's reproducibility guarantees.
	for i := 1; i < len(vs); i++ {
		for j := i; j > 0; j-- {
			less := vs[j-1].Less(vs[j])
			if ascending {
				less = vs[j].Less(vs[j-1])
			}
			if !less {
				break
			}
			vs[j], vs[j-1] = vs[j-1], vs[j]
		}
	}
}
