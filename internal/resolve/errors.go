package resolve

import (
	"bytes"
	"fmt"
)

// traceError is implemented by errors that can render an indented
// contextual trace in addition to their flat Error() string, matching the
// teacher's errors.go traceError interface.
type traceError interface {
	traceString() string
}

// NoMatchingVersionError is returned when no candidate satisfies a
// dependency's version requirement, platform gate, and yanked policy
// together, per spec.md §4.2/§7.
type NoMatchingVersionError struct {
	Name       string
	Req        string
	Candidates []string
}

func (e *NoMatchingVersionError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("no versions of %s are available to satisfy %q", e.Name, e.Req)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "no version of %s matches %q; available:", e.Name, e.Req)
	for _, c := range e.Candidates {
		fmt.Fprintf(&buf, "\n  %s", c)
	}
	return buf.String()
}

func (e *NoMatchingVersionError) traceString() string {
	return fmt.Sprintf("no matching version of %s for %q", e.Name, e.Req)
}

// conflictStep is one entry in a ConflictingVersionsError's trace: an
// activation that contributed to the conflict.
type conflictStep struct {
	From PackageId
	Dep  Dependency
	Req  string
}

// ConflictingVersionsError is returned when two activations of the same
// (name, source-id) require versions with no overlap, and no backtrack
// could resolve it.
type ConflictingVersionsError struct {
	Name  string
	Trace []conflictStep
}

func (e *ConflictingVersionsError) Error() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "conflicting version requirements for %s:", e.Name)
	for _, s := range e.Trace {
		fmt.Fprintf(&buf, "\n  %s requires %s %q", s.From, e.Name, s.Req)
	}
	return buf.String()
}

func (e *ConflictingVersionsError) traceString() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "conflict on %s:\n", e.Name)
	for _, s := range e.Trace {
		fmt.Fprintf(&buf, "  %s -> %s %q\n", s.From, e.Name, s.Req)
	}
	return buf.String()
}

// CycleDetectedError is returned when the activated non-dev graph contains
// a dependency cycle, per spec.md §4.2 step 7.
type CycleDetectedError struct {
	Chain []PackageId
}

func (e *CycleDetectedError) Error() string {
	var buf bytes.Buffer
	buf.WriteString("cyclic package dependency: ")
	for i, id := range e.Chain {
		if i > 0 {
			buf.WriteString(" -> ")
		}
		buf.WriteString(id.String())
	}
	return buf.String()
}

func (e *CycleDetectedError) traceString() string {
	return e.Error()
}

// YankedLockedError is returned when a version pinned by an existing
// lockfile entry has since been yanked from the registry.
type YankedLockedError struct {
	Id PackageId
}

func (e *YankedLockedError) Error() string {
	return fmt.Sprintf("%s is locked but has been yanked from its registry", e.Id)
}

// LinksCollisionError is returned when two activated packages declare the
// same `links` key, per spec.md §4.2 step 3.
type LinksCollisionError struct {
	Links string
	First PackageId
	Other PackageId
}

func (e *LinksCollisionError) Error() string {
	return fmt.Sprintf("multiple packages link to native library %q: %s and %s", e.Links, e.First, e.Other)
}

// PublicDependencyConflictError is returned when the simplified
// public-dependency rule (spec.md §4.2 step 3c) is violated: a publicly
// re-exported dependency has more than one version visible to the same
// dependent's transitive closure.
type PublicDependencyConflictError struct {
	Name      string
	Dependent PackageId
	Versions  []string
}

func (e *PublicDependencyConflictError) Error() string {
	return fmt.Sprintf("public dependency %s is ambiguous from %s: versions %v are all publicly reachable", e.Name, e.Dependent, e.Versions)
}

// RegistryError wraps a failure surfaced by the Registry Facade
// (network/IO, checksum mismatch, malformed index line, auth failure).
type RegistryError struct {
	Source SourceId
	Cause  error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry error for %s: %v", e.Source.Describe(), e.Cause)
}

func (e *RegistryError) Unwrap() error { return e.Cause }

// FeatureNotFoundError is returned when a FeatureOpts request or a
// directive names a feature the target package doesn't declare.
type FeatureNotFoundError struct {
	Package PackageId
	Feature string
}

func (e *FeatureNotFoundError) Error() string {
	return fmt.Sprintf("%s has no feature %q", e.Package, e.Feature)
}

// DepNotOptionalError is returned when an optional-dependency activation
// (a "dep:name" request or directive, an enable-optional-dep directive, or
// an implicit same-named feature) names a dependency the package has no
// edge for. The edge's Optional flag itself is not checked.
type DepNotOptionalError struct {
	Package PackageId
	Dep     string
}

func (e *DepNotOptionalError) Error() string {
	return fmt.Sprintf("%s: \"dep:%s\" requires %q to be an optional dependency", e.Package, e.Dep, e.Dep)
}

// CyclicFeatureError is returned when a package's feature map implies
// itself transitively.
type CyclicFeatureError struct {
	Package PackageId
	Chain   []string
}

func (e *CyclicFeatureError) Error() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "cyclic feature dependency in %s: ", e.Package)
	for i, f := range e.Chain {
		if i > 0 {
			buf.WriteString(" -> ")
		}
		buf.WriteString(f)
	}
	return buf.String()
}

// MissingLibTargetError is returned when a compile mode requires a library
// target (e.g. rlib-consuming modes, doctests) but the package declares
// none.
type MissingLibTargetError struct {
	Package PackageId
	Mode    CompileMode
}

func (e *MissingLibTargetError) Error() string {
	return fmt.Sprintf("%s has no library target, required for %s", e.Package, e.Mode)
}

// ProfileNotFoundError is returned when a requested profile name has no
// corresponding definition.
type ProfileNotFoundError struct {
	Name string
}

func (e *ProfileNotFoundError) Error() string {
	return fmt.Sprintf("no such profile: %q", e.Name)
}

// InconsistentTargetKindError is returned when a unit's mode is
// incompatible with its target's kind, e.g. asking to doctest a binary.
type InconsistentTargetKindError struct {
	Package PackageId
	Target  string
	Mode    CompileMode
}

func (e *InconsistentTargetKindError) Error() string {
	return fmt.Sprintf("cannot build %s target %q of %s for mode %s", e.Target, e.Target, e.Package, e.Mode)
}
