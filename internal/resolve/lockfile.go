package resolve

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	toml "github.com/pelletier/go-toml/v2"
)

// LockFile is the on-disk representation of a resolve graph, per spec.md
// §6's "Output — resolve graph" contract. It mirrors the teacher's own
// manifest/lock TOML handling (toml.go, lock.go) but targets go-toml/v2's
// struct-tag API rather than go-toml v1's tree API, matching SPEC_FULL.md's
// domain-stack choice.
type LockFile struct {
	Version int                 `toml:"version,omitempty"`
	Package []lockPackage       `toml:"package"`
	Metadata map[string]string  `toml:"metadata,omitempty"`
	Patch    lockPatch          `toml:"patch,omitempty"`
}

type lockPackage struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Source       string   `toml:"source,omitempty"`
	Checksum     string   `toml:"checksum,omitempty"`
	Dependencies []string `toml:"dependencies,omitempty"`
}

type lockPatch struct {
	Unused []lockPackage `toml:"unused,omitempty"`
}

// currentLockVersion is the "without root" format: no synthetic root
// package entry, a top-level `version` integer. Writers always emit this;
// readers also accept the legacy "with root" format (no `version` field,
// the workspace root present as its own [[package]] entry), per spec.md §6.
const currentLockVersion = 3

// EncodeLockFile renders graph as Cargo.lock TOML text, always in the
// current ("without root") format. Each package's checksum, when its
// Summary carries one, is written to the [metadata] table; unusedPatches
// are written under [patch.unused].
func EncodeLockFile(graph *ResolveGraph, unusedPatches []Summary) ([]byte, error) {
	lf := LockFile{
		Version:  currentLockVersion,
		Metadata: make(map[string]string),
	}

	ids := make([]PackageId, 0, len(graph.Summaries))
	for id := range graph.Summaries {
		if id.Eq(graph.Root) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	for _, id := range ids {
		s := graph.Summaries[id]
		lf.Package = append(lf.Package, toLockPackage(id, s, dependencyNamesOf(graph, id)))
		if s.Checksum != "" {
			lf.Metadata[checksumMetadataKey(id)] = s.Checksum
		}
	}

	for _, s := range unusedPatches {
		lf.Patch.Unused = append(lf.Patch.Unused, toLockPackage(s.Id, s, nil))
	}

	data, err := toml.Marshal(lf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode lockfile")
	}
	return data, nil
}

func toLockPackage(id PackageId, s Summary, deps []string) lockPackage {
	lp := lockPackage{
		Name:         id.Name,
		Version:      id.Version,
		Dependencies: deps,
	}
	if id.Source.Kind != SourceRegistry {
		lp.Source = sourceLockString(id.Source)
	}
	return lp
}

// sourceLockString renders a SourceId the way Cargo.lock's `source` field
// does: "registry+URL", "git+URL?ref#precise", "path+URL".
func sourceLockString(s SourceId) string {
	switch s.Kind {
	case SourceGit:
		var b strings.Builder
		b.WriteString("git+")
		b.WriteString(s.URL)
		if s.Ref != "" {
			fmt.Fprintf(&b, "?rev=%s", s.Ref)
		}
		if s.Precise != "" {
			fmt.Fprintf(&b, "#%s", s.Precise)
		}
		return b.String()
	case SourcePath:
		return "path+" + s.URL
	case SourceAlternateRegistry:
		return "registry+" + s.URL
	case SourcePatched:
		if s.Wraps != nil {
			return sourceLockString(*s.Wraps)
		}
		return ""
	default:
		return "registry+" + s.URL
	}
}

func checksumMetadataKey(id PackageId) string {
	return fmt.Sprintf("checksum %s %s (%s)", id.Name, id.Version, sourceLockString(id.Source))
}

func dependencyNamesOf(graph *ResolveGraph, from PackageId) []string {
	edges := graph.Edges[from]
	if len(edges) == 0 {
		return nil
	}
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		if !e.Activated {
			continue
		}
		out = append(out, qualifiedDependencyName(e.To))
	}
	sort.Strings(out)
	return out
}

// qualifiedDependencyName renders a PackageId the way Cargo.lock's
// `dependencies` array does: "name version (source)" when the name alone
// is ambiguous across multiple registered sources/versions, else bare
// "name". This implementation always includes the version; it adds the
// source only for non-registry packages, so a registry package renders as
// "name version".
func qualifiedDependencyName(id PackageId) string {
	if id.Source.Kind == SourceRegistry {
		return fmt.Sprintf("%s %s", id.Name, id.Version)
	}
	return fmt.Sprintf("%s %s (%s)", id.Name, id.Version, sourceLockString(id.Source))
}

// DecodeLockFile parses Cargo.lock TOML text, tolerating both the legacy
// "with root" format (root workspace member present as its own [[package]]
// with no `dependencies` qualification needed against it) and the current
// "without root" format, per spec.md §6.
func DecodeLockFile(data []byte) (*LockFile, error) {
	var lf LockFile
	if err := toml.Unmarshal(data, &lf); err != nil {
		return nil, errors.Wrap(err, "failed to parse lockfile")
	}
	return &lf, nil
}

// LoadLockFile reads and parses a Cargo.lock file from path. A missing file
// is not an error: it returns (nil, nil), matching a from-scratch resolve.
func LoadLockFile(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read lockfile %s", path)
	}
	return DecodeLockFile(data)
}

// WriteLockFile encodes graph and writes it to path, overwriting any
// existing file.
func WriteLockFile(path string, graph *ResolveGraph, unusedPatches []Summary) error {
	data, err := EncodeLockFile(graph, unusedPatches)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write lockfile %s", path)
	}
	return nil
}

// Locked reports the previously-chosen version for (name, source), if any
// — used by the Version Resolver to try lockfile entries first (spec.md
// §4.2 step 2) and to detect YankedLocked.
func (lf *LockFile) Locked(name string, source SourceId) (string, bool) {
	if lf == nil {
		return "", false
	}
	want := sourceLockString(source)
	for _, p := range lf.Package {
		if p.Name != name {
			continue
		}
		if p.Source == "" || p.Source == want {
			return p.Version, true
		}
	}
	return "", false
}
