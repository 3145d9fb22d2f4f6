package resolve

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// indexLine is one JSON line of a registry index file, per spec.md §6's
// "Registry intake" format. kind is "dev"/"build"/absent; unrecognized
// fields are ignored by encoding/json, and an unparseable line is skipped
// rather than aborting the whole index (file-format versioning is by a
// leading version byte elsewhere, not modeled here — this module only
// consumes already-separated index lines).
type indexLine struct {
	Name  string `json:"name"`
	Vers  string `json:"vers"`
	Deps  []struct {
		Name            string   `json:"name"`
		Req             string   `json:"req"`
		Features        []string `json:"features"`
		Optional        bool     `json:"optional"`
		DefaultFeatures bool     `json:"default_features"`
		Target          string   `json:"target"`
		Kind            string   `json:"kind"`
		Registry        string   `json:"registry"`
		Package         string   `json:"package"`
	} `json:"deps"`
	Cksum    string                         `json:"cksum"`
	Features map[string][]string            `json:"features"`
	Yanked   bool                           `json:"yanked"`
	Links    string                         `json:"links"`
}

// LoadRegistryIndex reads newline-delimited JSON index lines from r (the
// on-disk format an external registry index delivers, per spec.md §6) and
// registers every parseable one as a candidate Summary from source.
// Malformed lines are skipped and returned as warnings, never aborting the
// load.
func LoadRegistryIndex(r io.Reader, source SourceId) (*MemoryRegistry, []string, error) {
	reg := NewMemoryRegistry()
	var warnings []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bufTrimSpace(line)) == 0 {
			continue
		}
		var il indexLine
		if err := json.Unmarshal(line, &il); err != nil {
			warnings = append(warnings, errors.Wrapf(err, "skipping unparseable index line %d", lineNo).Error())
			continue
		}
		reg.Add(indexLineToSummary(il, source))
	}
	if err := scanner.Err(); err != nil {
		return nil, warnings, errors.Wrap(err, "failed to read registry index")
	}
	return reg, warnings, nil
}

func bufTrimSpace(b []byte) []byte {
	start := 0
	for start < len(b) && (b[start] == ' ' || b[start] == '\t' || b[start] == '\r' || b[start] == '\n') {
		start++
	}
	end := len(b)
	for end > start && (b[end-1] == ' ' || b[end-1] == '\t' || b[end-1] == '\r' || b[end-1] == '\n') {
		end--
	}
	return b[start:end]
}

func indexLineToSummary(il indexLine, source SourceId) Summary {
	id := PackageId{Name: il.Name, Version: il.Vers, Source: source}
	s := Summary{
		Id:       id,
		Links:    il.Links,
		Checksum: il.Cksum,
		Yanked:   il.Yanked,
	}
	for _, d := range il.Deps {
		kind := KindNormal
		switch d.Kind {
		case "dev":
			kind = KindDev
		case "build":
			kind = KindBuild
		}
		s.Dependencies = append(s.Dependencies, Dependency{
			Name:              d.Name,
			PackageName:       d.Package,
			VersionReq:        d.Req,
			Source:            source,
			Kind:              kind,
			Optional:          d.Optional,
			DefaultFeatures:   d.DefaultFeatures,
			RequestedFeatures: d.Features,
		})
	}
	if len(il.Features) > 0 {
		s.Features = make(map[string][]FeatureDirective, len(il.Features))
		for name, directives := range il.Features {
			for _, raw := range directives {
				s.Features[name] = append(s.Features[name], parseFeatureDirective(raw))
			}
		}
	}
	return s
}

// parseFeatureDirective parses one feature-map value string into a
// FeatureDirective, per spec.md §3's variants:
//   name                 self-feature
//   dep/feature          enable-dep-feature
//   dep?/feature         weak-dep-feature
//   dep:name             dep-prefix
// A bare name always becomes a self-feature directive, even when it names
// an optional dependency; this parser never produces
// DirectiveEnableOptionalDep. Such a name activates the dependency through
// the implicit same-named-feature rule when the feature is enabled.
func parseFeatureDirective(raw string) FeatureDirective {
	if hasPrefix(raw, "dep:") {
		return FeatureDirective{Kind: DirectiveDepPrefix, Dep: raw[len("dep:"):]}
	}
	if idx := indexByte(raw, '/'); idx >= 0 {
		dep := raw[:idx]
		feature := raw[idx+1:]
		if len(dep) > 0 && dep[len(dep)-1] == '?' {
			return FeatureDirective{Kind: DirectiveWeakDepFeature, Dep: dep[:len(dep)-1], DepFeature: feature}
		}
		return FeatureDirective{Kind: DirectiveEnableDepFeature, Dep: dep, DepFeature: feature}
	}
	return FeatureDirective{Kind: DirectiveSelfFeature, Feature: raw}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
