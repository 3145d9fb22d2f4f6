// Command cargo-core drives the Registry Facade, Version Resolver, Feature
// Resolver, and Unit Graph Builder end to end against a workspace
// descriptor and a registry index, for manual exercise and debugging of the
// core independent of any CLI/manifest-reader front end (both of which are
// out of this module's scope).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rust-lang/cargo-sub011/internal/resolve"
)

var (
	indexPath   = flag.String("index", "", "path to a newline-delimited JSON registry index file")
	planPath    = flag.String("plan", "", "path to a JSON workspace plan (root summaries + manifests + selectors)")
	lockPath    = flag.String("lockfile", "Cargo.lock", "path to read/write the lockfile")
	behaviorStr = flag.String("resolver", "v2", "feature-unification behavior: v1 or v2")
	downgrade   = flag.Bool("downgrade", false, "prefer minimal versions instead of maximal")
	trace       = flag.Bool("trace", false, "enable resolver trace logging")
	cacheDir    = flag.String("cache-dir", ".cargo-core-cache", "directory holding the advisory cache lock and the persistent summary cache")
	skipNFSLock = flag.Bool("skip-nfs-lock", false, "skip the advisory cache lock on filesystems where flock is unreliable (e.g. NFS), per spec.md §5")
	unstableZ   = flag.String("Z", "", "comma-separated unstable opts to enable, e.g. public-dependency")
)

// parseUnstableOpts turns a -Z flag value into the set ResolveParams expects.
func parseUnstableOpts(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	opts := make(map[string]bool)
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			opts[name] = true
		}
	}
	return opts
}

// workspacePlan is the JSON shape *planPath must describe: enough of a
// pre-parsed manifest set to exercise the resolver without a real TOML
// reader, which is an external collaborator per spec.md §1.
type workspacePlan struct {
	Root       []resolve.Summary      `json:"root"`
	Manifests  resolve.ManifestSet    `json:"manifests"`
	Selectors  []resolve.UnitSelector `json:"selectors"`
	FeatureOpt resolve.FeatureOpts    `json:"feature_opts"`
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatalf("cargo-core: %v", err)
	}
}

func run() error {
	if *indexPath == "" || *planPath == "" {
		return errors.New("both -index and -plan are required")
	}

	// The core acquires at least a Shared advisory lock over the registry
	// cache for the duration of the resolve, per spec.md §5, and releases
	// it on every exit path.
	lock, err := resolve.AcquireCacheLock(*cacheDir, resolve.LockShared, *skipNFSLock)
	if err != nil {
		return errors.Wrap(err, "failed to acquire registry cache lock")
	}
	defer lock.Release()

	indexFile, err := os.Open(*indexPath)
	if err != nil {
		return errors.Wrap(err, "failed to open registry index")
	}
	defer indexFile.Close()

	registrySource := resolve.SourceId{Kind: resolve.SourceRegistry, URL: "local-index"}
	memRegistry, warnings, err := resolve.LoadRegistryIndex(indexFile, registrySource)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	registry, err := resolve.NewCachedRegistry(memRegistry, *cacheDir)
	if err != nil {
		return errors.Wrap(err, "failed to open registry summary cache")
	}
	defer registry.Close()

	planData, err := os.ReadFile(*planPath)
	if err != nil {
		return errors.Wrap(err, "failed to read workspace plan")
	}
	var plan workspacePlan
	if err := json.Unmarshal(planData, &plan); err != nil {
		return errors.Wrap(err, "failed to parse workspace plan")
	}

	behavior := resolve.ResolveV2
	if *behaviorStr == "v1" {
		behavior = resolve.ResolveV1
	}

	cargoLock, err := resolve.LoadLockFile(*lockPath)
	if err != nil {
		return err
	}

	var traceLogger *log.Logger
	if *trace {
		traceLogger = log.New(os.Stderr, "", 0)
	}

	graph, resolveWarnings, err := resolve.Resolve(context.Background(), resolve.ResolveParams{
		Root:         plan.Root,
		Registry:     registry,
		Lock:         cargoLock,
		Behavior:     behavior,
		HasDevUnits:  true,
		Downgrade:    *downgrade,
		UnstableOpts: parseUnstableOpts(*unstableZ),
		Trace:        *trace,
		TraceLogger:  traceLogger,
	})
	if err != nil {
		return errors.Wrap(err, "resolve failed")
	}
	for _, w := range resolveWarnings {
		log.Printf("warning: %s", w)
	}

	assignment, err := resolve.ResolveFeatures(graph, plan.FeatureOpt, behavior)
	if err != nil {
		return errors.Wrap(err, "feature resolution failed")
	}

	profiles := resolve.DefaultProfiles()
	unitGraph, err := resolve.BuildUnitGraph(graph, assignment, plan.Manifests, profiles, plan.Selectors)
	if err != nil {
		return errors.Wrap(err, "unit graph construction failed")
	}

	if err := resolve.WriteLockFile(*lockPath, graph, nil); err != nil {
		return err
	}

	units, err := unitGraph.TopoOrder()
	if err != nil {
		return errors.Wrap(err, "unit graph has a cycle")
	}
	for _, u := range units {
		fmt.Printf("%s\n", u.Key)
	}
	return nil
}
