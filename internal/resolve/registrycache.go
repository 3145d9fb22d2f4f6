package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

// summaryCache persists per-source Summary data across resolver runs, the
// same role the teacher's internal/gps/source_cache_bolt.go boltCache plays
// for manifest/lock/package-tree data. All sources share one "summaries"
// bucket, keyed by the source's canonical key plus the normalized package
// name; each value is a JSON-encoded []Summary.
type summaryCache struct {
	db *bolt.DB
}

var summariesBucket = []byte("summaries")

// openSummaryCache opens (creating if needed) a BoltDB file under cacheDir
// for persisting registry summaries, per SPEC_FULL.md's domain-stack
// wiring of github.com/boltdb/bolt.
func openSummaryCache(cacheDir string) (*summaryCache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create registry cache directory: %s", cacheDir)
	}
	path := filepath.Join(cacheDir, "registry-summaries.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open registry cache %q", path)
	}
	return &summaryCache{db: db}, nil
}

func (c *summaryCache) close() error {
	return errors.Wrap(c.db.Close(), "error closing registry summary cache")
}

func cacheKey(source SourceId, name string) []byte {
	var buf bytes.Buffer
	buf.WriteString(sourceKey(source))
	buf.WriteByte('|')
	buf.WriteString(normalizeSpellingKey(name))
	return buf.Bytes()
}

func (c *summaryCache) get(source SourceId, name string) ([]Summary, bool, error) {
	var out []Summary
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(summariesBucket)
		if b == nil {
			return nil
		}
		v := b.Get(cacheKey(source, name))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &out)
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read registry summary cache")
	}
	return out, found, nil
}

func (c *summaryCache) put(source SourceId, name string, summaries []Summary) error {
	data, err := json.Marshal(summaries)
	if err != nil {
		return errors.Wrap(err, "failed to encode registry summaries")
	}
	return errors.Wrap(c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(summariesBucket)
		if err != nil {
			return err
		}
		return b.Put(cacheKey(source, name), data)
	}), "failed to write registry summary cache")
}

// CachedRegistry decorates a RegistryFacade with a persistent, bolt-backed
// summary cache: a cache hit short-circuits the inner Query entirely,
// matching §4.1's "lazily-queried" contract while letting repeated
// resolves across process invocations avoid re-fetching unchanged data.
type CachedRegistry struct {
	inner RegistryFacade
	cache *summaryCache
}

// NewCachedRegistry wraps inner with a persistent cache rooted at cacheDir.
func NewCachedRegistry(inner RegistryFacade, cacheDir string) (*CachedRegistry, error) {
	cache, err := openSummaryCache(cacheDir)
	if err != nil {
		return nil, err
	}
	return &CachedRegistry{inner: inner, cache: cache}, nil
}

// Close releases the underlying BoltDB handle.
func (c *CachedRegistry) Close() error {
	return c.cache.close()
}

// Query implements RegistryFacade, consulting the cache before falling
// through to the inner facade. Only QueryExact results are cached, since
// Fuzzy/AlternateNames results depend on what else happens to be indexed;
// those queries are passed straight to the inner facade.
func (c *CachedRegistry) Query(ctx context.Context, source SourceId, name, req string, kind QueryKind) Pending[[]Summary] {
	if kind != QueryExact {
		return c.inner.Query(ctx, source, name, req, kind)
	}

	if cached, ok, err := c.cache.get(source, name); err == nil && ok {
		return Ready(filterByReq(cached, req))
	}

	return Deferred(func(ctx context.Context) ([]Summary, error) {
		all, err := c.inner.Query(ctx, source, name, "", QueryExact).BlockUntilReady(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.cache.put(source, name, all); err != nil {
			return nil, err
		}
		return filterByReq(all, req), nil
	})
}

func filterByReq(all []Summary, req string) []Summary {
	if req == "" {
		return all
	}
	constraint, err := NewConstraint(req)
	if err != nil {
		return nil
	}
	var out []Summary
	for _, s := range all {
		v, err := ParseVersion(s.Id.Version)
		if err != nil {
			continue
		}
		if constraint.Matches(v) {
			out = append(out, s)
		}
	}
	return out
}

// Describe implements RegistryFacade.
func (c *CachedRegistry) Describe(source SourceId) string {
	return c.inner.Describe(source)
}

// IsYanked implements RegistryFacade.
func (c *CachedRegistry) IsYanked(ctx context.Context, id PackageId) Pending[bool] {
	return c.inner.IsYanked(ctx, id)
}

// RequiresPrecise implements RegistryFacade.
func (c *CachedRegistry) RequiresPrecise(source SourceId) bool {
	return c.inner.RequiresPrecise(source)
}
