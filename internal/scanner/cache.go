package scanner

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/ristretto"
)

// Cache memoizes Scan results within a single process lifetime, keyed by
// the environment root and the site-packages directory's modification
// time, so that a single CLI invocation touching the same environment
// twice (e.g. `list --health` then a follow-up `diff`) doesn't re-walk the
// filesystem. It holds nothing across process restarts — scan results are
// never persisted, per the scanner's contract.
type Cache struct {
	ring *ristretto.Cache
}

// NewCache builds a process-lifetime scan cache. maxEntries bounds the
// number of distinct environments memoized at once.
func NewCache(maxEntries int64) (*Cache, error) {
	ring, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scan cache: %w", err)
	}
	return &Cache{ring: ring}, nil
}

// Scan returns packages for envRoot, using the cache when the
// site-packages directory's mtime matches a previously cached scan.
func (c *Cache) Scan(envRoot string) []Package {
	key := cacheKey(envRoot)
	if key == "" {
		return Scan(envRoot)
	}
	if v, ok := c.ring.Get(key); ok {
		if packages, ok := v.([]Package); ok {
			return packages
		}
	}
	packages := Scan(envRoot)
	c.ring.Set(key, packages, 1)
	c.ring.Wait()
	return packages
}

func cacheKey(envRoot string) string {
	sitePackages := SitePackagesDir(envRoot)
	if sitePackages == "" {
		return ""
	}
	info, err := os.Stat(sitePackages)
	if err != nil {
		return ""
	}
	return filepath.Clean(envRoot) + "@" + info.ModTime().String()
}
