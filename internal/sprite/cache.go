// Package sprite implements the bounded cache of decoded sprite images
// shared by every playback instance. One Cache is created at process start
// and injected wherever images are needed; it is never cloned per pet.
package sprite

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	// Decoders for the formats sprite packs ship with.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/auziqni/learn-shimeji-sub000/internal/logging"
	"github.com/auziqni/learn-shimeji-sub000/internal/observe"
)

// Defaults sized for a couple dozen simultaneous pets sharing one cache.
const (
	DefaultMaxEntries = 100
	DefaultMaxBytes   = 50 * 1024 * 1024
)

// bytesPerPixel is the RGBA estimate used for entry sizes regardless of
// the decoded representation.
const bytesPerPixel = 4

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits        int64
	Misses      int64
	LoadErrors  int64
	Evictions   int64
	Entries     int
	MemoryBytes int64
}

type entry struct {
	key         string
	img         image.Image
	size        int64
	accessCount int64
	lastAccess  time.Time
}

// Cache is a bounded, keyed store of decoded images. Lookups and mutations
// are serialised behind one mutex; the engine's host loop is
// single-threaded but batch loaders touch the cache concurrently.
type Cache struct {
	maxEntries int
	maxBytes   int64
	log        *logrus.Entry
	metrics    *observe.Metrics
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	failed  map[string]struct{}
	memory  int64

	hits       int64
	misses     int64
	loadErrors int64
	evictions  int64
}

// Option tweaks cache construction.
type Option func(*Cache)

// WithMetrics mirrors cache counters into otel instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithClock overrides the time source; tests use it to force eviction
// ordering.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache builds a cache bounded by maxEntries and maxBytes. Zero or
// negative bounds fall back to the defaults.
func NewCache(maxEntries int, maxBytes int64, log *logrus.Entry, opts ...Option) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if log == nil {
		log = logging.Discard()
	}
	c := &Cache{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		log:        log,
		now:        time.Now,
		entries:    make(map[string]*entry),
		failed:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key normalises a sprite path into its cache key: the leading separator
// is stripped and the rest lower-cased, so "/Shime1.png" and "shime1.png"
// always share one entry.
func Key(path string) string {
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimPrefix(path, string(filepath.Separator))
	return strings.ToLower(filepath.ToSlash(path))
}

// Load returns the decoded image for the sprite at path, loading and
// caching it on first use. The second return is false when the file is
// missing or undecodable; such paths are remembered and never retried.
func (c *Cache) Load(path string) (image.Image, bool) {
	key := Key(path)
	ctx := context.Background()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.accessCount++
		e.lastAccess = c.now()
		c.hits++
		c.metrics.AddCacheHit(ctx)
		return e.img, true
	}
	if _, ok := c.failed[key]; ok {
		// Known-bad path; do not retry the disk.
		return nil, false
	}

	c.misses++
	c.metrics.AddCacheMiss(ctx)

	img, err := decodeFile(path)
	if err != nil {
		c.failed[key] = struct{}{}
		c.loadErrors++
		c.metrics.AddCacheLoadError(ctx)
		c.log.WithField("path", path).Warnf("sprite load failed: %v", err)
		return nil, false
	}

	bounds := img.Bounds()
	size := int64(bounds.Dx()) * int64(bounds.Dy()) * bytesPerPixel

	c.entries[key] = &entry{
		key:         key,
		img:         img,
		size:        size,
		accessCount: 1,
		lastAccess:  c.now(),
	}
	c.memory += size
	c.metrics.AddCacheMemory(ctx, size)

	c.evictLocked(ctx)
	return img, true
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// evictLocked shrinks the cache until both bounds hold, removing entries
// in (ascending access count, then oldest last access) order. The single
// most recent entry always survives, even if it alone exceeds the byte
// budget.
func (c *Cache) evictLocked(ctx context.Context) {
	if len(c.entries) <= c.maxEntries && c.memory <= c.maxBytes {
		return
	}

	victims := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		victims = append(victims, e)
	}
	sort.Slice(victims, func(i, j int) bool {
		if victims[i].accessCount != victims[j].accessCount {
			return victims[i].accessCount < victims[j].accessCount
		}
		return victims[i].lastAccess.Before(victims[j].lastAccess)
	})

	for _, v := range victims {
		if len(c.entries) <= c.maxEntries && c.memory <= c.maxBytes {
			return
		}
		if len(c.entries) == 1 {
			return
		}
		delete(c.entries, v.key)
		c.memory -= v.size
		c.evictions++
		c.metrics.AddCacheEviction(ctx, 1)
		c.metrics.AddCacheMemory(ctx, -v.size)
		c.log.WithField("key", v.key).Debug("evicted sprite")
	}
}

// Contains reports whether the key for path currently has a live entry.
func (c *Cache) Contains(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[Key(path)]
	return ok
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		LoadErrors:  c.loadErrors,
		Evictions:   c.evictions,
		Entries:     len(c.entries),
		MemoryBytes: c.memory,
	}
}

// Clear drops every entry and forgets failed paths. Counters survive.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.AddCacheMemory(context.Background(), -c.memory)
	c.entries = make(map[string]*entry)
	c.failed = make(map[string]struct{})
	c.memory = 0
}
