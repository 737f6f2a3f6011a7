package filecache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/spf13/afero"
	"github.com/tliron/commonlog"
)

// DefaultCapacity is the number of handles kept open when no other
// capacity is configured.
const DefaultCapacity = 10

var log = commonlog.GetLogger("upkg.filecache")

// Cache is a most-recently-used-first cache of open files.
// It is safe for concurrent use.
type Cache struct {
	mu        sync.Mutex
	fs        afero.Fs
	lru       *simplelru.LRU[string, afero.File]
	opens     int
	evictions int
	closeErr  error
}

// New creates a cache over fs holding at most capacity open handles.
func New(fs afero.Fs, capacity int) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("filecache: capacity must be positive, got %d", capacity)
	}

	c := &Cache{fs: fs}
	lru, err := simplelru.NewLRU[string, afero.File](capacity, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("filecache: %w", err)
	}
	c.lru = lru
	return c, nil
}

// onEvict runs with c.mu held.
func (c *Cache) onEvict(path string, f afero.File) {
	c.evictions++
	log.Debugf("closing %s", path)
	if err := f.Close(); err != nil {
		c.closeErr = errors.Join(c.closeErr, fmt.Errorf("closing %s: %w", path, err))
	}
}

// Get returns the open handle for path. A hit moves the entry to the
// front; a miss opens the file and may close the least recently used
// handle.
func (c *Cache) Get(path string) (afero.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.lru.Get(path); ok {
		return f, nil
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	c.opens++
	c.lru.Add(path, f)
	log.Debugf("opened %s (%d open)", path, c.lru.Len())
	return f, nil
}

// Contains reports whether path has an open handle, without touching
// its recency.
func (c *Cache) Contains(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(path)
}

// Remove closes and forgets the handle for path, if any.
func (c *Cache) Remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(path)
}

// Keys returns the cached paths, most recently used first.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.lru.Keys()
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys
}

// Len returns the number of open handles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Opens returns how many times a file has been opened by the cache.
func (c *Cache) Opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

// Evictions returns how many handles have been closed to make room or
// by Remove and Close.
func (c *Cache) Evictions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictions
}

// Close closes every cached handle. The cache stays usable.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
	err := c.closeErr
	c.closeErr = nil
	return err
}
