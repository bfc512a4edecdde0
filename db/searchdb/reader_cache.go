package searchdb

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/meghashyamc/keywordsearch/logger"
)

const defaultReaderCacheSize = 16

type cachedReader struct {
	path    string
	index   bleve.Index
	refs    int
	evicted bool
}

// readerCache keeps recently used read-only indices open. An evicted index is closed
// only once every reader that acquired it has been released.
type readerCache struct {
	mu     sync.Mutex
	cache  *lru.Cache[string, *cachedReader]
	logger logger.Logger
	open   func(path string) (bleve.Index, error)
}

func newReaderCache(logger logger.Logger, size int, open func(path string) (bleve.Index, error)) (*readerCache, error) {
	if size <= 0 {
		size = defaultReaderCacheSize
	}

	c := &readerCache{logger: logger, open: open}
	cache, err := lru.NewWithEvict[string, *cachedReader](size, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create reader cache: %w", err)
	}
	c.cache = cache

	return c, nil
}

func (c *readerCache) acquire(path string) (*cachedReader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.cache.Get(path); ok {
		entry.refs++
		return entry, nil
	}

	index, err := c.open(path)
	if err != nil {
		c.logger.Error("could not open index", "path", path, "err", err.Error())
		return nil, err
	}

	entry := &cachedReader{path: path, index: index, refs: 1}
	c.cache.Add(path, entry)

	return entry, nil
}

func (c *readerCache) release(entry *cachedReader) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry.refs--
	if entry.evicted && entry.refs == 0 {
		return c.closeEntry(entry)
	}

	return nil
}

func (c *readerCache) remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Remove(path)
}

func (c *readerCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Purge()
}

func (c *readerCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cache.Len()
}

// onEvict runs synchronously inside Add, Remove and Purge, which are always called
// with c.mu held.
func (c *readerCache) onEvict(_ string, entry *cachedReader) {
	entry.evicted = true
	if entry.refs == 0 {
		c.closeEntry(entry)
	}
}

func (c *readerCache) closeEntry(entry *cachedReader) error {
	if err := entry.index.Close(); err != nil {
		c.logger.Error("could not close index", "path", entry.path, "err", err.Error())
		return fmt.Errorf("failed to close index %s: %w", entry.path, err)
	}
	c.logger.Debug("closed cached index", "path", entry.path)

	return nil
}
