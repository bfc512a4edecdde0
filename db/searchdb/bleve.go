package searchdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/meghashyamc/keywordsearch/logger"
)

const readOnlyOption = "read_only"

type BleveDB struct {
	logger       logger.Logger
	memoryBudget int
	readers      *readerCache
}

func New(logger logger.Logger, memoryBudget int, cacheSize int) (*BleveDB, error) {
	if memoryBudget <= 0 {
		return nil, fmt.Errorf("memory budget must be positive, got %d", memoryBudget)
	}

	readers, err := newReaderCache(logger, cacheSize, openReadOnly)
	if err != nil {
		logger.Error("could not create reader cache", "err", err.Error())
		return nil, err
	}

	return &BleveDB{logger: logger, memoryBudget: memoryBudget, readers: readers}, nil
}

// Create creates a new index with the title/body schema at path. The directory may
// already exist but must not contain an index.
func (b *BleveDB) Create(path string) (Writer, error) {
	index, err := bleve.New(path, createIndexMapping())
	if err != nil {
		b.logger.Error("could not create index", "path", path, "err", err.Error())
		return nil, fmt.Errorf("failed to create index at %s: %w", path, err)
	}

	return newBleveWriter(index, b.logger, b.memoryBudget), nil
}

// Open returns a read-only reader for a committed index. Readers are shared through
// a bounded cache, so Close must be called once the reader is no longer needed.
func (b *BleveDB) Open(path string) (Reader, error) {
	entry, err := b.readers.acquire(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	return &bleveReader{entry: entry, cache: b.readers, logger: b.logger}, nil
}

// Forget drops the cached reader for path, closing it once in-flight searches finish.
func (b *BleveDB) Forget(path string) {
	b.readers.remove(filepath.Clean(path))
}

func (b *BleveDB) Close() error {
	b.readers.purge()
	return nil
}

func openReadOnly(path string) (bleve.Index, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	return bleve.OpenUsing(path, map[string]interface{}{readOnlyOption: true})
}

type bleveReader struct {
	entry    *cachedReader
	cache    *readerCache
	logger   logger.Logger
	released bool
}

// Search runs queryString against the body field and returns at most topK hits in
// descending score order.
func (r *bleveReader) Search(ctx context.Context, queryString string, topK int) ([]Hit, error) {
	if r.released {
		return nil, fmt.Errorf("reader for %s is closed", r.entry.path)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}

	searchQuery, err := buildSearchQuery(queryString)
	if err != nil {
		r.logger.Warn("could not parse query", "query", queryString, "err", err.Error())
		return nil, err
	}

	searchRequest := bleve.NewSearchRequestOptions(searchQuery, topK, 0, false)
	searchRequest.Fields = []string{FieldTitle, FieldBody}

	searchResult, err := r.entry.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		r.logger.Error("search failed", "path", r.entry.path, "err", err.Error())
		return nil, err
	}

	hits := make([]Hit, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		hits = append(hits, Hit{
			ID:    hit.ID,
			Score: hit.Score,
			Title: storedString(hit.Fields, FieldTitle),
			Body:  storedString(hit.Fields, FieldBody),
		})
	}

	return hits, nil
}

func (r *bleveReader) Close() error {
	if r.released {
		return nil
	}
	r.released = true
	return r.cache.release(r.entry)
}

// buildSearchQuery scopes the raw query to the body field. Terms after the first one
// carry no field selector and match the composite field covering title and body.
func buildSearchQuery(queryString string) (query.Query, error) {
	fieldedQuery := FieldBody + ":" + queryString

	searchQuery, err := bleve.NewQueryStringQuery(fieldedQuery).Parse()
	if err != nil {
		return nil, &QueryError{Query: fieldedQuery, Err: err}
	}

	return searchQuery, nil
}

func storedString(fields map[string]interface{}, field string) string {
	switch value := fields[field].(type) {
	case string:
		return value
	case []interface{}:
		for _, v := range value {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}

	return UnknownValue
}
