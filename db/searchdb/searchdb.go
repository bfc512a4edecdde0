package searchdb

import "context"

// DB creates and opens on-disk indices. Every index has the same two-field schema.
type DB interface {
	Create(path string) (Writer, error)
	Open(path string) (Reader, error)
	Close() error
}

// Writer adds documents to a freshly created index. Commit makes them durable and
// visible to readers and releases the index.
type Writer interface {
	Add(doc Document) error
	Commit() error
	Close() error
}

// Reader searches a committed index. Close releases the reader.
type Reader interface {
	Search(ctx context.Context, queryString string, topK int) ([]Hit, error)
	Close() error
}
