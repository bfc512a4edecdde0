package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/meghashyamc/keywordsearch/db/kvdb"
	"github.com/meghashyamc/keywordsearch/db/searchdb"
	"github.com/meghashyamc/keywordsearch/logger"
	"github.com/meghashyamc/keywordsearch/services/ingest"
	"github.com/meghashyamc/keywordsearch/storage"
)

// Indexer represents the search database operations needed for index creation
type Indexer interface {
	Create(path string) (searchdb.Writer, error)
}

var ErrIndexNotFound = errors.New("index not found")

type Service struct {
	logger        logger.Logger
	indexer       Indexer
	metadataStore MetadataStore
	root          *storage.Root
}

// Handle identifies a committed index.
type Handle struct {
	Name string
	Path string
}

func New(logger logger.Logger, indexer Indexer, metadataStore MetadataStore, root *storage.Root) *Service {
	return &Service{
		logger:        logger,
		indexer:       indexer,
		metadataStore: metadataStore,
		root:          root,
	}
}

// Build writes the batch's documents into a brand-new index and commits it. Outcomes
// of documents the engine refuses are turned into failures. On error no index is
// usable, but the batch outcomes remain valid.
func (s *Service) Build(ctx context.Context, batch *ingest.Batch) (*Handle, error) {
	name := storage.NewIndexName()
	path := s.root.IndexPath(name)

	s.logger.Info("starting index creation", "index_name", name)
	if err := os.MkdirAll(path, 0755); err != nil {
		s.logger.Error("failed to create index directory", "path", path, "err", err.Error())
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	writer, err := s.indexer.Create(path)
	if err != nil {
		s.logger.Error("failed to create index", "index_name", name, "err", err.Error())
		s.discard(path)
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	total := len(batch.Documents)
	s.logger.Info("starting document indexing", "index_name", name, "document_count", total)
	for i, document := range batch.Documents {
		title := searchdb.UnknownValue
		if document.Title != nil {
			title = *document.Title
		}

		if err := writer.Add(searchdb.Document{Title: title, Body: document.Content}); err != nil {
			if errors.Is(err, searchdb.ErrFlushFailed) {
				s.logger.Error("failed to write queued documents", "index_name", name, "document_number", i+1, "err", err.Error())
				writer.Close()
				s.discard(path)
				return nil, fmt.Errorf("failed to write documents: %w", err)
			}
			s.logger.Error("failed to add document to index", "document_number", i+1, "err", err.Error())
			batch.MarkFailed(document.Slot, fmt.Sprintf("Failed to add to index: %s", err))
			continue
		}
		s.logger.Debug("document added to index", "document_number", i+1, "total", total)
	}

	s.logger.Info("committing index", "index_name", name)
	if err := writer.Commit(); err != nil {
		s.logger.Error("failed to commit index", "index_name", name, "err", err.Error())
		s.discard(path)
		return nil, fmt.Errorf("failed to commit index: %w", err)
	}

	s.recordIndex(name, batch)

	return &Handle{Name: name, Path: path}, nil
}

// Details is the registry view of a committed index, with its archive once one has
// been packaged.
type Details struct {
	kvdb.IndexRecord
	Archive *kvdb.ArchiveRecord `json:"archive,omitempty"`
}

// Get returns the registry record of a committed index. Records of indices whose
// directory is gone are dropped.
func (s *Service) Get(name string) (*Details, error) {
	record, err := kvdb.GetRecord[kvdb.IndexRecord](s.metadataStore, kvdb.IndicesBucket, name)
	if err != nil {
		if errors.Is(err, kvdb.ErrNotFound) {
			return nil, ErrIndexNotFound
		}
		s.logger.Error("failed to get index record", "index_name", name, "err", err.Error())
		return nil, err
	}

	exists, err := s.root.IndexExists(name)
	if err != nil {
		s.logger.Error("failed to stat index directory", "index_name", name, "err", err.Error())
		return nil, err
	}
	if !exists {
		s.forget(name)
		return nil, ErrIndexNotFound
	}

	details := &Details{IndexRecord: *record}
	archive, err := kvdb.GetRecord[kvdb.ArchiveRecord](s.metadataStore, kvdb.ArchivesBucket, name)
	switch {
	case err == nil:
		details.Archive = archive
	case !errors.Is(err, kvdb.ErrNotFound):
		s.logger.Warn("skipping unreadable archive record", "index_name", name, "err", err.Error())
	}

	return details, nil
}

// List returns the registry records of all committed indices still on disk, oldest
// first.
func (s *Service) List() ([]kvdb.IndexRecord, error) {
	names, err := s.metadataStore.GetAllKeys(kvdb.IndicesBucket)
	if err != nil {
		s.logger.Error("failed to list index records", "err", err.Error())
		return nil, fmt.Errorf("failed to list index records: %w", err)
	}

	records := make([]kvdb.IndexRecord, 0, len(names))
	for _, name := range names {
		record, err := kvdb.GetRecord[kvdb.IndexRecord](s.metadataStore, kvdb.IndicesBucket, name)
		if err != nil {
			s.logger.Warn("skipping unreadable index record", "index_name", name, "err", err.Error())
			continue
		}
		if exists, err := s.root.IndexExists(name); err == nil && !exists {
			s.forget(name)
			continue
		}
		records = append(records, *record)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	return records, nil
}

func (s *Service) forget(name string) {
	s.logger.Info("index directory is gone, dropping its records", "index_name", name)
	for _, bucket := range []string{kvdb.IndicesBucket, kvdb.ArchivesBucket} {
		if err := s.metadataStore.Delete(bucket, name); err != nil {
			s.logger.Warn("could not drop record", "bucket", bucket, "index_name", name, "err", err.Error())
		}
	}
}

// discard removes the directory of an index that was never committed.
func (s *Service) discard(path string) {
	if err := os.RemoveAll(path); err != nil {
		s.logger.Warn("could not remove uncommitted index", "path", path, "err", err.Error())
	}
}

// The registry is informational; failing to record never fails a build.
func (s *Service) recordIndex(name string, batch *ingest.Batch) {
	indexed, failed := batch.Counts()
	record := kvdb.IndexRecord{
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Documents: len(batch.Documents),
		Indexed:   indexed,
		Failed:    failed,
	}
	if err := kvdb.SetRecord(s.metadataStore, kvdb.IndicesBucket, name, record); err != nil {
		s.logger.Error("failed to record index", "index_name", name, "err", err.Error())
	}
}
