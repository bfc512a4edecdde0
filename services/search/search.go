package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/meghashyamc/keywordsearch/db/searchdb"
	"github.com/meghashyamc/keywordsearch/logger"
	"github.com/meghashyamc/keywordsearch/storage"
)

const (
	DefaultTopK = 5
	MaxTopK     = 1000
)

var ErrInvalidTopK = fmt.Errorf("top_k must be between 1 and %d", MaxTopK)

// Opener represents the search database operations needed for retrieval
type Opener interface {
	Open(path string) (searchdb.Reader, error)
}

type Service struct {
	logger logger.Logger
	opener Opener
	root   *storage.Root
}

type Query struct {
	Query string
	TopK  int
	Index string
}

type Hit struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

func New(logger logger.Logger, opener Opener, root *storage.Root) *Service {
	return &Service{
		logger: logger,
		opener: opener,
		root:   root,
	}
}

// Search runs the query against the named index. It returns either hits in rank order
// or an error, never both.
func (s *Service) Search(ctx context.Context, query Query) ([]Hit, error) {
	topK := query.TopK
	if topK == 0 {
		topK = DefaultTopK
	}
	s.logger.Info("received search request", "query", query.Query, "top_k", topK, "index_name", query.Index)
	if topK < 0 || topK > MaxTopK {
		s.logger.Warn("top_k out of range", "top_k", topK)
		return nil, fmt.Errorf("%w, got %d", ErrInvalidTopK, topK)
	}

	exists, err := s.root.IndexExists(query.Index)
	if err != nil {
		s.logger.Error("could not stat index", "index_name", query.Index, "err", err.Error())
		return nil, &Error{Stage: StageOpen, Err: err}
	}
	if !exists {
		s.logger.Error("index does not exist", "index_name", query.Index)
		return nil, &IndexNotFoundError{Name: query.Index}
	}

	reader, err := s.opener.Open(s.root.IndexPath(query.Index))
	if err != nil {
		return nil, &Error{Stage: StageOpen, Err: err}
	}
	defer reader.Close()

	results, err := reader.Search(ctx, query.Query, topK)
	if err != nil {
		if errors.Is(err, searchdb.ErrInvalidQuery) {
			return nil, &Error{Stage: StageParse, Err: err}
		}
		return nil, &Error{Stage: StageSearch, Err: err}
	}

	hits := make([]Hit, 0, len(results))
	for _, result := range results {
		s.logger.Debug("retrieved document", "score", result.Score, "title", result.Title)
		hits = append(hits, Hit{Title: result.Title, Content: result.Body, Score: result.Score})
	}
	s.logger.Info("search completed", "index_name", query.Index, "hits", len(hits))

	return hits, nil
}

// Stage names the retrieval step that failed.
type Stage string

const (
	StageOpen   Stage = "Failed to open index"
	StageParse  Stage = "Failed to parse query"
	StageSearch Stage = "Search failed"
)

type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type IndexNotFoundError struct {
	Name string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("Index '%s' does not exist", e.Name)
}

func (e *IndexNotFoundError) Is(target error) bool {
	return target == storage.ErrIndexNotFound
}
