package searchdb

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/meghashyamc/keywordsearch/logger"
	"github.com/meghashyamc/keywordsearch/storage"
	"github.com/stretchr/testify/require"
)

const testMemoryBudget = 1_000_000

func newTestLogger() logger.Logger {
	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

func newTestDB(t *testing.T, assert *require.Assertions, memoryBudget int) *BleveDB {
	db, err := New(newTestLogger(), memoryBudget, 4)
	assert.NoError(err, "could not create search database")
	t.Cleanup(func() { db.Close() })
	return db
}

func buildTestIndex(assert *require.Assertions, db *BleveDB, path string, docs []Document) {
	writer, err := db.Create(path)
	assert.NoError(err, "could not create index")
	for _, doc := range docs {
		assert.NoError(writer.Add(doc))
	}
	assert.NoError(writer.Commit())
}

var testDocuments = []Document{
	{Title: "A", Body: "the cat sat on the mat"},
	{Title: "B", Body: "a dog barked at the mailman"},
	{Title: "C", Body: "cats and dogs living together"},
	{Title: "Gardening", Body: "tomatoes need sun and water"},
}

var searchTestCases = []struct {
	name           string
	query          string
	topK           int
	expectedTitles []string
}{
	{
		name:           "SingleTermSingleMatch",
		query:          "mailman",
		topK:           5,
		expectedTitles: []string{"B"},
	},
	{
		name:           "TopKLimitsHits",
		query:          "cat",
		topK:           1,
		expectedTitles: []string{"A"},
	},
	{
		name:           "NoMatch",
		query:          "spaceship",
		topK:           5,
		expectedTitles: []string{},
	},
	{
		name:           "TitleOnlyTermDoesNotMatchFieldedQuery",
		query:          "gardening",
		topK:           5,
		expectedTitles: []string{},
	},
	{
		name:           "UnfieldedTrailingTermMatchesTitle",
		query:          "spaceship gardening",
		topK:           5,
		expectedTitles: []string{"Gardening"},
	},
}

func TestCreateAndSearch(t *testing.T) {
	assert := require.New(t)
	db := newTestDB(t, assert, testMemoryBudget)
	path := filepath.Join(t.TempDir(), storage.NewIndexName())
	buildTestIndex(assert, db, path, testDocuments)

	for _, testCase := range searchTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			reader, err := db.Open(path)
			assert.NoError(err)
			defer reader.Close()

			hits, err := reader.Search(context.Background(), testCase.query, testCase.topK)
			assert.NoError(err)

			titles := make([]string, 0, len(hits))
			for _, hit := range hits {
				titles = append(titles, hit.Title)
				assert.Greater(hit.Score, 0.0)
			}
			assert.Equal(testCase.expectedTitles, titles)
		})
	}
}

func TestSearchReturnsStoredBodyAndDescendingScores(t *testing.T) {
	assert := require.New(t)
	db := newTestDB(t, assert, testMemoryBudget)
	path := filepath.Join(t.TempDir(), storage.NewIndexName())
	buildTestIndex(assert, db, path, []Document{
		{Title: "once", Body: "apple banana cherry"},
		{Title: "thrice", Body: "apple apple apple"},
	})

	reader, err := db.Open(path)
	assert.NoError(err)
	defer reader.Close()

	hits, err := reader.Search(context.Background(), "apple", 5)
	assert.NoError(err)
	assert.Len(hits, 2)
	assert.Equal("thrice", hits[0].Title)
	assert.Equal("apple apple apple", hits[0].Body)
	assert.GreaterOrEqual(hits[0].Score, hits[1].Score)
}

func TestSmallMemoryBudgetFlushesIntermediateBatches(t *testing.T) {
	assert := require.New(t)
	db := newTestDB(t, assert, 8)
	path := filepath.Join(t.TempDir(), storage.NewIndexName())
	buildTestIndex(assert, db, path, testDocuments)

	index, err := bleve.OpenUsing(path, map[string]interface{}{readOnlyOption: true})
	assert.NoError(err)
	defer index.Close()
	count, err := index.DocCount()
	assert.NoError(err)
	assert.Equal(uint64(len(testDocuments)), count)
}

func TestEmptyIndexIsSearchable(t *testing.T) {
	assert := require.New(t)
	db := newTestDB(t, assert, testMemoryBudget)
	path := filepath.Join(t.TempDir(), storage.NewIndexName())
	buildTestIndex(assert, db, path, nil)

	reader, err := db.Open(path)
	assert.NoError(err)
	defer reader.Close()

	hits, err := reader.Search(context.Background(), "anything", 5)
	assert.NoError(err)
	assert.Empty(hits)
}

func TestCreateIntoExistingEmptyDirectory(t *testing.T) {
	assert := require.New(t)
	db := newTestDB(t, assert, testMemoryBudget)
	path := filepath.Join(t.TempDir(), storage.NewIndexName())
	assert.NoError(os.MkdirAll(path, 0755))

	buildTestIndex(assert, db, path, testDocuments[:1])

	// an index cannot be created twice at the same path
	_, err := db.Create(path)
	assert.Error(err)
}

func TestWriterRejectsUseAfterCommit(t *testing.T) {
	assert := require.New(t)
	db := newTestDB(t, assert, testMemoryBudget)
	writer, err := db.Create(filepath.Join(t.TempDir(), storage.NewIndexName()))
	assert.NoError(err)

	assert.NoError(writer.Commit())
	assert.ErrorIs(writer.Add(Document{Title: "late", Body: "too late"}), ErrWriterClosed)
	assert.ErrorIs(writer.Commit(), ErrWriterClosed)
	assert.NoError(writer.Close())
}

func TestOpenMissingIndex(t *testing.T) {
	assert := require.New(t)
	db := newTestDB(t, assert, testMemoryBudget)

	_, err := db.Open(filepath.Join(t.TempDir(), storage.NewIndexName()))
	assert.Error(err)
	assert.Equal(0, db.readers.len())
}

func TestInvalidQuery(t *testing.T) {
	assert := require.New(t)
	db := newTestDB(t, assert, testMemoryBudget)
	path := filepath.Join(t.TempDir(), storage.NewIndexName())
	buildTestIndex(assert, db, path, testDocuments)

	reader, err := db.Open(path)
	assert.NoError(err)
	defer reader.Close()

	for _, queryString := range []string{"", ":"} {
		_, err = reader.Search(context.Background(), queryString, 5)
		assert.ErrorIs(err, ErrInvalidQuery, "query %q should not parse", queryString)
		var queryErr *QueryError
		assert.ErrorAs(err, &queryErr)
		assert.Equal("body:"+queryString, queryErr.Query)
	}
}

func TestUnstoredBodyFallsBackToUnknown(t *testing.T) {
	assert := require.New(t)
	db := newTestDB(t, assert, testMemoryBudget)
	path := filepath.Join(t.TempDir(), storage.NewIndexName())

	// an index whose body is indexed but not stored
	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	titleFieldMapping := bleve.NewTextFieldMapping()
	docMapping.AddFieldMappingsAt(FieldTitle, titleFieldMapping)
	bodyFieldMapping := bleve.NewTextFieldMapping()
	bodyFieldMapping.Store = false
	docMapping.AddFieldMappingsAt(FieldBody, bodyFieldMapping)
	indexMapping.DefaultMapping = docMapping

	index, err := bleve.New(path, indexMapping)
	assert.NoError(err)
	assert.NoError(index.Index("1", map[string]interface{}{FieldBody: "the cat sat"}))
	assert.NoError(index.Close())

	reader, err := db.Open(path)
	assert.NoError(err)
	defer reader.Close()

	hits, err := reader.Search(context.Background(), "cat", 5)
	assert.NoError(err)
	assert.Len(hits, 1)
	assert.Equal(UnknownValue, hits[0].Title)
	assert.Equal(UnknownValue, hits[0].Body)
}

func TestSearchAfterReaderClosed(t *testing.T) {
	assert := require.New(t)
	db := newTestDB(t, assert, testMemoryBudget)
	path := filepath.Join(t.TempDir(), storage.NewIndexName())
	buildTestIndex(assert, db, path, testDocuments)

	reader, err := db.Open(path)
	assert.NoError(err)
	assert.NoError(reader.Close())
	assert.NoError(reader.Close())

	_, err = reader.Search(context.Background(), "cat", 5)
	assert.Error(err)
}

func TestWatchForgetsRemovedIndex(t *testing.T) {
	assert := require.New(t)
	db := newTestDB(t, assert, testMemoryBudget)
	root := t.TempDir()
	path := filepath.Join(root, storage.NewIndexName())
	buildTestIndex(assert, db, path, testDocuments)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NoError(db.Watch(ctx, root))

	reader, err := db.Open(path)
	assert.NoError(err)
	assert.NoError(reader.Close())
	assert.Equal(1, db.readers.len())

	assert.NoError(os.RemoveAll(path))
	assert.Eventually(func() bool { return db.readers.len() == 0 }, 5*time.Second, 50*time.Millisecond)
}

func TestWriterFlushFailure(t *testing.T) {
	assert := require.New(t)

	index, err := bleve.NewMemOnly(createIndexMapping())
	assert.NoError(err)
	writer := newBleveWriter(index, newTestLogger(), 1)
	assert.NoError(index.Close())

	err = writer.Add(Document{Title: "A", Body: "the cat sat"})
	assert.ErrorIs(err, ErrFlushFailed)
}
