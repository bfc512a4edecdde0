// Common test helpers
package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/keywordsearch/config"
	"github.com/meghashyamc/keywordsearch/db/kvdb"
	"github.com/meghashyamc/keywordsearch/db/searchdb"
	"github.com/meghashyamc/keywordsearch/logger"
	"github.com/meghashyamc/keywordsearch/services/download"
	"github.com/meghashyamc/keywordsearch/storage"
	"github.com/meghashyamc/keywordsearch/validation"
	"github.com/stretchr/testify/require"
)

const testDownloadURLPrefix = "http://localhost:9070/v1/files/download/"

var defaultTestRequestHeaders = map[string]string{"Content-Type": "application/json"}

type testCase struct {
	name           string
	requestHeaders map[string]string
	requestBody    any
	expectedStatus int
	expectedBody   any
}

type testServer struct {
	router *gin.Engine
	root   *storage.Root
}

type testPart struct {
	filename    string
	contentType string
	content     string
}

func newTestLogger() logger.Logger {

	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

func setupTestServer(t *testing.T, assert *require.Assertions) *testServer {

	t.Setenv("ENV", "test")
	t.Setenv("STORAGE_ROOT", t.TempDir())

	cfg, err := config.Load("")
	assert.NoError(err, "could not load config")

	testLogger := newTestLogger()

	root, err := storage.New(cfg.GetStorageRoot())
	assert.NoError(err, "could not create storage root")

	searchDB, err := searchdb.New(testLogger, cfg.GetMemoryBudget(), cfg.GetIndexCacheSize())
	assert.NoError(err, "could not create search database")

	kvDB, err := kvdb.New(testLogger, cfg.GetKVDBPath())
	assert.NoError(err, "could not create kv database")

	validator, err := validation.New(testLogger)
	assert.NoError(err, "could not create validator")

	prefix, err := download.Resolve(cfg.GetDownloadURLPrefix(), "0.0.0.0:9070")
	assert.NoError(err, "could not resolve download url prefix")

	gin.SetMode(gin.TestMode)
	router := gin.New()
	v1 := router.Group("/v1")

	SetupIndex(v1, testLogger, cfg, searchDB, kvDB, root, validator, prefix)
	SetupSearch(v1, testLogger, searchDB, root, validator)
	SetupDownload(v1, testLogger, kvDB, root)

	t.Cleanup(func() {
		assert.NoError(searchDB.Close(), "could not close search database")
		assert.NoError(kvDB.Close(), "could not close kv database")
	})

	return &testServer{router: router, root: root}
}

func makeTestHTTPRequest(router *gin.Engine, assert *require.Assertions, method string, endpoint string, headers map[string]string, requestBody any) *httptest.ResponseRecorder {

	var body []byte
	switch b := requestBody.(type) {
	case nil:
	case string:
		body = []byte(b)
	case []byte:
		body = b
	default:
		var err error
		body, err = json.Marshal(b)
		assert.NoError(err)
	}

	slog.Info("Making test request", "method", method, "endpoint", endpoint, "headers", headers, "body_length", len(body))

	req, err := http.NewRequest(method, endpoint, bytes.NewReader(body))
	assert.NoError(err)

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func multipartBody(assert *require.Assertions, parts []testPart) ([]byte, string) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	for _, part := range parts {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, part.filename))
		if part.contentType != "" {
			header.Set("Content-Type", part.contentType)
		}
		partWriter, err := writer.CreatePart(header)
		assert.NoError(err)
		_, err = partWriter.Write([]byte(part.content))
		assert.NoError(err)
	}
	assert.NoError(writer.Close())

	return buf.Bytes(), writer.FormDataContentType()
}

// createTestIndex indexes documents through the API and returns the index name.
func createTestIndex(s *testServer, assert *require.Assertions, documents []map[string]any) string {
	w := makeTestHTTPRequest(s.router, assert, http.MethodPost, "/v1/index", defaultTestRequestHeaders, map[string]any{"documents": documents})
	assert.Equal(http.StatusOK, w.Code, w.Body.String())

	response := IndexResponse{}
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotEmpty(response.IndexName)

	return response.IndexName
}
