package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/meghashyamc/keywordsearch/storage"
	"github.com/stretchr/testify/require"
)

func TestHandleGetIndex(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)
	indexName := createTestIndex(server, assert, []map[string]any{
		{"content": "the cat sat", "title": "A"},
		{"content": "  ", "title": "B"},
	})

	tests := []testCase{
		{
			name:           "Found",
			requestBody:    indexName,
			expectedStatus: http.StatusOK,
			expectedBody: map[string]any{
				"name":      indexName,
				"documents": float64(1),
				"indexed":   float64(1),
				"failed":    float64(1),
			},
		},
		{
			name:           "InvalidName",
			requestBody:    "registry.db",
			expectedStatus: http.StatusNotAcceptable,
		},
		{
			name:           "Unknown",
			requestBody:    storage.NewIndexName(),
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/v1/index/"+testCase.requestBody.(string), nil, nil)
			responseBytes := w.Body.Bytes()
			assert.Equal(testCase.expectedStatus, w.Code, fmt.Sprintf("response gotten was %s", string(responseBytes)))

			response := struct {
				Data   map[string]any `json:"data"`
				Errors []string       `json:"errors"`
			}{}
			assert.NoError(json.Unmarshal(responseBytes, &response))
			if testCase.expectedBody == nil {
				assert.NotEmpty(response.Errors)
				return
			}
			for key, value := range testCase.expectedBody.(map[string]any) {
				assert.Equal(value, response.Data[key], key)
			}
			assert.NotEmpty(response.Data["created_at"])
		})
	}
}

func TestHandleListIndices(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)
	first := createTestIndex(server, assert, []map[string]any{{"content": "one"}})
	second := createTestIndex(server, assert, []map[string]any{{"content": "two"}})
	third := createTestIndex(server, assert, []map[string]any{{"content": "three"}})

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedNames  []string
		expectedPages  int
	}{
		{name: "AllIndices", query: "", expectedStatus: http.StatusOK, expectedNames: []string{first, second, third}, expectedPages: 1},
		{name: "FirstPage", query: "?per_page=2", expectedStatus: http.StatusOK, expectedNames: []string{first, second}, expectedPages: 2},
		{name: "SecondPage", query: "?per_page=2&page=2", expectedStatus: http.StatusOK, expectedNames: []string{third}, expectedPages: 2},
		{name: "PastTheEnd", query: "?per_page=2&page=5", expectedStatus: http.StatusOK, expectedNames: []string{}, expectedPages: 2},
		{name: "InvalidPerPage", query: "?per_page=-1", expectedStatus: http.StatusNotAcceptable},
		{name: "UnparsablePage", query: "?page=abc", expectedStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/v1/indices"+tt.query, nil, nil)
			assert.Equal(tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedStatus != http.StatusOK {
				return
			}

			response := struct {
				Data ListIndicesResponse `json:"data"`
			}{}
			assert.NoError(json.Unmarshal(w.Body.Bytes(), &response))
			names := []string{}
			for _, record := range response.Data.Indices {
				names = append(names, record.Name)
			}
			assert.Equal(tt.expectedNames, names)
			assert.Equal(3, response.Data.PageDetails.TotalResults)
			assert.Equal(tt.expectedPages, response.Data.PageDetails.TotalPages)
		})
	}
}

func TestHandleGetIndexReportsArchive(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)
	indexName := createTestIndex(server, assert, []map[string]any{{"content": "the cat sat", "title": "A"}})

	w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/v1/index/"+indexName, nil, nil)
	assert.Equal(http.StatusOK, w.Code, w.Body.String())
	response := struct {
		Data map[string]any `json:"data"`
	}{}
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotContains(response.Data, "archive")

	download := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/v1/files/download/"+indexName, nil, nil)
	assert.Equal(http.StatusOK, download.Code, download.Body.String())

	w = makeTestHTTPRequest(server.router, assert, http.MethodGet, "/v1/index/"+indexName, nil, nil)
	assert.Equal(http.StatusOK, w.Code, w.Body.String())
	response.Data = nil
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	archive, ok := response.Data["archive"].(map[string]any)
	assert.True(ok, w.Body.String())
	assert.Equal(indexName, archive["name"])
	assert.Equal(float64(download.Body.Len()), archive["size_bytes"])
}
