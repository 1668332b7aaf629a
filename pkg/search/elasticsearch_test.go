package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewElasticsearchMissingURL(t *testing.T) {
	t.Setenv("ELASTIC_SEARCH_URL", "")

	_, err := NewElasticsearch(ElasticsearchConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ELASTIC_SEARCH_URL")
}

func TestNewElasticsearchFromEnv(t *testing.T) {
	t.Setenv("ELASTIC_SEARCH_URL", "http://localhost:9200")
	t.Setenv("ELASTIC_SEARCH_API_KEY", "key-1")

	es, err := NewElasticsearch(ElasticsearchConfig{})
	require.NoError(t, err)
	assert.NotNil(t, es)
}

func newTestElasticsearch(t *testing.T, handler http.HandlerFunc) (*Elasticsearch, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	es, err := NewElasticsearch(ElasticsearchConfig{URL: ts.URL, APIKey: "test"})
	require.NoError(t, err)
	return es, ts
}

func elasticHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
}

func TestAddDocument(t *testing.T) {
	es, _ := newTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/articles/_doc/doc-1", r.URL.Path)

		var doc map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		assert.Equal(t, "hello", doc["title"])

		elasticHeaders(w)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"_id": "doc-1", "result": "created"})
	})

	id, err := es.AddDocument(context.Background(), "articles", "doc-1", map[string]interface{}{"title": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)
}

func TestGetDocument(t *testing.T) {
	es, _ := newTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/articles/_doc/doc-1", r.URL.Path)
		elasticHeaders(w)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"_id":     "doc-1",
			"found":   true,
			"_source": map[string]interface{}{"title": "hello"},
		})
	})

	doc, err := es.GetDocument(context.Background(), "articles", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", doc["title"])
}

func TestGetDocumentNotFound(t *testing.T) {
	es, _ := newTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		elasticHeaders(w)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{"found": false})
	})

	_, err := es.GetDocument(context.Background(), "articles", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestSearchDocuments(t *testing.T) {
	es, _ := newTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/articles/_search", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		query := body["query"].(map[string]interface{})
		assert.Contains(t, query, "multi_match")

		elasticHeaders(w)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"hits": map[string]interface{}{
				"hits": []map[string]interface{}{
					{"_id": "doc-1", "_score": 1.5, "_source": map[string]interface{}{"title": "hello"}},
				},
			},
		})
	})

	hits, err := es.SearchDocuments(context.Background(), "articles", "hello", []string{"title", "body"}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc-1", hits[0].ID)
	assert.Equal(t, 1.5, hits[0].Score)
	assert.Equal(t, "hello", hits[0].Source["title"])
}

func TestSearchDocumentsMatchAll(t *testing.T) {
	es, _ := newTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		query := body["query"].(map[string]interface{})
		assert.Contains(t, query, "match_all")

		elasticHeaders(w)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"hits": map[string]interface{}{"hits": []map[string]interface{}{}},
		})
	})

	hits, err := es.SearchDocuments(context.Background(), "articles", "", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
