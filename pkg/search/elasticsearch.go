// Package search wraps Elasticsearch for document indexing and retrieval.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/rs/zerolog/log"

	"github.com/elsai-io/elsai-go/pkg/config"
)

// ElasticsearchConfig connects to a cluster. Empty fields fall back to
// ELASTIC_SEARCH_URL and ELASTIC_SEARCH_API_KEY.
type ElasticsearchConfig struct {
	URL    string
	APIKey string
}

// Elasticsearch indexes and searches JSON documents.
type Elasticsearch struct {
	es *elasticsearch.Client
}

// Hit is one search result.
type Hit struct {
	ID     string                 `json:"_id"`
	Score  float64                `json:"_score"`
	Source map[string]interface{} `json:"_source"`
}

// NewElasticsearch creates a cluster client.
func NewElasticsearch(cfg ElasticsearchConfig) (*Elasticsearch, error) {
	cfg.URL = config.FirstNonEmpty(cfg.URL, os.Getenv("ELASTIC_SEARCH_URL"))
	cfg.APIKey = config.FirstNonEmpty(cfg.APIKey, os.Getenv("ELASTIC_SEARCH_API_KEY"))

	if cfg.URL == "" {
		return nil, config.MissingError([2]string{"url", "ELASTIC_SEARCH_URL"})
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		APIKey:    cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &Elasticsearch{es: es}, nil
}

// AddDocument indexes doc under the given ID. When id is empty Elasticsearch
// assigns one, returned to the caller.
func (e *Elasticsearch) AddDocument(ctx context.Context, index, id string, doc map[string]interface{}) (string, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	var res *esapi.Response
	if id != "" {
		res, err = e.es.Index(index, bytes.NewReader(body),
			e.es.Index.WithDocumentID(id),
			e.es.Index.WithContext(ctx),
		)
	} else {
		res, err = e.es.Index(index, bytes.NewReader(body),
			e.es.Index.WithContext(ctx),
		)
	}
	if err != nil {
		return "", fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return "", responseError("index", res)
	}

	var out struct {
		ID string `json:"_id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode index response: %w", err)
	}

	log.Debug().Str("index", index).Str("id", out.ID).Msg("indexed document")

	return out.ID, nil
}

// GetDocument fetches a document by ID.
func (e *Elasticsearch) GetDocument(ctx context.Context, index, id string) (map[string]interface{}, error) {
	res, err := e.es.Get(index, id, e.es.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("get", res)
	}

	var out struct {
		Source map[string]interface{} `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode get response: %w", err)
	}
	return out.Source, nil
}

// SearchDocuments runs a full-text match query against the given fields and
// returns up to size hits. With no fields it matches all documents.
func (e *Elasticsearch) SearchDocuments(ctx context.Context, index, query string, fields []string, size int) ([]Hit, error) {
	if size <= 0 {
		size = 10
	}

	var q map[string]interface{}
	if query == "" {
		q = map[string]interface{}{"match_all": map[string]interface{}{}}
	} else if len(fields) > 0 {
		q = map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": fields,
			},
		}
	} else {
		q = map[string]interface{}{
			"query_string": map[string]interface{}{
				"query": query,
			},
		}
	}

	body, err := json.Marshal(map[string]interface{}{
		"query": q,
		"size":  size,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search query: %w", err)
	}

	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(index),
		e.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("search", res)
	}

	var out struct {
		Hits struct {
			Hits []Hit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	log.Debug().Str("index", index).Str("query", query).Int("hits", len(out.Hits.Hits)).Msg("search completed")

	return out.Hits.Hits, nil
}

// DeleteDocument removes a document by ID.
func (e *Elasticsearch) DeleteDocument(ctx context.Context, index, id string) error {
	res, err := e.es.Delete(index, id, e.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("delete", res)
	}
	return nil
}

func responseError(op string, res *esapi.Response) error {
	data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	msg := strings.TrimSpace(string(data))
	return fmt.Errorf("elasticsearch %s error: %s: %s", op, res.Status(), msg)
}
