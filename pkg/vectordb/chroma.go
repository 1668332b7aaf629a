// Package vectordb wraps vector database HTTP APIs for document storage and
// similarity search.
package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/elsai-io/elsai-go/pkg/config"
	"github.com/elsai-io/elsai-go/pkg/embeddings"
	"github.com/elsai-io/elsai-go/pkg/types"
)

// QueryResult is one similarity search match.
type QueryResult struct {
	ID       string
	Content  string
	Metadata map[string]interface{}
	Distance float64
}

// ChromaConfig connects to a Chroma server. An empty URL falls back to
// CHROMA_URL, then http://localhost:8000.
type ChromaConfig struct {
	URL string
}

// Chroma talks to the Chroma REST API.
type Chroma struct {
	baseURL    string
	httpClient *http.Client
	embedder   embeddings.Embedder

	// collection name -> id, filled lazily.
	mu          sync.Mutex
	collections map[string]string
}

// NewChroma creates a Chroma client. The embedder vectorizes documents and
// queries.
func NewChroma(cfg ChromaConfig, embedder embeddings.Embedder) *Chroma {
	baseURL := config.FirstNonEmpty(cfg.URL, os.Getenv("CHROMA_URL"), "http://localhost:8000")

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil

	return &Chroma{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  retryClient.StandardClient(),
		embedder:    embedder,
		collections: make(map[string]string),
	}
}

func (c *Chroma) doJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chroma request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("chroma API error: %s %s returned %d: %s", method, path, resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode chroma response: %w", err)
	}
	return nil
}

// EnsureCollection creates the collection if needed and returns its ID.
func (c *Chroma) EnsureCollection(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	id, ok := c.collections[name]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	var created struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	payload := map[string]interface{}{
		"name":          name,
		"get_or_create": true,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/collections", payload, &created); err != nil {
		return "", fmt.Errorf("failed to ensure collection %s: %w", name, err)
	}

	c.mu.Lock()
	c.collections[name] = created.ID
	c.mu.Unlock()

	log.Debug().Str("collection", name).Str("id", created.ID).Msg("ensured chroma collection")

	return created.ID, nil
}

// AddDocuments embeds and stores documents in the collection.
func (c *Chroma) AddDocuments(ctx context.Context, collection string, docs []types.Document) error {
	if len(docs) == 0 {
		return nil
	}

	collectionID, err := c.EnsureCollection(ctx, collection)
	if err != nil {
		return err
	}

	ids := make([]string, len(docs))
	contents := make([]string, len(docs))
	metadatas := make([]map[string]interface{}, len(docs))
	vectors := make([][]float64, len(docs))

	var toEmbed []string
	var toEmbedIdx []int
	for i, doc := range docs {
		ids[i] = doc.ID
		contents[i] = doc.Content
		metadatas[i] = doc.Metadata
		if metadatas[i] == nil {
			metadatas[i] = map[string]interface{}{}
		}
		if len(doc.Embedding) > 0 {
			vectors[i] = doc.Embedding
		} else {
			toEmbed = append(toEmbed, doc.Content)
			toEmbedIdx = append(toEmbedIdx, i)
		}
	}

	if len(toEmbed) > 0 {
		embedded, err := c.embedder.EmbedDocuments(ctx, toEmbed)
		if err != nil {
			return fmt.Errorf("failed to embed documents: %w", err)
		}
		for j, i := range toEmbedIdx {
			vectors[i] = embedded[j]
		}
	}

	payload := map[string]interface{}{
		"ids":        ids,
		"documents":  contents,
		"metadatas":  metadatas,
		"embeddings": vectors,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/collections/"+collectionID+"/add", payload, nil); err != nil {
		return fmt.Errorf("failed to add documents to %s: %w", collection, err)
	}

	log.Info().Str("collection", collection).Int("documents", len(docs)).Msg("added documents to chroma")

	return nil
}

// Query embeds the query text and returns the topK nearest chunks. A non-empty
// fileID restricts results to chunks whose metadata carries that file_id.
func (c *Chroma) Query(ctx context.Context, collection, query string, topK int, fileID string) ([]QueryResult, error) {
	collectionID, err := c.EnsureCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}

	queryVec, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	payload := map[string]interface{}{
		"query_embeddings": [][]float64{queryVec},
		"n_results":        topK,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	if fileID != "" {
		payload["where"] = map[string]interface{}{"file_id": fileID}
	}

	var resp struct {
		IDs       [][]string                 `json:"ids"`
		Documents [][]string                 `json:"documents"`
		Metadatas [][]map[string]interface{} `json:"metadatas"`
		Distances [][]float64                `json:"distances"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/collections/"+collectionID+"/query", payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	if len(resp.IDs) == 0 {
		return nil, nil
	}

	results := make([]QueryResult, 0, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		r := QueryResult{ID: id}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) {
			r.Content = resp.Documents[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			r.Metadata = resp.Metadatas[0][i]
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			r.Distance = resp.Distances[0][i]
		}
		results = append(results, r)
	}
	return results, nil
}

// FetchChunks returns every stored chunk for a file, in insertion order.
func (c *Chroma) FetchChunks(ctx context.Context, collection, fileID string) ([]QueryResult, error) {
	collectionID, err := c.EnsureCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"where":   map[string]interface{}{"file_id": fileID},
		"include": []string{"documents", "metadatas"},
	}

	var resp struct {
		IDs       []string                 `json:"ids"`
		Documents []string                 `json:"documents"`
		Metadatas []map[string]interface{} `json:"metadatas"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/collections/"+collectionID+"/get", payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch chunks for file %s: %w", fileID, err)
	}

	results := make([]QueryResult, 0, len(resp.IDs))
	for i, id := range resp.IDs {
		r := QueryResult{ID: id}
		if i < len(resp.Documents) {
			r.Content = resp.Documents[i]
		}
		if i < len(resp.Metadatas) {
			r.Metadata = resp.Metadatas[i]
		}
		results = append(results, r)
	}
	return results, nil
}

// DeleteCollection removes the collection and all of its documents.
func (c *Chroma) DeleteCollection(ctx context.Context, name string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/api/v1/collections/"+name, nil, nil); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	c.mu.Lock()
	delete(c.collections, name)
	c.mu.Unlock()
	return nil
}
