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

const pineconeControlPlane = "https://api.pinecone.io"

// PineconeConfig connects to a Pinecone index. Empty fields fall back to
// PINECONE_API_KEY and PINECONE_INDEX_HOST.
type PineconeConfig struct {
	APIKey string
	Index  string
	// IndexHost skips the control-plane lookup when set.
	IndexHost string
	Namespace string
}

// Pinecone talks to the Pinecone HTTP API.
type Pinecone struct {
	apiKey       string
	index        string
	namespace    string
	controlPlane string
	httpClient   *http.Client
	embedder     embeddings.Embedder

	// indexHost is resolved lazily from the control plane.
	mu        sync.Mutex
	indexHost string
}

// NewPinecone creates a Pinecone client for one index.
func NewPinecone(cfg PineconeConfig, embedder embeddings.Embedder) (*Pinecone, error) {
	cfg.APIKey = config.FirstNonEmpty(cfg.APIKey, os.Getenv("PINECONE_API_KEY"))
	cfg.IndexHost = config.FirstNonEmpty(cfg.IndexHost, os.Getenv("PINECONE_INDEX_HOST"))

	if cfg.APIKey == "" {
		return nil, config.MissingError([2]string{"api_key", "PINECONE_API_KEY"})
	}
	if cfg.Index == "" && cfg.IndexHost == "" {
		return nil, fmt.Errorf("pinecone index name or host is required")
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil

	return &Pinecone{
		apiKey:       cfg.APIKey,
		index:        cfg.Index,
		namespace:    cfg.Namespace,
		controlPlane: pineconeControlPlane,
		indexHost:    normalizeHost(cfg.IndexHost),
		httpClient:   retryClient.StandardClient(),
		embedder:     embedder,
	}, nil
}

func normalizeHost(host string) string {
	if host == "" {
		return ""
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return strings.TrimRight(host, "/")
}

func (p *Pinecone) doJSON(ctx context.Context, method, url string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Api-Key", p.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("pinecone API error: %s %s returned %d: %s", method, url, resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode pinecone response: %w", err)
	}
	return nil
}

// resolveHost looks up the index's data-plane host from the control plane,
// once.
func (p *Pinecone) resolveHost(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.indexHost != "" {
		return p.indexHost, nil
	}

	var desc struct {
		Host string `json:"host"`
	}
	url := fmt.Sprintf("%s/indexes/%s", p.controlPlane, p.index)
	if err := p.doJSON(ctx, http.MethodGet, url, nil, &desc); err != nil {
		return "", fmt.Errorf("failed to describe index %s: %w", p.index, err)
	}
	if desc.Host == "" {
		return "", fmt.Errorf("index %s has no host", p.index)
	}

	p.indexHost = normalizeHost(desc.Host)

	log.Debug().Str("index", p.index).Str("host", p.indexHost).Msg("resolved pinecone index host")

	return p.indexHost, nil
}

// EnsureIndex creates a serverless cosine index when it does not exist yet
// and waits until its host is known.
func (p *Pinecone) EnsureIndex(ctx context.Context, dimension int, cloud, region string) error {
	if p.index == "" {
		return fmt.Errorf("pinecone index name is required")
	}
	if cloud == "" {
		cloud = "aws"
	}
	if region == "" {
		region = "us-east-1"
	}

	payload := map[string]interface{}{
		"name":      p.index,
		"dimension": dimension,
		"metric":    "cosine",
		"spec": map[string]interface{}{
			"serverless": map[string]string{"cloud": cloud, "region": region},
		},
	}

	err := p.doJSON(ctx, http.MethodPost, p.controlPlane+"/indexes", payload, nil)
	if err != nil && !strings.Contains(err.Error(), "409") {
		return fmt.Errorf("failed to create index %s: %w", p.index, err)
	}
	if err == nil {
		log.Info().Str("index", p.index).Int("dimension", dimension).Msg("created pinecone index")
	}

	p.mu.Lock()
	p.indexHost = ""
	p.mu.Unlock()
	_, err = p.resolveHost(ctx)
	return err
}

type pineconeVector struct {
	ID       string                 `json:"id"`
	Values   []float64              `json:"values"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Upsert embeds and writes documents into the index. Each vector's metadata
// carries the chunk text under "text".
func (p *Pinecone) Upsert(ctx context.Context, docs []types.Document) error {
	if len(docs) == 0 {
		return nil
	}

	host, err := p.resolveHost(ctx)
	if err != nil {
		return err
	}

	vectors := make([]pineconeVector, len(docs))
	var toEmbed []string
	var toEmbedIdx []int
	for i, doc := range docs {
		meta := make(map[string]interface{}, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		meta["text"] = doc.Content

		vectors[i] = pineconeVector{ID: doc.ID, Values: doc.Embedding, Metadata: meta}
		if len(doc.Embedding) == 0 {
			toEmbed = append(toEmbed, doc.Content)
			toEmbedIdx = append(toEmbedIdx, i)
		}
	}

	if len(toEmbed) > 0 {
		embedded, err := p.embedder.EmbedDocuments(ctx, toEmbed)
		if err != nil {
			return fmt.Errorf("failed to embed documents: %w", err)
		}
		for j, i := range toEmbedIdx {
			vectors[i].Values = embedded[j]
		}
	}

	payload := map[string]interface{}{"vectors": vectors}
	if p.namespace != "" {
		payload["namespace"] = p.namespace
	}
	if err := p.doJSON(ctx, http.MethodPost, host+"/vectors/upsert", payload, nil); err != nil {
		return fmt.Errorf("failed to upsert vectors: %w", err)
	}

	log.Info().Str("index", p.index).Int("vectors", len(vectors)).Msg("upserted vectors to pinecone")

	return nil
}

// Query embeds the query text and returns the topK nearest chunks. Non-empty
// fileIDs restrict matches to those files.
func (p *Pinecone) Query(ctx context.Context, query string, topK int, fileIDs []string) ([]QueryResult, error) {
	host, err := p.resolveHost(ctx)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}

	queryVec, err := p.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	payload := map[string]interface{}{
		"vector":          queryVec,
		"topK":            topK,
		"includeMetadata": true,
	}
	if p.namespace != "" {
		payload["namespace"] = p.namespace
	}
	if len(fileIDs) > 0 {
		payload["filter"] = map[string]interface{}{
			"file_id": map[string]interface{}{"$in": fileIDs},
		}
	}

	var resp struct {
		Matches []struct {
			ID       string                 `json:"id"`
			Score    float64                `json:"score"`
			Metadata map[string]interface{} `json:"metadata"`
		} `json:"matches"`
	}
	if err := p.doJSON(ctx, http.MethodPost, host+"/query", payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	results := make([]QueryResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		r := QueryResult{ID: m.ID, Metadata: m.Metadata, Distance: 1 - m.Score}
		if text, ok := m.Metadata["text"].(string); ok {
			r.Content = text
		}
		results = append(results, r)
	}
	return results, nil
}

// Delete removes vectors by ID.
func (p *Pinecone) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	host, err := p.resolveHost(ctx)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{"ids": ids}
	if p.namespace != "" {
		payload["namespace"] = p.namespace
	}
	if err := p.doJSON(ctx, http.MethodPost, host+"/vectors/delete", payload, nil); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return nil
}
