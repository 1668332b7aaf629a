package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAzure_MissingParams(t *testing.T) {
	for _, v := range []string{"AZURE_EMBEDDING_DEPLOYMENT_NAME", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_API_KEY", "OPENAI_API_VERSION"} {
		t.Setenv(v, "")
	}

	_, err := NewAzure(AzureConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "azure_deployment (env var: AZURE_EMBEDDING_DEPLOYMENT_NAME)")
	assert.Contains(t, err.Error(), "azure_endpoint (env var: AZURE_OPENAI_ENDPOINT)")
	assert.Contains(t, err.Error(), "azure_api_key (env var: AZURE_OPENAI_API_KEY)")
	assert.Contains(t, err.Error(), "azure_api_version (env var: OPENAI_API_VERSION)")
}

func TestNewAzure_EnvFallback(t *testing.T) {
	t.Setenv("AZURE_EMBEDDING_DEPLOYMENT_NAME", "ada")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("AZURE_OPENAI_API_KEY", "key")
	t.Setenv("OPENAI_API_VERSION", "2024-02-01")

	client, err := NewAzure(AzureConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, client.model)
}

func TestClient_EmbedDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		resp := openai.EmbeddingResponse{
			Data: []openai.Embedding{
				{Embedding: []float32{0.1, 0.2}},
				{Embedding: []float32{0.3, 0.4}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	cfg := openai.DefaultConfig("key")
	cfg.BaseURL = server.URL
	client := &Client{api: openai.NewClientWithConfig(cfg), model: DefaultModel}

	vectors, err := client.EmbedDocuments(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.InDelta(t, 0.1, vectors[0][0], 1e-6)
	assert.InDelta(t, 0.4, vectors[1][1], 1e-6)
}

func TestClient_EmbedQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openai.EmbeddingResponse{
			Data: []openai.Embedding{{Embedding: []float32{1, 2, 3}}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	cfg := openai.DefaultConfig("key")
	cfg.BaseURL = server.URL
	client := &Client{api: openai.NewClientWithConfig(cfg), model: DefaultModel}

	vec, err := client.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, vec)
}

func TestClient_EmbedDocuments_Empty(t *testing.T) {
	client := &Client{}
	_, err := client.EmbedDocuments(context.Background(), nil)
	require.Error(t, err)
}
