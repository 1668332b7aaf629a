// Package embeddings wraps the OpenAI and Azure OpenAI embedding APIs behind
// a small Embedder interface used by the retrieval and vector store packages.
package embeddings

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/elsai-io/elsai-go/pkg/config"
)

// DefaultModel is used when no embedding model is named.
const DefaultModel = "text-embedding-ada-002"

// Embedder turns text into embedding vectors.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)
}

// Client implements Embedder on top of an OpenAI-compatible embeddings API.
type Client struct {
	api   *openai.Client
	model string
}

// AzureConfig configures the Azure OpenAI embedder. Empty fields fall back to
// AZURE_EMBEDDING_DEPLOYMENT_NAME, AZURE_OPENAI_ENDPOINT,
// AZURE_OPENAI_API_KEY and OPENAI_API_VERSION.
type AzureConfig struct {
	Model      string
	Deployment string
	Endpoint   string
	APIKey     string
	APIVersion string
}

// NewAzure creates an embedder backed by an Azure OpenAI embedding
// deployment.
func NewAzure(cfg AzureConfig) (*Client, error) {
	cfg.Deployment = config.FirstNonEmpty(cfg.Deployment, os.Getenv("AZURE_EMBEDDING_DEPLOYMENT_NAME"))
	cfg.Endpoint = config.FirstNonEmpty(cfg.Endpoint, os.Getenv("AZURE_OPENAI_ENDPOINT"))
	cfg.APIKey = config.FirstNonEmpty(cfg.APIKey, os.Getenv("AZURE_OPENAI_API_KEY"))
	cfg.APIVersion = config.FirstNonEmpty(cfg.APIVersion, os.Getenv("OPENAI_API_VERSION"))

	var missing [][2]string
	if cfg.Deployment == "" {
		missing = append(missing, [2]string{"azure_deployment", "AZURE_EMBEDDING_DEPLOYMENT_NAME"})
	}
	if cfg.Endpoint == "" {
		missing = append(missing, [2]string{"azure_endpoint", "AZURE_OPENAI_ENDPOINT"})
	}
	if cfg.APIKey == "" {
		missing = append(missing, [2]string{"azure_api_key", "AZURE_OPENAI_API_KEY"})
	}
	if cfg.APIVersion == "" {
		missing = append(missing, [2]string{"azure_api_version", "OPENAI_API_VERSION"})
	}
	if len(missing) > 0 {
		return nil, config.MissingError(missing...)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	clientConfig := openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	clientConfig.APIVersion = cfg.APIVersion
	deployment := cfg.Deployment
	clientConfig.AzureModelMapperFunc = func(string) string {
		return deployment
	}

	log.Debug().
		Str("endpoint", cfg.Endpoint).
		Str("deployment", cfg.Deployment).
		Str("model", cfg.Model).
		Msg("configured Azure OpenAI embedder")

	return &Client{
		api:   openai.NewClientWithConfig(clientConfig),
		model: cfg.Model,
	}, nil
}

// NewOpenAI creates an embedder backed by the public OpenAI API. The key
// falls back to OPENAI_API_KEY.
func NewOpenAI(apiKey, model string) (*Client, error) {
	apiKey = config.FirstNonEmpty(apiKey, os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, config.MissingError([2]string{"api_key", "OPENAI_API_KEY"})
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{api: openai.NewClient(apiKey), model: model}, nil
}

// EmbedQuery embeds a single text.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedDocuments embeds a batch of texts, preserving order.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts to embed")
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response mismatch: sent %d texts, got %d vectors", len(texts), len(resp.Data))
	}

	vectors := make([][]float64, len(resp.Data))
	for i, item := range resp.Data {
		vec := make([]float64, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float64(v)
		}
		vectors[i] = vec
	}

	log.Debug().Int("texts", len(texts)).Str("model", c.model).Msg("generated embeddings")

	return vectors, nil
}
