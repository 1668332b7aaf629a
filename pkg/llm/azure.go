package llm

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/elsai-io/elsai-go/pkg/config"
	"github.com/elsai-io/elsai-go/pkg/types"
)

// AzureOpenAIClient talks to an Azure OpenAI deployment.
type AzureOpenAIClient struct {
	client      *openai.Client
	deployment  string
	temperature float32
}

// AzureOpenAIConfig configures the Azure OpenAI connector. Empty fields fall
// back to AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY, OPENAI_API_VERSION and
// AZURE_OPENAI_TEMPERATURE.
type AzureOpenAIConfig struct {
	Endpoint    string
	APIKey      string
	APIVersion  string
	Deployment  string
	Temperature float32
}

// NewAzureOpenAIClient creates an Azure OpenAI connector for the named
// deployment.
func NewAzureOpenAIClient(cfg AzureOpenAIConfig) (*AzureOpenAIClient, error) {
	cfg.Endpoint = config.FirstNonEmpty(cfg.Endpoint, os.Getenv("AZURE_OPENAI_ENDPOINT"))
	cfg.APIKey = config.FirstNonEmpty(cfg.APIKey, os.Getenv("AZURE_OPENAI_API_KEY"))
	cfg.APIVersion = config.FirstNonEmpty(cfg.APIVersion, os.Getenv("OPENAI_API_VERSION"))

	var missing [][2]string
	if cfg.Endpoint == "" {
		missing = append(missing, [2]string{"endpoint", "AZURE_OPENAI_ENDPOINT"})
	}
	if cfg.APIKey == "" {
		missing = append(missing, [2]string{"api_key", "AZURE_OPENAI_API_KEY"})
	}
	if cfg.APIVersion == "" {
		missing = append(missing, [2]string{"api_version", "OPENAI_API_VERSION"})
	}
	if cfg.Deployment == "" {
		missing = append(missing, [2]string{"deployment", "AZURE_OPENAI_DEPLOYMENT_ID"})
	}
	if len(missing) > 0 {
		return nil, config.MissingError(missing...)
	}

	if cfg.Temperature == 0 {
		if v, err := strconv.ParseFloat(os.Getenv("AZURE_OPENAI_TEMPERATURE"), 32); err == nil {
			cfg.Temperature = float32(v)
		} else {
			cfg.Temperature = 0.1
		}
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
		Str("api_version", cfg.APIVersion).
		Msg("configured Azure OpenAI chat client")

	return &AzureOpenAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		deployment:  cfg.Deployment,
		temperature: cfg.Temperature,
	}, nil
}

// Complete implements ChatModel.
func (c *AzureOpenAIClient) Complete(ctx context.Context, messages []types.Message) (string, error) {
	resp, err := completeWithRetry(ctx, c.client, openai.ChatCompletionRequest{
		Model:       c.deployment,
		Messages:    toChatMessages(messages),
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("azure openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("azure openai chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// API exposes the underlying SDK client.
func (c *AzureOpenAIClient) API() *openai.Client {
	return c.client
}
