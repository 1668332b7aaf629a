package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/elsai-io/elsai-go/pkg/config"
	"github.com/elsai-io/elsai-go/pkg/types"
)

// DefaultOpenAIModel is used when no model is named.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient talks to the public OpenAI API.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIClient creates an OpenAI connector. The API key falls back to
// OPENAI_API_KEY, the model to gpt-4o-mini.
func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	apiKey = config.FirstNonEmpty(apiKey, os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, config.MissingError([2]string{"api_key", "OPENAI_API_KEY"})
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	log.Debug().Str("model", model).Msg("configured OpenAI chat client")

	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// WithTemperature sets the sampling temperature used on every completion.
func (c *OpenAIClient) WithTemperature(temperature float32) *OpenAIClient {
	c.temperature = temperature
	return c
}

// Complete implements ChatModel.
func (c *OpenAIClient) Complete(ctx context.Context, messages []types.Message) (string, error) {
	resp, err := completeWithRetry(ctx, c.client, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toChatMessages(messages),
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// API exposes the underlying SDK client for packages that need calls beyond
// chat completions (embeddings, audio, vision).
func (c *OpenAIClient) API() *openai.Client {
	return c.client
}
