package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/rs/zerolog/log"

	"github.com/elsai-io/elsai-go/pkg/config"
	"github.com/elsai-io/elsai-go/pkg/types"
)

// BedrockConfig configures the AWS Bedrock connector. Credential fields fall
// back to the standard AWS environment variables.
type BedrockConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	ModelID         string
	MaxTokens       int
	Temperature     float32
}

// BedrockClient invokes foundation models through the Bedrock runtime.
type BedrockClient struct {
	runtime     *bedrockruntime.Client
	modelID     string
	maxTokens   int
	temperature float32
}

// NewBedrockClient creates a Bedrock connector for the given model ID (for
// example "anthropic.claude-3-sonnet-20240229-v1:0" or
// "amazon.titan-text-express-v1").
func NewBedrockClient(ctx context.Context, cfg BedrockConfig) (*BedrockClient, error) {
	cfg.AccessKeyID = config.FirstNonEmpty(cfg.AccessKeyID, os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.SecretAccessKey = config.FirstNonEmpty(cfg.SecretAccessKey, os.Getenv("AWS_SECRET_ACCESS_KEY"))
	cfg.SessionToken = config.FirstNonEmpty(cfg.SessionToken, os.Getenv("AWS_SESSION_TOKEN"))
	cfg.Region = config.FirstNonEmpty(cfg.Region, os.Getenv("AWS_REGION"))

	var missing [][2]string
	if cfg.AccessKeyID == "" {
		missing = append(missing, [2]string{"access_key", "AWS_ACCESS_KEY_ID"})
	}
	if cfg.SecretAccessKey == "" {
		missing = append(missing, [2]string{"secret_key", "AWS_SECRET_ACCESS_KEY"})
	}
	if cfg.Region == "" {
		missing = append(missing, [2]string{"region", "AWS_REGION"})
	}
	if len(missing) > 0 {
		return nil, config.MissingError(missing...)
	}
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("bedrock model ID is required")
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Debug().
		Str("region", cfg.Region).
		Str("model_id", cfg.ModelID).
		Msg("configured Bedrock client")

	return &BedrockClient{
		runtime:     bedrockruntime.NewFromConfig(awsCfg),
		modelID:     cfg.ModelID,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Complete implements ChatModel. The request body is shaped per model
// family: Anthropic models use the messages schema, Titan models the
// inputText schema.
func (c *BedrockClient) Complete(ctx context.Context, messages []types.Message) (string, error) {
	body, err := c.buildBody(messages)
	if err != nil {
		return "", err
	}

	out, err := c.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke failed for model %s: %w", c.modelID, err)
	}

	return c.parseBody(out.Body)
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *BedrockClient) buildBody(messages []types.Message) ([]byte, error) {
	switch {
	case strings.HasPrefix(c.modelID, "anthropic."):
		var system string
		var turns []anthropicMessage
		for _, m := range messages {
			if m.Role == types.RoleSystem {
				system = m.Content
				continue
			}
			turns = append(turns, anthropicMessage{Role: m.Role, Content: m.Content})
		}
		payload := map[string]interface{}{
			"anthropic_version": "bedrock-2023-05-31",
			"max_tokens":        c.maxTokens,
			"temperature":       c.temperature,
			"messages":          turns,
		}
		if system != "" {
			payload["system"] = system
		}
		return json.Marshal(payload)

	case strings.HasPrefix(c.modelID, "amazon.titan"):
		var prompt strings.Builder
		for _, m := range messages {
			prompt.WriteString(m.Content)
			prompt.WriteString("\n")
		}
		return json.Marshal(map[string]interface{}{
			"inputText": prompt.String(),
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": c.maxTokens,
				"temperature":   c.temperature,
			},
		})

	default:
		return nil, fmt.Errorf("unsupported bedrock model family: %s", c.modelID)
	}
}

func (c *BedrockClient) parseBody(body []byte) (string, error) {
	switch {
	case strings.HasPrefix(c.modelID, "anthropic."):
		var resp struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to decode bedrock response: %w", err)
		}
		var sb strings.Builder
		for _, c := range resp.Content {
			if c.Type == "text" {
				sb.WriteString(c.Text)
			}
		}
		return sb.String(), nil

	case strings.HasPrefix(c.modelID, "amazon.titan"):
		var resp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("failed to decode bedrock response: %w", err)
		}
		if len(resp.Results) == 0 {
			return "", fmt.Errorf("bedrock returned no results")
		}
		return resp.Results[0].OutputText, nil

	default:
		return "", fmt.Errorf("unsupported bedrock model family: %s", c.modelID)
	}
}
