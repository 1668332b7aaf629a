// Package speech wraps the Azure OpenAI audio endpoints: Whisper
// transcription, text-to-speech synthesis and a combined speech-to-speech
// pipeline.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/elsai-io/elsai-go/pkg/config"
)

// Config configures the Azure OpenAI audio connectors. Empty fields fall
// back to AZURE_OPENAI_API_KEY, AZURE_OPENAI_API_VERSION,
// AZURE_OPENAI_ENDPOINT and AZURE_OPENAI_DEPLOYMENT_ID.
type Config struct {
	APIKey       string
	APIVersion   string
	Endpoint     string
	DeploymentID string
}

func (c *Config) resolve() error {
	c.APIKey = config.FirstNonEmpty(c.APIKey, os.Getenv("AZURE_OPENAI_API_KEY"))
	c.APIVersion = config.FirstNonEmpty(c.APIVersion, os.Getenv("AZURE_OPENAI_API_VERSION"))
	c.Endpoint = config.FirstNonEmpty(c.Endpoint, os.Getenv("AZURE_OPENAI_ENDPOINT"))
	c.DeploymentID = config.FirstNonEmpty(c.DeploymentID, os.Getenv("AZURE_OPENAI_DEPLOYMENT_ID"))

	var missing [][2]string
	if c.APIKey == "" {
		missing = append(missing, [2]string{"api_key", "AZURE_OPENAI_API_KEY"})
	}
	if c.APIVersion == "" {
		missing = append(missing, [2]string{"api_version", "AZURE_OPENAI_API_VERSION"})
	}
	if c.Endpoint == "" {
		missing = append(missing, [2]string{"endpoint", "AZURE_OPENAI_ENDPOINT"})
	}
	if c.DeploymentID == "" {
		missing = append(missing, [2]string{"deployment_id", "AZURE_OPENAI_DEPLOYMENT_ID"})
	}
	if len(missing) > 0 {
		return config.MissingError(missing...)
	}
	return nil
}

func (c Config) client() *openai.Client {
	clientConfig := openai.DefaultAzureConfig(c.APIKey, c.Endpoint)
	clientConfig.APIVersion = c.APIVersion
	deployment := c.DeploymentID
	clientConfig.AzureModelMapperFunc = func(string) string {
		return deployment
	}
	return openai.NewClientWithConfig(clientConfig)
}

// Transcriber converts speech to text with a Whisper deployment.
type Transcriber struct {
	api        *openai.Client
	deployment string
}

// NewTranscriber creates a Whisper transcriber.
func NewTranscriber(cfg Config) (*Transcriber, error) {
	if err := cfg.resolve(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("endpoint", cfg.Endpoint).
		Str("deployment", cfg.DeploymentID).
		Msg("configured Whisper transcriber")

	return &Transcriber{api: cfg.client(), deployment: cfg.DeploymentID}, nil
}

// TranscribeFile transcribes the audio file at path.
func (t *Transcriber) TranscribeFile(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("audio file path is required")
	}

	resp, err := t.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.deployment,
		FilePath: path,
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed for %s: %w", path, err)
	}

	log.Info().Str("file", path).Int("chars", len(resp.Text)).Msg("transcribed audio file")

	return resp.Text, nil
}

// TranscribeBuffer transcribes raw float32 PCM samples. The samples are
// wrapped in a WAV container before upload.
func (t *Transcriber) TranscribeBuffer(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if len(samples) == 0 {
		return "", fmt.Errorf("audio buffer is empty")
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	wav := EncodeWAV(samples, sampleRate)

	resp, err := t.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.deployment,
		FilePath: "buffer.wav",
		Reader:   bytes.NewReader(wav),
	})
	if err != nil {
		return "", fmt.Errorf("buffer transcription failed: %w", err)
	}

	log.Info().Int("samples", len(samples)).Int("sample_rate", sampleRate).Msg("transcribed audio buffer")

	return resp.Text, nil
}
