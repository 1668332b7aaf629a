package speech

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// Synthesizer converts text to speech with a TTS deployment.
type Synthesizer struct {
	api        *openai.Client
	deployment string
}

// SynthesizeOptions control voice, container format and playback speed.
type SynthesizeOptions struct {
	// Voice is one of alloy, echo, fable, onyx, nova, shimmer.
	Voice string
	// Format is one of mp3, opus, aac, flac, wav, pcm.
	Format string
	// Speed ranges from 0.25 to 4.0.
	Speed float64
}

func (o *SynthesizeOptions) defaults() error {
	if o.Voice == "" {
		o.Voice = "alloy"
	}
	if o.Format == "" {
		o.Format = "mp3"
	}
	if o.Speed == 0 {
		o.Speed = 1.0
	}
	if o.Speed < 0.25 || o.Speed > 4.0 {
		return fmt.Errorf("speed must be between 0.25 and 4.0, got %v", o.Speed)
	}
	return nil
}

// NewSynthesizer creates a TTS synthesizer.
func NewSynthesizer(cfg Config) (*Synthesizer, error) {
	if err := cfg.resolve(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("endpoint", cfg.Endpoint).
		Str("deployment", cfg.DeploymentID).
		Msg("configured TTS synthesizer")

	return &Synthesizer{api: cfg.client(), deployment: cfg.DeploymentID}, nil
}

// Synthesize converts text to audio and returns the encoded bytes.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	if err := opts.defaults(); err != nil {
		return nil, err
	}

	resp, err := s.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.deployment),
		Input:          text,
		Voice:          openai.SpeechVoice(opts.Voice),
		ResponseFormat: openai.SpeechResponseFormat(opts.Format),
		Speed:          opts.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}

	log.Info().
		Int("chars", len(text)).
		Int("bytes", len(audio)).
		Str("voice", opts.Voice).
		Str("format", opts.Format).
		Msg("synthesized speech")

	return audio, nil
}

// SynthesizeToFile converts text to audio and writes it to path.
func (s *Synthesizer) SynthesizeToFile(ctx context.Context, text, path string, opts SynthesizeOptions) error {
	audio, err := s.Synthesize(ctx, text, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return fmt.Errorf("failed to write audio file %s: %w", path, err)
	}
	return nil
}
