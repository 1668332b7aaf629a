package speech

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/elsai-io/elsai-go/pkg/llm"
)

// Pipeline chains transcription, an optional text transform and synthesis
// into a speech-to-speech flow.
type Pipeline struct {
	transcriber *Transcriber
	synthesizer *Synthesizer
	transform   llm.ChatModel
}

// NewPipeline creates a speech-to-speech pipeline. WhisperDeployment and
// TTSDeployment may point at different deployments of the same resource.
// The model is optional; when nil the transcript is synthesized verbatim.
func NewPipeline(whisper, tts Config, model llm.ChatModel) (*Pipeline, error) {
	transcriber, err := NewTranscriber(whisper)
	if err != nil {
		return nil, fmt.Errorf("pipeline transcriber: %w", err)
	}
	synthesizer, err := NewSynthesizer(tts)
	if err != nil {
		return nil, fmt.Errorf("pipeline synthesizer: %w", err)
	}
	return &Pipeline{transcriber: transcriber, synthesizer: synthesizer, transform: model}, nil
}

// PipelineResult carries the intermediate texts alongside the output audio.
type PipelineResult struct {
	Transcript string
	Reply      string
	Audio      []byte
}

// Process transcribes the input audio file, optionally transforms the text
// through the chat model and synthesizes the result.
func (p *Pipeline) Process(ctx context.Context, audioPath string, opts SynthesizeOptions) (*PipelineResult, error) {
	transcript, err := p.transcriber.TranscribeFile(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	reply := transcript
	if p.transform != nil {
		reply, err = llm.Prompt(ctx, p.transform, transcript)
		if err != nil {
			return nil, fmt.Errorf("pipeline transform failed: %w", err)
		}
	}

	audio, err := p.synthesizer.Synthesize(ctx, reply, opts)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("transcript_chars", len(transcript)).
		Int("reply_chars", len(reply)).
		Msg("completed speech-to-speech pipeline")

	return &PipelineResult{Transcript: transcript, Reply: reply, Audio: audio}, nil
}
