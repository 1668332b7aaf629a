package speech

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Resolve_Missing(t *testing.T) {
	for _, v := range []string{"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_API_VERSION", "AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_DEPLOYMENT_ID"} {
		t.Setenv(v, "")
	}

	cfg := Config{}
	err := cfg.resolve()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AZURE_OPENAI_API_KEY")
	assert.Contains(t, err.Error(), "AZURE_OPENAI_DEPLOYMENT_ID")
}

func TestConfig_Resolve_EnvFallback(t *testing.T) {
	t.Setenv("AZURE_OPENAI_API_KEY", "key")
	t.Setenv("AZURE_OPENAI_API_VERSION", "2024-02-01")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT_ID", "whisper")

	cfg := Config{}
	require.NoError(t, cfg.resolve())
	assert.Equal(t, "whisper", cfg.DeploymentID)
}

func TestEncodeWAV(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1}
	wav := EncodeWAV(samples, 24000)

	require.Len(t, wav, 44+len(samples)*2)
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, uint32(24000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]))
	// data chunk length
	assert.Equal(t, uint32(len(samples)*2), binary.LittleEndian.Uint32(wav[40:44]))
	// first sample is silence
	assert.Equal(t, int16(0), int16(binary.LittleEndian.Uint16(wav[44:46])))
}

func TestSynthesizeOptions_Defaults(t *testing.T) {
	opts := SynthesizeOptions{}
	require.NoError(t, opts.defaults())
	assert.Equal(t, "alloy", opts.Voice)
	assert.Equal(t, "mp3", opts.Format)
	assert.InDelta(t, 1.0, opts.Speed, 1e-9)

	bad := SynthesizeOptions{Speed: 9}
	require.Error(t, bad.defaults())
}

func newTestTranscriber(t *testing.T, handler http.HandlerFunc) *Transcriber {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("key")
	cfg.BaseURL = server.URL
	return &Transcriber{api: openai.NewClientWithConfig(cfg), deployment: "whisper"}
}

func TestTranscriber_TranscribeBuffer(t *testing.T) {
	transcriber := newTestTranscriber(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(32<<20))
		assert.Equal(t, "whisper", r.FormValue("model"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "buffer.wav", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.AudioResponse{Text: "hello world"})
	})

	text, err := transcriber.TranscribeBuffer(context.Background(), []float32{0, 0.1, -0.1}, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestTranscriber_EmptyInputs(t *testing.T) {
	transcriber := &Transcriber{}

	_, err := transcriber.TranscribeFile(context.Background(), "")
	require.Error(t, err)

	_, err = transcriber.TranscribeBuffer(context.Background(), nil, 24000)
	require.Error(t, err)
}

func TestSynthesizer_Synthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/audio/speech")

		var req openai.CreateSpeechRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Input)
		assert.Equal(t, openai.SpeechVoice("nova"), req.Voice)

		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	cfg := openai.DefaultConfig("key")
	cfg.BaseURL = server.URL
	synth := &Synthesizer{api: openai.NewClientWithConfig(cfg), deployment: "tts"}

	audio, err := synth.Synthesize(context.Background(), "hello", SynthesizeOptions{Voice: "nova"})
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), audio)
}
