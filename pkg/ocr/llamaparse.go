package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/elsai-io/elsai-go/pkg/config"
	"github.com/elsai-io/elsai-go/pkg/types"
)

// LlamaParseConfig configures the LlamaParse extractor. Empty fields fall
// back to LLAMA_CLOUD_API_KEY and LLAMA_CLOUD_BASE_URL.
type LlamaParseConfig struct {
	APIKey  string
	BaseURL string
	// ResultFormat is markdown or text. Defaults to markdown.
	ResultFormat string
	// PollInterval between job checks. Defaults to 2s.
	PollInterval time.Duration
}

// LlamaParse parses documents through the LlamaParse cloud API.
type LlamaParse struct {
	cfg        LlamaParseConfig
	httpClient *http.Client
}

// NewLlamaParse creates the extractor.
func NewLlamaParse(cfg LlamaParseConfig) (*LlamaParse, error) {
	cfg.APIKey = config.FirstNonEmpty(cfg.APIKey, os.Getenv("LLAMA_CLOUD_API_KEY"))
	cfg.BaseURL = config.FirstNonEmpty(cfg.BaseURL, os.Getenv("LLAMA_CLOUD_BASE_URL"), "https://api.cloud.llamaindex.ai")

	if cfg.APIKey == "" {
		return nil, config.MissingError([2]string{"api_key", "LLAMA_CLOUD_API_KEY"})
	}
	if cfg.ResultFormat == "" {
		cfg.ResultFormat = "markdown"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil

	return &LlamaParse{cfg: cfg, httpClient: retryClient.StandardClient()}, nil
}

// Extract uploads a file, waits for parsing, and returns the parsed content
// as a single document.
func (l *LlamaParse) Extract(ctx context.Context, localPath string) (types.Document, error) {
	jobID, err := l.upload(ctx, localPath)
	if err != nil {
		return types.Document{}, err
	}

	log.Debug().Str("job_id", jobID).Str("file", localPath).Msg("started llamaparse job")

	if err := l.waitForJob(ctx, jobID); err != nil {
		return types.Document{}, err
	}

	content, err := l.result(ctx, jobID)
	if err != nil {
		return types.Document{}, err
	}

	doc := types.NewDocument(content, localPath)
	doc.Metadata["job_id"] = jobID
	doc.Metadata["format"] = l.cfg.ResultFormat
	return doc, nil
}

func (l *LlamaParse) upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(localPath))
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", localPath, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.BaseURL+"/api/parsing/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+l.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		ID string `json:"id"`
	}
	if err := l.doJSON(req, &out); err != nil {
		return "", fmt.Errorf("llamaparse upload failed: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("llamaparse upload returned no job ID")
	}
	return out.ID, nil
}

func (l *LlamaParse) waitForJob(ctx context.Context, jobID string) error {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.BaseURL+"/api/parsing/job/"+jobID, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+l.cfg.APIKey)

		var out struct {
			Status string `json:"status"`
		}
		if err := l.doJSON(req, &out); err != nil {
			return fmt.Errorf("llamaparse job check failed: %w", err)
		}

		switch strings.ToUpper(out.Status) {
		case "SUCCESS", "COMPLETED":
			return nil
		case "ERROR", "FAILED":
			return fmt.Errorf("llamaparse job %s failed", jobID)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cfg.PollInterval):
		}
	}
}

func (l *LlamaParse) result(ctx context.Context, jobID string) (string, error) {
	url := fmt.Sprintf("%s/api/parsing/job/%s/result/%s", l.cfg.BaseURL, jobID, l.cfg.ResultFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+l.cfg.APIKey)

	var out map[string]interface{}
	if err := l.doJSON(req, &out); err != nil {
		return "", fmt.Errorf("llamaparse result fetch failed: %w", err)
	}

	if content, ok := out[l.cfg.ResultFormat].(string); ok {
		return content, nil
	}
	return "", fmt.Errorf("llamaparse result missing %s content", l.cfg.ResultFormat)
}

func (l *LlamaParse) doJSON(req *http.Request, out interface{}) error {
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s returned %d: %s", req.Method, req.URL.Path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
