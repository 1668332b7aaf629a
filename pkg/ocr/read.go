package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/elsai-io/elsai-go/pkg/config"
	"github.com/elsai-io/elsai-go/pkg/types"
)

// ReadConfig configures the Azure Cognitive Services Read extractor. Empty
// fields fall back to AZURE_ENDPOINT and AZURE_SUBSCRIPTION_KEY.
type ReadConfig struct {
	Endpoint string
	APIKey   string
	// PollInterval between result checks. Defaults to 1s.
	PollInterval time.Duration
}

// Read extracts printed and handwritten text with the Read v3.2 API.
type Read struct {
	cfg        ReadConfig
	httpClient *http.Client
}

// NewRead creates the extractor.
func NewRead(cfg ReadConfig) (*Read, error) {
	cfg.Endpoint = config.FirstNonEmpty(cfg.Endpoint, os.Getenv("AZURE_ENDPOINT"))
	cfg.APIKey = config.FirstNonEmpty(cfg.APIKey, os.Getenv("AZURE_SUBSCRIPTION_KEY"))

	var missing [][2]string
	if cfg.Endpoint == "" {
		missing = append(missing, [2]string{"endpoint", "AZURE_ENDPOINT"})
	}
	if cfg.APIKey == "" {
		missing = append(missing, [2]string{"api_key", "AZURE_SUBSCRIPTION_KEY"})
	}
	if len(missing) > 0 {
		return nil, config.MissingError(missing...)
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil

	return &Read{cfg: cfg, httpClient: retryClient.StandardClient()}, nil
}

type readResult struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		ReadResults []struct {
			Page  int `json:"page"`
			Lines []struct {
				Text string `json:"text"`
			} `json:"lines"`
		} `json:"readResults"`
	} `json:"analyzeResult"`
}

// Extract runs the Read API over a local image or PDF and returns one
// document per page.
func (r *Read) Extract(ctx context.Context, localPath string) ([]types.Document, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", localPath, err)
	}
	return r.extract(ctx, data, localPath)
}

// ExtractBytes runs the Read API over in-memory image bytes.
func (r *Read) ExtractBytes(ctx context.Context, data []byte, source string) ([]types.Document, error) {
	return r.extract(ctx, data, source)
}

func (r *Read) extract(ctx context.Context, data []byte, source string) ([]types.Document, error) {
	url := strings.TrimRight(r.cfg.Endpoint, "/") + "/vision/v3.2/read/analyze"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", r.cfg.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("read API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("read API returned %d: %s", resp.StatusCode, string(body))
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return nil, fmt.Errorf("read API response missing Operation-Location header")
	}

	log.Debug().Str("source", source).Msg("started read analysis")

	result, err := r.poll(ctx, operationURL)
	if err != nil {
		return nil, err
	}

	docs := make([]types.Document, 0, len(result.AnalyzeResult.ReadResults))
	for _, page := range result.AnalyzeResult.ReadResults {
		lines := make([]string, len(page.Lines))
		for i, l := range page.Lines {
			lines[i] = l.Text
		}
		doc := types.NewDocument(strings.Join(lines, "\n"), source)
		doc.Page = page.Page
		doc.Metadata["page"] = page.Page
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *Read) poll(ctx context.Context, operationURL string) (*readResult, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", r.cfg.APIKey)

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("read API poll failed: %w", err)
		}

		var result readResult
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode read result: %w", err)
		}

		switch result.Status {
		case "succeeded":
			return &result, nil
		case "failed":
			return nil, fmt.Errorf("read analysis failed")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.cfg.PollInterval):
		}
	}
}
