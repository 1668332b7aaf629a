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

const documentIntelligenceAPIVersion = "2023-07-31"

// DocumentIntelligenceConfig configures the Azure Document Intelligence
// extractor. Empty fields fall back to VISION_ENDPOINT
// and VISION_KEY.
type DocumentIntelligenceConfig struct {
	Endpoint string
	APIKey   string
	// Model defaults to prebuilt-layout.
	Model string
	// Pages optionally restricts analysis, e.g. "1-3,5".
	Pages string
	// PollInterval between result checks. Defaults to 2s.
	PollInterval time.Duration
}

// DocumentIntelligence extracts text and tables with Azure Document
// Intelligence.
type DocumentIntelligence struct {
	cfg        DocumentIntelligenceConfig
	httpClient *http.Client
}

// Table is a grid of cell texts extracted from a document.
type Table struct {
	Page  int
	Rows  int
	Cols  int
	Cells [][]string
}

// NewDocumentIntelligence creates the extractor.
func NewDocumentIntelligence(cfg DocumentIntelligenceConfig) (*DocumentIntelligence, error) {
	cfg.Endpoint = config.FirstNonEmpty(cfg.Endpoint, os.Getenv("VISION_ENDPOINT"))
	cfg.APIKey = config.FirstNonEmpty(cfg.APIKey, os.Getenv("VISION_KEY"))

	var missing [][2]string
	if cfg.Endpoint == "" {
		missing = append(missing, [2]string{"endpoint", "VISION_ENDPOINT"})
	}
	if cfg.APIKey == "" {
		missing = append(missing, [2]string{"api_key", "VISION_KEY"})
	}
	if len(missing) > 0 {
		return nil, config.MissingError(missing...)
	}

	if cfg.Model == "" {
		cfg.Model = "prebuilt-layout"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil

	return &DocumentIntelligence{
		cfg:        cfg,
		httpClient: retryClient.StandardClient(),
	}, nil
}

type analyzeResult struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		Content string `json:"content"`
		Pages   []struct {
			PageNumber int `json:"pageNumber"`
			Lines      []struct {
				Content string `json:"content"`
			} `json:"lines"`
		} `json:"pages"`
		Tables []struct {
			RowCount    int `json:"rowCount"`
			ColumnCount int `json:"columnCount"`
			Cells       []struct {
				RowIndex    int    `json:"rowIndex"`
				ColumnIndex int    `json:"columnIndex"`
				Content     string `json:"content"`
			} `json:"cells"`
			BoundingRegions []struct {
				PageNumber int `json:"pageNumber"`
			} `json:"boundingRegions"`
		} `json:"tables"`
	} `json:"analyzeResult"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Extract analyzes a local file and returns one document per page.
func (d *DocumentIntelligence) Extract(ctx context.Context, localPath string) ([]types.Document, error) {
	result, err := d.analyze(ctx, localPath)
	if err != nil {
		return nil, err
	}

	docs := make([]types.Document, 0, len(result.AnalyzeResult.Pages))
	for _, page := range result.AnalyzeResult.Pages {
		lines := make([]string, len(page.Lines))
		for i, l := range page.Lines {
			lines[i] = l.Content
		}
		doc := types.NewDocument(strings.Join(lines, "\n"), localPath)
		doc.Page = page.PageNumber
		doc.Metadata["page"] = page.PageNumber
		docs = append(docs, doc)
	}
	return docs, nil
}

// ExtractTables analyzes a local file and returns its tables.
func (d *DocumentIntelligence) ExtractTables(ctx context.Context, localPath string) ([]Table, error) {
	result, err := d.analyze(ctx, localPath)
	if err != nil {
		return nil, err
	}

	tables := make([]Table, 0, len(result.AnalyzeResult.Tables))
	for _, t := range result.AnalyzeResult.Tables {
		table := Table{Rows: t.RowCount, Cols: t.ColumnCount}
		if len(t.BoundingRegions) > 0 {
			table.Page = t.BoundingRegions[0].PageNumber
		}

		table.Cells = make([][]string, t.RowCount)
		for i := range table.Cells {
			table.Cells[i] = make([]string, t.ColumnCount)
		}
		for _, cell := range t.Cells {
			if cell.RowIndex < t.RowCount && cell.ColumnIndex < t.ColumnCount {
				table.Cells[cell.RowIndex][cell.ColumnIndex] = cell.Content
			}
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (d *DocumentIntelligence) analyze(ctx context.Context, localPath string) (*analyzeResult, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", localPath, err)
	}

	url := fmt.Sprintf("%s/formrecognizer/documentModels/%s:analyze?api-version=%s",
		strings.TrimRight(d.cfg.Endpoint, "/"), d.cfg.Model, documentIntelligenceAPIVersion)
	if d.cfg.Pages != "" {
		url += "&pages=" + d.cfg.Pages
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", d.cfg.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("document intelligence request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("document intelligence returned %d: %s", resp.StatusCode, string(body))
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return nil, fmt.Errorf("document intelligence response missing Operation-Location header")
	}

	log.Debug().Str("file", localPath).Str("model", d.cfg.Model).Msg("started document intelligence analysis")

	return d.poll(ctx, operationURL)
}

func (d *DocumentIntelligence) poll(ctx context.Context, operationURL string) (*analyzeResult, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", d.cfg.APIKey)

		resp, err := d.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("document intelligence poll failed: %w", err)
		}

		var result analyzeResult
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode analysis result: %w", err)
		}

		switch result.Status {
		case "succeeded":
			return &result, nil
		case "failed":
			return nil, fmt.Errorf("document analysis failed: %s: %s", result.Error.Code, result.Error.Message)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.cfg.PollInterval):
		}
	}
}
