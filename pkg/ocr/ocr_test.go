package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	textracttypes "github.com/aws/aws-sdk-go-v2/service/textract/types"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlocksToDocuments(t *testing.T) {
	page1 := int32(1)
	page2 := int32(2)
	blocks := []textracttypes.Block{
		{BlockType: textracttypes.BlockTypePage, Page: &page1},
		{BlockType: textracttypes.BlockTypeLine, Page: &page1, Text: aws.String("first line")},
		{BlockType: textracttypes.BlockTypeLine, Page: &page1, Text: aws.String("second line")},
		{BlockType: textracttypes.BlockTypeWord, Page: &page1, Text: aws.String("ignored")},
		{BlockType: textracttypes.BlockTypeLine, Page: &page2, Text: aws.String("next page")},
	}

	docs := blocksToDocuments(blocks, "s3://bucket/key")
	require.Len(t, docs, 2)
	assert.Equal(t, "first line\nsecond line", docs[0].Content)
	assert.Equal(t, 1, docs[0].Page)
	assert.Equal(t, "next page", docs[1].Content)
	assert.Equal(t, 2, docs[1].Page)
	assert.Equal(t, "s3://bucket/key", docs[0].Source)
}

func TestNewTextractMissingCreds(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")

	_, err := NewTextract(context.Background(), TextractConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AWS_ACCESS_KEY_ID")
}

func TestNewTextractMissingBucket(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("S3_BUCKET", "")

	_, err := NewTextract(context.Background(), TextractConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_BUCKET")
}

func TestDocumentIntelligenceExtract(t *testing.T) {
	var polls int32
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/formrecognizer/documentModels/prebuilt-layout:analyze":
			assert.Equal(t, "secret", r.Header.Get("Ocp-Apim-Subscription-Key"))
			w.Header().Set("Operation-Location", ts.URL+"/results/op-1")
			w.WriteHeader(http.StatusAccepted)
		case "/results/op-1":
			if atomic.AddInt32(&polls, 1) == 1 {
				json.NewEncoder(w).Encode(map[string]string{"status": "running"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "succeeded",
				"analyzeResult": map[string]interface{}{
					"content": "hello world",
					"pages": []map[string]interface{}{
						{
							"pageNumber": 1,
							"lines":      []map[string]string{{"content": "hello"}, {"content": "world"}},
						},
					},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	di, err := NewDocumentIntelligence(DocumentIntelligenceConfig{
		Endpoint:     ts.URL,
		APIKey:       "secret",
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF-"), 0o644))

	docs, err := di.Extract(context.Background(), file)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "hello\nworld", docs[0].Content)
	assert.Equal(t, 1, docs[0].Page)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&polls), int32(2))
}

func TestDocumentIntelligenceExtractTables(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Operation-Location", ts.URL+"/results/op-2")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "succeeded",
			"analyzeResult": map[string]interface{}{
				"tables": []map[string]interface{}{
					{
						"rowCount":    2,
						"columnCount": 2,
						"cells": []map[string]interface{}{
							{"rowIndex": 0, "columnIndex": 0, "content": "name"},
							{"rowIndex": 0, "columnIndex": 1, "content": "total"},
							{"rowIndex": 1, "columnIndex": 0, "content": "alice"},
							{"rowIndex": 1, "columnIndex": 1, "content": "42"},
						},
						"boundingRegions": []map[string]int{{"pageNumber": 3}},
					},
				},
			},
		})
	}))
	defer ts.Close()

	di, err := NewDocumentIntelligence(DocumentIntelligenceConfig{
		Endpoint:     ts.URL,
		APIKey:       "secret",
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF-"), 0o644))

	tables, err := di.ExtractTables(context.Background(), file)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, 3, tables[0].Page)
	assert.Equal(t, [][]string{{"name", "total"}, {"alice", "42"}}, tables[0].Cells)
}

func TestNewDocumentIntelligenceMissingConfig(t *testing.T) {
	t.Setenv("VISION_ENDPOINT", "")
	t.Setenv("VISION_KEY", "")

	_, err := NewDocumentIntelligence(DocumentIntelligenceConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VISION_ENDPOINT")
	assert.Contains(t, err.Error(), "VISION_KEY")
}

func TestReadExtractBytes(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/vision/v3.2/read/analyze":
			w.Header().Set("Operation-Location", ts.URL+"/results/read-1")
			w.WriteHeader(http.StatusAccepted)
		case "/results/read-1":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "succeeded",
				"analyzeResult": map[string]interface{}{
					"readResults": []map[string]interface{}{
						{
							"page":  1,
							"lines": []map[string]string{{"text": "scanned text"}},
						},
					},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	r, err := NewRead(ReadConfig{Endpoint: ts.URL, APIKey: "secret", PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	docs, err := r.ExtractBytes(context.Background(), []byte{0x89, 0x50}, "scan.png")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "scanned text", docs[0].Content)
	assert.Equal(t, "scan.png", docs[0].Source)
}

func TestLlamaParseExtract(t *testing.T) {
	var polls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer llx-key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/parsing/upload":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			_, header, err := r.FormFile("file")
			require.NoError(t, err)
			assert.Equal(t, "contract.pdf", header.Filename)
			json.NewEncoder(w).Encode(map[string]string{"id": "job-1"})
		case "/api/parsing/job/job-1":
			status := "PENDING"
			if atomic.AddInt32(&polls, 1) > 1 {
				status = "SUCCESS"
			}
			json.NewEncoder(w).Encode(map[string]string{"status": status})
		case "/api/parsing/job/job-1/result/markdown":
			json.NewEncoder(w).Encode(map[string]string{"markdown": "# Contract\n\nterms"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	lp, err := NewLlamaParse(LlamaParseConfig{
		APIKey:       "llx-key",
		BaseURL:      ts.URL,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "contract.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF-"), 0o644))

	doc, err := lp.Extract(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "# Contract\n\nterms", doc.Content)
	assert.Equal(t, "job-1", doc.Metadata["job_id"])
}

func TestVisionExtractImage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		require.Len(t, req.Messages[0].MultiContent, 2)
		assert.Contains(t, req.Messages[0].MultiContent[1].ImageURL.URL, "data:image/png;base64,")

		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "text from image"}},
			},
		})
	}))
	defer ts.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = ts.URL + "/v1"
	v := &Vision{client: openai.NewClientWithConfig(cfg), model: DefaultVisionModel}

	file := filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, os.WriteFile(file, []byte{0x89, 0x50, 0x4e, 0x47}, 0o644))

	doc, err := v.ExtractImage(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "text from image", doc.Content)
	assert.Equal(t, 1, doc.Page)
}

type stubRenderer struct {
	pages [][]byte
}

func (s *stubRenderer) RenderPages(_ context.Context, _ string) ([][]byte, error) {
	return s.pages, nil
}

func TestVisionExtractMultipage(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: map[int32]string{1: "page one", 2: "page two"}[n]}},
			},
		})
	}))
	defer ts.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = ts.URL + "/v1"
	v := &Vision{
		client:   openai.NewClientWithConfig(cfg),
		model:    DefaultVisionModel,
		renderer: &stubRenderer{pages: [][]byte{{1}, {2}}},
	}

	docs, err := v.Extract(context.Background(), "any.pdf")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "page one", docs[0].Content)
	assert.Equal(t, 2, docs[1].Page)
}
