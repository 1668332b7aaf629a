package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/elsai-io/elsai-go/pkg/config"
	"github.com/elsai-io/elsai-go/pkg/types"
)

// DefaultVisionModel is used when no model is configured.
const DefaultVisionModel = "gpt-4o"

const visionInstruction = "Extract all text from this image exactly as it appears, preserving the reading order. Return only the extracted text."

// PageRenderer converts a document into one image per page so multipage
// formats can be pushed through the vision model.
type PageRenderer interface {
	RenderPages(ctx context.Context, localPath string) ([][]byte, error)
}

// VisionConfig configures the vision OCR extractor. An empty APIKey falls
// back to OPENAI_API_KEY.
type VisionConfig struct {
	APIKey string
	Model  string
}

// Vision extracts text from images with a multimodal chat model.
type Vision struct {
	client   *openai.Client
	model    string
	renderer PageRenderer
}

// NewVision creates the extractor. renderer may be nil when only single
// images are processed.
func NewVision(cfg VisionConfig, renderer PageRenderer) (*Vision, error) {
	cfg.APIKey = config.FirstNonEmpty(cfg.APIKey, os.Getenv("OPENAI_API_KEY"))
	if cfg.APIKey == "" {
		return nil, config.MissingError([2]string{"api_key", "OPENAI_API_KEY"})
	}
	if cfg.Model == "" {
		cfg.Model = DefaultVisionModel
	}

	return &Vision{
		client:   openai.NewClient(cfg.APIKey),
		model:    cfg.Model,
		renderer: renderer,
	}, nil
}

// ExtractImage runs OCR over one image file.
func (v *Vision) ExtractImage(ctx context.Context, localPath string) (types.Document, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return types.Document{}, fmt.Errorf("failed to read %s: %w", localPath, err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(localPath))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/png"
	}

	text, err := v.extractBytes(ctx, data, mimeType)
	if err != nil {
		return types.Document{}, err
	}

	doc := types.NewDocument(text, localPath)
	doc.Page = 1
	return doc, nil
}

// Extract renders a multipage document to images and runs OCR page by page.
// It requires a renderer.
func (v *Vision) Extract(ctx context.Context, localPath string) ([]types.Document, error) {
	if v.renderer == nil {
		doc, err := v.ExtractImage(ctx, localPath)
		if err != nil {
			return nil, err
		}
		return []types.Document{doc}, nil
	}

	images, err := v.renderer.RenderPages(ctx, localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", localPath, err)
	}

	docs := make([]types.Document, 0, len(images))
	for i, img := range images {
		text, err := v.extractBytes(ctx, img, "image/png")
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d: %w", i+1, err)
		}
		doc := types.NewDocument(text, localPath)
		doc.Page = i + 1
		doc.Metadata["page"] = i + 1
		docs = append(docs, doc)
	}
	return docs, nil
}

func (v *Vision) extractBytes(ctx context.Context, data []byte, mimeType string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: v.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: visionInstruction},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
