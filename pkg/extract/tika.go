package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/go-tika/tika"

	"github.com/elsai-io/elsai-go/pkg/config"
	"github.com/elsai-io/elsai-go/pkg/types"
)

// TikaExtractor is the catch-all extractor for formats the dedicated parsers
// do not cover, backed by an Apache Tika server.
type TikaExtractor struct {
	client *tika.Client
}

// NewTika creates the extractor. An empty serverURL falls back to TIKA_URL,
// then http://localhost:9998.
func NewTika(serverURL string) *TikaExtractor {
	serverURL = config.FirstNonEmpty(serverURL, os.Getenv("TIKA_URL"), "http://localhost:9998")
	return &TikaExtractor{client: tika.NewClient(nil, serverURL)}
}

// Extract parses a local file into one document.
func (t *TikaExtractor) Extract(ctx context.Context, path string) (types.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Document{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	text, err := t.client.Parse(ctx, f)
	if err != nil {
		return types.Document{}, fmt.Errorf("tika parse failed for %s: %w", path, err)
	}

	return types.NewDocument(strings.TrimSpace(text), path), nil
}
