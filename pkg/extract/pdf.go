package extract

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/elsai-io/elsai-go/pkg/types"
)

// PDF extracts text from a PDF, one document per page. Pages without text
// content are skipped.
func PDF(path string) ([]types.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var docs []types.Document
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d of %s: %w", i, path, err)
		}
		if text == "" {
			continue
		}

		doc := types.NewDocument(text, path)
		doc.Page = i
		doc.Metadata["page"] = i
		docs = append(docs, doc)
	}
	return docs, nil
}
