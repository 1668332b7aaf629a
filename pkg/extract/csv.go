// Package extract pulls plain text out of common document formats.
package extract

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/elsai-io/elsai-go/pkg/types"
)

// CSV reads a CSV file and renders each row as "header: value" pairs, one
// document for the whole file.
func CSV(path string) (types.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Document{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return types.Document{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return types.NewDocument("", path), nil
	}

	header := records[0]
	var b strings.Builder
	for _, row := range records[1:] {
		pairs := make([]string, 0, len(row))
		for i, cell := range row {
			name := fmt.Sprintf("column_%d", i+1)
			if i < len(header) {
				name = header[i]
			}
			pairs = append(pairs, name+": "+cell)
		}
		b.WriteString(strings.Join(pairs, ", "))
		b.WriteString("\n")
	}

	doc := types.NewDocument(strings.TrimRight(b.String(), "\n"), path)
	doc.Metadata["rows"] = len(records) - 1
	doc.Metadata["columns"] = len(header)
	return doc, nil
}

// CSVDocuments reads a CSV file and returns one document per data row,
// rendered as "header: value" pairs.
func CSVDocuments(path string) ([]types.Document, error) {
	header, rows, err := CSVRows(path)
	if err != nil {
		return nil, err
	}

	docs := make([]types.Document, 0, len(rows))
	for n, row := range rows {
		pairs := make([]string, 0, len(row))
		for i, cell := range row {
			name := fmt.Sprintf("column_%d", i+1)
			if i < len(header) {
				name = header[i]
			}
			pairs = append(pairs, name+": "+cell)
		}

		doc := types.NewDocument(strings.Join(pairs, "\n"), path)
		doc.Metadata["row"] = n + 1
		docs = append(docs, doc)
	}
	return docs, nil
}

// CSVRows reads a CSV file and returns the header and data rows.
func CSVRows(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}
