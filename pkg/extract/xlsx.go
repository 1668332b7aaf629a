package extract

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/elsai-io/elsai-go/pkg/types"
)

// XLSX extracts text from a workbook, one document per sheet. Cells in a row
// are tab-separated, rows newline-separated.
func XLSX(path string) ([]types.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var docs []types.Document
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}

		lines := make([]string, len(rows))
		for i, row := range rows {
			lines[i] = strings.Join(row, "\t")
		}

		doc := types.NewDocument(strings.TrimRight(strings.Join(lines, "\n"), "\n"), path)
		doc.Metadata["sheet"] = sheet
		doc.Metadata["rows"] = len(rows)
		docs = append(docs, doc)
	}
	return docs, nil
}
