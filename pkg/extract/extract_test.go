package extract

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,age\nalice,30\nbob,25\n"), 0o644))

	doc, err := CSV(path)
	require.NoError(t, err)
	assert.Equal(t, "name: alice, age: 30\nname: bob, age: 25", doc.Content)
	assert.Equal(t, 2, doc.Metadata["rows"])
	assert.Equal(t, 2, doc.Metadata["columns"])
	assert.Equal(t, path, doc.Source)
}

func TestCSVDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,age\nalice,30\nbob,25\n"), 0o644))

	docs, err := CSVDocuments(path)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "name: alice\nage: 30", docs[0].Content)
	assert.Equal(t, 1, docs[0].Metadata["row"])
	assert.Equal(t, 2, docs[1].Metadata["row"])
}

func TestCSVRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,age\nalice,30\n"), 0o644))

	header, rows, err := CSVRows(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, header)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"alice", "30"}, rows[0])
}

func writeDOCX(t *testing.T, documentXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.docx")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return path
}

func TestDOCX(t *testing.T) {
	path := writeDOCX(t, `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Hello </w:t></w:r><w:r><w:t>world</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	doc, err := DOCX(path)
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nSecond paragraph", doc.Content)
	assert.Equal(t, 2, doc.Metadata["paragraphs"])
}

func TestDOCXMissingBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = DOCX(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word/document.xml")
}

func TestXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")

	wb := excelize.NewFile()
	require.NoError(t, wb.SetCellValue("Sheet1", "A1", "name"))
	require.NoError(t, wb.SetCellValue("Sheet1", "B1", "age"))
	require.NoError(t, wb.SetCellValue("Sheet1", "A2", "alice"))
	require.NoError(t, wb.SetCellValue("Sheet1", "B2", 30))
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	docs, err := XLSX(path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Sheet1", docs[0].Metadata["sheet"])
	assert.Equal(t, "name\tage\nalice\t30", docs[0].Content)
}

func TestPDFRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, err := PDF(path)
	require.Error(t, err)
}

func TestTikaExtract(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tika", r.URL.Path)
		w.Write([]byte("  extracted by tika\n"))
	}))
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x1, 0x2}, 0o644))

	doc, err := NewTika(ts.URL).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "extracted by tika", doc.Content)
}
