package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/elsai-io/elsai-go/pkg/types"
)

// DOCX extracts paragraph text from a Word document.
func DOCX(path string) (types.Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return types.Document{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer zr.Close()

	var docXML io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return types.Document{}, fmt.Errorf("failed to read document body: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return types.Document{}, fmt.Errorf("%s has no word/document.xml", path)
	}
	defer docXML.Close()

	text, paragraphs, err := docxText(docXML)
	if err != nil {
		return types.Document{}, fmt.Errorf("failed to parse document body: %w", err)
	}

	doc := types.NewDocument(text, path)
	doc.Metadata["paragraphs"] = paragraphs
	return doc, nil
}

// docxText walks the WordprocessingML stream, joining runs within a paragraph
// and separating paragraphs with newlines.
func docxText(r io.Reader) (string, int, error) {
	decoder := xml.NewDecoder(r)

	var b strings.Builder
	var paragraphs int
	var inText bool

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", 0, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs++
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n"), paragraphs, nil
}
