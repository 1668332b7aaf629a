// Package chunker splits documents into retrieval-sized pieces.
package chunker

import (
	"strings"

	"github.com/tiktoken-go/tokenizer"

	"github.com/elsai-io/elsai-go/pkg/types"
)

// PageChunks splits text at runs of blank lines, treating each block as a
// page-like chunk.
func PageChunks(text, source string) []types.Document {
	var docs []types.Document
	for i, block := range splitBlankLines(text) {
		doc := types.NewDocument(block, source)
		doc.Page = i + 1
		doc.Metadata["page"] = i + 1
		docs = append(docs, doc)
	}
	return docs
}

func splitBlankLines(text string) []string {
	var blocks []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return blocks
}

// MarkdownHeaderChunks splits markdown at headings. Each chunk carries its
// heading trail in metadata under "headers".
func MarkdownHeaderChunks(text, source string) []types.Document {
	var docs []types.Document
	var current []string
	trail := map[int]string{}

	flush := func() {
		content := strings.TrimSpace(strings.Join(current, "\n"))
		current = nil
		if content == "" {
			return
		}

		doc := types.NewDocument(content, source)
		var headers []string
		for level := 1; level <= 6; level++ {
			if h, ok := trail[level]; ok {
				headers = append(headers, h)
			}
		}
		doc.Metadata["headers"] = strings.Join(headers, " > ")
		docs = append(docs, doc)
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if level := headingLevel(trimmed); level > 0 {
			flush()
			trail[level] = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			for l := level + 1; l <= 6; l++ {
				delete(trail, l)
			}
			current = append(current, line)
			continue
		}
		current = append(current, line)
	}
	flush()
	return docs
}

// StripHeadings removes leading markdown heading lines from chunk contents,
// leaving the heading trail in metadata only.
func StripHeadings(docs []types.Document) []types.Document {
	for i, doc := range docs {
		lines := strings.Split(doc.Content, "\n")
		for len(lines) > 0 && headingLevel(strings.TrimSpace(lines[0])) > 0 {
			lines = lines[1:]
		}
		docs[i].Content = strings.TrimSpace(strings.Join(lines, "\n"))
	}
	return docs
}

func headingLevel(line string) int {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0
	}
	if level == len(line) || line[level] == ' ' {
		return level
	}
	return 0
}

// recursiveSeparators, tried in order, mirror the common text splitter
// hierarchy.
var recursiveSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveChunks splits text into chunks of at most size characters, with
// overlap characters repeated between consecutive chunks. It prefers to split
// at paragraph, then line, then word boundaries.
func RecursiveChunks(text, source string, size, overlap int) []types.Document {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	pieces := splitRecursive(text, size, recursiveSeparators)
	chunks := mergeWithOverlap(pieces, size, overlap)

	docs := make([]types.Document, 0, len(chunks))
	for i, chunk := range chunks {
		doc := types.NewDocument(chunk, source)
		doc.Metadata["chunk"] = i
		docs = append(docs, doc)
	}
	return docs
}

func splitRecursive(text string, size int, separators []string) []string {
	if len(text) <= size {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	sep := separators[0]
	rest := separators[1:]

	if sep == "" {
		// Character-level fallback.
		var out []string
		for len(text) > size {
			out = append(out, text[:size])
			text = text[size:]
		}
		if text != "" {
			out = append(out, text)
		}
		return out
	}

	var out []string
	for _, part := range strings.Split(text, sep) {
		if len(part) > size {
			out = append(out, splitRecursive(part, size, rest)...)
		} else if strings.TrimSpace(part) != "" {
			out = append(out, part)
		}
	}
	return out
}

// mergeWithOverlap packs pieces into chunks up to size, carrying the tail of
// each chunk into the next.
func mergeWithOverlap(pieces []string, size, overlap int) []string {
	var chunks []string
	var current strings.Builder

	for _, piece := range pieces {
		if current.Len() > 0 && current.Len()+1+len(piece) > size {
			chunk := current.String()
			chunks = append(chunks, chunk)
			current.Reset()
			// Seed the next chunk with the tail of this one, unless the
			// carried tail plus the piece would itself exceed the limit.
			if overlap > 0 && len(chunk) > overlap {
				tail := chunk[len(chunk)-overlap:]
				if len(tail)+1+len(piece) <= size {
					current.WriteString(tail)
				}
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(piece)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// TokenChunks splits text into chunks of at most maxTokens cl100k_base
// tokens. When the encoding is unavailable it approximates with four
// characters per token.
func TokenChunks(text, source string, maxTokens int) ([]types.Document, error) {
	if maxTokens <= 0 {
		maxTokens = 512
	}

	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return RecursiveChunks(text, source, maxTokens*4, 0), nil
	}

	ids, _, err := codec.Encode(text)
	if err != nil {
		return nil, err
	}

	var docs []types.Document
	for start := 0; start < len(ids); start += maxTokens {
		end := start + maxTokens
		if end > len(ids) {
			end = len(ids)
		}

		chunk, err := codec.Decode(ids[start:end])
		if err != nil {
			return nil, err
		}

		doc := types.NewDocument(chunk, source)
		doc.Metadata["chunk"] = len(docs)
		doc.Metadata["tokens"] = end - start
		docs = append(docs, doc)
	}
	return docs, nil
}
