package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageChunks(t *testing.T) {
	text := "page one line one\npage one line two\n\n\npage two\n\npage three"

	docs := PageChunks(text, "test.txt")
	require.Len(t, docs, 3)
	assert.Equal(t, "page one line one\npage one line two", docs[0].Content)
	assert.Equal(t, 1, docs[0].Page)
	assert.Equal(t, "page two", docs[1].Content)
	assert.Equal(t, 3, docs[2].Page)
}

func TestPageChunksEmpty(t *testing.T) {
	assert.Empty(t, PageChunks("\n\n\n", "test.txt"))
}

func TestMarkdownHeaderChunks(t *testing.T) {
	text := `# Guide

Intro paragraph.

## Setup

Install the thing.

## Usage

Run the thing.

### Flags

Use -v for verbose.`

	docs := MarkdownHeaderChunks(text, "guide.md")
	require.Len(t, docs, 4)

	assert.Contains(t, docs[0].Content, "Intro paragraph.")
	assert.Equal(t, "Guide", docs[0].Metadata["headers"])

	assert.Contains(t, docs[1].Content, "Install the thing.")
	assert.Equal(t, "Guide > Setup", docs[1].Metadata["headers"])

	assert.Equal(t, "Guide > Usage", docs[2].Metadata["headers"])
	assert.Equal(t, "Guide > Usage > Flags", docs[3].Metadata["headers"])
}

func TestStripHeadings(t *testing.T) {
	docs := MarkdownHeaderChunks("# Title\n\nbody text", "guide.md")
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "# Title")

	stripped := StripHeadings(docs)
	assert.Equal(t, "body text", stripped[0].Content)
	assert.Equal(t, "Title", stripped[0].Metadata["headers"])
}

func TestHeadingLevel(t *testing.T) {
	assert.Equal(t, 1, headingLevel("# Title"))
	assert.Equal(t, 3, headingLevel("### Sub"))
	assert.Equal(t, 0, headingLevel("not a heading"))
	assert.Equal(t, 0, headingLevel("#hashtag"))
	assert.Equal(t, 2, headingLevel("##"))
}

func TestRecursiveChunksRespectsSize(t *testing.T) {
	text := strings.Repeat("word ", 100)

	docs := RecursiveChunks(text, "test.txt", 50, 0)
	require.NotEmpty(t, docs)
	for _, doc := range docs {
		assert.LessOrEqual(t, len(doc.Content), 50)
		assert.NotEmpty(t, strings.TrimSpace(doc.Content))
	}
}

func TestRecursiveChunksPrefersParagraphs(t *testing.T) {
	text := "first paragraph here\n\nsecond paragraph here\n\nthird paragraph here"

	docs := RecursiveChunks(text, "test.txt", 25, 0)
	require.Len(t, docs, 3)
	assert.Equal(t, "first paragraph here", docs[0].Content)
}

func TestRecursiveChunksOverlap(t *testing.T) {
	text := "aaaa bbbb cccc dddd eeee ffff"

	docs := RecursiveChunks(text, "test.txt", 12, 4)
	require.Greater(t, len(docs), 1)

	// Each chunk after the first starts with the tail of its predecessor.
	for i := 1; i < len(docs); i++ {
		prev := docs[i-1].Content
		tail := prev[len(prev)-4:]
		assert.True(t, strings.HasPrefix(docs[i].Content, tail),
			"chunk %d %q should start with %q", i, docs[i].Content, tail)
	}
}

func TestRecursiveChunksOverlapRespectsSize(t *testing.T) {
	text := "aaaa bbbb cccc dddd eeee ffff"

	// A wide overlap must not push chunks past the size limit.
	docs := RecursiveChunks(text, "test.txt", 10, 8)
	require.Greater(t, len(docs), 1)
	for i, d := range docs {
		assert.LessOrEqual(t, len(d.Content), 10, "chunk %d %q", i, d.Content)
	}
}

func TestRecursiveChunksSmallInput(t *testing.T) {
	docs := RecursiveChunks("tiny", "test.txt", 100, 10)
	require.Len(t, docs, 1)
	assert.Equal(t, "tiny", docs[0].Content)
}

func TestTokenChunks(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 50)

	docs, err := TokenChunks(text, "test.txt", 100)
	require.NoError(t, err)
	require.Greater(t, len(docs), 1)

	var rebuilt strings.Builder
	for _, doc := range docs {
		tokens := doc.Metadata["tokens"].(int)
		assert.LessOrEqual(t, tokens, 100)
		rebuilt.WriteString(doc.Content)
	}
	assert.Equal(t, text, rebuilt.String())
}
