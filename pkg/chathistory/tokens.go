package chathistory

import (
	"github.com/tiktoken-go/tokenizer"

	"github.com/elsai-io/elsai-go/pkg/types"
)

// TokenCounter counts tokens with the cl100k_base encoding. When the encoding
// cannot be loaded it falls back to the four characters per token heuristic.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a counter.
func NewTokenCounter() *TokenCounter {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		codec = nil
	}
	return &TokenCounter{codec: codec}
}

// Count returns the token count for text.
func (t *TokenCounter) Count(text string) int {
	if t.codec != nil {
		if n, err := t.codec.Count(text); err == nil {
			return n
		}
	}
	return (len(text) + 3) / 4
}

// CountMessages sums the token counts of all message contents.
func (t *TokenCounter) CountMessages(messages []types.Message) int {
	var total int
	for _, m := range messages {
		total += t.Count(m.Content)
	}
	return total
}
