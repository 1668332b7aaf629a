// Package retrieval ranks documents against queries with lexical and hybrid
// scoring.
package retrieval

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/elsai-io/elsai-go/pkg/types"
)

// Scored pairs a document with its retrieval score.
type Scored struct {
	Document types.Document
	Score    float64
}

// Retriever returns the topK documents ranked against a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Scored, error)
}

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// BM25Retriever ranks documents with Okapi BM25 over a fixed corpus.
type BM25Retriever struct {
	docs      []types.Document
	docTokens [][]string
	docFreq   map[string]int
	avgDocLen float64
}

// NewBM25Retriever indexes the corpus.
func NewBM25Retriever(docs []types.Document) *BM25Retriever {
	r := &BM25Retriever{
		docs:    docs,
		docFreq: make(map[string]int),
	}

	var totalLen int
	for _, doc := range docs {
		tokens := tokenize(doc.Content)
		r.docTokens = append(r.docTokens, tokens)
		totalLen += len(tokens)

		seen := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			if !seen[tok] {
				seen[tok] = true
				r.docFreq[tok]++
			}
		}
	}
	if len(docs) > 0 {
		r.avgDocLen = float64(totalLen) / float64(len(docs))
	}
	return r
}

// idf uses the standard smoothed formulation, always positive.
func (r *BM25Retriever) idf(term string) float64 {
	n := float64(len(r.docs))
	df := float64(r.docFreq[term])
	return math.Log((n-df+0.5)/(df+0.5) + 1)
}

func (r *BM25Retriever) score(queryTokens []string, docIdx int) float64 {
	tokens := r.docTokens[docIdx]
	if len(tokens) == 0 {
		return 0
	}

	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}

	docLen := float64(len(tokens))
	var score float64
	for _, term := range queryTokens {
		f := float64(tf[term])
		if f == 0 {
			continue
		}
		num := f * (bm25K1 + 1)
		den := f + bm25K1*(1-bm25B+bm25B*docLen/r.avgDocLen)
		score += r.idf(term) * num / den
	}
	return score
}

// Retrieve ranks the corpus against the query and returns the topK documents.
func (r *BM25Retriever) Retrieve(_ context.Context, query string, topK int) ([]Scored, error) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 || len(r.docs) == 0 {
		return nil, nil
	}

	results := make([]Scored, 0, len(r.docs))
	for i, doc := range r.docs {
		if s := r.score(queryTokens, i); s > 0 {
			results = append(results, Scored{Document: doc, Score: s})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
