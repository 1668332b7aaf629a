package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/elsai-io/elsai-go/pkg/embeddings"
	"github.com/elsai-io/elsai-go/pkg/types"
)

// HybridRetriever merges BM25 lexical scores with dense cosine similarity.
// Both score sets are min-max normalized before the weighted merge.
type HybridRetriever struct {
	bm25     *BM25Retriever
	embedder embeddings.Embedder
	docs     []types.Document

	// LexicalWeight and DenseWeight default to 0.5 each.
	LexicalWeight float64
	DenseWeight   float64
}

// NewHybridRetriever indexes docs for both retrieval paths. Documents without
// an Embedding are embedded with the given embedder at query time.
func NewHybridRetriever(docs []types.Document, embedder embeddings.Embedder) *HybridRetriever {
	return &HybridRetriever{
		bm25:          NewBM25Retriever(docs),
		embedder:      embedder,
		docs:          docs,
		LexicalWeight: 0.5,
		DenseWeight:   0.5,
	}
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// normalize rescales scores into [0,1]. A constant score set maps to all 1s.
func normalize(scores map[string]float64) {
	if len(scores) == 0 {
		return
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range scores {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	if hi == lo {
		for id := range scores {
			scores[id] = 1
		}
		return
	}
	for id, s := range scores {
		scores[id] = (s - lo) / (hi - lo)
	}
}

// ensureEmbeddings embeds any document that is missing a vector.
func (r *HybridRetriever) ensureEmbeddings(ctx context.Context) error {
	var missing []int
	var contents []string
	for i, doc := range r.docs {
		if len(doc.Embedding) == 0 {
			missing = append(missing, i)
			contents = append(contents, doc.Content)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	vectors, err := r.embedder.EmbedDocuments(ctx, contents)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}
	for j, i := range missing {
		r.docs[i].Embedding = vectors[j]
	}
	return nil
}

// Retrieve runs both paths, normalizes, and merges with the configured
// weights.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Scored, error) {
	if len(r.docs) == 0 {
		return nil, nil
	}

	lexical, err := r.bm25.Retrieve(ctx, query, 0)
	if err != nil {
		return nil, err
	}
	lexScores := make(map[string]float64, len(lexical))
	for _, s := range lexical {
		lexScores[s.Document.ID] = s.Score
	}
	normalize(lexScores)

	denseScores := make(map[string]float64)
	if r.embedder != nil {
		if err := r.ensureEmbeddings(ctx); err != nil {
			return nil, err
		}
		queryVec, err := r.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		for _, doc := range r.docs {
			denseScores[doc.ID] = cosineSimilarity(queryVec, doc.Embedding)
		}
		normalize(denseScores)
	}

	merged := make([]Scored, 0, len(r.docs))
	for _, doc := range r.docs {
		score := r.LexicalWeight*lexScores[doc.ID] + r.DenseWeight*denseScores[doc.ID]
		if score > 0 {
			merged = append(merged, Scored{Document: doc, Score: score})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}

	log.Debug().Str("query", query).Int("results", len(merged)).Msg("hybrid retrieval completed")

	return merged, nil
}
