// Package retriever ranks indexed chunks against a question.
package retriever

import (
	"context"
	"fmt"

	"ambedkargpt/internal/domain"
	"ambedkargpt/internal/index"
)

// Retriever embeds questions in the index's own embedding space and
// returns the top-k chunks.
type Retriever struct {
	index    *index.EmbeddingIndex
	k        int
	minScore float64
}

// New returns a Retriever over idx. Results scoring below minScore are
// dropped when minScore is positive.
func New(idx *index.EmbeddingIndex, k int, minScore float64) *Retriever {
	if k <= 0 {
		k = 3
	}
	return &Retriever{index: idx, k: k, minScore: minScore}
}

// K reports how many chunks a retrieval asks for.
func (r *Retriever) K() int { return r.k }

// Retrieve returns up to k chunks for question, best first.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]domain.RetrievalResult, error) {
	if r == nil || r.index == nil || r.index.Len() == 0 {
		return nil, domain.ErrNotInitialized
	}
	vec, err := r.index.Embedder().Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: embed question: %w", domain.ErrEmbeddingService, err)
	}
	if isZero(vec) {
		return nil, fmt.Errorf("%w: question shares no terms with the corpus", domain.ErrRetrievalEmpty)
	}
	results, err := r.index.Search(ctx, vec, r.k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexSearch, err)
	}
	if r.minScore > 0 {
		kept := results[:0]
		for _, res := range results {
			if res.Score >= r.minScore {
				kept = append(kept, res)
			}
		}
		results = kept
	}
	if len(results) == 0 {
		return nil, domain.ErrRetrievalEmpty
	}
	return results, nil
}

func isZero(v domain.Vector) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
