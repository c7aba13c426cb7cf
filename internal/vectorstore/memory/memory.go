package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"ambedkargpt/internal/domain"
)

// Storage is a simple in-memory vector index using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	entries   []domain.IndexEntry
	norms     []float64
}

func NewStorage() *Storage { return &Storage{} }

// Build replaces the stored entries. The new set is prepared off-lock and
// swapped in under the write lock.
func (s *Storage) Build(_ context.Context, entries []domain.IndexEntry) error {
	dim := 0
	if len(entries) > 0 {
		dim = len(entries[0].Vector)
	}
	copied := make([]domain.IndexEntry, len(entries))
	norms := make([]float64, len(entries))
	for i, e := range entries {
		if len(e.Vector) != dim {
			return fmt.Errorf("vector dimension mismatch: entry %d has %d, want %d", i, len(e.Vector), dim)
		}
		copied[i] = e
		norms[i] = norm(e.Vector)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dim
	s.entries = copied
	s.norms = norms
	return nil
}

// Search returns up to k entries ranked by cosine similarity, highest first,
// ties broken by ascending chunk ordinal.
func (s *Storage) Search(_ context.Context, query domain.Vector, k int) ([]domain.RetrievalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(query), s.dimension)
	}
	if k <= 0 || k > len(s.entries) {
		k = len(s.entries)
	}
	qn := norm(query)
	results := make([]domain.RetrievalResult, len(s.entries))
	for i, e := range s.entries {
		results[i] = domain.RetrievalResult{Chunk: e.Chunk, Score: cosine(query, e.Vector, qn, s.norms[i])}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Ordinal < results[j].Chunk.Ordinal
	})
	return results[:k], nil
}

// Len reports the number of stored entries.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func cosine(a, b domain.Vector, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum / (na * nb)
}

func norm(v domain.Vector) float64 {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

var _ domain.VectorIndex = (*Storage)(nil)
