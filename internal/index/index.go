// Package index turns chunks into embedded index entries and searches them.
package index

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"ambedkargpt/internal/domain"
)

// entryNamespace scopes the deterministic entry IDs.
var entryNamespace = uuid.MustParse("6f1c2a4e-8d3b-4b7a-9e55-0c1d2e3f4a5b")

// EmbeddingIndex binds an embedder to a vector index backend. The same
// embedder must be used for queries, so Retriever takes both from here.
type EmbeddingIndex struct {
	embedder domain.Embedder
	backend  domain.VectorIndex
}

func New(embedder domain.Embedder, backend domain.VectorIndex) *EmbeddingIndex {
	return &EmbeddingIndex{embedder: embedder, backend: backend}
}

// Embedder returns the embedder the index was built with.
func (x *EmbeddingIndex) Embedder() domain.Embedder { return x.embedder }

// Len reports the number of indexed entries.
func (x *EmbeddingIndex) Len() int { return x.backend.Len() }

// Build embeds every chunk and replaces the backend contents with one entry
// per chunk. Embedding failures and inconsistent dimensions wrap
// domain.ErrEmbeddingService; backend failures wrap domain.ErrIndexBuild.
func (x *EmbeddingIndex) Build(ctx context.Context, chunks []domain.Chunk) error {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := x.embedAll(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: got %d vectors for %d chunks", domain.ErrEmbeddingService, len(vectors), len(chunks))
	}
	entries := make([]domain.IndexEntry, len(chunks))
	for i, ch := range chunks {
		if len(vectors[i]) == 0 {
			return fmt.Errorf("%w: empty vector for chunk %d", domain.ErrEmbeddingService, ch.Ordinal)
		}
		if len(vectors[i]) != len(vectors[0]) {
			return fmt.Errorf("%w: chunk %d has dimension %d, want %d", domain.ErrEmbeddingService, ch.Ordinal, len(vectors[i]), len(vectors[0]))
		}
		entries[i] = domain.IndexEntry{ID: EntryID(ch), Chunk: ch, Vector: vectors[i]}
	}
	if err := x.backend.Build(ctx, entries); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexBuild, err)
	}
	return nil
}

func (x *EmbeddingIndex) embedAll(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if b, ok := x.embedder.(domain.BatchEmbedder); ok {
		return b.EmbedBatch(ctx, texts)
	}
	out := make([]domain.Vector, len(texts))
	for i, t := range texts {
		v, err := x.embedder.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Search returns up to k results ordered by descending score, ties broken by
// ascending ordinal.
func (x *EmbeddingIndex) Search(ctx context.Context, query domain.Vector, k int) ([]domain.RetrievalResult, error) {
	return x.backend.Search(ctx, query, k)
}

// EntryID derives a stable ID from a chunk so rebuilding the same chunks
// yields the same entries.
func EntryID(ch domain.Chunk) string {
	return uuid.NewSHA1(entryNamespace, []byte(strconv.Itoa(ch.Ordinal)+"\x00"+ch.Text)).String()
}
