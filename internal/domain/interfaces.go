package domain

import "context"

// Vector is a fixed-dimension embedding of a chunk or a query.
type Vector []float32

// Chunk is a contiguous passage of the corpus used as a retrieval unit.
// Start and End are rune offsets into the corpus, End exclusive.
type Chunk struct {
	Ordinal int
	Text    string
	Start   int
	End     int
}

// IndexEntry binds a chunk to its embedding.
type IndexEntry struct {
	ID     string
	Chunk  Chunk
	Vector Vector
}

// RetrievalResult represents a matching chunk with a relevance score.
type RetrievalResult struct {
	Chunk Chunk
	Score float64
}

// Source is a retrieved chunk as reported alongside an answer.
type Source struct {
	Rank    int     `json:"rank"`
	Score   float64 `json:"score"`
	Text    string  `json:"text"`
	Ordinal int     `json:"ordinal"`
	Start   int     `json:"start"`
	End     int     `json:"end"`
}

// Answer is the generated response together with its supporting chunks.
type Answer struct {
	Question     string   `json:"question"`
	Text         string   `json:"answer"`
	Sources      []Source `json:"sources"`
	SourcesCount int      `json:"sources_count"`
}

// GenerateOptions tunes a single completion call.
type GenerateOptions struct {
	Temperature float32
	Stop        []string
	MaxTokens   int
}

// Chunker splits a corpus into ordered, overlapping chunks.
type Chunker interface {
	Chunk(text string) ([]Chunk, error)
}

// Embedder converts free text into a numeric vector representation.
// Vectors must keep one dimension for the lifetime of the embedder.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) (Vector, error)
}

// BatchEmbedder is implemented by embedders that can embed many texts in one call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
}

// CorpusFitter is implemented by embedders whose vector space is derived
// from the corpus itself. Fit returns a new embedder bound to that corpus.
type CorpusFitter interface {
	Fit(corpus []string) (Embedder, error)
}

// Generator completes a prompt with a language model.
type Generator interface {
	Complete(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// VectorIndex stores index entries and supports nearest-neighbour lookup.
// Build replaces the whole entry set; readers never observe a partial build.
type VectorIndex interface {
	Build(ctx context.Context, entries []IndexEntry) error
	Search(ctx context.Context, query Vector, k int) ([]RetrievalResult, error)
	Len() int
}

// Releaser is implemented by backends holding external resources that
// must be freed once no search can reach them.
type Releaser interface {
	Release() error
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
