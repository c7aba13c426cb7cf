package chunker

import (
	"strings"

	"ambedkargpt/internal/domain"
)

const defaultSize = 200

// CharChunker splits text into overlapping windows of at most size runes,
// preferring to end each window right after the last separator inside it.
type CharChunker struct {
	size      int
	overlap   int
	separator []rune
}

func NewCharChunker(size, overlap int, separator string) *CharChunker {
	if size <= 0 {
		size = defaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &CharChunker{
		size:      size,
		overlap:   overlap,
		separator: []rune(separator),
	}
}

// Chunk splits text into an ordered sequence of chunks. Chunk i+1 starts
// overlap runes before chunk i ends, so trimming that prefix from every chunk
// after the first and concatenating gives back the original text.
func (c *CharChunker) Chunk(text string) ([]domain.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyCorpus
	}
	runes := []rune(text)
	n := len(runes)
	var chunks []domain.Chunk
	start := 0
	for {
		limit := start + c.size
		if limit >= n {
			chunks = append(chunks, newChunk(len(chunks), runes, start, n))
			break
		}
		end := limit
		// the cut must leave the next start past the current one
		if cut := c.lastSeparatorEnd(runes, start, start+c.overlap+1, limit); cut > 0 {
			end = cut
		}
		chunks = append(chunks, newChunk(len(chunks), runes, start, end))
		start = end - c.overlap
	}
	return chunks, nil
}

// lastSeparatorEnd returns the end offset of the last separator occurrence
// lying in [from, limit) whose end is at least minEnd, or -1.
func (c *CharChunker) lastSeparatorEnd(runes []rune, from, minEnd, limit int) int {
	sl := len(c.separator)
	if sl == 0 {
		return -1
	}
	for p := limit - sl; p >= from && p+sl >= minEnd; p-- {
		if hasRunesAt(runes, p, c.separator) {
			return p + sl
		}
	}
	return -1
}

func hasRunesAt(runes []rune, at int, sub []rune) bool {
	for i, r := range sub {
		if runes[at+i] != r {
			return false
		}
	}
	return true
}

func newChunk(ordinal int, runes []rune, start, end int) domain.Chunk {
	return domain.Chunk{
		Ordinal: ordinal,
		Text:    string(runes[start:end]),
		Start:   start,
		End:     end,
	}
}

// Split is a convenience wrapper around CharChunker.
func Split(text string, size, overlap int, separator string) ([]domain.Chunk, error) {
	return NewCharChunker(size, overlap, separator).Chunk(text)
}

var _ domain.Chunker = (*CharChunker)(nil)
