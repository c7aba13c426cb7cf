// Package prompt assembles the generator prompt from retrieved chunks.
package prompt

import (
	"strings"
	"unicode/utf8"

	"ambedkargpt/internal/domain"
)

const contextSeparator = "\n\n"

// Builder renders a fixed template. Identical inputs always give identical prompts.
type Builder struct {
	subject         string
	maxContextChars int
}

// NewBuilder returns a Builder for a corpus described by subject.
// maxContextChars <= 0 disables the context budget.
func NewBuilder(subject string, maxContextChars int) *Builder {
	if subject == "" {
		subject = "the source text"
	}
	return &Builder{subject: subject, maxContextChars: maxContextChars}
}

// Build returns the prompt and the number of ranked chunks it includes.
// Chunks are dropped from the lowest-ranked end until the context fits the
// budget, but the best chunk is always kept.
func (b *Builder) Build(question string, ranked []domain.RetrievalResult) (string, int) {
	kept := b.fit(ranked)
	texts := make([]string, kept)
	for i := range texts {
		texts[i] = ranked[i].Chunk.Text
	}

	var sb strings.Builder
	sb.WriteString("Answer the question based on the following context from ")
	sb.WriteString(b.subject)
	sb.WriteString(".\nUse only the information in the context. ")
	sb.WriteString("If the context does not contain the answer, say that you do not know.\n\n")
	sb.WriteString("Context: ")
	sb.WriteString(strings.Join(texts, contextSeparator))
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\nAnswer: ")
	return sb.String(), kept
}

func (b *Builder) fit(ranked []domain.RetrievalResult) int {
	n := len(ranked)
	if b.maxContextChars <= 0 {
		return n
	}
	total := 0
	for i, r := range ranked {
		total += utf8.RuneCountInString(r.Chunk.Text)
		if i > 0 {
			total += len(contextSeparator)
		}
	}
	for n > 1 && total > b.maxContextChars {
		total -= utf8.RuneCountInString(ranked[n-1].Chunk.Text) + len(contextSeparator)
		n--
	}
	return n
}
