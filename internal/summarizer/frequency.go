// Package summarizer produces short extractive summaries of the corpus.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"ambedkargpt/internal/domain"
)

var (
	wordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// FrequencySummarizer ranks sentences by normalized word frequency with
// stopwords filtered out and keeps the best ones in corpus order.
type FrequencySummarizer struct {
	stopwords map[string]struct{}
}

func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{stopwords: defaultStopwords()}
}

// Summarize returns up to maxSentences sentences of text. Text without
// sentence punctuation is returned trimmed.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}

	freq := map[string]float64{}
	maxF := 0.0
	for _, sent := range sentences {
		for _, tok := range tokens(sent) {
			if _, stop := s.stopwords[tok]; stop {
				continue
			}
			freq[tok]++
			maxF = math.Max(maxF, freq[tok])
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	scores := make([]float64, len(sentences))
	order := make([]int, len(sentences))
	for i, sent := range sentences {
		order[i] = i
		toks := tokens(sent)
		for _, tok := range toks {
			scores[i] += freq[tok]
		}
		// long sentences would otherwise always win
		if len(toks) > 0 {
			scores[i] /= math.Sqrt(float64(len(toks)))
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	if maxSentences > len(order) {
		maxSentences = len(order)
	}
	selected := order[:maxSentences]
	sort.Ints(selected)
	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}

// Sentences splits text on terminal punctuation. Trailing text without a
// terminator is kept as the last sentence.
func Sentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if len(out) > 0 {
		if tail := strings.TrimSpace(text[last:]); tail != "" {
			out = append(out, tail)
		}
	}
	return out
}

func tokens(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"you", "your", "we", "our", "they", "their", "he", "his", "she", "her", "not", "no", "what", "which", "who", "there", "all", "must", "do", "does", "has", "have", "had",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var _ domain.Summarizer = (*FrequencySummarizer)(nil)
