package summarizer

import (
	"reflect"
	"strings"
	"testing"
)

const speech = "The real remedy is to destroy the belief in the sanctity of the shastras. " +
	"Social reform is like gardening: you must remove the weeds. " +
	"Caste is a notion, it is a state of the mind. " +
	"The destruction of caste requires destroying the belief in the shastras."

func TestSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain", "One. Two! Three?", []string{"One.", "Two!", "Three?"}},
		{"trailing fragment", "Done. and then", []string{"Done.", "and then"}},
		{"ellipsis", "Wait... go.", []string{"Wait...", "go."}},
		{"no terminator", "no punctuation here", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sentences(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Sentences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSummarize_KeepsCorpusOrder(t *testing.T) {
	s := NewFrequencySummarizer()
	got, err := s.Summarize(speech, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Both shastras sentences share the most frequent terms.
	want := "The real remedy is to destroy the belief in the sanctity of the shastras. " +
		"The destruction of caste requires destroying the belief in the shastras."
	if got != want {
		t.Errorf("summary = %q\nwant %q", got, want)
	}
}

func TestSummarize_Bounds(t *testing.T) {
	s := NewFrequencySummarizer()
	got, err := s.Summarize(speech, 10)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(Sentences(got)); n != 4 {
		t.Errorf("expected all 4 sentences, got %d", n)
	}
	got, err = s.Summarize("  a heading without a full stop  ", 3)
	if err != nil {
		t.Fatal(err)
	}
	if got != "a heading without a full stop" {
		t.Errorf("unexpected fallback %q", got)
	}
	got, _ = s.Summarize(speech, 0)
	if strings.Count(got, ".") != 3 {
		t.Errorf("default should keep 3 sentences, got %q", got)
	}
}
