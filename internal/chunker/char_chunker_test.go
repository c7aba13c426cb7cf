package chunker

import (
	"errors"
	"strings"
	"testing"

	"ambedkargpt/internal/domain"
)

const speech = "The real remedy is to destroy the belief in the sanctity of the shastras. " +
	"Social reform is like gardening: you must remove the weeds. " +
	"You must take the stand that Buddha took. You must take the stand which Guru Nanak took. " +
	"You must not only discard the shastras, you must deny their authority."

func reconstruct(chunks []domain.Chunk) string {
	var b strings.Builder
	prevEnd := 0
	for i, ch := range chunks {
		r := []rune(ch.Text)
		if i > 0 {
			r = r[prevEnd-ch.Start:]
		}
		b.WriteString(string(r))
		prevEnd = ch.End
	}
	return b.String()
}

func TestChunk_Coverage(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		size      int
		overlap   int
		separator string
	}{
		{"default", speech, 200, 50, ". "},
		{"small windows", speech, 60, 10, ". "},
		{"no overlap", speech, 40, 0, ". "},
		{"no separator", speech, 33, 7, ""},
		{"separator absent", speech, 50, 5, "|"},
		{"max overlap", speech, 20, 19, " "},
		{"unicode", "अस्पृश्यता का अंत। जाति का विनाश। समाज सुधार। " + speech, 25, 5, "। "},
		{"short corpus", "Hello.", 200, 50, ". "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Split(tt.text, tt.size, tt.overlap, tt.separator)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(chunks) == 0 {
				t.Fatal("expected at least one chunk")
			}
			if got := reconstruct(chunks); got != tt.text {
				t.Errorf("reconstruction mismatch:\n got %q\nwant %q", got, tt.text)
			}
			for i, ch := range chunks {
				if ch.Ordinal != i {
					t.Errorf("chunk %d has ordinal %d", i, ch.Ordinal)
				}
				if n := len([]rune(ch.Text)); n > tt.size || n != ch.End-ch.Start {
					t.Errorf("chunk %d has %d runes, span %d..%d, size %d", i, n, ch.Start, ch.End, tt.size)
				}
				if i > 0 && ch.Start != chunks[i-1].End-tt.overlap {
					t.Errorf("chunk %d starts at %d, want %d", i, ch.Start, chunks[i-1].End-tt.overlap)
				}
			}
		})
	}
}

func TestChunk_PrefersSeparator(t *testing.T) {
	chunks, err := Split(speech, 100, 10, ". ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(chunks[0].Text, "shastras. ") {
		t.Errorf("first chunk should end at the sentence boundary, got %q", chunks[0].Text)
	}
}

func TestChunk_HardBreakWithoutSeparator(t *testing.T) {
	chunks, err := Split(strings.Repeat("x", 25), 10, 2, ". ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantSpans := [][2]int{{0, 10}, {8, 18}, {16, 25}}
	if len(chunks) != len(wantSpans) {
		t.Fatalf("expected %d chunks, got %d", len(wantSpans), len(chunks))
	}
	for i, span := range wantSpans {
		if chunks[i].Start != span[0] || chunks[i].End != span[1] {
			t.Errorf("chunk %d: got %d..%d, want %d..%d", i, chunks[i].Start, chunks[i].End, span[0], span[1])
		}
	}
}

func TestChunk_Deterministic(t *testing.T) {
	c := NewCharChunker(60, 10, ". ")
	first, err := c.Chunk(speech)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := c.Chunk(speech)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(again) != len(first) {
			t.Fatalf("run %d: %d chunks, want %d", i, len(again), len(first))
		}
		for j := range first {
			if again[j] != first[j] {
				t.Errorf("run %d chunk %d differs: %+v vs %+v", i, j, again[j], first[j])
			}
		}
	}
}

func TestChunk_EmptyCorpus(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t \n"} {
		_, err := Split(text, 200, 50, ". ")
		if !errors.Is(err, domain.ErrEmptyCorpus) {
			t.Errorf("text %q: expected ErrEmptyCorpus, got %v", text, err)
		}
	}
}

func TestNewCharChunker_ClampsInvalidSettings(t *testing.T) {
	c := NewCharChunker(0, -3, "")
	if c.size != defaultSize || c.overlap != 0 {
		t.Errorf("got size=%d overlap=%d", c.size, c.overlap)
	}
	c = NewCharChunker(10, 10, "")
	if c.overlap != 9 {
		t.Errorf("overlap should be clamped below size, got %d", c.overlap)
	}
}
