package memory

import (
	"context"
	"math"
	"testing"

	"ambedkargpt/internal/domain"
)

func entry(ordinal int, vec ...float32) domain.IndexEntry {
	return domain.IndexEntry{
		ID:     string(rune('a' + ordinal)),
		Chunk:  domain.Chunk{Ordinal: ordinal, Text: string(rune('A' + ordinal))},
		Vector: vec,
	}
}

func TestSearch_OrderingAndTies(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	err := s.Build(ctx, []domain.IndexEntry{
		entry(0, 0, 1),
		entry(1, 1, 0),
		entry(2, 5, 0), // same direction as 1, larger magnitude
		entry(3, 1, 1),
		entry(4, -1, 0),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	res, err := s.Search(ctx, domain.Vector{2, 0}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	wantOrder := []int{1, 2, 3, 0, 4}
	if len(res) != len(wantOrder) {
		t.Fatalf("expected %d results, got %d", len(wantOrder), len(res))
	}
	for i, ord := range wantOrder {
		if res[i].Chunk.Ordinal != ord {
			t.Errorf("position %d: got ordinal %d, want %d", i, res[i].Chunk.Ordinal, ord)
		}
	}
	if math.Abs(res[0].Score-1) > 1e-9 || res[0].Score != res[1].Score {
		t.Errorf("scale invariance broken: %v vs %v", res[0].Score, res[1].Score)
	}
	for i := 1; i < len(res); i++ {
		if res[i].Score > res[i-1].Score {
			t.Errorf("scores not descending at %d", i)
		}
	}
}

func TestSearch_LimitsToK(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	_ = s.Build(ctx, []domain.IndexEntry{entry(0, 1, 0), entry(1, 0, 1), entry(2, 1, 1)})

	tests := []struct {
		k    int
		want int
	}{
		{1, 1},
		{2, 2},
		{3, 3},
		{10, 3},
	}
	for _, tt := range tests {
		res, err := s.Search(ctx, domain.Vector{1, 0}, tt.k)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(res) != tt.want {
			t.Errorf("k=%d: got %d results, want %d", tt.k, len(res), tt.want)
		}
	}
}

func TestBuild_RejectsDimensionMismatch(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	_ = s.Build(ctx, []domain.IndexEntry{entry(0, 1, 0)})

	err := s.Build(ctx, []domain.IndexEntry{entry(0, 1, 0), entry(1, 1, 0, 0)})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if s.Len() != 1 {
		t.Errorf("failed build must keep the previous entries, got %d", s.Len())
	}
}

func TestBuild_ReplacesEntries(t *testing.T) {
	s := NewStorage()
	ctx := context.Background()
	_ = s.Build(ctx, []domain.IndexEntry{entry(0, 1, 0), entry(1, 0, 1)})
	_ = s.Build(ctx, []domain.IndexEntry{entry(0, 1, 0, 0)})
	if s.Len() != 1 {
		t.Fatalf("expected 1 entry after rebuild, got %d", s.Len())
	}
	if _, err := s.Search(ctx, domain.Vector{1, 0}, 1); err == nil {
		t.Error("expected query dimension error after rebuild with a new dimension")
	}
}

func TestSearch_Empty(t *testing.T) {
	res, err := NewStorage().Search(context.Background(), domain.Vector{1}, 3)
	if err != nil || len(res) != 0 {
		t.Errorf("expected no results and no error, got %v, %v", res, err)
	}
}
