package qdrant

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"ambedkargpt/internal/domain"
)

type fakeCollections struct {
	pb.CollectionsClient
	created []string
	deleted []string
}

func (f *fakeCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.created = append(f.created, in.GetCollectionName())
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func (f *fakeCollections) Delete(_ context.Context, in *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.deleted = append(f.deleted, in.GetCollectionName())
	return &pb.CollectionOperationResponse{Result: true}, nil
}

// fakePoints scores every stored point with a fixed score table keyed by ordinal.
type fakePoints struct {
	pb.PointsClient
	failUpsert bool
	stored     map[string][]*pb.PointStruct
	scores     map[int64]float32
	searches   []*pb.SearchPoints
}

func (f *fakePoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	if f.failUpsert {
		return nil, errors.New("unavailable")
	}
	if f.stored == nil {
		f.stored = map[string][]*pb.PointStruct{}
	}
	f.stored[in.GetCollectionName()] = in.GetPoints()
	return &pb.PointsOperationResponse{}, nil
}

func (f *fakePoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	f.searches = append(f.searches, in)
	var out []*pb.ScoredPoint
	for _, p := range f.stored[in.GetCollectionName()] {
		score := f.scores[p.GetPayload()["ordinal"].GetIntegerValue()]
		if in.ScoreThreshold != nil && score < *in.ScoreThreshold {
			continue
		}
		out = append(out, &pb.ScoredPoint{Id: p.GetId(), Payload: p.GetPayload(), Score: score})
	}
	// qdrant orders by score only; reverse insertion order on ties
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].GetPayload()["ordinal"].GetIntegerValue() > out[j].GetPayload()["ordinal"].GetIntegerValue()
	})
	if uint64(len(out)) > in.GetLimit() {
		out = out[:in.GetLimit()]
	}
	return &pb.SearchResponse{Result: out}, nil
}

func entries(n int) []domain.IndexEntry {
	out := make([]domain.IndexEntry, n)
	for i := range out {
		out[i] = domain.IndexEntry{
			ID:     "00000000-0000-0000-0000-00000000000" + string(rune('0'+i)),
			Chunk:  domain.Chunk{Ordinal: i, Text: "chunk", Start: i * 10, End: i*10 + 12},
			Vector: domain.Vector{1, float32(i)},
		}
	}
	return out
}

func TestBuild_SwapsGenerations(t *testing.T) {
	cols := &fakeCollections{}
	pts := &fakePoints{}
	s := newStorage(cols, pts, "speech", 0)
	ctx := context.Background()

	if err := s.Build(ctx, entries(3)); err != nil {
		t.Fatalf("first build: %v", err)
	}
	first := s.current
	if !strings.HasPrefix(first, "speech_") {
		t.Errorf("unexpected collection name %q", first)
	}
	if err := s.Build(ctx, entries(2)); err != nil {
		t.Fatalf("second build: %v", err)
	}
	if s.current == first {
		t.Error("rebuild must switch to a new generation")
	}
	if len(cols.deleted) != 1 || cols.deleted[0] != first {
		t.Errorf("expected previous generation %q dropped, got %v", first, cols.deleted)
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", s.Len())
	}
}

func TestBuild_FailureKeepsCurrent(t *testing.T) {
	cols := &fakeCollections{}
	pts := &fakePoints{}
	s := newStorage(cols, pts, "speech", 0)
	ctx := context.Background()
	if err := s.Build(ctx, entries(3)); err != nil {
		t.Fatalf("build: %v", err)
	}
	current := s.current

	pts.failUpsert = true
	if err := s.Build(ctx, entries(3)); err == nil {
		t.Fatal("expected upsert failure")
	}
	if s.current != current || s.Len() != 3 {
		t.Error("failed build must not replace the current generation")
	}
	if len(cols.deleted) != 1 || cols.deleted[0] == current {
		t.Errorf("expected only the failed generation dropped, got %v", cols.deleted)
	}
}

func TestSearch_TieBreakAcrossLimit(t *testing.T) {
	pts := &fakePoints{scores: map[int64]float32{0: 0.5, 1: 0.9, 2: 0.5, 3: 0.5, 4: 0.1}}
	s := newStorage(&fakeCollections{}, pts, "speech", 0)
	ctx := context.Background()
	if err := s.Build(ctx, entries(5)); err != nil {
		t.Fatalf("build: %v", err)
	}

	res, err := s.Search(ctx, domain.Vector{1, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res))
	}
	if res[0].Chunk.Ordinal != 1 || res[1].Chunk.Ordinal != 0 {
		t.Errorf("got ordinals %d,%d want 1,0", res[0].Chunk.Ordinal, res[1].Chunk.Ordinal)
	}
	if len(pts.searches) != 2 || pts.searches[1].ScoreThreshold == nil {
		t.Errorf("expected a threshold re-query on a tie, got %d searches", len(pts.searches))
	}
	if res[1].Chunk.Start != 0 || res[1].Chunk.End != 12 {
		t.Errorf("payload offsets not decoded: %+v", res[1].Chunk)
	}
}

func TestSearch_BeforeBuild(t *testing.T) {
	s := newStorage(&fakeCollections{}, &fakePoints{}, "speech", 0)
	res, err := s.Search(context.Background(), domain.Vector{1}, 3)
	if err != nil || res != nil {
		t.Errorf("expected no results before build, got %v, %v", res, err)
	}
}

func TestRelease_DropsCurrentGeneration(t *testing.T) {
	cols := &fakeCollections{}
	s := newStorage(cols, &fakePoints{}, "speech", 0)
	if err := s.Build(context.Background(), entries(2)); err != nil {
		t.Fatalf("build: %v", err)
	}
	current := s.current
	if err := s.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if len(cols.deleted) != 1 || cols.deleted[0] != current {
		t.Errorf("expected %q dropped, got %v", current, cols.deleted)
	}
	if s.Len() != 0 {
		t.Errorf("released storage still reports %d entries", s.Len())
	}
	if err := s.Release(); err != nil || len(cols.deleted) != 1 {
		t.Errorf("second release must be a no-op, deleted=%v err=%v", cols.deleted, err)
	}
}

func TestDial_RequiresCollection(t *testing.T) {
	if _, err := Dial(Config{Host: "localhost", Port: 6334}); err == nil {
		t.Fatal("expected error without collection")
	}
}
