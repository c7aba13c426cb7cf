package qdrant

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"ambedkargpt/internal/domain"
)

// Client holds the gRPC connection shared by every Storage it creates.
type Client struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	prefix      string
	timeout     time.Duration
}

type Config struct {
	Host       string
	Port       int
	APIKey     string
	Collection string
	UseTLS     bool
	Timeout    time.Duration
}

// Dial connects to Qdrant. The connection is lazy; errors surface on first use.
func Dial(cfg Config) (*Client, error) {
	if cfg.Collection == "" {
		return nil, errors.New("qdrant: collection name is required")
	}
	creds := insecure.NewCredentials()
	if cfg.UseTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &Client{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		prefix:      cfg.Collection,
		timeout:     cfg.Timeout,
	}, nil
}

// NewStorage returns an empty index whose collections are named after the
// configured collection.
func (c *Client) NewStorage() *Storage {
	return newStorage(c.collections, c.points, c.prefix, c.timeout)
}

// Close releases the gRPC connection. Collections are left in place.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Storage is a domain.VectorIndex backed by Qdrant over gRPC.
// Every Build writes a fresh generation collection named
// "<collection>_<suffix>" and only then makes it current, dropping the
// previous generation.
type Storage struct {
	collections pb.CollectionsClient
	points      pb.PointsClient
	prefix      string
	timeout     time.Duration

	mu      sync.RWMutex
	current string
	size    int
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Build creates a new generation collection, upserts all entries into it and
// makes it current. On failure the half-written collection is dropped and the
// previous generation stays current.
func (s *Storage) Build(ctx context.Context, entries []domain.IndexEntry) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	dim := 1
	if len(entries) > 0 {
		dim = len(entries[0].Vector)
	}
	name := s.prefix + "_" + uuid.NewString()[:8]
	_, err := s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{
			Params: &pb.VectorParams{Size: uint64(dim), Distance: pb.Distance_Cosine},
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection %s: %w", name, err)
	}
	if err := s.upsert(ctx, name, entries); err != nil {
		s.drop(name)
		return err
	}

	s.mu.Lock()
	previous := s.current
	s.current = name
	s.size = len(entries)
	s.mu.Unlock()

	if previous != "" {
		s.drop(previous)
	}
	return nil
}

func (s *Storage) upsert(ctx context.Context, collection string, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(entries))
	for i, e := range entries {
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: e.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: e.Vector}}},
			Payload: map[string]*pb.Value{
				"text":    {Kind: &pb.Value_StringValue{StringValue: e.Chunk.Text}},
				"ordinal": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(e.Chunk.Ordinal)}},
				"start":   {Kind: &pb.Value_IntegerValue{IntegerValue: int64(e.Chunk.Start)}},
				"end":     {Kind: &pb.Value_IntegerValue{IntegerValue: int64(e.Chunk.End)}},
			},
		}
	}
	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert into %s: %w", collection, err)
	}
	return nil
}

func (s *Storage) drop(collection string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	// best-effort; a leftover generation does not affect the current one
	_, _ = s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: collection})
}

// Search returns up to k entries ranked by cosine similarity, ties broken by
// ascending ordinal. When the k-th and (k+1)-th scores tie, every point with
// that score is fetched so the ordinal tie-break is exact.
func (s *Storage) Search(ctx context.Context, query domain.Vector, k int) ([]domain.RetrievalResult, error) {
	s.mu.RLock()
	collection, size := s.current, s.size
	s.mu.RUnlock()
	if collection == "" || size == 0 {
		return nil, nil
	}
	if k <= 0 || k > size {
		k = size
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results, err := s.search(ctx, collection, query, uint64(k+1), nil)
	if err != nil {
		return nil, err
	}
	if len(results) > k && results[k].Score == results[k-1].Score {
		threshold := float32(results[k-1].Score)
		results, err = s.search(ctx, collection, query, uint64(size), &threshold)
		if err != nil {
			return nil, err
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Ordinal < results[j].Chunk.Ordinal
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *Storage) search(ctx context.Context, collection string, query domain.Vector, limit uint64, threshold *float32) ([]domain.RetrievalResult, error) {
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collection,
		Vector:         query,
		Limit:          limit,
		ScoreThreshold: threshold,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search %s: %w", collection, err)
	}
	results := make([]domain.RetrievalResult, len(resp.GetResult()))
	for i, pt := range resp.GetResult() {
		p := pt.GetPayload()
		results[i] = domain.RetrievalResult{
			Chunk: domain.Chunk{
				Ordinal: int(p["ordinal"].GetIntegerValue()),
				Text:    p["text"].GetStringValue(),
				Start:   int(p["start"].GetIntegerValue()),
				End:     int(p["end"].GetIntegerValue()),
			},
			Score: float64(pt.GetScore()),
		}
	}
	return results, nil
}

// Len reports the number of entries in the current generation.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Release drops the current generation. The storage is empty afterwards.
func (s *Storage) Release() error {
	s.mu.Lock()
	collection := s.current
	s.current, s.size = "", 0
	s.mu.Unlock()
	if collection != "" {
		s.drop(collection)
	}
	return nil
}

var (
	_ domain.VectorIndex = (*Storage)(nil)
	_ domain.Releaser    = (*Storage)(nil)
)
