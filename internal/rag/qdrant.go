package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// qdrantUpsertBatch bounds the number of points sent per Upsert call.
const qdrantUpsertBatch = 256

// QdrantConfig holds connection parameters for a Qdrant instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// NewQdrantClient opens a gRPC client from cfg, applying defaults.
func NewQdrantClient(cfg *QdrantConfig) (*qdrant.Client, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}
	return client, nil
}

// QdrantIndex is a VectorIndex stored in an ephemeral Qdrant collection.
// Each document session owns one collection; Close drops it. Zero-norm
// vectors are tracked locally so they score MinScore exactly as in
// MemoryIndex.
type QdrantIndex struct {
	// client is the shared Qdrant gRPC client. QdrantIndex does not own it.
	client *qdrant.Client

	// collection is the session-scoped collection name.
	collection string

	// size is the number of indexed points.
	size int

	// dim is the vector length of the collection.
	dim int

	// degenerate marks passage indices whose vector has zero norm.
	degenerate map[int]bool
}

// NewQdrantIndex returns an empty index bound to the named collection.
// The collection is created on Build.
func NewQdrantIndex(client *qdrant.Client, collection string) *QdrantIndex {
	return &QdrantIndex{client: client, collection: collection}
}

// Collection returns the collection name backing this index.
func (q *QdrantIndex) Collection() string { return q.collection }

// Build drops any previous collection content and uploads vectors, using
// the passage index as point id.
func (q *QdrantIndex) Build(ctx context.Context, vectors [][]float32) error {
	if err := q.drop(ctx); err != nil {
		return err
	}
	q.size, q.dim, q.degenerate = 0, 0, map[int]bool{}
	if len(vectors) == 0 {
		return nil
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("qdrant: build: vector %d has %d dims, want %d: %w", i, len(v), dim, ErrDimensionMismatch)
		}
	}

	err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", q.collection, err)
	}

	wait := true
	for start := 0; start < len(vectors); start += qdrantUpsertBatch {
		end := min(start+qdrantUpsertBatch, len(vectors))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			if isZero(vectors[i]) {
				q.degenerate[i] = true
			}
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(i)),
				Vectors: qdrant.NewVectors(vectors[i]...),
			})
		}
		if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Wait:           &wait,
			Points:         points,
		}); err != nil {
			return fmt.Errorf("qdrant: upsert failed: %w", err)
		}
	}

	q.size, q.dim = len(vectors), dim
	return nil
}

// ScoreAll queries every point in the collection and returns the scores in
// passage index order.
func (q *QdrantIndex) ScoreAll(ctx context.Context, query []float32) ([]RankedResult, error) {
	if q.size == 0 {
		return nil, nil
	}
	if len(query) != q.dim {
		return nil, fmt.Errorf("qdrant: score: query has %d dims, index has %d: %w", len(query), q.dim, ErrDimensionMismatch)
	}

	results := make([]RankedResult, q.size)
	for i := range results {
		results[i] = RankedResult{Index: i, Score: MinScore}
	}
	if isZero(query) {
		return results, nil
	}

	limit := uint64(q.size)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	for _, p := range points {
		idx := int(p.GetId().GetNum())
		if idx < 0 || idx >= q.size || q.degenerate[idx] {
			continue
		}
		results[idx].Score = p.GetScore()
	}
	return results, nil
}

// Len returns the number of indexed points.
func (q *QdrantIndex) Len() int { return q.size }

// Close drops the session collection. The shared client stays open.
func (q *QdrantIndex) Close() error {
	return q.drop(context.Background())
}

// drop deletes the collection if it exists.
func (q *QdrantIndex) drop(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		return nil
	}
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("qdrant: failed to delete collection %q: %w", q.collection, err)
	}
	return nil
}

// isZero reports whether every component of v is zero.
func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
