package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/rag-qa-server/internal/config"
)

// upsertBatchSize is the number of points written per Upsert call.
const upsertBatchSize = 100

// QdrantIndex is the vector index for one Qdrant collection using cosine
// distance. It is safe for concurrent use; callers serialize Recreate
// against reads.
type QdrantIndex struct {
	client *qdrant.Client
	name   string

	// wantDims is the dimensionality of the committed embedder and is used
	// when the collection is (re)created. dims is the dimensionality of the
	// collection as it exists in Qdrant.
	wantDims int
	dims     int

	logger *slog.Logger
}

// OpenQdrant connects to Qdrant and attaches to cfg.Collection, creating it
// with dims dimensions when it does not exist. Opening is idempotent across
// restarts: an existing collection and its points are kept as they are.
func OpenQdrant(ctx context.Context, cfg config.QdrantConfig, dims int, logger *slog.Logger) (*QdrantIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := &QdrantIndex{
		client:   client,
		name:     cfg.Collection,
		wantDims: dims,
		logger:   logger.With("component", "qdrant", "collection", cfg.Collection),
	}

	if err := idx.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	if err := idx.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return idx, nil
}

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// healthCheckWithRetry performs health check with exponential backoff.
func (q *QdrantIndex) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		return q.Health(ctx)
	}, backoff.WithContext(newBackOff(), ctx))
}

// Health performs a single health check against Qdrant.
func (q *QdrantIndex) Health(ctx context.Context) error {
	result, err := q.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// ensureCollection attaches to the collection or creates it. An existing
// collection keeps its dimensionality even when it differs from wantDims;
// the mismatch surfaces as ErrDimensionMismatch on Add and Query.
func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.name)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !exists {
		return q.createCollection(ctx)
	}

	info, err := q.client.GetCollectionInfo(ctx, q.name)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}
	q.dims = int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())

	if q.dims != q.wantDims {
		q.logger.Warn("Collection dimensionality differs from embedder",
			"collection_dims", q.dims,
			"embedder_dims", q.wantDims,
		)
	}
	q.logger.Info("Attached to collection", "dims", q.dims, "points", info.GetPointsCount())
	return nil
}

func (q *QdrantIndex) createCollection(ctx context.Context) error {
	err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.wantDims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	q.dims = q.wantDims
	q.logger.Info("Created collection", "dims", q.dims)
	return nil
}

// Recreate drops the collection and creates it empty with the embedder's
// dimensionality. The two steps are not atomic; queries in between fail
// with ErrCollectionNotFound.
func (q *QdrantIndex) Recreate(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.name)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		if err := q.client.DeleteCollection(ctx, q.name); err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
	}
	return q.createCollection(ctx)
}

// Add stores entries in batches of 100. Points are keyed by PointID, so
// re-adding a chunk overwrites it.
func (q *QdrantIndex) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	for i, e := range entries {
		if len(e.Vector) != q.dims {
			return fmt.Errorf("%w: entry %d has %d dimensions, collection %s expects %d",
				ErrDimensionMismatch, i, len(e.Vector), q.name, q.dims)
		}
	}

	for i := 0; i < len(entries); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(entries))

		points := make([]*qdrant.PointStruct, 0, end-i)
		for _, e := range entries[i:end] {
			points = append(points, q.point(e))
		}

		if err := q.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	q.logger.Debug("Added entries", "count", len(entries))
	return nil
}

func (q *QdrantIndex) point(e Entry) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(PointID(q.name, e.Metadata.ChunkID)),
		Vectors: qdrant.NewVectors(e.Vector...),
		Payload: qdrant.NewValueMap(payload(e)),
	}
}

func payload(e Entry) map[string]any {
	return map[string]any{
		payloadContent:  e.Text,
		payloadTitle:    e.Metadata.Title,
		payloadCategory: e.Metadata.Category,
		payloadKeywords: e.Metadata.Keywords,
		payloadDocID:    e.Metadata.DocID,
		payloadChunkID:  e.Metadata.ChunkID,
	}
}

// upsertWithRetry retries transient failures. A missing collection is
// permanent and reported as ErrCollectionNotFound.
func (q *QdrantIndex) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	operation := func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.name,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if isNotFound(err) {
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrCollectionNotFound, q.name))
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx))
}

// Query returns up to k nearest chunks ordered by descending similarity.
func (q *QdrantIndex) Query(ctx context.Context, vector []float32, k int) ([]SearchResult, error) {
	if len(vector) != q.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %s expects %d",
			ErrDimensionMismatch, len(vector), q.name, q.dims)
	}
	if k <= 0 {
		return []SearchResult{}, nil
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, q.name)
		}
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	return resultsFromPoints(points), nil
}

func resultsFromPoints(points []*qdrant.ScoredPoint) []SearchResult {
	results := make([]SearchResult, 0, len(points))
	for _, p := range points {
		pl := p.GetPayload()
		results = append(results, SearchResult{
			Content: pl[payloadContent].GetStringValue(),
			Score:   clampScore(p.GetScore()),
			Metadata: ChunkMetadata{
				Title:    pl[payloadTitle].GetStringValue(),
				Category: pl[payloadCategory].GetStringValue(),
				Keywords: pl[payloadKeywords].GetStringValue(),
				DocID:    pl[payloadDocID].GetStringValue(),
				ChunkID:  pl[payloadChunkID].GetStringValue(),
			},
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// Count returns the exact number of stored points.
func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.name,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, q.name)
		}
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(n), nil
}

// Name returns the collection name.
func (q *QdrantIndex) Name() string { return q.name }

// Dimensions returns the collection's vector size.
func (q *QdrantIndex) Dimensions() int { return q.dims }

// Close closes the Qdrant client connection.
func (q *QdrantIndex) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}
