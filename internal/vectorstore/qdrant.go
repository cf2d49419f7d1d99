package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// qdrantTracer for OpenTelemetry instrumentation.
var qdrantTracer = otel.Tracer("docqd.vectorstore.qdrant")

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT the HTTP REST port).
	// Default: 6334
	Port int

	// Collection is the collection name for indexed chunks.
	Collection string

	// VectorSize is the dimensionality of embeddings.
	// Must match the embedder's output dimension.
	VectorSize int

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool

	// MaxRetries is the maximum number of retry attempts for transient
	// failures. Default: 3
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries.
	// Doubles on each retry. Default: 1 second
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB, to handle large documents.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "pdf_documents"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection name required", ErrInvalidConfig)
	}
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// IsTransientError checks if an error is transient (should retry).
// Returns true for network timeouts and temporary unavailability,
// false for invalid arguments, not found, and permission failures.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore implements Store using Qdrant's native gRPC client.
//
// The gRPC transport (port 6334) avoids the HTTP layer's payload limits
// and uses binary protobuf encoding. Chunk ids are mapped to
// deterministic UUIDv5 point ids so re-ingestion overwrites instead of
// duplicating; the original chunk id is preserved in the payload.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger
}

// NewQdrantStore creates a QdrantStore, verifies connectivity, and
// ensures the collection exists with cosine distance.
func NewQdrantStore(config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	store := &QdrantStore{
		client: client,
		config: config,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check failed: %v", ErrStoreUnavailable, err)
	}

	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("collection", config.Collection),
		zap.Int("vector_size", config.VectorSize),
	)

	return store, nil
}

// ensureCollection creates the collection if it does not exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.config.Collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection %s: %v", ErrStoreUnavailable, s.config.Collection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.config.VectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
	}
	return nil
}

// retryOperation retries an operation with exponential backoff.
func (s *QdrantStore) retryOperation(ctx context.Context, operationName string, operation func() error) error {
	backoff := s.config.RetryBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", operationName, err)
		}

		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%w: %s failed after %d retries: %v", ErrStoreUnavailable, operationName, s.config.MaxRetries, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", operationName, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

// pointID derives a deterministic UUIDv5 point id from a chunk id, so
// writes to the same chunk id land on the same point.
func pointID(chunkID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String())
}

// Upsert inserts or overwrites entries keyed by Entry.ID.
func (s *QdrantStore) Upsert(ctx context.Context, entries []Entry) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.Int("entry_count", len(entries)),
		attribute.String("collection", s.config.Collection),
	)

	if err := validateEntries(entries, s.config.VectorSize); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	points := make([]*qdrant.PointStruct, len(entries))
	for i, entry := range entries {
		points[i] = &qdrant.PointStruct{
			Id:      pointID(entry.ID),
			Vectors: qdrant.NewVectors(entry.Embedding...),
			Payload: map[string]*qdrant.Value{
				"id":         qdrant.NewValueString(entry.ID),
				"text":       qdrant.NewValueString(entry.Text),
				MetaDocument: qdrant.NewValueString(entry.Document),
				MetaPage:     qdrant.NewValueInt(int64(entry.Page)),
			},
		}
	}

	err := s.retryOperation(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.config.Collection,
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting points to collection %s: %w", s.config.Collection, err)
	}

	span.SetAttributes(attribute.Int("points_added", len(points)))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query returns up to k entries ranked by descending cosine similarity.
func (s *QdrantStore) Query(ctx context.Context, embedding []float32, k int) ([]Result, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("k", k),
	)

	if err := validateQuery(embedding, k, s.config.VectorSize); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var points []*qdrant.ScoredPoint
	err := s.retryOperation(ctx, "query", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.config.Collection,
			Query:          qdrant.NewQuery(embedding...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	out := make([]Result, len(points))
	for i, point := range points {
		result := Result{Score: point.Score}
		if payload := point.GetPayload(); payload != nil {
			result.ID = payload["id"].GetStringValue()
			result.Text = payload["text"].GetStringValue()
			result.Document = payload[MetaDocument].GetStringValue()
			result.Page = int(payload[MetaPage].GetIntegerValue())
		}
		out[i] = result
	}

	span.SetAttributes(attribute.Int("results_count", len(out)))
	span.SetStatus(codes.Ok, "success")
	return out, nil
}

// DocumentIDs returns the ids of all entries belonging to a document,
// scrolling the collection with a payload filter.
func (s *QdrantStore) DocumentIDs(ctx context.Context, documentID string) ([]string, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.DocumentIDs")
	defer span.End()

	span.SetAttributes(attribute.String("document", documentID))

	if documentID == "" {
		return nil, fmt.Errorf("document id cannot be empty")
	}

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(MetaDocument, documentID),
		},
	}

	var ids []string
	var offset *qdrant.PointId
	for {
		var (
			points []*qdrant.RetrievedPoint
			next   *qdrant.PointId
		)
		err := s.retryOperation(ctx, "scroll", func() error {
			var err error
			points, next, err = s.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
				CollectionName: s.config.Collection,
				Filter:         filter,
				Limit:          qdrant.PtrOf(uint32(256)),
				Offset:         offset,
				WithPayload:    qdrant.NewWithPayload(true),
			})
			return err
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("scrolling document %s: %w", documentID, err)
		}

		for _, point := range points {
			if payload := point.GetPayload(); payload != nil {
				ids = append(ids, payload["id"].GetStringValue())
			}
		}

		if next == nil {
			break
		}
		offset = next
	}

	span.SetAttributes(attribute.Int("ids_count", len(ids)))
	span.SetStatus(codes.Ok, "success")
	return ids, nil
}

// DeleteEntries removes the entries with the given ids.
func (s *QdrantStore) DeleteEntries(ctx context.Context, ids []string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.DeleteEntries")
	defer span.End()

	span.SetAttributes(attribute.Int("ids_count", len(ids)))

	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = pointID(id)
	}

	err := s.retryOperation(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.config.Collection,
			Points:         qdrant.NewPointsSelector(pointIDs...),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting entries: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Count returns the number of entries in the index.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.config.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: counting collection %s: %v", ErrStoreUnavailable, s.config.Collection, err)
	}
	return int(count), nil
}

// Close closes the Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
