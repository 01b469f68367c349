// Package qdrant 提供基于 Qdrant gRPC 接口的向量索引实现
package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"crm-rag-api/internal/application/retrieval"
	"crm-rag-api/internal/config"
	"crm-rag-api/internal/domain/entity"
	"crm-rag-api/pkg/metrics"
)

const (
	backendName = "qdrant"

	payloadDocID    = "doc_id"
	payloadType     = "type"
	payloadContent  = "content"
	payloadMetadata = "metadata"
)

var tracer = otel.Tracer("qdrant")

// Store Qdrant 向量索引，点 ID 由文档 ID 派生（UUIDv5），原始 ID 存于 payload
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dim         int
}

var _ retrieval.VectorIndex = (*Store)(nil)

// New 建立到 Qdrant 的 gRPC 连接
func New(cfg *config.QdrantConfig, collection string, dim int) (*Store, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial qdrant %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		dim:         dim,
	}, nil
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Close 关闭连接
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) Name() string { return s.collection }

// HealthCheck 健康检查
func (s *Store) HealthCheck(ctx context.Context) error {
	if _, err := s.collections.List(ctx, &pb.ListCollectionsRequest{}); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

func (s *Store) Ready(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "qdrant.Ready", trace.WithAttributes(attribute.String("collection", s.collection)))
	defer span.End()

	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return true, nil
		}
	}
	return false, nil
}

// Initialize 集合不存在时创建（COSINE）
func (s *Store) Initialize(ctx context.Context) (err error) {
	defer func(start time.Time) { metrics.ObserveVectorOp(backendName, "initialize", start, err) }(time.Now())

	ok, err := s.Ready(ctx)
	if err != nil || ok {
		return err
	}
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(s.dim),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, docs []*retrieval.VectorDocument) (err error) {
	if len(docs) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "qdrant.Upsert", trace.WithAttributes(attribute.Int("count", len(docs))))
	defer span.End()
	defer func(start time.Time) { metrics.ObserveVectorOp(backendName, "upsert", start, err) }(time.Now())

	points := make([]*pb.PointStruct, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		if len(d.Vector) != s.dim {
			return fmt.Errorf("vector dimension mismatch for %s: want %d, got %d", d.ID, s.dim, len(d.Vector))
		}
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", d.ID, err)
		}
		points = append(points, &pb.PointStruct{
			Id: pointID(d.ID),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: d.Vector}},
			},
			Payload: map[string]*pb.Value{
				payloadDocID:    stringValue(d.ID),
				payloadType:     stringValue(string(d.Metadata.Type)),
				payloadContent:  stringValue(d.Content),
				payloadMetadata: stringValue(string(meta)),
			},
		})
	}

	wait := true
	if _, err = s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, params *retrieval.VectorQueryParams) (_ []*retrieval.VectorHit, err error) {
	if params == nil || params.TopK <= 0 {
		return nil, nil
	}
	ctx, span := tracer.Start(ctx, "qdrant.Search", trace.WithAttributes(attribute.Int("top_k", params.TopK)))
	defer span.End()
	defer func(start time.Time) { metrics.ObserveVectorOp(backendName, "query", start, err) }(time.Now())

	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         params.Vector,
		Limit:          uint64(params.TopK),
		Filter:         typeFilter(params.Types),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	resp, err := s.points.Search(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]*retrieval.VectorHit, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		doc := decodePayload(r.GetPayload())
		hits = append(hits, &retrieval.VectorHit{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: doc.Metadata,
			Distance: 1 - float64(r.GetScore()),
		})
	}
	return hits, nil
}

func (s *Store) Count(ctx context.Context) (_ int64, err error) {
	defer func(start time.Time) { metrics.ObserveVectorOp(backendName, "count", start, err) }(time.Now())

	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{CollectionName: s.collection, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int64(resp.GetResult().GetCount()), nil
}

// DeleteAll 删除集合后重建
func (s *Store) DeleteAll(ctx context.Context) (err error) {
	defer func(start time.Time) { metrics.ObserveVectorOp(backendName, "delete_all", start, err) }(time.Now())

	ok, err := s.Ready(ctx)
	if err != nil {
		return err
	}
	if ok {
		if _, err = s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: s.collection}); err != nil {
			return fmt.Errorf("failed to delete collection %s: %w", s.collection, err)
		}
	}
	return s.Initialize(ctx)
}

// List 游标为 Qdrant 返回的下一页点 ID
func (s *Store) List(ctx context.Context, limit int, cursor string) (_ *retrieval.VectorPage, err error) {
	req := &pb.ScrollPoints{
		CollectionName: s.collection,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if limit > 0 {
		l := uint32(limit)
		req.Limit = &l
	}
	if cursor != "" {
		if _, perr := uuid.Parse(cursor); perr != nil {
			return nil, retrieval.NewValidationError("cursor", "invalid cursor")
		}
		req.Offset = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: cursor}}
	}
	defer func(start time.Time) { metrics.ObserveVectorOp(backendName, "list", start, err) }(time.Now())

	resp, err := s.points.Scroll(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to scroll points: %w", err)
	}
	page := &retrieval.VectorPage{Documents: make([]*retrieval.VectorDocument, 0, len(resp.GetResult()))}
	for _, p := range resp.GetResult() {
		page.Documents = append(page.Documents, decodePayload(p.GetPayload()))
	}
	if next := resp.GetNextPageOffset(); next != nil {
		page.NextCursor = next.GetUuid()
		if page.NextCursor == "" {
			page.NextCursor = strconv.FormatUint(next.GetNum(), 10)
		}
	}
	return page, nil
}

// pointID 文档 ID 到 Qdrant 点 ID 的稳定映射
func pointID(docID string) *pb.PointId {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID)).String()
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func typeFilter(types []entity.RecordType) *pb.Filter {
	if len(types) == 0 {
		return nil
	}
	should := make([]*pb.Condition, 0, len(types))
	for _, t := range types {
		should = append(should, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key:   payloadType,
					Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: string(t)}},
				},
			},
		})
	}
	return &pb.Filter{Should: should}
}

func decodePayload(payload map[string]*pb.Value) *retrieval.VectorDocument {
	doc := &retrieval.VectorDocument{
		ID:      payload[payloadDocID].GetStringValue(),
		Content: payload[payloadContent].GetStringValue(),
	}
	if raw := payload[payloadMetadata].GetStringValue(); raw != "" {
		_ = json.Unmarshal([]byte(raw), &doc.Metadata)
	}
	if doc.Metadata.Type == "" {
		doc.Metadata.Type = entity.RecordType(payload[payloadType].GetStringValue())
	}
	return doc
}
