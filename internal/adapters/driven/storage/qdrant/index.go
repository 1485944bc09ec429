// Package qdrant provides a VectorIndex backed by a Qdrant server over gRPC.
package qdrant

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// Default configuration values.
const (
	DefaultAddr    = "localhost:6334"
	DefaultTimeout = 10 * time.Second
)

// Payload fields that get a payload index.
var (
	keywordFields = []string{"source", "version", "docId"}
	integerFields = []string{"chunkIndex"}
)

// Config holds connection settings.
type Config struct {
	// URL is host:port, optionally prefixed with http:// or https://.
	// https enables TLS.
	URL string

	// APIKey is sent as the api-key header when set.
	APIKey string

	// Collection holds the points.
	Collection string

	// Timeout bounds each call.
	Timeout time.Duration
}

// VectorIndex stores points in a Qdrant collection using cosine distance.
type VectorIndex struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	health      pb.QdrantClient
	collection  string
	apiKey      string
	timeout     time.Duration
}

// New dials Qdrant. The connection is established lazily by gRPC.
func New(cfg Config) (*VectorIndex, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection is required")
	}
	addr, useTLS, err := parseAddr(cfg.URL)
	if err != nil {
		return nil, err
	}

	creds := insecure.NewCredentials()
	if useTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect %s: %w", addr, err)
	}

	idx := newWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), pb.NewQdrantClient(conn), cfg)
	idx.conn = conn
	return idx, nil
}

func newWithClients(points pb.PointsClient, collections pb.CollectionsClient, health pb.QdrantClient, cfg Config) *VectorIndex {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &VectorIndex{
		points:      points,
		collections: collections,
		health:      health,
		collection:  cfg.Collection,
		apiKey:      cfg.APIKey,
		timeout:     timeout,
	}
}

// parseAddr turns a configured URL into a gRPC target.
func parseAddr(raw string) (string, bool, error) {
	if raw == "" {
		return DefaultAddr, false, nil
	}
	if !strings.Contains(raw, "://") {
		return raw, false, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("qdrant: invalid URL %q: %w", raw, err)
	}
	host := u.Host
	if u.Port() == "" {
		host += ":6334"
	}
	return host, u.Scheme == "https", nil
}

func (q *VectorIndex) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	if q.apiKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", q.apiKey)
	}
	return ctx, cancel
}

// EnsureCollection creates the collection and its payload indexes when
// missing. An existing collection with a different vector size is an error.
func (q *VectorIndex) EnsureCollection(ctx context.Context, dims int) error {
	ctx, cancel := q.callCtx(ctx)
	defer cancel()

	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() != q.collection {
			continue
		}
		info, err := q.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: q.collection})
		if err != nil {
			return fmt.Errorf("get collection %s: %w", q.collection, err)
		}
		size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != 0 && int(size) != dims {
			return fmt.Errorf("collection %s has %d dimensions, embeddings have %d", q.collection, size, dims)
		}
		return nil
	}

	logger.Info("qdrant creating collection=%s dims=%d", q.collection, dims)
	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{Size: uint64(dims), Distance: pb.Distance_Cosine},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}

	wait := true
	indexes := make(map[string]pb.FieldType, len(keywordFields)+len(integerFields))
	for _, f := range keywordFields {
		indexes[f] = pb.FieldType_FieldTypeKeyword
	}
	for _, f := range integerFields {
		indexes[f] = pb.FieldType_FieldTypeInteger
	}
	for field, typ := range indexes {
		fieldType := typ
		if _, err := q.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: q.collection,
			Wait:           &wait,
			FieldName:      field,
			FieldType:      &fieldType,
		}); err != nil {
			return fmt.Errorf("create payload index %s: %w", field, err)
		}
	}
	return nil
}

// Query searches the collection.
func (q *VectorIndex) Query(ctx context.Context, query driven.VectorQuery) ([]driven.VectorHit, error) {
	filter, err := toFilter(query.Filter)
	if err != nil {
		return nil, err
	}

	ctx, cancel := q.callCtx(ctx)
	defer cancel()

	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         query.Vector,
		Filter:         filter,
		Limit:          uint64(max(query.TopK, 0)),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: query.WithVectors}},
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", q.collection, err)
	}

	hits := make([]driven.VectorHit, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		hit := driven.VectorHit{
			ID:      pointID(p.GetId()),
			Score:   float64(p.GetScore()),
			Payload: fromPayload(p.GetPayload()),
		}
		if query.WithVectors {
			hit.Vector = p.GetVectors().GetVector().GetData()
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Upsert writes points and waits for them to be indexed.
func (q *VectorIndex) Upsert(ctx context.Context, points []driven.Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*pb.PointStruct, 0, len(points))
	for _, p := range points {
		payload, err := toPayload(p.Payload)
		if err != nil {
			return fmt.Errorf("point %s: %w", p.ID, err)
		}
		structs = append(structs, &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: p.Vector}}},
			Payload: payload,
		})
	}

	ctx, cancel := q.callCtx(ctx)
	defer cancel()

	wait := true
	if _, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         structs,
	}); err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

// Delete removes points matching filter. An empty filter deletes everything.
func (q *VectorIndex) Delete(ctx context.Context, f driven.Filter) error {
	filter, err := toFilter(f)
	if err != nil {
		return err
	}
	if filter == nil {
		filter = &pb.Filter{}
	}

	ctx, cancel := q.callCtx(ctx)
	defer cancel()

	wait := true
	if _, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         &pb.PointsSelector{PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: filter}},
	}); err != nil {
		return fmt.Errorf("delete from %s: %w", q.collection, err)
	}
	return nil
}

// Count returns the exact number of points matching filter.
func (q *VectorIndex) Count(ctx context.Context, f driven.Filter) (int, error) {
	filter, err := toFilter(f)
	if err != nil {
		return 0, err
	}

	ctx, cancel := q.callCtx(ctx)
	defer cancel()

	exact := true
	resp, err := q.points.Count(ctx, &pb.CountPoints{
		CollectionName: q.collection,
		Filter:         filter,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", q.collection, err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Ping runs the Qdrant health check.
func (q *VectorIndex) Ping(ctx context.Context) error {
	ctx, cancel := q.callCtx(ctx)
	defer cancel()

	if _, err := q.health.HealthCheck(ctx, &pb.HealthCheckRequest{}); err != nil {
		return fmt.Errorf("qdrant: health check: %w", err)
	}
	return nil
}

// Close closes the gRPC connection.
func (q *VectorIndex) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

// toFilter converts equality predicates into must conditions.
func toFilter(f driven.Filter) (*pb.Filter, error) {
	if len(f) == 0 {
		return nil, nil
	}
	must := make([]*pb.Condition, 0, len(f))
	for key, value := range f {
		match, err := toMatch(value)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", key, err)
		}
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{Key: key, Match: match}},
		})
	}
	return &pb.Filter{Must: must}, nil
}

func toMatch(v any) (*pb.Match, error) {
	switch t := v.(type) {
	case string:
		return &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: t}}, nil
	case bool:
		return &pb.Match{MatchValue: &pb.Match_Boolean{Boolean: t}}, nil
	case int:
		return &pb.Match{MatchValue: &pb.Match_Integer{Integer: int64(t)}}, nil
	case int64:
		return &pb.Match{MatchValue: &pb.Match_Integer{Integer: t}}, nil
	case float64:
		if t == math.Trunc(t) {
			return &pb.Match{MatchValue: &pb.Match_Integer{Integer: int64(t)}}, nil
		}
	}
	return nil, fmt.Errorf("%w: unsupported value %v (%T)", domain.ErrInvalidInput, v, v)
}

func toPayload(m map[string]any) (map[string]*pb.Value, error) {
	out := make(map[string]*pb.Value, len(m))
	for k, v := range m {
		val, err := toValue(v)
		if err != nil {
			return nil, fmt.Errorf("payload %s: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

func toValue(v any) (*pb.Value, error) {
	switch t := v.(type) {
	case nil:
		return &pb.Value{Kind: &pb.Value_NullValue{NullValue: pb.NullValue_NULL_VALUE}}, nil
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: t}}, nil
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: t}}, nil
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(t)}}, nil
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: t}}, nil
	case float32:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: float64(t)}}, nil
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: t}}, nil
	case []string:
		list := make([]*pb.Value, len(t))
		for i, s := range t {
			list[i] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
		}
		return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: list}}}, nil
	case []any:
		list := make([]*pb.Value, len(t))
		for i, item := range t {
			val, err := toValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = val
		}
		return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: list}}}, nil
	case map[string]string:
		fields := make(map[string]*pb.Value, len(t))
		for k, s := range t {
			fields[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
		}
		return &pb.Value{Kind: &pb.Value_StructValue{StructValue: &pb.Struct{Fields: fields}}}, nil
	case map[string]any:
		fields, err := toPayload(t)
		if err != nil {
			return nil, err
		}
		return &pb.Value{Kind: &pb.Value_StructValue{StructValue: &pb.Struct{Fields: fields}}}, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

func fromPayload(m map[string]*pb.Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *pb.Value) any {
	switch k := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return k.StringValue
	case *pb.Value_IntegerValue:
		return k.IntegerValue
	case *pb.Value_DoubleValue:
		return k.DoubleValue
	case *pb.Value_BoolValue:
		return k.BoolValue
	case *pb.Value_ListValue:
		list := make([]any, len(k.ListValue.GetValues()))
		for i, item := range k.ListValue.GetValues() {
			list[i] = fromValue(item)
		}
		return list
	case *pb.Value_StructValue:
		return fromPayload(k.StructValue.GetFields())
	default:
		return nil
	}
}

func pointID(id *pb.PointId) string {
	switch v := id.GetPointIdOptions().(type) {
	case *pb.PointId_Uuid:
		return v.Uuid
	case *pb.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	default:
		return ""
	}
}
