package qdrant

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// mockPoints embeds the generated interface and overrides the calls the index makes.
type mockPoints struct {
	pb.PointsClient
	search       *pb.SearchPoints
	searchResult []*pb.ScoredPoint
	upserted     *pb.UpsertPoints
	deleted      *pb.DeletePoints
	counted      *pb.CountPoints
	fieldIndexes []string
	err          error
	md           metadata.MD
}

func (m *mockPoints) Search(ctx context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.search = in
	m.md, _ = metadata.FromOutgoingContext(ctx)
	if m.err != nil {
		return nil, m.err
	}
	return &pb.SearchResponse{Result: m.searchResult}, nil
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upserted = in
	return &pb.PointsOperationResponse{}, m.err
}

func (m *mockPoints) Delete(_ context.Context, in *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.deleted = in
	return &pb.PointsOperationResponse{}, m.err
}

func (m *mockPoints) Count(_ context.Context, in *pb.CountPoints, _ ...grpc.CallOption) (*pb.CountResponse, error) {
	m.counted = in
	return &pb.CountResponse{Result: &pb.CountResult{Count: 7}}, m.err
}

func (m *mockPoints) CreateFieldIndex(_ context.Context, in *pb.CreateFieldIndexCollection, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.fieldIndexes = append(m.fieldIndexes, in.GetFieldName())
	return &pb.PointsOperationResponse{}, nil
}

type mockCollections struct {
	pb.CollectionsClient
	existing map[string]uint64
	created  *pb.CreateCollection
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	resp := &pb.ListCollectionsResponse{}
	for name := range m.existing {
		resp.Collections = append(resp.Collections, &pb.CollectionDescription{Name: name})
	}
	return resp, nil
}

func (m *mockCollections) Get(_ context.Context, in *pb.GetCollectionInfoRequest, _ ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error) {
	size := m.existing[in.GetCollectionName()]
	return &pb.GetCollectionInfoResponse{Result: &pb.CollectionInfo{
		Config: &pb.CollectionConfig{Params: &pb.CollectionParams{
			VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{Size: size}}},
		}},
	}}, nil
}

func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = in
	return &pb.CollectionOperationResponse{Result: true}, nil
}

type mockHealth struct {
	pb.QdrantClient
	err error
}

func (m *mockHealth) HealthCheck(_ context.Context, _ *pb.HealthCheckRequest, _ ...grpc.CallOption) (*pb.HealthCheckReply, error) {
	return &pb.HealthCheckReply{}, m.err
}

func newTestIndex(points *mockPoints, collections *mockCollections) *VectorIndex {
	return newWithClients(points, collections, &mockHealth{}, Config{Collection: "chunks", APIKey: "secret"})
}

func TestParseAddr(t *testing.T) {
	tests := []struct {
		raw     string
		addr    string
		useTLS  bool
		wantErr bool
	}{
		{"", DefaultAddr, false, false},
		{"qdrant:6334", "qdrant:6334", false, false},
		{"http://qdrant:7000", "qdrant:7000", false, false},
		{"https://cloud.example.com", "cloud.example.com:6334", true, false},
		{"https://%zz", "", false, true},
	}

	for _, tt := range tests {
		addr, useTLS, err := parseAddr(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.addr, addr)
		assert.Equal(t, tt.useTLS, useTLS)
	}
}

func TestVectorIndex_EnsureCollection_Creates(t *testing.T) {
	points := &mockPoints{}
	collections := &mockCollections{existing: map[string]uint64{}}
	idx := newTestIndex(points, collections)

	require.NoError(t, idx.EnsureCollection(context.Background(), 1536))

	require.NotNil(t, collections.created)
	params := collections.created.GetVectorsConfig().GetParams()
	assert.Equal(t, uint64(1536), params.GetSize())
	assert.Equal(t, pb.Distance_Cosine, params.GetDistance())
	assert.ElementsMatch(t, []string{"source", "version", "docId", "chunkIndex"}, points.fieldIndexes)
}

func TestVectorIndex_EnsureCollection_Existing(t *testing.T) {
	collections := &mockCollections{existing: map[string]uint64{"chunks": 768}}
	idx := newTestIndex(&mockPoints{}, collections)

	assert.NoError(t, idx.EnsureCollection(context.Background(), 768))
	assert.Nil(t, collections.created)

	err := idx.EnsureCollection(context.Background(), 1536)
	assert.ErrorContains(t, err, "768 dimensions")
}

func TestVectorIndex_Query(t *testing.T) {
	points := &mockPoints{searchResult: []*pb.ScoredPoint{{
		Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p1"}},
		Score: 0.5,
		Payload: map[string]*pb.Value{
			"source":     {Kind: &pb.Value_StringValue{StringValue: "faq"}},
			"chunkIndex": {Kind: &pb.Value_IntegerValue{IntegerValue: 3}},
			"pageStart":  {Kind: &pb.Value_NullValue{}},
			"metadata": {Kind: &pb.Value_StructValue{StructValue: &pb.Struct{Fields: map[string]*pb.Value{
				"lang": {Kind: &pb.Value_StringValue{StringValue: "es"}},
			}}}},
		},
	}}}
	idx := newTestIndex(points, &mockCollections{})

	hits, err := idx.Query(context.Background(), driven.VectorQuery{
		Vector: []float32{1, 0},
		TopK:   30,
		Filter: driven.Filter{"source": "faq", "chunkIndex": 3},
	})

	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "p1", hits[0].ID)
	assert.InDelta(t, 0.5, hits[0].Score, 1e-9)
	assert.Equal(t, "faq", hits[0].Payload["source"])
	assert.Equal(t, int64(3), hits[0].Payload["chunkIndex"])
	assert.Nil(t, hits[0].Payload["pageStart"])
	assert.Equal(t, map[string]any{"lang": "es"}, hits[0].Payload["metadata"])
	assert.Nil(t, hits[0].Vector)

	assert.Equal(t, uint64(30), points.search.GetLimit())
	assert.Len(t, points.search.GetFilter().GetMust(), 2)
	assert.False(t, points.search.GetWithVectors().GetEnable())
	assert.Equal(t, []string{"secret"}, points.md.Get("api-key"))
}

func TestVectorIndex_Query_Errors(t *testing.T) {
	idx := newTestIndex(&mockPoints{err: errors.New("unavailable")}, &mockCollections{})

	_, err := idx.Query(context.Background(), driven.VectorQuery{Vector: []float32{1}, TopK: 1})
	assert.ErrorContains(t, err, "unavailable")

	_, err = idx.Query(context.Background(), driven.VectorQuery{Filter: driven.Filter{"score": 0.5}})
	assert.ErrorContains(t, err, "unsupported value")
}

func TestToFilter_RejectsUnsupportedValues(t *testing.T) {
	for name, value := range map[string]any{
		"array":      []any{"a"},
		"object":     map[string]any{"k": "v"},
		"fractional": 2.5,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := toFilter(driven.Filter{"tags": value})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.ErrorContains(t, err, "filter tags")
		})
	}

	f, err := toFilter(driven.Filter{"year": float64(2024)})
	require.NoError(t, err)
	require.Len(t, f.Must, 1)
	assert.Equal(t, int64(2024), f.Must[0].GetField().GetMatch().GetInteger())
}

func TestVectorIndex_Upsert(t *testing.T) {
	points := &mockPoints{}
	idx := newTestIndex(points, &mockCollections{})

	err := idx.Upsert(context.Background(), []driven.Point{{
		ID:     "0b7c5e3c-5c49-5b1b-9c0e-3f8f3c9f3c11",
		Vector: []float32{0.1, 0.2},
		Payload: map[string]any{
			"text":       "hello",
			"chunkIndex": 0,
			"pageStart":  nil,
			"metadata":   map[string]any{"tags": []any{"a", "b"}},
		},
	}})

	require.NoError(t, err)
	require.Len(t, points.upserted.GetPoints(), 1)
	p := points.upserted.GetPoints()[0]
	assert.Equal(t, "0b7c5e3c-5c49-5b1b-9c0e-3f8f3c9f3c11", p.GetId().GetUuid())
	assert.Equal(t, []float32{0.1, 0.2}, p.GetVectors().GetVector().GetData())
	assert.Equal(t, int64(0), p.GetPayload()["chunkIndex"].GetIntegerValue())
	assert.True(t, points.upserted.GetWait())

	assert.NoError(t, idx.Upsert(context.Background(), nil))
}

func TestVectorIndex_Upsert_UnsupportedPayload(t *testing.T) {
	idx := newTestIndex(&mockPoints{}, &mockCollections{})

	err := idx.Upsert(context.Background(), []driven.Point{{ID: "x", Payload: map[string]any{"bad": struct{}{}}}})
	assert.ErrorContains(t, err, "unsupported type")
}

func TestVectorIndex_DeleteAndCount(t *testing.T) {
	points := &mockPoints{}
	idx := newTestIndex(points, &mockCollections{})

	require.NoError(t, idx.Delete(context.Background(), driven.Filter{"source": "faq"}))
	cond := points.deleted.GetPoints().GetFilter().GetMust()[0].GetField()
	assert.Equal(t, "source", cond.GetKey())
	assert.Equal(t, "faq", cond.GetMatch().GetKeyword())

	n, err := idx.Count(context.Background(), driven.Filter{"version": "v1"})
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.True(t, points.counted.GetExact())
}

func TestVectorIndex_Ping(t *testing.T) {
	idx := newWithClients(&mockPoints{}, &mockCollections{}, &mockHealth{err: errors.New("down")}, Config{Collection: "c"})
	assert.ErrorContains(t, idx.Ping(context.Background()), "down")
	assert.NoError(t, idx.Close())
}

func TestNew_RequiresCollection(t *testing.T) {
	_, err := New(Config{URL: "localhost:6334"})
	assert.Error(t, err)

	idx, err := New(Config{URL: "localhost:6334", Collection: "chunks"})
	require.NoError(t, err)
	assert.NoError(t, idx.Close())
}
