package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataguard/compliguard/internal/clients/pinecone"
	"github.com/dataguard/compliguard/internal/logger"
)

type fakePinecone struct {
	exists  bool
	created []pinecone.CreateIndexRequest
	upserts []struct {
		host string
		req  pinecone.UpsertRequest
	}
	queries     []pinecone.QueryRequest
	queryResult *pinecone.QueryResponse
}

func (f *fakePinecone) DescribeIndex(_ context.Context, indexName string) (*pinecone.IndexDescription, error) {
	if !f.exists {
		return nil, pinecone.ErrIndexNotFound
	}
	desc := &pinecone.IndexDescription{Name: indexName, Host: "test-host.pinecone.io", Dimension: 3}
	desc.Status.Ready = true
	return desc, nil
}

func (f *fakePinecone) CreateIndex(_ context.Context, req pinecone.CreateIndexRequest) (*pinecone.IndexDescription, error) {
	f.created = append(f.created, req)
	f.exists = true
	return &pinecone.IndexDescription{Name: req.Name}, nil
}

func (f *fakePinecone) UpsertVectors(_ context.Context, host string, req pinecone.UpsertRequest) (*pinecone.UpsertResponse, error) {
	f.upserts = append(f.upserts, struct {
		host string
		req  pinecone.UpsertRequest
	}{host, req})
	return &pinecone.UpsertResponse{UpsertedCount: int64(len(req.Vectors))}, nil
}

func (f *fakePinecone) Query(_ context.Context, _ string, req pinecone.QueryRequest) (*pinecone.QueryResponse, error) {
	f.queries = append(f.queries, req)
	if f.queryResult != nil {
		return f.queryResult, nil
	}
	return &pinecone.QueryResponse{}, nil
}

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{float32(i), 0, 1}
	}
	return out, nil
}

func newTestGateway(t *testing.T, pc *fakePinecone) *Gateway {
	t.Helper()
	g, err := NewGateway(logger.NewNop(), pc, &fakeEmbedder{}, "test-index", 3, "aws", "us-west-2")
	require.NoError(t, err)
	return g
}

func TestEnsureIndexCreatesLazily(t *testing.T) {
	pc := &fakePinecone{exists: false}
	g := newTestGateway(t, pc)

	require.NoError(t, g.EnsureIndex(context.Background()))

	require.Len(t, pc.created, 1)
	req := pc.created[0]
	assert.Equal(t, "test-index", req.Name)
	assert.Equal(t, 3, req.Dimension)
	assert.Equal(t, "cosine", req.Metric)
	assert.Equal(t, "aws", req.Spec.Serverless.Cloud)
	assert.Equal(t, "us-west-2", req.Spec.Serverless.Region)
}

func TestEnsureIndexReusesExisting(t *testing.T) {
	pc := &fakePinecone{exists: true}
	g := newTestGateway(t, pc)

	require.NoError(t, g.EnsureIndex(context.Background()))
	require.NoError(t, g.EnsureIndex(context.Background()))

	assert.Empty(t, pc.created)
}

func TestIndexUpsertsOneBatch(t *testing.T) {
	pc := &fakePinecone{exists: true}
	g := newTestGateway(t, pc)

	records := []Record{
		{ID: "Section 4", Text: "grounds for processing", Metadata: map[string]any{"content": "grounds for processing"}},
		{ID: "Chunk_1_Section 4", Text: "grounds", Metadata: map[string]any{"chunk_index": 1}},
	}
	require.NoError(t, g.Index(context.Background(), NamespaceRegulation, records))

	require.Len(t, pc.upserts, 1)
	up := pc.upserts[0]
	assert.Equal(t, "test-host.pinecone.io", up.host)
	assert.Equal(t, NamespaceRegulation, up.req.Namespace)
	require.Len(t, up.req.Vectors, 2)
	assert.Equal(t, "Section 4", up.req.Vectors[0].ID)
	assert.Equal(t, "Chunk_1_Section 4", up.req.Vectors[1].ID)
	for _, v := range up.req.Vectors {
		assert.Len(t, v.Values, 3)
	}
}

func TestIndexEmptyBatchIsNoop(t *testing.T) {
	pc := &fakePinecone{exists: true}
	g := newTestGateway(t, pc)

	require.NoError(t, g.Index(context.Background(), NamespaceDocuments, nil))
	assert.Empty(t, pc.upserts)
}

func TestQueryMapsMatches(t *testing.T) {
	pc := &fakePinecone{exists: true}
	pc.queryResult = &pinecone.QueryResponse{
		Matches: []pinecone.QueryMatch{
			{ID: "Section 6", Score: 0.91, Metadata: map[string]any{"content": "consent"}},
			{ID: "Chunk_1_Section 6", Score: 0.80, Metadata: map[string]any{"chunk_index": float64(1)}},
		},
	}
	g := newTestGateway(t, pc)

	matches, err := g.Query(context.Background(), NamespaceRegulation, []float32{0, 0, 1}, 10)
	require.NoError(t, err)

	require.Len(t, pc.queries, 1)
	assert.Equal(t, 10, pc.queries[0].TopK)
	assert.True(t, pc.queries[0].IncludeMetadata)

	require.Len(t, matches, 2)
	assert.Equal(t, "Section 6", matches[0].ID)
	assert.InDelta(t, 0.91, matches[0].Score, 1e-9)
	assert.Equal(t, "consent", matches[0].Metadata["content"])
}
