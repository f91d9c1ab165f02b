// Package vectorindex owns embedding generation and the namespaced Pinecone
// index. Namespaces keep the regulatory corpus and uploaded documents in
// disjoint collections.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dataguard/compliguard/internal/clients/openai"
	"github.com/dataguard/compliguard/internal/clients/pinecone"
	"github.com/dataguard/compliguard/internal/logger"
)

const (
	// NamespaceRegulation holds the embedded DPDP Act corpus.
	NamespaceRegulation = "dpdp_act"
	// NamespaceDocuments holds embedded chunks of uploaded documents.
	NamespaceDocuments = "documents"

	// ChunkPrefix marks chunk-level records in section_number metadata;
	// retrieval consumers filter these out.
	ChunkPrefix = "Chunk_"
)

const (
	embedBatchSize = 64
	readyPollDelay = 2 * time.Second
	readyPollMax   = 15
)

// Record is one embeddable entry: the id is the source record's id, unique
// within its namespace; upserting the same id overwrites.
type Record struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// Match is one nearest neighbor, cosine score in [-1, 1].
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

type Gateway struct {
	log      *logger.Logger
	pc       pinecone.Client
	embedder openai.Client

	indexName string
	dimension int
	cloud     string
	region    string

	mu   sync.Mutex
	host string
}

func NewGateway(log *logger.Logger, pc pinecone.Client, embedder openai.Client, indexName string, dimension int, cloud, region string) (*Gateway, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if pc == nil {
		return nil, fmt.Errorf("pinecone client required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if indexName == "" {
		return nil, fmt.Errorf("index name required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("index dimension required")
	}
	return &Gateway{
		log:       log.With("service", "VectorIndexGateway"),
		pc:        pc,
		embedder:  embedder,
		indexName: indexName,
		dimension: dimension,
		cloud:     cloud,
		region:    region,
	}, nil
}

// EnsureIndex lazily creates the index on first use and caches its
// data-plane host. Safe to call before every operation.
func (g *Gateway) EnsureIndex(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.host != "" {
		return nil
	}

	desc, err := g.pc.DescribeIndex(ctx, g.indexName)
	if errors.Is(err, pinecone.ErrIndexNotFound) {
		req := pinecone.CreateIndexRequest{
			Name:      g.indexName,
			Dimension: g.dimension,
			Metric:    "cosine",
		}
		req.Spec.Serverless.Cloud = g.cloud
		req.Spec.Serverless.Region = g.region
		if _, err := g.pc.CreateIndex(ctx, req); err != nil {
			return fmt.Errorf("create index %s: %w", g.indexName, err)
		}
		g.log.Info("Created Pinecone index", "index_name", g.indexName, "dimension", g.dimension)
		desc, err = g.waitReady(ctx)
	}
	if err != nil {
		return fmt.Errorf("describe index %s: %w", g.indexName, err)
	}
	if desc.Dimension != 0 && desc.Dimension != g.dimension {
		return fmt.Errorf("index %s has dimension %d, want %d", g.indexName, desc.Dimension, g.dimension)
	}
	if desc.Host == "" {
		return fmt.Errorf("index %s resolved to an empty host", g.indexName)
	}
	g.host = desc.Host
	return nil
}

func (g *Gateway) waitReady(ctx context.Context) (*pinecone.IndexDescription, error) {
	var desc *pinecone.IndexDescription
	var err error
	for i := 0; i < readyPollMax; i++ {
		desc, err = g.pc.DescribeIndex(ctx, g.indexName)
		if err == nil && desc.Status.Ready {
			return desc, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(readyPollDelay):
		}
	}
	if err != nil {
		return nil, err
	}
	return desc, nil
}

func (g *Gateway) hostAddr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.host
}

// Embed generates one vector per text. Deterministic for a fixed model.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := g.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i, vec := range vectors {
		if len(vec) != g.dimension {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(vec), g.dimension)
		}
	}
	return vectors, nil
}

// Index embeds every record and upserts the whole batch into one namespace.
// Embedding requests for the batch are issued together and awaited as a
// group; the upsert itself is a single call.
func (g *Gateway) Index(ctx context.Context, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := g.EnsureIndex(ctx); err != nil {
		return err
	}

	vectors := make([][]float32, len(records))
	grp, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(records); start += embedBatchSize {
		start := start
		end := start + embedBatchSize
		if end > len(records) {
			end = len(records)
		}
		grp.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, rec := range records[start:end] {
				texts = append(texts, rec.Text)
			}
			embedded, err := g.Embed(gctx, texts)
			if err != nil {
				return err
			}
			copy(vectors[start:end], embedded)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return fmt.Errorf("embed batch for %s: %w", namespace, err)
	}

	upsert := pinecone.UpsertRequest{Namespace: namespace}
	upsert.Vectors = make([]pinecone.Vector, len(records))
	for i, rec := range records {
		upsert.Vectors[i] = pinecone.Vector{
			ID:       rec.ID,
			Values:   vectors[i],
			Metadata: rec.Metadata,
		}
	}
	if _, err := g.pc.UpsertVectors(ctx, g.hostAddr(), upsert); err != nil {
		return fmt.Errorf("upsert %d vectors into %s: %w", len(records), namespace, err)
	}
	g.log.Info("Stored embeddings", "namespace", namespace, "count", len(records))
	return nil
}

// Query returns the topK nearest neighbors in a namespace, ordered by
// descending score. Filtering low-confidence or chunk-level matches is the
// caller's contract, not the gateway's.
func (g *Gateway) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	if err := g.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	resp, err := g.pc.Query(ctx, g.hostAddr(), pinecone.QueryRequest{
		Namespace:       namespace,
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", namespace, err)
	}
	matches := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return matches, nil
}
