// Package ingest turns an uploaded file into stored, indexed document chunks.
package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dataguard/compliguard/internal/chunker"
	"github.com/dataguard/compliguard/internal/errs"
	"github.com/dataguard/compliguard/internal/extract"
	"github.com/dataguard/compliguard/internal/logger"
	"github.com/dataguard/compliguard/internal/vectorindex"
)

// ChunkStore persists document chunks.
type ChunkStore interface {
	InsertDocumentChunk(filename, chunkText string) (int64, error)
}

// Indexer batches embeddings into a vector index namespace.
type Indexer interface {
	Index(ctx context.Context, namespace string, records []vectorindex.Record) error
}

type Service struct {
	log      *logger.Logger
	store    ChunkStore
	index    Indexer
	splitter *chunker.Splitter

	// extractText is swappable so tests can feed raw text.
	extractText func(path string) (string, error)
}

func NewService(log *logger.Logger, chunkStore ChunkStore, index Indexer, splitter *chunker.Splitter) *Service {
	return &Service{
		log:         log.With("service", "DocumentIngestion"),
		store:       chunkStore,
		index:       index,
		splitter:    splitter,
		extractText: extract.Text,
	}
}

// Ingest extracts text from the file at path, chunks it, persists each
// non-blank chunk under filename, indexes the whole batch under the
// documents namespace, and returns the assigned chunk ids in order.
func (s *Service) Ingest(ctx context.Context, path, filename string) ([]int64, error) {
	text, err := s.extractText(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("document %s: %w", filename, errs.ErrEmptyContent)
	}

	chunks, err := s.splitter.Split(text)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", filename, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document %s: %w", filename, errs.ErrEmptyContent)
	}

	ids := make([]int64, 0, len(chunks))
	records := make([]vectorindex.Record, 0, len(chunks))
	for i, chunk := range chunks {
		id, err := s.store.InsertDocumentChunk(filename, chunk)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
		records = append(records, vectorindex.Record{
			ID:   strconv.FormatInt(id, 10),
			Text: chunk,
			Metadata: map[string]any{
				"filename":    filename,
				"chunk_index": i + 1,
			},
		})
	}

	if err := s.index.Index(ctx, vectorindex.NamespaceDocuments, records); err != nil {
		return nil, fmt.Errorf("index document %s: %w", filename, err)
	}
	s.log.Info("Ingested document", "filename", filename, "chunks", len(ids))
	return ids, nil
}
