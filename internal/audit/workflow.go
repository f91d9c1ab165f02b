// Package audit runs the compliance workflow: retrieve matched Act
// sections for a document, analyze compliance with the LLM, and persist the
// verdict. The workflow is a fixed, linear state machine; the first
// unrecovered error aborts the run and nothing partial is written.
package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/dataguard/compliguard/internal/chunker"
	"github.com/dataguard/compliguard/internal/llm"
	"github.com/dataguard/compliguard/internal/logger"
	"github.com/dataguard/compliguard/internal/store"
	"github.com/dataguard/compliguard/internal/vectorindex"
)

const (
	documentSplitSize    = 10000
	documentSplitOverlap = 500
	// Only the first segments of a re-chunked document feed the LLM; this
	// caps downstream prompt size for arbitrarily large uploads.
	documentSegmentCap = 2

	retrievalTopK   = 10
	similarityFloor = 0.75

	maxSectionListChars = 500
	noSectionsFound     = "No relevant sections found"
)

type stage string

const (
	stageRetrieve stage = "retrieve"
	stageAnalyze  stage = "analyze"
	stageStore    stage = "store"
	stageDone     stage = "done"
)

// transitions is the workflow's entire topology.
var transitions = map[stage]stage{
	stageRetrieve: stageAnalyze,
	stageAnalyze:  stageStore,
	stageStore:    stageDone,
}

// MatchedSection is one Act section retained by retrieval.
type MatchedSection struct {
	SectionNumber string
	Content       string
	Score         float64
}

// Result is the completed verdict as persisted.
type Result struct {
	DocumentID       int64  `json:"document_id"`
	DPDPSection      string `json:"dpdp_section"`
	ComplianceStatus bool   `json:"compliance_status"`
	Gaps             string `json:"gaps"`
	Suggestions      string `json:"suggestions"`
}

// state is scoped to a single run and never shared or persisted.
type state struct {
	documentID   int64
	documentText string
	matched      []MatchedSection
	result       Result
}

// Store is the relational collaborator the workflow reads and writes.
type Store interface {
	GetChunksByDocumentID(documentID int64) ([]store.DocumentChunk, error)
	InsertAudit(rec store.AuditRecord) error
}

// Index is the vector index collaborator.
type Index interface {
	EnsureIndex(ctx context.Context) error
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vectorindex.Match, error)
}

// Analyzer is the LLM collaborator.
type Analyzer interface {
	Analyze(ctx context.Context, documentText, regulationText string) (llm.Verdict, error)
}

type Workflow struct {
	log      *logger.Logger
	store    Store
	index    Index
	analyzer Analyzer
	splitter *chunker.Splitter
}

func NewWorkflow(log *logger.Logger, auditStore Store, index Index, analyzer Analyzer) (*Workflow, error) {
	splitter, err := chunker.New(documentSplitSize, documentSplitOverlap)
	if err != nil {
		return nil, err
	}
	return &Workflow{
		log:      log.With("service", "AuditWorkflow"),
		store:    auditStore,
		index:    index,
		analyzer: analyzer,
		splitter: splitter,
	}, nil
}

// Run executes retrieve, analyze and store in order for one document and
// returns the persisted verdict.
func (w *Workflow) Run(ctx context.Context, documentID int64) (Result, error) {
	st := &state{documentID: documentID}

	handlers := map[stage]func(context.Context, *state) error{
		stageRetrieve: w.retrieve,
		stageAnalyze:  w.analyze,
		stageStore:    w.persist,
	}

	for current := stageRetrieve; current != stageDone; current = transitions[current] {
		if err := handlers[current](ctx, st); err != nil {
			return Result{}, fmt.Errorf("audit %s: %w", current, err)
		}
	}
	return st.result, nil
}

// retrieve loads the document's text and queries the Act namespace for the
// nearest sections passing the consumer-side filter.
func (w *Workflow) retrieve(ctx context.Context, st *state) error {
	if err := w.index.EnsureIndex(ctx); err != nil {
		return err
	}

	chunks, err := w.store.GetChunksByDocumentID(st.documentID)
	if err != nil {
		return err
	}

	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.ChunkText)
	}
	segments, err := w.splitter.Split(strings.Join(texts, "\n"))
	if err != nil {
		return err
	}
	if len(segments) > documentSegmentCap {
		segments = segments[:documentSegmentCap]
	}
	st.documentText = strings.Join(segments, "\n")

	vectors, err := w.index.Embed(ctx, []string{st.documentText})
	if err != nil {
		return err
	}
	matches, err := w.index.Query(ctx, vectorindex.NamespaceRegulation, vectors[0], retrievalTopK)
	if err != nil {
		return err
	}

	for _, match := range matches {
		sectionNumber, _ := match.Metadata["section_number"].(string)
		if strings.HasPrefix(sectionNumber, vectorindex.ChunkPrefix) {
			continue
		}
		content, ok := match.Metadata["content"].(string)
		if !ok {
			continue
		}
		if match.Score <= similarityFloor {
			continue
		}
		st.matched = append(st.matched, MatchedSection{
			SectionNumber: sectionNumber,
			Content:       content,
			Score:         match.Score,
		})
	}
	w.log.Info("Retrieved DPDP Act sections", "document_id", st.documentID, "matched", len(st.matched))
	return nil
}

// analyze builds the regulation block, calls the LLM and assembles the
// result. Zero matches is not an error; the verdict records that nothing
// relevant was found.
func (w *Workflow) analyze(ctx context.Context, st *state) error {
	lines := make([]string, 0, len(st.matched))
	numbers := make([]string, 0, len(st.matched))
	for _, m := range st.matched {
		lines = append(lines, fmt.Sprintf("%s: %s", m.SectionNumber, m.Content))
		numbers = append(numbers, m.SectionNumber)
	}
	regulationText := strings.Join(lines, "\n")
	if regulationText == "" {
		regulationText = noSectionsFound
	}

	verdict, err := w.analyzer.Analyze(ctx, st.documentText, regulationText)
	if err != nil {
		return err
	}

	dpdpSection := strings.Join(numbers, ", ")
	if dpdpSection == "" {
		dpdpSection = "None"
	}
	if len(dpdpSection) > maxSectionListChars {
		dpdpSection = dpdpSection[:maxSectionListChars-3] + "..."
	}

	st.result = Result{
		DocumentID:       st.documentID,
		DPDPSection:      dpdpSection,
		ComplianceStatus: verdict.ComplianceStatus,
		Gaps:             verdict.Gaps,
		Suggestions:      verdict.Suggestions,
	}
	return nil
}

// persist writes the verdict, the workflow's only durable effect.
func (w *Workflow) persist(_ context.Context, st *state) error {
	if err := w.store.InsertAudit(store.AuditRecord{
		DocumentID:       st.result.DocumentID,
		DPDPSection:      st.result.DPDPSection,
		ComplianceStatus: st.result.ComplianceStatus,
		Gaps:             st.result.Gaps,
		Suggestions:      st.result.Suggestions,
	}); err != nil {
		return err
	}
	w.log.Info("Stored audit", "document_id", st.documentID, "compliant", st.result.ComplianceStatus)
	return nil
}
