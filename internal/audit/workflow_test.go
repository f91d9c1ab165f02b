package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataguard/compliguard/internal/errs"
	"github.com/dataguard/compliguard/internal/llm"
	"github.com/dataguard/compliguard/internal/logger"
	"github.com/dataguard/compliguard/internal/store"
	"github.com/dataguard/compliguard/internal/vectorindex"
)

type fakeStore struct {
	chunks    []store.DocumentChunk
	chunksErr error
	audits    []store.AuditRecord
	auditErr  error
}

func (f *fakeStore) GetChunksByDocumentID(documentID int64) ([]store.DocumentChunk, error) {
	if f.chunksErr != nil {
		return nil, f.chunksErr
	}
	return f.chunks, nil
}

func (f *fakeStore) InsertAudit(rec store.AuditRecord) error {
	if f.auditErr != nil {
		return f.auditErr
	}
	f.audits = append(f.audits, rec)
	return nil
}

type fakeIndex struct {
	matches    []vectorindex.Match
	queryCalls []struct {
		namespace string
		topK      int
	}
}

func (f *fakeIndex) EnsureIndex(context.Context) error { return nil }

func (f *fakeIndex) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeIndex) Query(_ context.Context, namespace string, _ []float32, topK int) ([]vectorindex.Match, error) {
	f.queryCalls = append(f.queryCalls, struct {
		namespace string
		topK      int
	}{namespace, topK})
	return f.matches, nil
}

type fakeAnalyzer struct {
	verdict        llm.Verdict
	err            error
	regulationText string
	documentText   string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, documentText, regulationText string) (llm.Verdict, error) {
	f.documentText = documentText
	f.regulationText = regulationText
	if f.err != nil {
		return llm.Verdict{}, f.err
	}
	return f.verdict, nil
}

func newTestWorkflow(t *testing.T, st *fakeStore, idx *fakeIndex, an *fakeAnalyzer) *Workflow {
	t.Helper()
	w, err := NewWorkflow(logger.NewNop(), st, idx, an)
	require.NoError(t, err)
	return w
}

func sectionMatch(number, content string, score float64) vectorindex.Match {
	return vectorindex.Match{
		ID:    number,
		Score: score,
		Metadata: map[string]any{
			"section_number": number,
			"content":        content,
		},
	}
}

func TestRunPersistsVerdict(t *testing.T) {
	st := &fakeStore{chunks: []store.DocumentChunk{
		{ID: 1, Filename: "policy.pdf", ChunkText: "We collect personal data."},
		{ID: 2, Filename: "policy.pdf", ChunkText: "Consent is requested at signup."},
	}}
	idx := &fakeIndex{matches: []vectorindex.Match{
		sectionMatch("Section 6", "consent requirements", 0.91),
		sectionMatch("Section 8", "fiduciary obligations", 0.82),
	}}
	an := &fakeAnalyzer{verdict: llm.Verdict{
		ComplianceStatus: false,
		Gaps:             "No withdrawal mechanism",
		Suggestions:      "Add a withdrawal flow",
	}}
	w := newTestWorkflow(t, st, idx, an)

	result, err := w.Run(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.DocumentID)
	assert.Equal(t, "Section 6, Section 8", result.DPDPSection)
	assert.False(t, result.ComplianceStatus)

	require.Len(t, st.audits, 1)
	assert.Equal(t, "Section 6, Section 8", st.audits[0].DPDPSection)
	assert.Equal(t, "No withdrawal mechanism", st.audits[0].Gaps)

	require.Len(t, idx.queryCalls, 1)
	assert.Equal(t, vectorindex.NamespaceRegulation, idx.queryCalls[0].namespace)
	assert.Equal(t, retrievalTopK, idx.queryCalls[0].topK)

	assert.Contains(t, an.regulationText, "Section 6: consent requirements")
	assert.Contains(t, an.documentText, "Consent is requested at signup.")
}

func TestRunFiltersMatches(t *testing.T) {
	chunkScore := vectorindex.Match{
		ID:    "Chunk_1_Section 6",
		Score: 0.95,
		Metadata: map[string]any{
			"section_number": "Chunk_1_Section 6",
			"chunk_index":    1,
		},
	}
	lowScore := sectionMatch("Section 5", "notice obligations", 0.60)
	noContent := vectorindex.Match{
		ID:       "Section 7",
		Score:    0.90,
		Metadata: map[string]any{"section_number": "Section 7"},
	}
	kept := sectionMatch("Section 6", "consent requirements", 0.91)

	st := &fakeStore{chunks: []store.DocumentChunk{{ID: 1, Filename: "policy.pdf", ChunkText: "text"}}}
	idx := &fakeIndex{matches: []vectorindex.Match{chunkScore, lowScore, noContent, kept}}
	an := &fakeAnalyzer{verdict: llm.Verdict{ComplianceStatus: true, Gaps: "None", Suggestions: "None"}}
	w := newTestWorkflow(t, st, idx, an)

	result, err := w.Run(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "Section 6", result.DPDPSection)
	assert.NotContains(t, an.regulationText, "Section 5")
	assert.NotContains(t, an.regulationText, "Chunk_")
}

func TestRunNoMatches(t *testing.T) {
	st := &fakeStore{chunks: []store.DocumentChunk{{ID: 1, Filename: "policy.pdf", ChunkText: "text"}}}
	idx := &fakeIndex{}
	an := &fakeAnalyzer{verdict: llm.Verdict{ComplianceStatus: true, Gaps: "None", Suggestions: "None"}}
	w := newTestWorkflow(t, st, idx, an)

	result, err := w.Run(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "None", result.DPDPSection)
	assert.Equal(t, noSectionsFound, an.regulationText)
	require.Len(t, st.audits, 1)
}

func TestRunMissingDocument(t *testing.T) {
	st := &fakeStore{chunksErr: fmt.Errorf("document 9: %w", errs.ErrNotFound)}
	w := newTestWorkflow(t, st, &fakeIndex{}, &fakeAnalyzer{})

	_, err := w.Run(context.Background(), 9)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Empty(t, st.audits)
}

func TestRunAnalyzerFailureWritesNothing(t *testing.T) {
	st := &fakeStore{chunks: []store.DocumentChunk{{ID: 1, Filename: "policy.pdf", ChunkText: "text"}}}
	an := &fakeAnalyzer{err: errors.New("provider unavailable")}
	w := newTestWorkflow(t, st, &fakeIndex{}, an)

	_, err := w.Run(context.Background(), 1)
	assert.Error(t, err)
	assert.Empty(t, st.audits)
}

func TestRunTruncatesSectionList(t *testing.T) {
	var matches []vectorindex.Match
	for i := 0; i < 60; i++ {
		matches = append(matches, sectionMatch(fmt.Sprintf("Section %d long identifier", i), "content", 0.9))
	}
	st := &fakeStore{chunks: []store.DocumentChunk{{ID: 1, Filename: "policy.pdf", ChunkText: "text"}}}
	idx := &fakeIndex{matches: matches}
	an := &fakeAnalyzer{verdict: llm.Verdict{ComplianceStatus: true, Gaps: "None", Suggestions: "None"}}
	w := newTestWorkflow(t, st, idx, an)

	result, err := w.Run(context.Background(), 1)
	require.NoError(t, err)

	assert.Len(t, result.DPDPSection, maxSectionListChars)
	assert.True(t, strings.HasSuffix(result.DPDPSection, "..."))
}
