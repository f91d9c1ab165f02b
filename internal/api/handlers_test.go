package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataguard/compliguard/internal/audit"
	"github.com/dataguard/compliguard/internal/errs"
	"github.com/dataguard/compliguard/internal/logger"
	"github.com/dataguard/compliguard/internal/store"
)

type fakeIngester struct {
	ids      []int64
	err      error
	filename string
}

func (f *fakeIngester) Ingest(_ context.Context, path, filename string) ([]int64, error) {
	f.filename = filename
	return f.ids, f.err
}

type fakeAuditor struct {
	result audit.Result
	err    error
}

func (f *fakeAuditor) Run(_ context.Context, documentID int64) (audit.Result, error) {
	if f.err != nil {
		return audit.Result{}, f.err
	}
	f.result.DocumentID = documentID
	return f.result, nil
}

type fakeDocuments struct {
	chunks []store.DocumentChunk
	err    error
}

func (f *fakeDocuments) GetChunksByDocumentID(int64) ([]store.DocumentChunk, error) {
	return f.chunks, f.err
}

func newTestRouter(t *testing.T, ing *fakeIngester, aud *fakeAuditor, docs *fakeDocuments) http.Handler {
	t.Helper()
	h := NewHandler(logger.NewNop(), ing, aud, docs, t.TempDir())
	return NewRouter(h)
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadDocument(t *testing.T) {
	ing := &fakeIngester{ids: []int64{1, 2, 3}}
	router := newTestRouter(t, ing, &fakeAuditor{}, &fakeDocuments{})

	body, contentType := multipartBody(t, "policy.pdf", []byte("%PDF-1.4 fake"))
	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "policy.pdf", ing.filename)

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "policy.pdf", resp.Filename)
	assert.Equal(t, []int64{1, 2, 3}, resp.DocumentIDs)
}

func TestUploadDocumentMissingFile(t *testing.T) {
	router := newTestRouter(t, &fakeIngester{}, &fakeAuditor{}, &fakeDocuments{})

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", bytes.NewBufferString("not multipart"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadDocumentUnsupportedFormat(t *testing.T) {
	ing := &fakeIngester{err: fmt.Errorf("extract notes.txt: %w", errs.ErrUnsupportedFormat)}
	router := newTestRouter(t, ing, &fakeAuditor{}, &fakeDocuments{})

	body, contentType := multipartBody(t, "notes.txt", []byte("plain text"))
	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditDocument(t *testing.T) {
	aud := &fakeAuditor{result: audit.Result{
		DPDPSection:      "Section 6, Section 8",
		ComplianceStatus: false,
		Gaps:             "No withdrawal mechanism",
		Suggestions:      "Add a withdrawal flow",
	}}
	docs := &fakeDocuments{chunks: []store.DocumentChunk{{ID: 7, Filename: "policy.pdf", ChunkText: "text"}}}
	router := newTestRouter(t, &fakeIngester{}, aud, docs)

	req := httptest.NewRequest(http.MethodPost, "/api/documents/7/audit", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp auditResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.DocumentID)
	assert.Equal(t, "policy.pdf", resp.Filename)
	assert.False(t, resp.ComplianceStatus)
	assert.Equal(t, "Section 6, Section 8", resp.DPDPSectionsAnalyzed)
	assert.Equal(t, "No withdrawal mechanism", resp.ComplianceGaps)
	assert.Equal(t, "Add a withdrawal flow", resp.Recommendations)
}

func TestAuditDocumentNotFound(t *testing.T) {
	docs := &fakeDocuments{err: fmt.Errorf("document 99: %w", errs.ErrNotFound)}
	router := newTestRouter(t, &fakeIngester{}, &fakeAuditor{}, docs)

	req := httptest.NewRequest(http.MethodPost, "/api/documents/99/audit", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuditDocumentInvalidID(t *testing.T) {
	router := newTestRouter(t, &fakeIngester{}, &fakeAuditor{}, &fakeDocuments{})

	req := httptest.NewRequest(http.MethodPost, "/api/documents/abc/audit", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &fakeIngester{}, &fakeAuditor{}, &fakeDocuments{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
