package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dataguard/compliguard/internal/audit"
	"github.com/dataguard/compliguard/internal/errs"
	"github.com/dataguard/compliguard/internal/logger"
	"github.com/dataguard/compliguard/internal/store"
)

// Ingester persists and indexes an uploaded document.
type Ingester interface {
	Ingest(ctx context.Context, path, filename string) ([]int64, error)
}

// Auditor runs the compliance workflow for a stored document.
type Auditor interface {
	Run(ctx context.Context, documentID int64) (audit.Result, error)
}

// DocumentStore resolves stored document metadata.
type DocumentStore interface {
	GetChunksByDocumentID(documentID int64) ([]store.DocumentChunk, error)
}

type Handler struct {
	log       *logger.Logger
	ingester  Ingester
	auditor   Auditor
	documents DocumentStore
	uploadDir string
}

func NewHandler(log *logger.Logger, ingester Ingester, auditor Auditor, documents DocumentStore, uploadDir string) *Handler {
	return &Handler{
		log:       log.With("service", "API"),
		ingester:  ingester,
		auditor:   auditor,
		documents: documents,
		uploadDir: uploadDir,
	}
}

type uploadResponse struct {
	Filename    string  `json:"filename"`
	DocumentIDs []int64 `json:"document_ids"`
}

type auditResponse struct {
	DocumentID           int64  `json:"document_id"`
	Filename             string `json:"filename"`
	ComplianceStatus     bool   `json:"compliance_status"`
	DPDPSectionsAnalyzed string `json:"dpdp_sections_analyzed"`
	ComplianceGaps       string `json:"compliance_gaps"`
	Recommendations      string `json:"recommendations"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// UploadDocument accepts a multipart PDF or DOCX, spools it to the upload
// directory and ingests it. The spooled file is removed afterwards.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing form field 'file'"})
		return
	}
	defer file.Close()

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.writeError(w, err)
		return
	}
	tempPath := filepath.Join(h.uploadDir, uuid.NewString()+filepath.Ext(header.Filename))
	dst, err := os.Create(tempPath)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer os.Remove(tempPath)

	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		h.writeError(w, err)
		return
	}
	if err := dst.Close(); err != nil {
		h.writeError(w, err)
		return
	}

	ids, err := h.ingester.Ingest(r.Context(), tempPath, header.Filename)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{Filename: header.Filename, DocumentIDs: ids})
}

// AuditDocument runs the compliance workflow for a previously uploaded
// document and returns the stored verdict.
func (h *Handler) AuditDocument(w http.ResponseWriter, r *http.Request) {
	documentID, err := strconv.ParseInt(chi.URLParam(r, "documentID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid document id"})
		return
	}

	chunks, err := h.documents.GetChunksByDocumentID(documentID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.auditor.Run(r.Context(), documentID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	filename := ""
	if len(chunks) > 0 {
		filename = chunks[0].Filename
	}
	writeJSON(w, http.StatusOK, auditResponse{
		DocumentID:           result.DocumentID,
		Filename:             filename,
		ComplianceStatus:     result.ComplianceStatus,
		DPDPSectionsAnalyzed: result.DPDPSection,
		ComplianceGaps:       result.Gaps,
		Recommendations:      result.Suggestions,
	})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, errs.ErrUnsupportedFormat), errors.Is(err, errs.ErrEmptyContent):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		h.log.Error("Request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
