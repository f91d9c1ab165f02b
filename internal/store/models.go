package store

import "time"

// RegulatorySection is one row of the dpdp_act table. A row with
// IsChunk=false holds the authoritative full content of a section; chunk
// rows reference the same section number and carry a 1-based ChunkIndex.
type RegulatorySection struct {
	ID            int64     `json:"id"`
	SectionNumber string    `json:"section_number"`
	SectionTitle  string    `json:"section_title"`
	Chapter       string    `json:"chapter"`
	Content       string    `json:"content"`
	IsChunk       bool      `json:"is_chunk"`
	ChunkIndex    *int      `json:"chunk_index"` // nil on full-content rows
	CreatedAt     time.Time `json:"created_at"`
}

// DocumentChunk is one chunk of an uploaded document. All chunks of one
// upload share Filename; ordering by ID recovers the original chunk order.
type DocumentChunk struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	ChunkText string    `json:"chunk_text"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditRecord is a persisted compliance verdict. Append-only.
type AuditRecord struct {
	ID               int64     `json:"id"`
	DocumentID       int64     `json:"document_id"`
	DPDPSection      string    `json:"dpdp_section"`
	ComplianceStatus bool      `json:"compliance_status"`
	Gaps             string    `json:"gaps"`
	Suggestions      string    `json:"suggestions"`
	CreatedAt        time.Time `json:"created_at"`
}
