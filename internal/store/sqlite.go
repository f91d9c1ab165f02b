package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/dataguard/compliguard/internal/errs"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS dpdp_act (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        section_number TEXT NOT NULL,
        section_title TEXT,
        chapter TEXT,
        content TEXT NOT NULL,
        is_chunk BOOLEAN DEFAULT FALSE,
        chunk_index INTEGER,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS documents (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        filename TEXT NOT NULL,
        chunk_text TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS audits (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        document_id INTEGER NOT NULL,
        dpdp_section TEXT,
        compliance_status BOOLEAN,
        gaps TEXT,
        suggestions TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (document_id) REFERENCES documents (id)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// InsertSection persists one dpdp_act row, full-content or chunk, and
// returns its id. Each insert is independently atomic.
func (s *SQLiteStore) InsertSection(sec RegulatorySection) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO dpdp_act (section_number, section_title, chapter, content, is_chunk, chunk_index) VALUES (?, ?, ?, ?, ?, ?)",
		sec.SectionNumber, sec.SectionTitle, sec.Chapter, sec.Content, sec.IsChunk, sec.ChunkIndex,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert dpdp_act section %s: %w", sec.SectionNumber, err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// InsertDocumentChunk persists one uploaded-document chunk and returns the
// assigned id.
func (s *SQLiteStore) InsertDocumentChunk(filename, chunkText string) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO documents (filename, chunk_text) VALUES (?, ?)",
		filename, chunkText,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert document chunk for %s: %w", filename, err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// InsertAudit appends one compliance verdict. There is no update or delete
// path for audits.
func (s *SQLiteStore) InsertAudit(rec AuditRecord) error {
	_, err := s.db.Exec(
		"INSERT INTO audits (document_id, dpdp_section, compliance_status, gaps, suggestions) VALUES (?, ?, ?, ?, ?)",
		rec.DocumentID, rec.DPDPSection, rec.ComplianceStatus, rec.Gaps, rec.Suggestions,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit for document %d: %w", rec.DocumentID, err)
	}
	return nil
}

// GetChunksByDocumentID resolves the chunk's filename and returns every
// chunk of that upload ordered by id. A missing id is a not-found condition.
func (s *SQLiteStore) GetChunksByDocumentID(documentID int64) ([]DocumentChunk, error) {
	var filename string
	err := s.db.QueryRow("SELECT filename FROM documents WHERE id = ?", documentID).Scan(&filename)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("document %d: %w", documentID, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to resolve document %d: %w", documentID, err)
	}
	return s.GetChunksByFilename(filename)
}

// GetChunksByFilename returns all chunks sharing a filename ordered by id.
func (s *SQLiteStore) GetChunksByFilename(filename string) ([]DocumentChunk, error) {
	rows, err := s.db.Query(
		"SELECT id, filename, chunk_text, created_at FROM documents WHERE filename = ? ORDER BY id",
		filename,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks for %s: %w", filename, err)
	}
	defer rows.Close()

	var chunks []DocumentChunk
	for rows.Next() {
		var chunk DocumentChunk
		if err := rows.Scan(&chunk.ID, &chunk.Filename, &chunk.ChunkText, &chunk.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document chunk row: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read document chunk rows: %w", err)
	}
	return chunks, nil
}

// GetSectionsByNumber returns the rows recorded for one section number,
// full-content row first, then chunks by chunk_index.
func (s *SQLiteStore) GetSectionsByNumber(sectionNumber string) ([]RegulatorySection, error) {
	rows, err := s.db.Query(
		"SELECT id, section_number, section_title, chapter, content, is_chunk, chunk_index, created_at FROM dpdp_act WHERE section_number = ? ORDER BY is_chunk, chunk_index",
		sectionNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query dpdp_act sections for %s: %w", sectionNumber, err)
	}
	defer rows.Close()

	var sections []RegulatorySection
	for rows.Next() {
		var sec RegulatorySection
		var chunkIndex sql.NullInt64
		if err := rows.Scan(&sec.ID, &sec.SectionNumber, &sec.SectionTitle, &sec.Chapter, &sec.Content, &sec.IsChunk, &chunkIndex, &sec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dpdp_act row: %w", err)
		}
		if chunkIndex.Valid {
			idx := int(chunkIndex.Int64)
			sec.ChunkIndex = &idx
		}
		sections = append(sections, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dpdp_act rows: %w", err)
	}
	return sections, nil
}
