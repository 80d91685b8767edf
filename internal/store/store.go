// Package store persists documents and their extraction results in
// SQLite. A re-extraction replaces the previous result wholesale inside
// one transaction, so readers never observe a half-written aggregate.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/scholarlab/paperparse/internal/docmodel"
)

// Document lifecycle states.
const (
	DocPending    = "pending"
	DocProcessing = "processing"
	DocCompleted  = "completed"
	DocFailed     = "failed"
)

// ErrNotFound is returned when a document id is unknown.
var ErrNotFound = errors.New("document not found")

// DocumentRecord is the stored per-document row, independent of any
// extraction result.
type DocumentRecord struct {
	ID        uuid.UUID `json:"id"`
	Filename  string    `json:"filename"`
	Status    string    `json:"status"`
	Pages     int       `json:"pages,omitempty"`
	SizeBytes int64     `json:"size_bytes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	filename     TEXT NOT NULL,
	status       TEXT NOT NULL,
	pages        INTEGER NOT NULL DEFAULT 0,
	size_bytes   INTEGER NOT NULL DEFAULT 0,
	title        TEXT NOT NULL DEFAULT '',
	authors      TEXT NOT NULL DEFAULT '[]',
	abstract     TEXT NOT NULL DEFAULT '',
	outcome      TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sections (
	id            TEXT PRIMARY KEY,
	document_id   TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	title         TEXT NOT NULL,
	level         INTEGER NOT NULL,
	ord           INTEGER NOT NULL,
	parent_id     TEXT,
	content       TEXT NOT NULL,
	word_count    INTEGER NOT NULL,
	has_figures   INTEGER NOT NULL DEFAULT 0,
	has_tables    INTEGER NOT NULL DEFAULT 0,
	has_equations INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sections_doc ON sections(document_id, ord);

CREATE TABLE IF NOT EXISTS refs (
	id           TEXT PRIMARY KEY,
	document_id  TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	ord          INTEGER NOT NULL,
	raw_citation TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	authors      TEXT NOT NULL DEFAULT '',
	year         INTEGER NOT NULL DEFAULT 0,
	venue        TEXT NOT NULL DEFAULT '',
	doi          TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_refs_doc ON refs(document_id, ord);

CREATE TABLE IF NOT EXISTS figures (
	id           TEXT PRIMARY KEY,
	document_id  TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	type         TEXT NOT NULL,
	caption      TEXT NOT NULL,
	section_id   TEXT,
	ord          INTEGER NOT NULL,
	reference_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_figures_doc ON figures(document_id, ord);
`

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// CreateDocument registers a new pending document and returns its record.
func (s *Store) CreateDocument(ctx context.Context, filename string) (DocumentRecord, error) {
	now := time.Now().UTC()
	rec := DocumentRecord{
		ID:        uuid.New(),
		Filename:  filename,
		Status:    DocPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, filename, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Filename, rec.Status,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("insert document: %w", err)
	}
	return rec, nil
}

// SetStatus transitions a document's lifecycle state.
func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC().Format(time.RFC3339Nano), id.String())
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return checkAffected(res)
}

// SaveResult stores a completed extraction, replacing any previous result
// for the document in one transaction.
func (s *Store) SaveResult(ctx context.Context, id uuid.UUID, pages int, size int64, doc *docmodel.StructuredDocument) error {
	authors, err := json.Marshal(doc.Metadata.Authors)
	if err != nil {
		return fmt.Errorf("marshal authors: %w", err)
	}
	outcome, err := json.Marshal(doc.Outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE documents
		 SET status = ?, pages = ?, size_bytes = ?, title = ?, authors = ?,
		     abstract = ?, outcome = ?, updated_at = ?
		 WHERE id = ?`,
		DocCompleted, pages, size, doc.Metadata.Title, string(authors),
		doc.Metadata.Abstract, string(outcome),
		time.Now().UTC().Format(time.RFC3339Nano), id.String())
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return err
	}

	docID := id.String()
	for _, table := range []string{"sections", "refs", "figures"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE document_id = ?`, docID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, sec := range doc.Sections {
		var parent any
		if sec.ParentID != nil {
			parent = sec.ParentID.String()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sections
			 (id, document_id, title, level, ord, parent_id, content, word_count,
			  has_figures, has_tables, has_equations)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sec.ID.String(), docID, sec.Title, sec.Level, sec.Order, parent,
			sec.Content, sec.WordCount,
			boolInt(sec.HasFigures), boolInt(sec.HasTables), boolInt(sec.HasEquations))
		if err != nil {
			return fmt.Errorf("insert section: %w", err)
		}
	}

	for _, ref := range doc.References {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO refs
			 (id, document_id, ord, raw_citation, title, authors, year, venue, doi, url)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ref.ID.String(), docID, ref.Order, ref.RawCitation,
			ref.Title, ref.Authors, ref.Year, ref.Venue, ref.DOI, ref.URL)
		if err != nil {
			return fmt.Errorf("insert reference: %w", err)
		}
	}

	for _, fig := range doc.Figures {
		var section any
		if fig.SectionID != nil {
			section = fig.SectionID.String()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO figures
			 (id, document_id, type, caption, section_id, ord, reference_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			fig.ID.String(), docID, string(fig.Type), fig.Caption, section,
			fig.Order, fig.ReferenceID)
		if err != nil {
			return fmt.Errorf("insert figure: %w", err)
		}
	}

	return tx.Commit()
}

// MarkFailed records a terminal failure together with its attempt trail.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, outcome docmodel.ExtractionOutcome) error {
	raw, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, outcome = ?, updated_at = ? WHERE id = ?`,
		DocFailed, string(raw),
		time.Now().UTC().Format(time.RFC3339Nano), id.String())
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return checkAffected(res)
}

// GetRecord returns the document row.
func (s *Store) GetRecord(ctx context.Context, id uuid.UUID) (DocumentRecord, error) {
	var rec DocumentRecord
	var idStr, created, updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, status, pages, size_bytes, created_at, updated_at
		 FROM documents WHERE id = ?`, id.String()).
		Scan(&idStr, &rec.Filename, &rec.Status, &rec.Pages, &rec.SizeBytes, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return DocumentRecord{}, ErrNotFound
	}
	if err != nil {
		return DocumentRecord{}, fmt.Errorf("query document: %w", err)
	}
	rec.ID, _ = uuid.Parse(idStr)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return rec, nil
}

// GetOutcome returns the stored extraction outcome. It is present for
// completed and failed documents and empty otherwise.
func (s *Store) GetOutcome(ctx context.Context, id uuid.UUID) (docmodel.ExtractionOutcome, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT outcome FROM documents WHERE id = ?`, id.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return docmodel.ExtractionOutcome{}, ErrNotFound
	}
	if err != nil {
		return docmodel.ExtractionOutcome{}, fmt.Errorf("query outcome: %w", err)
	}
	var out docmodel.ExtractionOutcome
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return docmodel.ExtractionOutcome{}, fmt.Errorf("decode outcome: %w", err)
	}
	return out, nil
}

// GetDocument reassembles the full structured aggregate for a completed
// document.
func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (*docmodel.StructuredDocument, error) {
	var title, authorsRaw, abstract, outcomeRaw string
	err := s.db.QueryRowContext(ctx,
		`SELECT title, authors, abstract, outcome FROM documents WHERE id = ?`,
		id.String()).Scan(&title, &authorsRaw, &abstract, &outcomeRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}

	doc := &docmodel.StructuredDocument{
		Metadata: docmodel.Metadata{Title: title, Abstract: abstract},
	}
	if authorsRaw != "" {
		if err := json.Unmarshal([]byte(authorsRaw), &doc.Metadata.Authors); err != nil {
			return nil, fmt.Errorf("decode authors: %w", err)
		}
	}
	if outcomeRaw != "" {
		if err := json.Unmarshal([]byte(outcomeRaw), &doc.Outcome); err != nil {
			return nil, fmt.Errorf("decode outcome: %w", err)
		}
	}

	if doc.Sections, err = s.loadSections(ctx, id); err != nil {
		return nil, err
	}
	if doc.References, err = s.loadReferences(ctx, id); err != nil {
		return nil, err
	}
	if doc.Figures, err = s.loadFigures(ctx, id); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) loadSections(ctx context.Context, id uuid.UUID) ([]docmodel.Section, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, level, ord, parent_id, content, word_count,
		        has_figures, has_tables, has_equations
		 FROM sections WHERE document_id = ? ORDER BY ord`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query sections: %w", err)
	}
	defer rows.Close()

	var out []docmodel.Section
	for rows.Next() {
		var sec docmodel.Section
		var idStr string
		var parent sql.NullString
		var hasFig, hasTab, hasEq int
		if err := rows.Scan(&idStr, &sec.Title, &sec.Level, &sec.Order, &parent,
			&sec.Content, &sec.WordCount, &hasFig, &hasTab, &hasEq); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sec.ID, _ = uuid.Parse(idStr)
		if parent.Valid {
			pid, err := uuid.Parse(parent.String)
			if err == nil {
				sec.ParentID = &pid
			}
		}
		sec.HasFigures = hasFig != 0
		sec.HasTables = hasTab != 0
		sec.HasEquations = hasEq != 0
		out = append(out, sec)
	}
	return out, rows.Err()
}

func (s *Store) loadReferences(ctx context.Context, id uuid.UUID) ([]docmodel.Reference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ord, raw_citation, title, authors, year, venue, doi, url
		 FROM refs WHERE document_id = ? ORDER BY ord`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()

	var out []docmodel.Reference
	for rows.Next() {
		var ref docmodel.Reference
		var idStr string
		if err := rows.Scan(&idStr, &ref.Order, &ref.RawCitation, &ref.Title,
			&ref.Authors, &ref.Year, &ref.Venue, &ref.DOI, &ref.URL); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		ref.ID, _ = uuid.Parse(idStr)
		out = append(out, ref)
	}
	return out, rows.Err()
}

func (s *Store) loadFigures(ctx context.Context, id uuid.UUID) ([]docmodel.Figure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, caption, section_id, ord, reference_id
		 FROM figures WHERE document_id = ? ORDER BY ord`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query figures: %w", err)
	}
	defer rows.Close()

	var out []docmodel.Figure
	for rows.Next() {
		var fig docmodel.Figure
		var idStr, figType string
		var section sql.NullString
		if err := rows.Scan(&idStr, &figType, &fig.Caption, &section,
			&fig.Order, &fig.ReferenceID); err != nil {
			return nil, fmt.Errorf("scan figure: %w", err)
		}
		fig.ID, _ = uuid.Parse(idStr)
		fig.Type = docmodel.FigureType(figType)
		if section.Valid {
			sid, err := uuid.Parse(section.String)
			if err == nil {
				fig.SectionID = &sid
			}
		}
		out = append(out, fig)
	}
	return out, rows.Err()
}

// ListDocuments returns all document records, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, status, pages, size_bytes, created_at, updated_at
		 FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentRecord
	for rows.Next() {
		var rec DocumentRecord
		var idStr, created, updated string
		if err := rows.Scan(&idStr, &rec.Filename, &rec.Status, &rec.Pages,
			&rec.SizeBytes, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		rec.ID, _ = uuid.Parse(idStr)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteDocument removes the document and, via foreign keys, its result
// rows.
func (s *Store) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
