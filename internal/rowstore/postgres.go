package rowstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"regdocs/internal/model"
)

// PostgresStore is the pgx-backed Store implementation. It bootstraps its
// own schema on construction, mirroring the create-if-absent style used
// elsewhere in the row-store layer this package replaces.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool against dsn and ensures the
// documents/document_chunks/document_relationships schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := newPgPool(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("rowstore: connect: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.bootstrap(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("rowstore: bootstrap schema: %w", err)
	}
	return s, nil
}

func newPgPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func (s *PostgresStore) bootstrap(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id SERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			document_type TEXT NOT NULL,
			file_path TEXT NOT NULL,
			file_type TEXT NOT NULL,
			file_size BIGINT NOT NULL DEFAULT 0,
			author TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			tags TEXT[] NOT NULL DEFAULT '{}',
			description TEXT NOT NULL DEFAULT '',
			version TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'uploading',
			error_message TEXT NOT NULL DEFAULT '',
			upload_date TIMESTAMPTZ NOT NULL DEFAULT now(),
			processed_date TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS document_chunks (
			id SERIAL PRIMARY KEY,
			doc_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			chunk_text TEXT NOT NULL,
			char_count INTEGER NOT NULL,
			section_title TEXT NOT NULL DEFAULT '',
			section_level INTEGER NOT NULL DEFAULT 0,
			page_number INTEGER NOT NULL DEFAULT 0,
			has_section BOOLEAN NOT NULL DEFAULT false,
			has_page BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (doc_id, chunk_index)
		)`,
		`CREATE TABLE IF NOT EXISTS document_relationships (
			id SERIAL PRIMARY KEY,
			source_doc_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			target_doc_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			relationship_type TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			summary TEXT NOT NULL DEFAULT '',
			details JSONB NOT NULL DEFAULT '{}'::jsonb,
			validation_status TEXT NOT NULL DEFAULT 'auto_detected',
			validated_by TEXT NOT NULL DEFAULT '',
			validation_notes TEXT NOT NULL DEFAULT '',
			validated_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK (source_doc_id <> target_doc_id),
			UNIQUE (source_doc_id, target_doc_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_document_chunks_doc_id ON document_chunks(doc_id)`,
		`CREATE INDEX IF NOT EXISTS idx_document_relationships_source ON document_relationships(source_doc_id)`,
		`CREATE INDEX IF NOT EXISTS idx_document_relationships_target ON document_relationships(target_doc_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	row := s.pool.QueryRow(ctx, `
INSERT INTO documents (title, document_type, file_path, file_type, file_size, author, category, tags, description, version, status, error_message)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING id, upload_date, updated_at`,
		doc.Title, doc.DocumentType, doc.FilePath, doc.FileType, doc.FileSize,
		doc.Author, doc.Category, doc.Tags, doc.Description, doc.Version,
		doc.Status, doc.ErrorMessage)
	return row.Scan(&doc.ID, &doc.UploadDate, &doc.UpdatedAt)
}

func (s *PostgresStore) GetDocument(ctx context.Context, id int64) (model.Document, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, title, document_type, file_path, file_type, file_size, author, category, tags, description, version, status, error_message, upload_date, processed_date, updated_at
FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

func scanDocument(row pgx.Row) (model.Document, error) {
	var d model.Document
	if err := row.Scan(&d.ID, &d.Title, &d.DocumentType, &d.FilePath, &d.FileType, &d.FileSize,
		&d.Author, &d.Category, &d.Tags, &d.Description, &d.Version, &d.Status, &d.ErrorMessage,
		&d.UploadDate, &d.ProcessedDate, &d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Document{}, ErrNotFound
		}
		return model.Document{}, err
	}
	return d, nil
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, id int64, status model.DocumentStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE documents SET status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
		status, errMsg, id)
	if err != nil {
		return err
	}
	return requireAffected(tag)
}

func (s *PostgresStore) MarkDocumentProcessed(ctx context.Context, id int64, processedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE documents SET status = $1, processed_date = $2, updated_at = now() WHERE id = $3`,
		model.StatusReady, processedAt, id)
	if err != nil {
		return err
	}
	return requireAffected(tag)
}

func (s *PostgresStore) ListDocuments(ctx context.Context, documentType string, status model.DocumentStatus) ([]model.Document, error) {
	var b strings.Builder
	b.WriteString(`
SELECT id, title, document_type, file_path, file_type, file_size, author, category, tags, description, version, status, error_message, upload_date, processed_date, updated_at
FROM documents WHERE 1=1`)
	var args []any
	if documentType != "" {
		args = append(args, documentType)
		b.WriteString(fmt.Sprintf(" AND document_type = $%d", len(args)))
	}
	if status != "" {
		args = append(args, status)
		b.WriteString(fmt.Sprintf(" AND status = $%d", len(args)))
	}
	b.WriteString(" ORDER BY id")

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) InsertChunks(ctx context.Context, chunks []*model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		row := tx.QueryRow(ctx, `
INSERT INTO document_chunks (doc_id, chunk_index, chunk_text, char_count, section_title, section_level, page_number, has_section, has_page)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING id, created_at`,
			c.DocID, c.ChunkIndex, c.ChunkText, c.CharCount, c.SectionTitle, c.SectionLevel,
			c.PageNumber, c.HasSection, c.HasPage)
		if err := row.Scan(&c.ID, &c.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetChunksByDocument(ctx context.Context, docID int64) ([]model.DocumentChunk, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, doc_id, chunk_index, chunk_text, char_count, section_title, section_level, page_number, has_section, has_page, created_at
FROM document_chunks WHERE doc_id = $1 ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []model.DocumentChunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *PostgresStore) GetChunk(ctx context.Context, id int64) (model.DocumentChunk, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, doc_id, chunk_index, chunk_text, char_count, section_title, section_level, page_number, has_section, has_page, created_at
FROM document_chunks WHERE id = $1`, id)
	return scanChunk(row)
}

func scanChunk(row pgx.Row) (model.DocumentChunk, error) {
	var c model.DocumentChunk
	if err := row.Scan(&c.ID, &c.DocID, &c.ChunkIndex, &c.ChunkText, &c.CharCount,
		&c.SectionTitle, &c.SectionLevel, &c.PageNumber, &c.HasSection, &c.HasPage, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.DocumentChunk{}, ErrNotFound
		}
		return model.DocumentChunk{}, err
	}
	return c, nil
}

func (s *PostgresStore) DeleteChunksByDocument(ctx context.Context, docID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM document_chunks WHERE doc_id = $1`, docID)
	return err
}

func (s *PostgresStore) CreateRelationship(ctx context.Context, rel *model.DocumentRelationship) error {
	details, err := json.Marshal(rel.Details)
	if err != nil {
		return fmt.Errorf("rowstore: marshal details: %w", err)
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO document_relationships (source_doc_id, target_doc_id, relationship_type, confidence, summary, details, validation_status, validated_by, validation_notes, validated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id, created_at, updated_at`,
		rel.SourceDocID, rel.TargetDocID, rel.RelationshipType, rel.Confidence, rel.Summary,
		details, rel.ValidationStatus, rel.ValidatedBy, rel.ValidationNotes, rel.ValidatedAt)
	if err := row.Scan(&rel.ID, &rel.CreatedAt, &rel.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRelationship
		}
		return err
	}
	return nil
}

func (s *PostgresStore) GetRelationship(ctx context.Context, id int64) (model.DocumentRelationship, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, source_doc_id, target_doc_id, relationship_type, confidence, summary, details, validation_status, validated_by, validation_notes, validated_at, created_at, updated_at
FROM document_relationships WHERE id = $1`, id)
	return scanRelationship(row)
}

func (s *PostgresStore) GetDocumentRelationships(ctx context.Context, docID int64) ([]model.DocumentRelationship, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, source_doc_id, target_doc_id, relationship_type, confidence, summary, details, validation_status, validated_by, validation_notes, validated_at, created_at, updated_at
FROM document_relationships WHERE source_doc_id = $1 OR target_doc_id = $1 ORDER BY id`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []model.DocumentRelationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

func (s *PostgresStore) RelationshipExists(ctx context.Context, sourceID, targetID int64, relType model.RelationshipType) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
SELECT EXISTS(SELECT 1 FROM document_relationships WHERE source_doc_id = $1 AND target_doc_id = $2 AND relationship_type = $3)`,
		sourceID, targetID, relType).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) ValidateRelationship(ctx context.Context, id int64, status model.ValidationStatus, validatedBy, notes string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE document_relationships
SET validation_status = $1, validated_by = $2, validation_notes = $3, validated_at = now(), updated_at = now()
WHERE id = $4`, status, validatedBy, notes, id)
	if err != nil {
		return err
	}
	return requireAffected(tag)
}

func scanRelationship(row pgx.Row) (model.DocumentRelationship, error) {
	var r model.DocumentRelationship
	var details []byte
	if err := row.Scan(&r.ID, &r.SourceDocID, &r.TargetDocID, &r.RelationshipType, &r.Confidence,
		&r.Summary, &details, &r.ValidationStatus, &r.ValidatedBy, &r.ValidationNotes,
		&r.ValidatedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.DocumentRelationship{}, ErrNotFound
		}
		return model.DocumentRelationship{}, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &r.Details); err != nil {
			return model.DocumentRelationship{}, fmt.Errorf("rowstore: unmarshal details: %w", err)
		}
	}
	return r, nil
}

func requireAffected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
