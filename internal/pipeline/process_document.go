// Package pipeline is the C6 component: the process-document state machine
// and the extract-relationships / semantic-search operations that run on
// top of it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"regdocs/internal/blobstore"
	"regdocs/internal/chunk"
	"regdocs/internal/embed"
	"regdocs/internal/extract"
	"regdocs/internal/model"
	"regdocs/internal/observability"
	"regdocs/internal/rowstore"
	"regdocs/internal/vectorindex"
)

// Pipeline wires the six components (blob store, extractor, chunker,
// embedder, vector index, row store) into the process-document and
// extract-relationships jobs.
type Pipeline struct {
	Blobs    blobstore.Store
	Extract  *extract.Registry
	Chunker  chunk.Chunker
	Embedder embed.Embedder
	Vectors  vectorindex.Index
	Rows     rowstore.Store

	TempDir string
}

// New builds a Pipeline from its components. tempDir defaults to the
// system temp directory when empty.
func New(blobs blobstore.Store, registry *extract.Registry, chunker chunk.Chunker, embedder embed.Embedder, vectors vectorindex.Index, rows rowstore.Store, tempDir string) *Pipeline {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Pipeline{
		Blobs:    blobs,
		Extract:  registry,
		Chunker:  chunker,
		Embedder: embedder,
		Vectors:  vectors,
		Rows:     rows,
		TempDir:  tempDir,
	}
}

// ProcessResult is the structured outcome the job runner reports back to
// the queue for a process_document job.
type ProcessResult struct {
	DocumentID int64
	Status     model.DocumentStatus
	Error      string
}

// ProcessDocument runs the UPLOADING → EXTRACTING → ANALYZING → EMBEDDING →
// READY state machine for one document. A non-ERROR document that has
// already been processed is refused up front with ErrAlreadyProcessed: the
// original scheme's "re-running MAY create duplicate chunks" hazard is
// resolved by requiring an explicit status reset before reprocessing.
func (p *Pipeline) ProcessDocument(ctx context.Context, documentID int64) (ProcessResult, error) {
	logger := observability.LoggerFromContext(ctx).With().Int64("document_id", documentID).Logger()
	ctx = observability.WithJobLogger(ctx, logger)

	doc, err := p.Rows.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, rowstore.ErrNotFound) {
			return ProcessResult{DocumentID: documentID, Status: model.StatusError, Error: "document not found"}, err
		}
		return ProcessResult{}, fmt.Errorf("pipeline: load document: %w", err)
	}

	if doc.Status != model.StatusUploading && doc.Status != model.StatusError {
		return ProcessResult{DocumentID: documentID, Status: doc.Status}, rowstore.ErrAlreadyProcessed
	}

	result, procErr := p.runStages(ctx, &doc)
	if procErr != nil {
		truncated := truncateError(procErr)
		if err := p.Rows.UpdateDocumentStatus(ctx, documentID, model.StatusError, truncated); err != nil {
			logger.Error().Err(err).Msg("pipeline: failed to record error status")
		}
		logger.Error().Err(procErr).Msg("pipeline: process_document failed")
		return ProcessResult{DocumentID: documentID, Status: model.StatusError, Error: truncated}, procErr
	}
	return result, nil
}

func (p *Pipeline) runStages(ctx context.Context, doc *model.Document) (ProcessResult, error) {
	logger := observability.LoggerFromContext(ctx)

	// Download.
	if err := p.Rows.UpdateDocumentStatus(ctx, doc.ID, model.StatusExtracting, ""); err != nil {
		return ProcessResult{}, fmt.Errorf("pipeline: set status extracting: %w", err)
	}
	localPath := p.tempPath(doc)
	if err := p.Blobs.Get(ctx, doc.FilePath, localPath); err != nil {
		return ProcessResult{}, fmt.Errorf("pipeline: download blob: %w", err)
	}
	defer os.Remove(localPath)

	// Extract.
	extracted, err := p.Extract.Extract(ctx, localPath, extract.Options{UseOCR: true})
	if err != nil {
		return ProcessResult{}, fmt.Errorf("pipeline: extract: %w", err)
	}
	if strings.TrimSpace(extracted.Text) == "" {
		return ProcessResult{}, fmt.Errorf("pipeline: %w", extract.ErrEmpty)
	}

	// Chunk.
	if err := p.Rows.UpdateDocumentStatus(ctx, doc.ID, model.StatusAnalyzing, ""); err != nil {
		return ProcessResult{}, fmt.Errorf("pipeline: set status analyzing: %w", err)
	}
	var chunks []chunk.Chunk
	if len(extracted.Sections) > 0 {
		chunks = p.Chunker.ChunkStructured(extracted.Text, extracted.Sections)
	} else {
		chunks = p.Chunker.ChunkText(extracted.Text)
	}
	if len(chunks) == 0 {
		return ProcessResult{}, fmt.Errorf("pipeline: %w", extract.ErrEmpty)
	}

	// Embed.
	if err := p.Rows.UpdateDocumentStatus(ctx, doc.ID, model.StatusEmbedding, ""); err != nil {
		return ProcessResult{}, fmt.Errorf("pipeline: set status embedding: %w", err)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("pipeline: embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return ProcessResult{}, fmt.Errorf("pipeline: embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	// Persist chunks, then upsert vectors. If the vector upsert fails the
	// freshly inserted chunk rows are rolled back so a document never ends
	// up with row-store chunks that have no corresponding vector point.
	rows := make([]*model.DocumentChunk, len(chunks))
	for i, c := range chunks {
		rows[i] = &model.DocumentChunk{
			DocID:        doc.ID,
			ChunkIndex:   i,
			ChunkText:    c.Text,
			CharCount:    c.CharCount,
			SectionTitle: c.SectionTitle,
			SectionLevel: c.SectionLevel,
			HasSection:   c.HasSection,
			PageNumber:   c.PageNumber,
			HasPage:      c.HasPage,
		}
	}
	if err := p.Rows.InsertChunks(ctx, rows); err != nil {
		return ProcessResult{}, fmt.Errorf("pipeline: insert chunks: %w", err)
	}

	points := make([]vectorindex.ChunkPoint, len(rows))
	for i, r := range rows {
		points[i] = vectorindex.ChunkPoint{
			ID:     r.ID,
			Vector: vectors[i],
			Payload: vectorindex.ChunkPayload{
				DocumentID:    doc.ID,
				ChunkIndex:    r.ChunkIndex,
				ChunkText:     r.ChunkText,
				DocumentType:  string(doc.DocumentType),
				DocumentTitle: doc.Title,
				SectionTitle:  r.SectionTitle,
				SectionLevel:  r.SectionLevel,
				PageNumber:    r.PageNumber,
			},
		}
	}
	if err := p.Vectors.UpsertChunks(ctx, points); err != nil {
		if rollbackErr := p.Rows.DeleteChunksByDocument(ctx, doc.ID); rollbackErr != nil {
			logger.Error().Err(rollbackErr).Msg("pipeline: failed to roll back orphaned chunk rows")
		}
		return ProcessResult{}, fmt.Errorf("pipeline: upsert chunk vectors: %w", err)
	}

	// Finalize.
	now := time.Now().UTC()
	if err := p.Rows.MarkDocumentProcessed(ctx, doc.ID, now); err != nil {
		return ProcessResult{}, fmt.Errorf("pipeline: mark processed: %w", err)
	}

	return ProcessResult{DocumentID: doc.ID, Status: model.StatusReady}, nil
}

// ShouldFanOutRelationships reports whether at least one other READY
// document exists, the fan-out trigger for enqueuing an
// extract_relationships job after a successful process_document run.
func (p *Pipeline) ShouldFanOutRelationships(ctx context.Context, documentID int64) (bool, error) {
	ready, err := p.Rows.ListDocuments(ctx, "", model.StatusReady)
	if err != nil {
		return false, err
	}
	for _, d := range ready {
		if d.ID != documentID {
			return true, nil
		}
	}
	return false, nil
}

func (p *Pipeline) tempPath(doc *model.Document) string {
	ext := filepath.Ext(doc.FilePath)
	safeTitle := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, doc.Title)
	return filepath.Join(p.TempDir, fmt.Sprintf("regdocs-%d-%s%s", doc.ID, safeTitle, ext))
}

// truncateError bounds an error's text to a size that comfortably fits a
// TEXT column, matching the "truncated error message" policy from the
// failure-handling rules.
func truncateError(err error) string {
	const maxLen = 2000
	msg := err.Error()
	if len(msg) > maxLen {
		return msg[:maxLen]
	}
	return msg
}
