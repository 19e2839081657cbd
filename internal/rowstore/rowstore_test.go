package rowstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regdocs/internal/model"
)

func newTestStore() *MemoryStore {
	return NewMemoryStore()
}

func TestCreateAndGetDocument(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	ctx := context.Background()

	doc := &model.Document{Title: "Regulation 1", DocumentType: model.DocumentTypeNorm, FilePath: "docs/a.pdf", FileType: "pdf", Status: model.StatusUploading}
	require.NoError(t, s.CreateDocument(ctx, doc))
	assert.NotZero(t, doc.ID)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Regulation 1", got.Title)
	assert.Equal(t, model.StatusUploading, got.Status)
}

func TestGetDocument_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	_, err := s.GetDocument(context.Background(), 999)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateDocumentStatus(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	ctx := context.Background()
	doc := &model.Document{Title: "R2", DocumentType: model.DocumentTypeGuideline, Status: model.StatusUploading}
	require.NoError(t, s.CreateDocument(ctx, doc))

	require.NoError(t, s.UpdateDocumentStatus(ctx, doc.ID, model.StatusError, "extraction failed"))
	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, got.Status)
	assert.Equal(t, "extraction failed", got.ErrorMessage)
}

func TestMarkDocumentProcessed(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	ctx := context.Background()
	doc := &model.Document{Title: "R3", Status: model.StatusEmbedding}
	require.NoError(t, s.CreateDocument(ctx, doc))

	now := time.Now().UTC()
	require.NoError(t, s.MarkDocumentProcessed(ctx, doc.ID, now))
	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, got.Status)
	require.NotNil(t, got.ProcessedDate)
}

func TestListDocuments_FiltersByTypeAndStatus(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	ctx := context.Background()

	a := &model.Document{Title: "Norm A", DocumentType: model.DocumentTypeNorm, Status: model.StatusReady}
	b := &model.Document{Title: "Guide B", DocumentType: model.DocumentTypeGuideline, Status: model.StatusReady}
	c := &model.Document{Title: "Norm C", DocumentType: model.DocumentTypeNorm, Status: model.StatusError}
	require.NoError(t, s.CreateDocument(ctx, a))
	require.NoError(t, s.CreateDocument(ctx, b))
	require.NoError(t, s.CreateDocument(ctx, c))

	norms, err := s.ListDocuments(ctx, string(model.DocumentTypeNorm), "")
	require.NoError(t, err)
	assert.Len(t, norms, 2)

	readyNorms, err := s.ListDocuments(ctx, string(model.DocumentTypeNorm), model.StatusReady)
	require.NoError(t, err)
	require.Len(t, readyNorms, 1)
	assert.Equal(t, "Norm A", readyNorms[0].Title)
}

func TestInsertChunksAssignsDenseIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	ctx := context.Background()
	doc := &model.Document{Title: "R4"}
	require.NoError(t, s.CreateDocument(ctx, doc))

	chunks := []*model.DocumentChunk{
		{DocID: doc.ID, ChunkIndex: 0, ChunkText: "first", CharCount: 5},
		{DocID: doc.ID, ChunkIndex: 1, ChunkText: "second", CharCount: 6},
	}
	require.NoError(t, s.InsertChunks(ctx, chunks))
	assert.NotZero(t, chunks[0].ID)
	assert.NotZero(t, chunks[1].ID)
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID)

	got, err := s.GetChunksByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].ChunkText)
	assert.Equal(t, "second", got[1].ChunkText)
}

func TestDeleteChunksByDocument(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	ctx := context.Background()
	doc := &model.Document{Title: "R5"}
	require.NoError(t, s.CreateDocument(ctx, doc))
	chunks := []*model.DocumentChunk{{DocID: doc.ID, ChunkIndex: 0, ChunkText: "x", CharCount: 1}}
	require.NoError(t, s.InsertChunks(ctx, chunks))

	require.NoError(t, s.DeleteChunksByDocument(ctx, doc.ID))
	got, err := s.GetChunksByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreateRelationship_DuplicateRejected(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	ctx := context.Background()
	src := &model.Document{Title: "Norm"}
	tgt := &model.Document{Title: "Guideline"}
	require.NoError(t, s.CreateDocument(ctx, src))
	require.NoError(t, s.CreateDocument(ctx, tgt))

	rel := &model.DocumentRelationship{SourceDocID: src.ID, TargetDocID: tgt.ID, RelationshipType: model.RelationshipCompliance, ValidationStatus: model.ValidationAutoDetected}
	require.NoError(t, s.CreateRelationship(ctx, rel))
	assert.NotZero(t, rel.ID)

	dup := &model.DocumentRelationship{SourceDocID: src.ID, TargetDocID: tgt.ID, RelationshipType: model.RelationshipSimilar}
	err := s.CreateRelationship(ctx, dup)
	assert.True(t, errors.Is(err, ErrDuplicateRelationship))
}

func TestRelationshipExists(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	ctx := context.Background()
	src := &model.Document{Title: "Norm"}
	tgt := &model.Document{Title: "Guideline"}
	require.NoError(t, s.CreateDocument(ctx, src))
	require.NoError(t, s.CreateDocument(ctx, tgt))

	exists, err := s.RelationshipExists(ctx, src.ID, tgt.ID, model.RelationshipCompliance)
	require.NoError(t, err)
	assert.False(t, exists)

	rel := &model.DocumentRelationship{SourceDocID: src.ID, TargetDocID: tgt.ID, RelationshipType: model.RelationshipCompliance}
	require.NoError(t, s.CreateRelationship(ctx, rel))

	exists, err = s.RelationshipExists(ctx, src.ID, tgt.ID, model.RelationshipCompliance)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestValidateRelationship(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	ctx := context.Background()
	src := &model.Document{Title: "Norm"}
	tgt := &model.Document{Title: "Guideline"}
	require.NoError(t, s.CreateDocument(ctx, src))
	require.NoError(t, s.CreateDocument(ctx, tgt))
	rel := &model.DocumentRelationship{SourceDocID: src.ID, TargetDocID: tgt.ID, RelationshipType: model.RelationshipReference}
	require.NoError(t, s.CreateRelationship(ctx, rel))

	require.NoError(t, s.ValidateRelationship(ctx, rel.ID, model.ValidationApproved, "reviewer@example.com", "looks right"))
	got, err := s.GetRelationship(ctx, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ValidationApproved, got.ValidationStatus)
	assert.Equal(t, "reviewer@example.com", got.ValidatedBy)
	require.NotNil(t, got.ValidatedAt)
}

func TestGetDocumentRelationships_MatchesEitherEndpoint(t *testing.T) {
	t.Parallel()
	s := newTestStore()
	ctx := context.Background()
	a := &model.Document{Title: "A"}
	b := &model.Document{Title: "B"}
	c := &model.Document{Title: "C"}
	require.NoError(t, s.CreateDocument(ctx, a))
	require.NoError(t, s.CreateDocument(ctx, b))
	require.NoError(t, s.CreateDocument(ctx, c))

	require.NoError(t, s.CreateRelationship(ctx, &model.DocumentRelationship{SourceDocID: a.ID, TargetDocID: b.ID, RelationshipType: model.RelationshipSimilar}))
	require.NoError(t, s.CreateRelationship(ctx, &model.DocumentRelationship{SourceDocID: c.ID, TargetDocID: a.ID, RelationshipType: model.RelationshipReference}))

	rels, err := s.GetDocumentRelationships(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, rels, 2)
}
