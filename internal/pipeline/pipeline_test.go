package pipeline

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regdocs/internal/blobstore"
	"regdocs/internal/chunk"
	"regdocs/internal/embed"
	"regdocs/internal/extract"
	"regdocs/internal/model"
	"regdocs/internal/rowstore"
	"regdocs/internal/vectorindex"
)

const normDocXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<document xmlns="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <body>
    <p><pPr><pStyle val="Heading1"/></pPr><r><t>Scope</t></r></p>
    <p><r><t>All member states must retain transaction records for seven years and report suspicious activity without delay.</t></r></p>
  </body>
</document>`

const guidelineDocXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<document xmlns="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <body>
    <p><pPr><pStyle val="Heading1"/></pPr><r><t>Retention guidance</t></r></p>
    <p><r><t>Firms should retain transaction records for at least seven years and escalate suspicious activity promptly.</t></r></p>
  </body>
</document>`

func writeDocx(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return path
}

func newTestPipeline(t *testing.T) (*Pipeline, *rowstore.MemoryStore, blobstore.Store) {
	t.Helper()
	blobs := blobstore.NewMemoryStore()
	rows := rowstore.NewMemoryStore()
	vectors := vectorindex.NewMemoryIndex()
	embedder := embed.NewLocalEmbedder(64)
	registry := extract.NewRegistry("")
	p := New(blobs, registry, chunk.New(512, 50), embedder, vectors, rows, t.TempDir())
	return p, rows, blobs
}

func uploadDocument(t *testing.T, p *Pipeline, rows *rowstore.MemoryStore, blobs blobstore.Store, title string, docType model.DocumentType, version string, body string) *model.Document {
	t.Helper()
	ctx := context.Background()
	path := writeDocx(t, body)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	objectName, err := blobs.Put(ctx, title+".docx", data, "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	require.NoError(t, err)

	doc := &model.Document{
		Title:        title,
		DocumentType: docType,
		FilePath:     objectName,
		FileType:     "docx",
		Version:      version,
		Status:       model.StatusUploading,
	}
	require.NoError(t, rows.CreateDocument(ctx, doc))
	return doc
}

func TestProcessDocument_FullLifecycleReachesReady(t *testing.T) {
	t.Parallel()
	p, rows, blobs := newTestPipeline(t)
	doc := uploadDocument(t, p, rows, blobs, "AML Norm", model.DocumentTypeNorm, "2.0", normDocXML)

	result, err := p.ProcessDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, result.Status)

	got, err := rows.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, got.Status)
	require.NotNil(t, got.ProcessedDate)

	chunks, err := rows.GetChunksByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
	}
}

func TestProcessDocument_RefusesReprocessingReadyDocument(t *testing.T) {
	t.Parallel()
	p, rows, blobs := newTestPipeline(t)
	doc := uploadDocument(t, p, rows, blobs, "AML Norm", model.DocumentTypeNorm, "1.0", normDocXML)

	_, err := p.ProcessDocument(context.Background(), doc.ID)
	require.NoError(t, err)

	_, err = p.ProcessDocument(context.Background(), doc.ID)
	assert.ErrorIs(t, err, rowstore.ErrAlreadyProcessed)
}

func TestProcessDocument_MissingDocumentIsTerminal(t *testing.T) {
	t.Parallel()
	p, _, _ := newTestPipeline(t)
	_, err := p.ProcessDocument(context.Background(), 999)
	assert.Error(t, err)
}

func TestProcessDocument_EmptyExtractionSetsErrorStatus(t *testing.T) {
	t.Parallel()
	p, rows, blobs := newTestPipeline(t)
	doc := uploadDocument(t, p, rows, blobs, "Blank", model.DocumentTypeNorm, "1.0", `<document><body></body></document>`)

	_, err := p.ProcessDocument(context.Background(), doc.ID)
	assert.Error(t, err)

	got, err := rows.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, got.Status)
	assert.NotEmpty(t, got.ErrorMessage)
}

func TestExtractRelationships_ClassifiesNormToGuidelineAsCompliance(t *testing.T) {
	t.Parallel()
	p, rows, blobs := newTestPipeline(t)

	norm := uploadDocument(t, p, rows, blobs, "AML Norm", model.DocumentTypeNorm, "1.0", normDocXML)
	guideline := uploadDocument(t, p, rows, blobs, "AML Guidance", model.DocumentTypeGuideline, "", guidelineDocXML)

	ctx := context.Background()
	_, err := p.ProcessDocument(ctx, norm.ID)
	require.NoError(t, err)
	_, err = p.ProcessDocument(ctx, guideline.ID)
	require.NoError(t, err)

	rels, err := p.ExtractRelationships(ctx, RelationshipOptions{SourceDocID: norm.ID, Threshold: 0.1})
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, model.RelationshipCompliance, rels[0].RelationshipType)
	assert.Equal(t, guideline.ID, rels[0].TargetDocID)
	assert.Contains(t, rels[0].Summary, "appears to implement or comply with requirements from")
	assert.GreaterOrEqual(t, rels[0].Confidence, 0.0)
	assert.LessOrEqual(t, rels[0].Confidence, 100.0)
}

func TestExtractRelationships_SkipsWhenRelationshipAlreadyExists(t *testing.T) {
	t.Parallel()
	p, rows, blobs := newTestPipeline(t)

	norm := uploadDocument(t, p, rows, blobs, "AML Norm", model.DocumentTypeNorm, "1.0", normDocXML)
	guideline := uploadDocument(t, p, rows, blobs, "AML Guidance", model.DocumentTypeGuideline, "", guidelineDocXML)

	ctx := context.Background()
	_, err := p.ProcessDocument(ctx, norm.ID)
	require.NoError(t, err)
	_, err = p.ProcessDocument(ctx, guideline.ID)
	require.NoError(t, err)

	first, err := p.ExtractRelationships(ctx, RelationshipOptions{SourceDocID: norm.ID, Threshold: 0.1})
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := p.ExtractRelationships(ctx, RelationshipOptions{SourceDocID: norm.ID, Threshold: 0.1})
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestExtractRelationships_RequiresReadySourceDocument(t *testing.T) {
	t.Parallel()
	p, rows, blobs := newTestPipeline(t)
	doc := uploadDocument(t, p, rows, blobs, "AML Norm", model.DocumentTypeNorm, "1.0", normDocXML)

	_, err := p.ExtractRelationships(context.Background(), RelationshipOptions{SourceDocID: doc.ID})
	assert.Error(t, err)
}

func TestSearch_ReturnsRankedHitsWithTruncatedText(t *testing.T) {
	t.Parallel()
	p, rows, blobs := newTestPipeline(t)
	doc := uploadDocument(t, p, rows, blobs, "AML Norm", model.DocumentTypeNorm, "1.0", normDocXML)

	ctx := context.Background()
	_, err := p.ProcessDocument(ctx, doc.ID)
	require.NoError(t, err)

	hits, err := p.Search(ctx, SearchOptions{Query: "transaction records", Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, doc.ID, hits[0].DocumentID)
	assert.LessOrEqual(t, len(hits[0].ChunkText), searchTextTruncateLen)
}

func TestSearch_FallsBackToSubstringScanWhenVectorIndexFails(t *testing.T) {
	t.Parallel()
	p, rows, blobs := newTestPipeline(t)
	doc := uploadDocument(t, p, rows, blobs, "AML Norm", model.DocumentTypeNorm, "1.0", normDocXML)

	ctx := context.Background()
	_, err := p.ProcessDocument(ctx, doc.ID)
	require.NoError(t, err)

	p.Vectors = failingIndex{}

	hits, err := p.Search(ctx, SearchOptions{Query: "suspicious activity", Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, 0.5, hits[0].Similarity)
}

// failingIndex is a vectorindex.Index stub whose every method errors, used
// to exercise the degraded substring-search fallback path.
type failingIndex struct{ vectorindex.Index }

func (failingIndex) SearchChunks(ctx context.Context, query []float32, limit int, scoreThreshold float64, filter *vectorindex.Filter) ([]vectorindex.ScoredChunk, error) {
	return nil, assertErr
}

var assertErr = &searchFailure{}

type searchFailure struct{}

func (*searchFailure) Error() string { return "vector index unavailable" }
