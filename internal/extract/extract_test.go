package extract

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDocumentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<document xmlns="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <body>
    <p><pPr><pStyle val="Heading1"/></pPr><r><t>Scope</t></r></p>
    <p><r><t>This norm applies to all member states.</t></r></p>
    <tbl>
      <tr><tc><p><r><t>Column A</t></r></p></tc><tc><p><r><t>Column B</t></r></p></tc></tr>
    </tbl>
  </body>
</document>`

const testCoreXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<coreProperties xmlns="http://schemas.openxmlformats.org/package/2006/metadata/core-properties">
  <creator>Jordan Author</creator>
  <title>Sample Regulation</title>
</coreProperties>`

func writeTestDocx(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(testDocumentXML))
	require.NoError(t, err)

	w, err = zw.Create("docProps/core.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(testCoreXML))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return path
}

func TestDOCXExtractor_ParagraphsTablesAndMetadata(t *testing.T) {
	t.Parallel()
	path := writeTestDocx(t)

	e := &DOCXExtractor{}
	res, err := e.Extract(context.Background(), path, Options{})
	require.NoError(t, err)

	assert.Contains(t, res.Paragraphs, "Scope")
	assert.Contains(t, res.Paragraphs, "This norm applies to all member states.")
	require.Len(t, res.Tables, 1)
	require.Len(t, res.Tables[0], 1)
	assert.Equal(t, []string{"Column A", "Column B"}, res.Tables[0][0].Cells)

	assert.True(t, res.Metadata.HasAuthor)
	assert.Equal(t, "Jordan Author", res.Metadata.Author)
	assert.True(t, res.Metadata.HasTitle)
	assert.Equal(t, "Sample Regulation", res.Metadata.Title)

	require.Len(t, res.Sections, 1)
	assert.Equal(t, "Scope", res.Sections[0].Title)
	assert.Equal(t, 1, res.Sections[0].Level)
}

func TestRegistry_DispatchesByExtension(t *testing.T) {
	t.Parallel()
	path := writeTestDocx(t)
	r := NewRegistry("")

	res, err := r.Extract(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Text)
}

func TestRegistry_UnsupportedFormat(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sample.txt")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	r := NewRegistry("")
	_, err := r.Extract(context.Background(), path, Options{})
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestRegistry_EmptyResultIsError(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "empty.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<document><body></body></document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	r := NewRegistry("")
	_, err = r.Extract(context.Background(), path, Options{})
	assert.True(t, errors.Is(err, ErrEmpty))
}
