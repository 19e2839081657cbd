package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_Empty(t *testing.T) {
	t.Parallel()
	c := New(512, 50)
	assert.Empty(t, c.ChunkText(""))
	assert.Empty(t, c.ChunkText("   \n\n  "))
}

func TestChunkText_SingleSmallParagraph(t *testing.T) {
	t.Parallel()
	c := New(512, 50)
	chunks := c.ChunkText("a short paragraph of regulatory text.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short paragraph of regulatory text.", chunks[0].Text)
}

func TestChunkText_AccumulatesSmallParagraphs(t *testing.T) {
	t.Parallel()
	c := New(100, 10)
	text := "first paragraph.\n\nsecond paragraph.\n\nthird paragraph."
	chunks := c.ChunkText(text)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "first paragraph.")
	assert.Contains(t, chunks[0].Text, "third paragraph.")
}

func TestChunkText_SplitsWhenExceedingSize(t *testing.T) {
	t.Parallel()
	c := New(20, 5)
	text := "paragraph number one here.\n\nparagraph number two here."
	chunks := c.ChunkText(text)
	require.GreaterOrEqual(t, len(chunks), 2)
}

func TestChunkText_OverlapCarriesTailIntoNextChunk(t *testing.T) {
	t.Parallel()
	c := New(20, 8)
	text := "alpha beta gamma.\n\ndelta epsilon."
	chunks := c.ChunkText(text)
	require.GreaterOrEqual(t, len(chunks), 2)
	// the overlap seed from the first chunk's tail should open the second.
	firstTail := tail(strings.TrimSuffix(chunks[0].Text, ""), 8)
	assert.Contains(t, chunks[1].Text, strings.TrimSpace(firstTail))
}

func TestChunkText_LargeParagraphSplitsOnSentenceBoundaries(t *testing.T) {
	t.Parallel()
	c := New(30, 5)
	para := "This is sentence one. This is sentence two. This is sentence three. This is sentence four."
	chunks := c.ChunkText(para)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.NotEmpty(t, ch.Text)
	}
}

func TestChunkText_CoversAllNonWhitespaceContent(t *testing.T) {
	t.Parallel()
	c := New(15, 0)
	text := "word1 word2 word3 word4 word5 word6 word7 word8"
	chunks := c.ChunkText(text)

	var rebuilt strings.Builder
	for _, ch := range chunks {
		rebuilt.WriteString(ch.Text)
		rebuilt.WriteString(" ")
	}
	for _, w := range strings.Fields(text) {
		assert.Contains(t, rebuilt.String(), w)
	}
}

func TestChunkStructured_TagsSectionMetadata(t *testing.T) {
	t.Parallel()
	c := New(512, 50)
	sections := []Section{
		{Title: "Scope", Level: 1, Text: "this section defines scope."},
		{Title: "Definitions", Level: 1, Text: "this section defines terms."},
	}
	chunks := c.ChunkStructured("", sections)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Scope", chunks[0].SectionTitle)
	assert.True(t, chunks[0].HasSection)
	assert.Equal(t, "Definitions", chunks[1].SectionTitle)
}

func TestChunkStructured_FallsBackWithoutSections(t *testing.T) {
	t.Parallel()
	c := New(512, 50)
	chunks := c.ChunkStructured("plain text with no structure.", nil)
	require.Len(t, chunks, 1)
	assert.False(t, chunks[0].HasSection)
}

func TestNew_ClampsOverlapBelowSize(t *testing.T) {
	t.Parallel()
	c := New(10, 100)
	assert.Equal(t, 9, c.Overlap)
}
