// Package chunk is the C3 component: splits extracted document text into
// overlapping, bounded chunks, optionally tagged with section structure.
package chunk

import (
	"regexp"
	"strings"
)

// Chunk is one contiguous text window produced by the chunker.
type Chunk struct {
	Text         string
	CharCount    int
	SectionTitle string
	SectionLevel int
	HasSection   bool
	PageNumber   int
	HasPage      bool
}

// Section is one structural unit of a document (a heading and the text
// under it) fed to ChunkStructured. PageNumber/HasPage carry a PDF page
// number through to every chunk cut from that section; DOCX sections,
// which have no page concept, leave it unset.
type Section struct {
	Title      string
	Level      int
	Text       string
	PageNumber int
	HasPage    bool
}

var (
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	sentenceSplit  = regexp.MustCompile(`(?:[.!?])\s+`)
)

// Chunker splits text into overlapping chunks of roughly Size characters,
// carrying Overlap trailing characters from one chunk into the next so a
// concept spanning a chunk boundary isn't lost entirely.
type Chunker struct {
	Size    int
	Overlap int
}

// New constructs a Chunker with the given target size and overlap. Size
// must be positive; Overlap is clamped to [0, Size).
func New(size, overlap int) Chunker {
	if size <= 0 {
		size = 512
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return Chunker{Size: size, Overlap: overlap}
}

// ChunkText splits text into paragraph-respecting, size-bounded chunks.
// A paragraph larger than Size is split further on sentence boundaries.
func (c Chunker) ChunkText(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	paragraphs := splitParagraphs(text)

	var chunks []Chunk
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, newChunk(current.String()))
		current.Reset()
	}

	for _, para := range paragraphs {
		switch {
		case len(para) > c.Size:
			flush()
			for _, sub := range c.splitLarge(para) {
				chunks = append(chunks, newChunk(sub))
			}
		case current.Len()+len(para) > c.Size:
			prior := current.String()
			flush()
			if c.Overlap > 0 && prior != "" {
				current.WriteString(tail(prior, c.Overlap))
				current.WriteString("\n\n")
			}
			current.WriteString(para)
		default:
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(para)
		}
	}
	flush()

	return chunks
}

// ChunkStructured chunks each Section independently (so chunks never span
// a section boundary) and tags every resulting Chunk with that section's
// title and level. When sections is empty it falls back to ChunkText.
func (c Chunker) ChunkStructured(text string, sections []Section) []Chunk {
	if len(sections) == 0 {
		return c.ChunkText(text)
	}

	var out []Chunk
	for _, s := range sections {
		for _, ch := range c.ChunkText(s.Text) {
			ch.SectionTitle = s.Title
			ch.SectionLevel = s.Level
			ch.HasSection = true
			ch.PageNumber = s.PageNumber
			ch.HasPage = s.HasPage
			out = append(out, ch)
		}
	}
	return out
}

// splitLarge splits a paragraph larger than Size on sentence boundaries,
// re-accumulating with the same overlap rule as ChunkText.
func (c Chunker) splitLarge(text string) []string {
	sentences := sentenceSplit.Split(text, -1)

	var out []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		out = append(out, strings.TrimSpace(current.String()))
		current.Reset()
	}

	for _, sentence := range sentences {
		if current.Len()+len(sentence) > c.Size {
			prior := current.String()
			flush()
			if c.Overlap > 0 && prior != "" {
				current.WriteString(tail(prior, c.Overlap))
				current.WriteString(" ")
			}
			current.WriteString(sentence)
		} else {
			if current.Len() > 0 {
				current.WriteString(" ")
			}
			current.WriteString(sentence)
		}
	}
	flush()

	return out
}

func splitParagraphs(text string) []string {
	raw := paragraphSplit.Split(text, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func newChunk(text string) Chunk {
	trimmed := strings.TrimSpace(text)
	return Chunk{Text: trimmed, CharCount: len(trimmed)}
}

// tail returns the last n bytes of s (a byte-slice overlap, which may cut a
// multi-byte rune), or all of s if shorter.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
