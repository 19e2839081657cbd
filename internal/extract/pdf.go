package extract

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"regdocs/internal/chunk"
)

// PDFExtractor reads the text layer of a PDF page by page, falling back to
// OCR for pages with no extractable text when Options.UseOCR is set.
type PDFExtractor struct {
	OCR *TesseractOCR
}

func (p *PDFExtractor) Extract(ctx context.Context, path string, opts Options) (Result, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("extract: open pdf: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	res := Result{Metadata: Metadata{PageCount: totalPages}}

	if info := reader.Trailer(); !info.IsNull() {
		root := info.Key("Info")
		if !root.IsNull() {
			res.Metadata.Producer = root.Key("Producer").Text()
			res.Metadata.Creator = root.Key("Creator").Text()
		}
	}

	var fullText strings.Builder
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := extractPageTextOrdered(page)
		if err != nil || strings.TrimSpace(text) == "" {
			if opts.UseOCR && p.OCR != nil {
				ocrText, ocrErr := p.OCR.ExtractPage(ctx, path, i)
				if ocrErr == nil {
					text = ocrText
				}
			}
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		res.Pages = append(res.Pages, Page{Number: i, Text: text})
		res.Sections = append(res.Sections, chunk.Section{
			Title:      fmt.Sprintf("page %d", i),
			Level:      0,
			Text:       text,
			PageNumber: i,
			HasPage:    true,
		})
		if fullText.Len() > 0 {
			fullText.WriteString("\n\n")
		}
		fullText.WriteString(text)
	}

	res.Text = fullText.String()
	return res, nil
}

// extractPageTextOrdered groups a page's content-stream text runs into
// visual lines by Y-coordinate proximity and joins them top-to-bottom,
// falling back to the library's plain-text extraction when the content
// stream carries no positioned text runs.
func extractPageTextOrdered(page pdf.Page) (string, error) {
	content := page.Content()
	if len(content.Text) == 0 {
		return page.GetPlainText(nil)
	}

	const lineTolerance = 3.0

	type visualLine struct {
		y   float64
		buf strings.Builder
	}

	var lines []*visualLine
	var cur *visualLine

	for _, t := range content.Text {
		if cur == nil || math.Abs(t.Y-cur.y) > lineTolerance {
			lines = append(lines, &visualLine{y: t.Y})
			cur = lines[len(lines)-1]
		}
		cur.buf.WriteString(t.S)
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	var parts []string
	for _, l := range lines {
		if text := strings.TrimSpace(l.buf.String()); text != "" {
			parts = append(parts, text)
		}
	}

	result := strings.Join(parts, "\n")
	if strings.TrimSpace(result) == "" {
		return page.GetPlainText(nil)
	}
	return result, nil
}
