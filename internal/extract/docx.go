package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"regdocs/internal/chunk"
)

// DOCXExtractor reads word/document.xml (paragraphs, tables) and
// docProps/core.xml (author/title/dates) directly out of the OOXML zip
// container — there is no ecosystem-standard high-level Go DOCX library in
// the dependency pack, so this hand-rolled archive/zip + encoding/xml
// reader is the implementation, grounded on the same technique used
// elsewhere in the pack for OOXML parsing.
type DOCXExtractor struct{}

func (d *DOCXExtractor) Extract(ctx context.Context, path string, opts Options) (Result, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return Result{}, fmt.Errorf("extract: open docx: %w", err)
	}
	defer r.Close()

	fileIndex := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileIndex[f.Name] = f
	}

	docFile, ok := fileIndex["word/document.xml"]
	if !ok {
		return Result{}, fmt.Errorf("extract: word/document.xml not found in docx")
	}
	docData, err := readZipFile(docFile)
	if err != nil {
		return Result{}, fmt.Errorf("extract: read document.xml: %w", err)
	}

	var doc docxDocument
	if err := xml.Unmarshal(docData, &doc); err != nil {
		return Result{}, fmt.Errorf("extract: parse document.xml: %w", err)
	}

	res := Result{}
	var fullText strings.Builder
	var sections []*docxSection

	for _, para := range doc.Body.Paras {
		text := paragraphText(para)
		if text == "" {
			continue
		}
		style := ""
		if para.PPr != nil && para.PPr.PStyle != nil {
			style = para.PPr.PStyle.Val
		}
		res.Paragraphs = append(res.Paragraphs, text)
		if isHeadingStyle(style) {
			sections = append(sections, &docxSection{title: text, level: headingLevel(style)})
		} else if len(sections) > 0 {
			cur := sections[len(sections)-1]
			if cur.text.Len() > 0 {
				cur.text.WriteString("\n\n")
			}
			cur.text.WriteString(text)
		}
		if fullText.Len() > 0 {
			fullText.WriteString("\n\n")
		}
		fullText.WriteString(text)
	}

	for _, tbl := range doc.Body.Tables {
		var rows []TableRow
		var tableText strings.Builder
		for _, row := range tbl.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				var cellText strings.Builder
				for _, p := range cell.Paras {
					if t := paragraphText(p); t != "" {
						if cellText.Len() > 0 {
							cellText.WriteString(" ")
						}
						cellText.WriteString(t)
					}
				}
				cells = append(cells, cellText.String())
			}
			rows = append(rows, TableRow{Cells: cells})
			tableText.WriteString(strings.Join(cells, " | "))
			tableText.WriteString("\n")
		}
		res.Tables = append(res.Tables, rows)
		if fullText.Len() > 0 {
			fullText.WriteString("\n\n")
		}
		fullText.WriteString(tableText.String())
	}

	for _, s := range sections {
		res.Sections = append(res.Sections, chunk.Section{Title: s.title, Level: s.level, Text: s.text.String()})
	}

	res.Text = fullText.String()
	res.Metadata = readCoreProperties(fileIndex)
	return res, nil
}

// docxSection accumulates the body text following a heading paragraph
// until the next heading, so ChunkStructured sees real section content
// instead of an empty Text field.
type docxSection struct {
	title string
	level int
	text  strings.Builder
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func paragraphText(p docxPara) string {
	var b strings.Builder
	for _, run := range p.Runs {
		for _, t := range run.Text {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}

func isHeadingStyle(style string) bool {
	s := strings.ToLower(style)
	return strings.HasPrefix(s, "heading") || strings.HasPrefix(s, "title")
}

func headingLevel(style string) int {
	switch {
	case strings.HasSuffix(style, "1"):
		return 1
	case strings.HasSuffix(style, "2"):
		return 2
	case strings.HasSuffix(style, "3"):
		return 3
	default:
		return 0
	}
}

func readCoreProperties(fileIndex map[string]*zip.File) Metadata {
	var meta Metadata
	f, ok := fileIndex["docProps/core.xml"]
	if !ok {
		return meta
	}
	data, err := readZipFile(f)
	if err != nil {
		return meta
	}
	var core docxCoreProperties
	if err := xml.Unmarshal(data, &core); err != nil {
		return meta
	}
	if core.Creator != "" {
		meta.Author = core.Creator
		meta.HasAuthor = true
	}
	if core.Title != "" {
		meta.Title = core.Title
		meta.HasTitle = true
	}
	return meta
}

// --- OOXML XML schema (minimal subset needed to read paragraphs, tables,
// and core properties) ---

type docxDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    docxBody `xml:"body"`
}

type docxBody struct {
	Paras  []docxPara  `xml:"p"`
	Tables []docxTable `xml:"tbl"`
}

type docxPara struct {
	PPr  *docxParaPr `xml:"pPr"`
	Runs []docxRun   `xml:"r"`
}

type docxParaPr struct {
	PStyle *docxPStyle `xml:"pStyle"`
}

type docxPStyle struct {
	Val string `xml:"val,attr"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

type docxTable struct {
	Rows []docxRow `xml:"tr"`
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxCell struct {
	Paras []docxPara `xml:"p"`
}

type docxCoreProperties struct {
	XMLName xml.Name `xml:"coreProperties"`
	Creator string   `xml:"creator"`
	Title   string   `xml:"title"`
}
