// Package extract is the C2 component: turns an uploaded file's bytes into
// plain text plus whatever structure (pages, paragraphs, tables, sections)
// its format exposes.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"regdocs/internal/chunk"
)

// Errors returned by Extract.
var (
	ErrUnsupportedFormat = errors.New("extract: unsupported file format")
	ErrEmpty             = errors.New("extract: no text could be extracted")
)

// Page is one page of a paginated source (PDF).
type Page struct {
	Number int
	Text   string
}

// TableRow is one row of a table found in the source (DOCX).
type TableRow struct {
	Cells []string
}

// Metadata is whatever bibliographic information the format exposes. Fields
// left unset by the format stay at their zero value; HasX flags distinguish
// "absent" from "empty string".
type Metadata struct {
	PageCount int
	Producer  string
	Creator   string
	Author    string
	Title     string
	HasAuthor bool
	HasTitle  bool
}

// Result is the normalized output of extracting one document, independent
// of its original format.
type Result struct {
	Text       string
	Pages      []Page
	Paragraphs []string
	Tables     [][]TableRow
	Sections   []chunk.Section
	Metadata   Metadata
}

// Options configures extraction behavior.
type Options struct {
	// UseOCR enables the OCR fallback for PDFs whose pages carry no text
	// layer (scanned documents).
	UseOCR bool
}

// Extractor pulls Result out of raw file bytes for one format.
type Extractor interface {
	Extract(ctx context.Context, path string, opts Options) (Result, error)
}

// Registry dispatches to an Extractor by lowercased file extension
// (without the leading dot), mirroring extract_document's suffix dispatch.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry builds the default registry: pdf, docx, and doc (handled by
// the DOCX extractor, matching the original's dispatch table).
func NewRegistry(ocrBinary string) *Registry {
	docx := &DOCXExtractor{}
	return &Registry{extractors: map[string]Extractor{
		"pdf":  &PDFExtractor{OCR: NewTesseractOCR(ocrBinary)},
		"docx": docx,
		"doc":  docx,
	}}
}

// Extract dispatches by the extension of path and validates the result is
// non-empty.
func (r *Registry) Extract(ctx context.Context, path string, opts Options) (Result, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	e, ok := r.extractors[ext]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	res, err := e.Extract(ctx, path, opts)
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(res.Text) == "" {
		return Result{}, ErrEmpty
	}
	return res, nil
}
