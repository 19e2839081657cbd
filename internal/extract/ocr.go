package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// TesseractOCR rasterizes a single PDF page with pdftoppm (poppler-utils)
// at 2x the default 72dpi resolution — matching the fitz.Matrix(2, 2)
// render scale used before OCR in the original pipeline — then runs
// tesseract against the resulting PNG. Both are external CLI binaries
// invoked via os/exec, following the host process's established pattern
// for shelling out to tools that have no Go binding in the dependency
// pack (no OCR or PDF-rasterization library exists there).
type TesseractOCR struct {
	Binary     string
	RasterizerBinary string
}

// NewTesseractOCR builds a TesseractOCR using the given tesseract binary
// path (or "tesseract" if empty) and pdftoppm for rasterization.
func NewTesseractOCR(binary string) *TesseractOCR {
	if binary == "" {
		binary = "tesseract"
	}
	return &TesseractOCR{Binary: binary, RasterizerBinary: "pdftoppm"}
}

// ExtractPage OCRs page pageNum (1-indexed) of the PDF at pdfPath.
func (t *TesseractOCR) ExtractPage(ctx context.Context, pdfPath string, pageNum int) (string, error) {
	dir, err := os.MkdirTemp("", "regdocs-ocr-*")
	if err != nil {
		return "", fmt.Errorf("extract: ocr temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	pageArg := strconv.Itoa(pageNum)
	imgPrefix := filepath.Join(dir, "page")
	rasterize := exec.CommandContext(ctx, t.RasterizerBinary,
		"-png", "-r", "144", "-f", pageArg, "-l", pageArg, pdfPath, imgPrefix)
	if out, err := rasterize.CombinedOutput(); err != nil {
		return "", fmt.Errorf("extract: rasterize page %d: %w: %s", pageNum, err, string(out))
	}

	imgPath, err := findRasterizedPage(dir)
	if err != nil {
		return "", err
	}

	outPrefix := filepath.Join(dir, "ocr")
	ocr := exec.CommandContext(ctx, t.Binary, imgPath, outPrefix)
	if out, err := ocr.CombinedOutput(); err != nil {
		return "", fmt.Errorf("extract: tesseract page %d: %w: %s", pageNum, err, string(out))
	}

	text, err := os.ReadFile(outPrefix + ".txt")
	if err != nil {
		return "", fmt.Errorf("extract: read ocr output: %w", err)
	}
	return string(text), nil
}

func findRasterizedPage(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("extract: read ocr temp dir: %w", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".png" {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("extract: rasterizer produced no page image")
}
