package extractor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/insightdelivered/contract-note-reconciler/internal/models"
)

// IsOCRAvailable reports whether pdftoppm and tesseract are both installed.
func IsOCRAvailable() bool {
	_, err1 := exec.LookPath("pdftoppm")
	_, err2 := exec.LookPath("tesseract")
	return err1 == nil && err2 == nil
}

// tablesWithOCR renders the requested pages to images and reads them with
// Tesseract, keeping inter-word spacing so columns survive as runs of blanks.
// This handles scanned contract notes that have no text layer.
// Requires: pdftoppm (poppler-utils) and tesseract (tesseract-ocr).
func (e *PDFExtractor) tablesWithOCR(filePath string, pages []int) ([]models.RawTable, error) {
	if !IsOCRAvailable() {
		return nil, fmt.Errorf("OCR not available (install poppler-utils and tesseract-ocr)")
	}

	tmpDir, err := os.MkdirTemp("", "ocr-pages-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	if pages == nil {
		n, err := pdfinfoPageCount(filePath)
		if err != nil {
			return nil, err
		}
		pages = allPages(n)
	}

	var tables []models.RawTable
	for _, p := range pages {
		img, err := renderPage(filePath, p, tmpDir)
		if err != nil {
			e.log.Debug().Str("file", filePath).Int("page", p).Err(err).Msg("page render failed")
			continue
		}
		// PSM 6 = assume a single uniform block of text (keeps table rows whole)
		out, err := exec.Command("tesseract", img, "stdout", "-l", "eng", "--psm", "6",
			"-c", "preserve_interword_spaces=1").Output()
		if err != nil {
			e.log.Debug().Str("file", filePath).Int("page", p).Err(err).Msg("tesseract failed for page")
			continue
		}
		tables = append(tables, detectTables(p, linesFromLayout(string(out)))...)
	}
	return tables, nil
}

// renderPage writes one page as a 300 DPI PNG and returns its path.
func renderPage(filePath string, page int, dir string) (string, error) {
	pageStr := strconv.Itoa(page)
	prefix := filepath.Join(dir, "page-"+pageStr)
	cmd := exec.Command("pdftoppm", "-r", "300", "-png", "-f", pageStr, "-l", pageStr, filePath, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("pdftoppm failed: %v (output: %s)", err, string(out))
	}

	// pdftoppm pads the page number, so look the file up
	matches, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("pdftoppm produced no image for page %d", page)
	}
	sort.Strings(matches)
	return matches[0], nil
}
