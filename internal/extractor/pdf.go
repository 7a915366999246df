// Package extractor finds tables in contract note PDFs. It is the only code
// that reads PDF files; the rest of the pipeline sees grids of text cells.
package extractor

import (
	"fmt"
	"sort"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/contract-note-reconciler/internal/models"
)

// TableExtractor is everything the pipeline needs from a PDF table engine.
// Any engine honoring this contract can be swapped in.
type TableExtractor interface {
	// PageCount returns the number of pages in the document.
	PageCount(path string) (int, error)
	// ExtractTables returns the candidate tables found on the given 1-based
	// pages, in reading order. A nil page list means every page.
	ExtractTables(path string, pages []int) ([]models.RawTable, error)
}

// Default geometry, in PDF points.
const (
	defaultCellGap      = 8.0
	defaultRowTolerance = 1.0
)

// PDFExtractor detects tables from the positioned text runs of each page.
// When the PDF library cannot read a file it falls back to poppler-utils
// (pdfinfo, pdftotext) if they are installed, and then to OCR when enabled.
type PDFExtractor struct {
	// CellGap is the horizontal gap that separates two cells on a row.
	CellGap float64
	// RowTolerance is the vertical distance within which runs share a row.
	RowTolerance float64
	// External enables the poppler-utils fallbacks.
	External bool
	// OCR enables the Tesseract fallback for scanned notes. It is slow and
	// off by default.
	OCR bool

	log zerolog.Logger
}

// NewPDFExtractor returns an extractor with default geometry and fallbacks on.
func NewPDFExtractor(log zerolog.Logger) *PDFExtractor {
	return &PDFExtractor{
		CellGap:      defaultCellGap,
		RowTolerance: defaultRowTolerance,
		External:     true,
		log:          log,
	}
}

// PageCount reads the page count with the PDF library, then with pdfinfo.
func (e *PDFExtractor) PageCount(path string) (int, error) {
	n, libErr := pageCountWithLibrary(path)
	if libErr == nil && n > 0 {
		return n, nil
	}
	if e.External {
		if n, err := pdfinfoPageCount(path); err == nil && n > 0 {
			e.log.Debug().Str("file", path).AnErr("library_error", libErr).Msg("page count from pdfinfo")
			return n, nil
		}
	}
	if libErr != nil {
		return 0, fmt.Errorf("count pages of %s: %w", path, libErr)
	}
	return 0, fmt.Errorf("count pages of %s: PDF has no pages", path)
}

// ExtractTables detects tables on the requested pages.
func (e *PDFExtractor) ExtractTables(path string, pages []int) ([]models.RawTable, error) {
	tables, libErr := e.tablesWithLibrary(path, pages)
	if libErr == nil && len(tables) > 0 {
		return tables, nil
	}

	if e.External {
		fallback, err := e.tablesWithPdftotext(path, pages)
		if err == nil && len(fallback) > 0 {
			e.log.Debug().Str("file", path).Int("tables", len(fallback)).Msg("tables from pdftotext layout")
			return fallback, nil
		}
	}

	if e.OCR {
		scanned, err := e.tablesWithOCR(path, pages)
		if err == nil && len(scanned) > 0 {
			e.log.Info().Str("file", path).Int("tables", len(scanned)).Msg("tables from OCR")
			return scanned, nil
		}
		if err != nil {
			e.log.Debug().Str("file", path).Err(err).Msg("OCR fallback failed")
		}
	}

	if libErr != nil {
		return nil, fmt.Errorf("extract tables from %s: %w", path, libErr)
	}
	return tables, nil
}

func pageCountWithLibrary(path string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return r.NumPage(), nil
}

func (e *PDFExtractor) tablesWithLibrary(path string, pages []int) (tables []models.RawTable, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF library crashed: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := r.NumPage()
	if pages == nil {
		pages = allPages(numPages)
	}

	for _, num := range pages {
		if num < 1 || num > numPages {
			continue
		}
		page := r.Page(num)
		if page.V.IsNull() {
			continue
		}
		lines := e.linesFromText(page.Content().Text)
		tables = append(tables, detectTables(num, lines)...)
	}
	return tables, nil
}

// linesFromText groups text runs into rows by Y (top of page first) and each
// row into cells split at gaps wider than CellGap.
func (e *PDFExtractor) linesFromText(texts []pdf.Text) []line {
	var runs []pdf.Text
	for _, t := range texts {
		if t.S != "" {
			runs = append(runs, t)
		}
	}
	// PDF Y grows upwards
	sort.SliceStable(runs, func(a, b int) bool {
		if runs[a].Y != runs[b].Y {
			return runs[a].Y > runs[b].Y
		}
		return runs[a].X < runs[b].X
	})

	var lines []line
	for i := 0; i < len(runs); {
		j := i + 1
		for j < len(runs) && runs[i].Y-runs[j].Y <= e.RowTolerance {
			j++
		}
		row := append([]pdf.Text(nil), runs[i:j]...)
		sort.SliceStable(row, func(a, b int) bool { return row[a].X < row[b].X })
		if l := e.cellsFromRow(row); len(l.cells) > 0 {
			lines = append(lines, l)
		}
		i = j
	}
	return lines
}

func (e *PDFExtractor) cellsFromRow(row []pdf.Text) line {
	l := line{y: row[0].Y}
	var cur *span
	prevEnd := 0.0
	for _, t := range row {
		gap := t.X - prevEnd
		switch {
		case cur == nil || gap > e.CellGap:
			if cur != nil {
				l.add(*cur)
			}
			cur = &span{start: t.X, text: t.S}
		case gap > t.FontSize*0.15 && t.S != " ":
			cur.text += " " + t.S
		default:
			cur.text += t.S
		}
		cur.end = t.X + t.W
		prevEnd = cur.end
	}
	if cur != nil {
		l.add(*cur)
	}
	return l
}

// TrailingPages returns the last count pages of a numPages document in
// ascending order. A count of zero (or one covering the whole document)
// means every page and returns nil.
func TrailingPages(numPages, count int) []int {
	if count <= 0 || count >= numPages {
		return nil
	}
	pages := make([]int, 0, count)
	for p := numPages - count + 1; p <= numPages; p++ {
		pages = append(pages, p)
	}
	return pages
}

func allPages(n int) []int {
	pages := make([]int, n)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}
