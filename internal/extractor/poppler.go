package extractor

import (
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/insightdelivered/contract-note-reconciler/internal/models"
)

// pdfinfoPageCount returns the number of pages in a PDF using pdfinfo.
func pdfinfoPageCount(filePath string) (int, error) {
	if _, err := exec.LookPath("pdfinfo"); err != nil {
		return 0, fmt.Errorf("pdfinfo not available (install poppler-utils): %v", err)
	}
	out, err := exec.Command("pdfinfo", filePath).Output()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo failed: %w", err)
	}
	return parsePdfinfoPages(string(out))
}

func parsePdfinfoPages(out string) (int, error) {
	for _, l := range strings.Split(out, "\n") {
		if strings.HasPrefix(l, "Pages:") {
			return strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(l, "Pages:")))
		}
	}
	return 0, fmt.Errorf("pdfinfo output has no page count")
}

// tablesWithPdftotext renders each page with `pdftotext -layout` and detects
// tables in the fixed-width text.
func (e *PDFExtractor) tablesWithPdftotext(filePath string, pages []int) ([]models.RawTable, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return nil, fmt.Errorf("pdftotext not available: %v", err)
	}

	if pages == nil {
		n, err := pdfinfoPageCount(filePath)
		if err != nil {
			return nil, err
		}
		pages = allPages(n)
	}

	var tables []models.RawTable
	for _, p := range pages {
		pageStr := strconv.Itoa(p)
		out, err := exec.Command("pdftotext", "-layout", "-f", pageStr, "-l", pageStr, filePath, "-").Output()
		if err != nil {
			e.log.Debug().Str("file", filePath).Int("page", p).Err(err).Msg("pdftotext failed for page")
			continue
		}
		tables = append(tables, detectTables(p, linesFromLayout(string(out)))...)
	}
	return tables, nil
}

// A cell in -layout output is a run of words separated by single spaces;
// columns are at least two spaces apart.
var layoutCell = regexp.MustCompile(`\S+(?: \S+)*`)

// linesFromLayout turns fixed-width text into lines whose cells are
// positioned by character column.
func linesFromLayout(text string) []line {
	var lines []line
	for i, raw := range strings.Split(text, "\n") {
		raw = strings.ReplaceAll(raw, "\t", "    ")
		l := line{y: float64(-i)}
		for _, loc := range layoutCell.FindAllStringIndex(raw, -1) {
			l.add(span{start: float64(loc[0]), end: float64(loc[1]), text: raw[loc[0]:loc[1]]})
		}
		lines = append(lines, l)
	}
	return lines
}
