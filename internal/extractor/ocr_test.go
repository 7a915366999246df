package extractor

import (
	"os/exec"
	"testing"

	"github.com/rs/zerolog"
)

func TestIsOCRAvailable(t *testing.T) {
	// The result depends on the system's installed tools.
	result := IsOCRAvailable()
	t.Logf("IsOCRAvailable() = %v", result)

	_, err1 := exec.LookPath("pdftoppm")
	_, err2 := exec.LookPath("tesseract")
	expected := err1 == nil && err2 == nil
	if result != expected {
		t.Errorf("IsOCRAvailable() = %v, but direct check says %v", result, expected)
	}
}

func TestTablesWithOCR_MissingTools(t *testing.T) {
	if IsOCRAvailable() {
		t.Skip("OCR tools are installed; cannot test missing-tool error path")
	}

	e := NewPDFExtractor(zerolog.Nop())
	if _, err := e.tablesWithOCR("/nonexistent/file.pdf", []int{1}); err == nil {
		t.Error("expected error when OCR tools are not installed")
	}
}

func TestTablesWithOCR_NonexistentFile(t *testing.T) {
	if !IsOCRAvailable() {
		t.Skip("OCR tools not installed; skipping")
	}

	e := NewPDFExtractor(zerolog.Nop())
	tables, err := e.tablesWithOCR("/tmp/nonexistent-file-12345.pdf", []int{1})
	if err != nil {
		t.Fatalf("unreadable pages are skipped, got error %v", err)
	}
	if len(tables) != 0 {
		t.Errorf("expected no tables, got %d", len(tables))
	}
}

func TestOCRLayoutKeepsColumns(t *testing.T) {
	// tesseract output with preserve_interword_spaces
	text := "Particulars            Amount\n" +
		"Brokerage              25.00\n" +
		"Stamp Duty              1.50\n"

	tables := detectTables(4, linesFromLayout(text))

	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	want := [][]string{{"Particulars", "Amount"}, {"Brokerage", "25.00"}, {"Stamp Duty", "1.50"}}
	for r, row := range want {
		for c, cell := range row {
			if got := tables[0].Cells[r][c]; got != cell {
				t.Errorf("cell (%d,%d): got %q, want %q", r, c, got, cell)
			}
		}
	}
}
