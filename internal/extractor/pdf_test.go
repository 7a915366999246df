package extractor

import (
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

func TestTrailingPages(t *testing.T) {
	tests := []struct {
		name     string
		numPages int
		count    int
		expected []int
	}{
		{"last two of ten", 10, 2, []int{9, 10}},
		{"last one", 3, 1, []int{3}},
		{"zero means all", 10, 0, nil},
		{"count covers document", 2, 5, nil},
		{"count equals pages", 4, 4, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrailingPages(tt.numPages, tt.count)
			if len(got) != len(tt.expected) {
				t.Fatalf("TrailingPages(%d, %d): got %v, want %v", tt.numPages, tt.count, got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("TrailingPages(%d, %d): got %v, want %v", tt.numPages, tt.count, got, tt.expected)
				}
			}
		})
	}
}

// word places a run of text as the PDF library reports it.
func word(x, y float64, s string) pdf.Text {
	return pdf.Text{X: x, Y: y, W: float64(len(s)) * 5, FontSize: 10, S: s}
}

func TestLinesFromText(t *testing.T) {
	e := NewPDFExtractor(zerolog.Nop())

	texts := []pdf.Text{
		// out of order on purpose: the second row comes first
		word(20, 680, "Brokerage"),
		word(200, 680.4, "(20.00)"),
		word(20, 700, "Pay"),
		word(40, 700, "in"),
		word(200, 700, "(1,000.00)"),
		word(20, 650, ""),
	}

	lines := e.linesFromText(texts)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	first := lines[0]
	if len(first.cells) != 2 {
		t.Fatalf("first line: got %d cells, want 2", len(first.cells))
	}
	if first.cells[0].text != "Pay in" {
		t.Errorf("first cell: got %q, want %q", first.cells[0].text, "Pay in")
	}
	if first.cells[1].text != "(1,000.00)" {
		t.Errorf("second cell: got %q, want %q", first.cells[1].text, "(1,000.00)")
	}
	if lines[1].cells[0].text != "Brokerage" {
		t.Errorf("second line: got %q, want %q", lines[1].cells[0].text, "Brokerage")
	}
}

func TestDetectTablesKeepsBlankCells(t *testing.T) {
	text := `CONTRACT NOTE CUM TAX INVOICE

                        Equity      Futures and Options      NET TOTAL
Brokerage               (20.00)                               (20.00)
STT                     (5.00)      (1.25)                    (6.25)

Page 2 of 2`

	tables := detectTables(2, linesFromLayout(text))
	if len(tables) != 1 {
		t.Fatalf("got %d tables, want 1", len(tables))
	}

	tbl := tables[0]
	if tbl.Page != 2 {
		t.Errorf("page: got %d, want 2", tbl.Page)
	}
	rows, cols := tbl.Shape()
	if rows != 3 || cols != 4 {
		t.Fatalf("shape: got (%d,%d), want (3,4)", rows, cols)
	}

	expected := [][]string{
		{"", "Equity", "Futures and Options", "NET TOTAL"},
		{"Brokerage", "(20.00)", "", "(20.00)"},
		{"STT", "(5.00)", "(1.25)", "(6.25)"},
	}
	for r := range expected {
		for c := range expected[r] {
			if tbl.Cells[r][c] != expected[r][c] {
				t.Errorf("cell[%d][%d]: got %q, want %q", r, c, tbl.Cells[r][c], expected[r][c])
			}
		}
	}
}

func TestDetectTablesSplitsOnSingleCellLines(t *testing.T) {
	text := `A    1
B    2
Heading
C    3
D    4
E    5`

	tables := detectTables(1, linesFromLayout(text))
	if len(tables) != 2 {
		t.Fatalf("got %d tables, want 2", len(tables))
	}
	if len(tables[1].Cells) != 3 {
		t.Errorf("second table rows: got %d, want 3", len(tables[1].Cells))
	}
}

func TestParsePdfinfoPages(t *testing.T) {
	out := "Producer:       Contract Notes\nPages:          10\nEncrypted:      no\n"
	n, err := parsePdfinfoPages(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 10 {
		t.Errorf("got %d, want 10", n)
	}

	if _, err := parsePdfinfoPages("Producer: x\n"); err == nil {
		t.Error("expected error for output without page count")
	}
}

func TestPageCountMissingFile(t *testing.T) {
	e := NewPDFExtractor(zerolog.Nop())
	e.External = false

	if _, err := e.PageCount("/tmp/nonexistent-contract-note-12345.pdf"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}
