package extractor

import (
	"math"
	"strings"

	"github.com/insightdelivered/contract-note-reconciler/internal/models"
)

// span is one cell of text on a line with its horizontal extent.
type span struct {
	start, end float64
	text       string
}

func (s span) center() float64 { return (s.start + s.end) / 2 }

type line struct {
	y     float64
	cells []span
}

func (l *line) add(s span) {
	s.text = strings.TrimSpace(s.text)
	if s.text != "" {
		l.cells = append(l.cells, s)
	}
}

// detectTables groups consecutive multi-cell lines into tables. The widest
// line of a block sets the column anchors; cells of other lines land in the
// anchor they overlap most, so missing values stay as blank cells.
func detectTables(page int, lines []line) []models.RawTable {
	var tables []models.RawTable
	var block []line

	flush := func() {
		if len(block) >= 2 {
			tables = append(tables, models.RawTable{Page: page, Cells: alignBlock(block)})
		}
		block = nil
	}

	for _, l := range lines {
		if len(l.cells) < 2 {
			flush()
			continue
		}
		block = append(block, l)
	}
	flush()
	return tables
}

func alignBlock(block []line) [][]string {
	anchors := block[0].cells
	for _, l := range block[1:] {
		if len(l.cells) > len(anchors) {
			anchors = l.cells
		}
	}

	grid := make([][]string, 0, len(block))
	for _, l := range block {
		row := make([]string, len(anchors))
		for _, c := range l.cells {
			col := nearestAnchor(anchors, c)
			if row[col] != "" {
				row[col] += " " + c.text
			} else {
				row[col] = c.text
			}
		}
		grid = append(grid, row)
	}
	return grid
}

func nearestAnchor(anchors []span, c span) int {
	best, bestOverlap := -1, 0.0
	for i, a := range anchors {
		overlap := math.Min(a.end, c.end) - math.Max(a.start, c.start)
		if overlap > bestOverlap {
			best, bestOverlap = i, overlap
		}
	}
	if best >= 0 {
		return best
	}

	bestDist := math.Inf(1)
	for i, a := range anchors {
		if d := math.Abs(a.center() - c.center()); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
