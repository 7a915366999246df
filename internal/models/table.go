package models

import (
	"fmt"
	"strings"
)

// RawTable is a grid of text cells found on one page, as returned by the
// table extraction engine.
type RawTable struct {
	Page  int        `json:"page"`
	Cells [][]string `json:"cells"`
}

// Shape returns the number of rows and the widest row of the grid.
func (r RawTable) Shape() (rows, cols int) {
	for _, row := range r.Cells {
		if len(row) > cols {
			cols = len(row)
		}
	}
	return len(r.Cells), cols
}

// Table is a RawTable promoted to named columns: the first grid row is the
// header, the rest are data rows. Every data row has len(Columns) cells.
type Table struct {
	Page    int        `json:"page"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Shape returns (data rows, columns), the header row excluded.
func (t *Table) Shape() (rows, cols int) {
	return len(t.Rows), len(t.Columns)
}

// Column returns the index of the first column with the given name.
func (t *Table) Column(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// Cell returns the cell of a data row under the named column.
func (t *Table) Cell(row int, column string) (string, error) {
	idx, ok := t.Column(column)
	if !ok {
		return "", &FieldError{Field: column, Err: ErrColumnMissing}
	}
	if row < 0 || row >= len(t.Rows) {
		return "", fmt.Errorf("row %d out of range (%d rows)", row, len(t.Rows))
	}
	return t.Rows[row][idx], nil
}

// RowByLabel returns the first data row whose cell in column labelCol
// contains label, compared case-insensitively.
func (t *Table) RowByLabel(labelCol int, label string) (int, bool) {
	want := strings.ToLower(label)
	for i, row := range t.Rows {
		if labelCol < len(row) && strings.Contains(strings.ToLower(row[labelCol]), want) {
			return i, true
		}
	}
	return -1, false
}

// InsertColumn adds a blank column named name before index at.
func (t *Table) InsertColumn(at int, name string) {
	if at < 0 || at > len(t.Columns) {
		at = len(t.Columns)
	}
	t.Columns = insertAt(t.Columns, at, name)
	for i, row := range t.Rows {
		t.Rows[i] = insertAt(row, at, "")
	}
}

func insertAt(s []string, at int, v string) []string {
	out := make([]string, 0, len(s)+1)
	out = append(out, s[:at]...)
	out = append(out, v)
	return append(out, s[at:]...)
}

// Clone returns a deep copy, so callers can repair a table without touching
// the original.
func (t *Table) Clone() *Table {
	c := &Table{Page: t.Page, Columns: append([]string(nil), t.Columns...)}
	for _, r := range t.Rows {
		c.Rows = append(c.Rows, append([]string(nil), r...))
	}
	return c
}
