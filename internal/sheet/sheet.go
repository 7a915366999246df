// Package sheet reads and writes the flat tabular files the pipeline works
// with: xlsx workbooks (first sheet) and csv files.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrFileNotFound is returned when the file to read does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrUnsupportedFormat is returned for extensions other than xlsx and csv.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Sheet is a header row plus data rows of text. Rows are padded to the
// header width on read.
type Sheet struct {
	Header []string
	Rows   [][]string
	// NumericColumns are written as numbers to xlsx. Values must be decimal
	// text; the conversion to float happens only here, on the way out.
	NumericColumns map[string]bool
}

// Index returns the position of a header column.
func (s *Sheet) Index(column string) (int, bool) {
	for i, h := range s.Header {
		if h == column {
			return i, true
		}
	}
	return -1, false
}

// Read loads the whole file into memory.
func Read(path string) (*Sheet, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	var rows [][]string
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(path)
	case ".csv":
		rows, err = readCSV(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	s := &Sheet{}
	if len(rows) == 0 {
		return s, nil
	}
	s.Header = trimHeader(rows[0])
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		r := make([]string, len(s.Header))
		copy(r, row)
		s.Rows = append(s.Rows, r)
	}
	return s, nil
}

// Write replaces the file at path with s, creating parent directories. The
// content goes to a temporary file first so a failed write leaves the
// previous file intact.
func Write(path string, s *Sheet) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output folder %q: %w", dir, err)
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp"+ext)

	var err error
	switch ext {
	case ".xlsx", ".xlsm":
		err = writeXLSX(tmp, s)
	case ".csv":
		err = writeCSV(tmp, s)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Raw values keep dates as serial numbers and amounts unformatted.
	return f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func writeXLSX(path string, s *Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	name := f.GetSheetName(0)
	header := make([]interface{}, len(s.Header))
	for i, h := range s.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}

	for r, row := range s.Rows {
		values := make([]interface{}, len(row))
		for c, v := range row {
			values[c] = v
			if c < len(s.Header) && s.NumericColumns[s.Header[c]] && v != "" {
				d, err := decimal.NewFromString(v)
				if err != nil {
					return fmt.Errorf("row %d column %q: %w", r+1, s.Header[c], err)
				}
				values[c] = d.InexactFloat64()
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func writeCSV(path string, s *Sheet) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(s.Header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(s.Rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func trimHeader(row []string) []string {
	header := make([]string, len(row))
	for i, h := range row {
		header[i] = strings.TrimSpace(h)
	}
	return header
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
