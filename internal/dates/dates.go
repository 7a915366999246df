// Package dates derives ISO calendar dates from contract note file names and
// ledger cells.
package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
	"github.com/xuri/excelize/v2"
)

// ISOLayout is the canonical date representation used for every join key.
const ISOLayout = "2006-01-02"

// Pattern pairs a regexp whose first group captures a date with the Go layout
// that group is written in.
type Pattern struct {
	Regexp *regexp.Regexp
	Layout string
}

// Known file name conventions.
var (
	// 2022-04-01 anywhere in the name (Zerodha)
	PatternISO = Pattern{regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`), ISOLayout}
	// 01042022. before the extension (Axis Direct)
	PatternDMYCompact = Pattern{regexp.MustCompile(`(\d{8})\.`), "02012006"}
)

// Extractor tries its patterns in order and returns the first date found.
type Extractor struct {
	patterns []Pattern
}

// NewExtractor returns an Extractor for the given patterns. Without patterns
// it uses every known convention.
func NewExtractor(patterns ...Pattern) *Extractor {
	if len(patterns) == 0 {
		patterns = []Pattern{PatternISO, PatternDMYCompact}
	}
	return &Extractor{patterns: patterns}
}

// Extract returns the ISO date encoded in text. A pattern that matches but
// does not hold a valid calendar date is passed over.
func (e *Extractor) Extract(text string) (string, bool) {
	for _, p := range e.patterns {
		m := p.Regexp.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		t, err := time.Parse(p.Layout, m[1])
		if err != nil {
			continue
		}
		return t.Format(ISOLayout), true
	}
	return "", false
}

// ErrNoDate reports a blank ledger date cell, as on opening and closing
// balance rows.
var ErrNoDate = errors.New("no date")

// NormalizeLedgerDate converts a ledger date cell to ISO form. With a layout
// the cell is parsed as text first. Native spreadsheet dates, either already
// ISO or an Excel serial day number, are accepted with or without a layout
// since a workbook may mix them with text dates.
func NormalizeLedgerDate(value, layout string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrNoDate
	}

	if layout != "" {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.Format(ISOLayout), nil
		}
		if native, ok := nativeDate(value); ok {
			return native, nil
		}
		return "", fmt.Errorf("parse date %q with layout %q: %w", value, layout, err)
	}

	if native, ok := nativeDate(value); ok {
		return native, nil
	}
	return "", fmt.Errorf("date %q is neither ISO nor a spreadsheet serial", value)
}

// 9999-12-31, the last day a workbook can hold.
const maxExcelSerial = 2958465

func nativeDate(value string) (string, bool) {
	// Native values may carry a time part: "2022-04-01 00:00:00"
	if len(value) >= len(ISOLayout) {
		if t, err := time.Parse(ISOLayout, value[:len(ISOLayout)]); err == nil {
			return t.Format(ISOLayout), true
		}
	}

	serial, err := strconv.ParseFloat(value, 64)
	if err != nil || serial <= 0 || serial > maxExcelSerial {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return "", false
	}
	return t.Format(ISOLayout), true
}

// Layout converts a strftime format such as "%d-%m-%Y" to a Go layout. Values
// that are already Go layouts (no '%') pass through unchanged.
func Layout(format string) (string, error) {
	if format == "" || !strings.Contains(format, "%") {
		return format, nil
	}
	layout, err := strftime.Layout(format)
	if err != nil {
		return "", fmt.Errorf("date format %q: %w", format, err)
	}
	return layout, nil
}

// InRange reports whether date lies in the half-open interval [start, end).
// Empty bounds are open. All three are ISO strings, which order lexically.
func InRange(date, start, end string) bool {
	if start != "" && date < start {
		return false
	}
	if end != "" && date >= end {
		return false
	}
	return true
}
