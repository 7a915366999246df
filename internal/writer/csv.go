package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/insightdelivered/contract-note-reconciler/internal/broker"
)

// CSVWriter writes reconciliation findings to CSV format.
type CSVWriter struct {
	IncludeHeader bool
}

// WriteToFile writes the report's findings to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, rep *broker.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output folder for %q: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	return w.writeAndClose(f, rep)
}

func (w *CSVWriter) writeAndClose(f io.WriteCloser, rep *broker.Report) error {
	if err := w.Write(f, rep); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return nil
}

// Write writes one row per finding, with the join dates of its mismatched
// row, to the given writer.
func (w *CSVWriter) Write(out io.Writer, rep *broker.Report) error {
	writer := csv.NewWriter(out)

	// Write metadata as comments (CSV header rows)
	if w.IncludeHeader {
		meta := [][]string{
			{"# Broker", rep.Broker},
			{"# Run ID", rep.RunID},
		}
		if rep.StartDate != "" || rep.EndDate != "" {
			meta = append(meta, []string{"# Period", rep.StartDate + " to " + rep.EndDate})
		}
		meta = append(meta,
			[]string{"# Matched", strconv.Itoa(rep.Summary.Matched)},
			[]string{"# Ledger Only", strconv.Itoa(rep.Summary.LedgerOnly)},
			[]string{"# Charges Only", strconv.Itoa(rep.Summary.ChargesOnly)},
		)
		if len(rep.Skipped) > 0 {
			meta = append(meta, []string{"# Skipped Documents", strconv.Itoa(len(rep.Skipped))})
		}
		for _, m := range meta {
			if err := writer.Write(m); err != nil {
				return fmt.Errorf("failed to write CSV metadata: %w", err)
			}
		}
	}

	header := []string{"Date", "Ledger Date", "Charges Date", "Kind", "Missing From", "Message"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i, f := range rep.Findings {
		var ledgerDate, chargesDate string
		// findings follow the mismatch rows one to one
		if i < len(rep.Mismatches) {
			ledgerDate, chargesDate = rep.Mismatches[i].LedgerDate, rep.Mismatches[i].ChargesDate
		}
		row := []string{f.Date, ledgerDate, chargesDate, string(f.Kind), f.MissingFrom, f.Message}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
