package writer

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/insightdelivered/contract-note-reconciler/internal/broker"
	"github.com/insightdelivered/contract-note-reconciler/internal/reconcile"
)

func sampleReport() *broker.Report {
	rows := []reconcile.Row{
		{LedgerDate: "2022-04-01", ChargesDate: "2022-04-01"},
		{LedgerDate: "2022-04-02"},
		{ChargesDate: "2022-04-03"},
	}
	return &broker.Report{
		RunID:      "5d9a3c1e-0000-4000-8000-000000000001",
		Broker:     "Zerodha",
		StartDate:  "2022-04-01",
		EndDate:    "2023-04-01",
		Summary:    reconcile.Summarize(rows),
		Mismatches: reconcile.FindMismatches(rows),
		Findings:   reconcile.Report(rows, "Zerodha Financial Ledger", "Zerodha Charges Aggregate"),
	}
}

func TestCSVWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := &CSVWriter{IncludeHeader: true}
	err := w.Write(&buf, sampleReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()

	// Check metadata headers
	if !strings.Contains(output, "# Broker,Zerodha") {
		t.Error("expected broker metadata header")
	}
	if !strings.Contains(output, "# Period,2022-04-01 to 2023-04-01") {
		t.Error("expected period metadata")
	}

	if !strings.Contains(output, "Date,Ledger Date,Charges Date,Kind,Missing From,Message") {
		t.Error("expected column headers")
	}

	if !strings.Contains(output, "2022-04-02,2022-04-02,,missing_in_charges,Zerodha Charges Aggregate,") {
		t.Errorf("expected charges-side gap row, got:\n%s", output)
	}
	if !strings.Contains(output, "2022-04-03,,2022-04-03,missing_in_ledger,Zerodha Financial Ledger,") {
		t.Errorf("expected ledger-side gap row, got:\n%s", output)
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	// 6 metadata lines + 1 header + 2 findings = 9
	if len(lines) != 9 {
		t.Errorf("expected 9 lines, got %d", len(lines))
	}
}

func TestCSVWriter_WriteNoHeader(t *testing.T) {
	var buf bytes.Buffer
	w := &CSVWriter{IncludeHeader: false}
	if err := w.Write(&buf, sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "#") {
		t.Error("expected no metadata headers")
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 3 {
		t.Errorf("expected 3 lines, got %d", len(lines))
	}
}

func TestCSVWriter_NoFindings(t *testing.T) {
	var buf bytes.Buffer
	w := &CSVWriter{}
	if err := w.Write(&buf, &broker.Report{Broker: "Zerodha"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := strings.TrimSpace(buf.String())
	want := "Date,Ledger Date,Charges Date,Kind,Missing From,Message"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCSVWriter_WriteToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "findings.csv")
	w := &CSVWriter{IncludeHeader: true}

	if err := w.WriteToFile(path, sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(data), "Report 'Zerodha Financial Ledger' has missing entry for date 2022-04-03") {
		t.Errorf("expected finding message in file, got:\n%s", data)
	}
}

type failingCloser struct {
	bytes.Buffer
	closeErr error
	closed   bool
}

func (f *failingCloser) Close() error {
	f.closed = true
	return f.closeErr
}

func TestCSVWriter_CloseError(t *testing.T) {
	errDisk := errors.New("disk full")
	out := &failingCloser{closeErr: errDisk}
	w := &CSVWriter{IncludeHeader: true}

	err := w.writeAndClose(out, sampleReport())

	if !errors.Is(err, errDisk) {
		t.Fatalf("got %v, want close error %v", err, errDisk)
	}
	if !out.closed {
		t.Error("expected output to be closed")
	}

	ok := &failingCloser{}
	if err := w.writeAndClose(ok, sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(ok.String(), "# Broker,Zerodha") {
		t.Errorf("expected metadata in output, got:\n%s", ok.String())
	}
}
