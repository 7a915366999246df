// Package reconcile joins the ledger and the charges aggregate on date and
// reports the dates one side has and the other lacks.
package reconcile

import (
	"fmt"
	"sort"

	"github.com/insightdelivered/contract-note-reconciler/internal/models"
)

// Row is one outer-join row. An empty date means that side had no row for
// the join date.
type Row struct {
	LedgerDate  string                `json:"ledgerDate,omitempty"`
	ChargesDate string                `json:"chargesDate,omitempty"`
	Ledger      *models.LedgerRecord  `json:"ledger,omitempty"`
	Charges     *models.SummaryRecord `json:"charges,omitempty"`
}

// Date returns the join date, whichever side carries it.
func (r Row) Date() string {
	if r.LedgerDate != "" {
		return r.LedgerDate
	}
	return r.ChargesDate
}

// Mismatched reports whether the two dates differ, one being absent included.
// This is the only definition of a gap.
func (r Row) Mismatched() bool {
	return r.LedgerDate != r.ChargesDate
}

// Reconcile performs a full outer join of ledger and charges on date. Every
// ledger record and every charges record appears at least once; a date with
// several ledger records yields one row per record. Rows are ordered by date.
func Reconcile(ledger *models.LedgerDataset, charges *models.ChargesAggregate) []Row {
	byDate := make(map[string][]*models.LedgerRecord)
	keys := make(map[string]struct{})

	if ledger != nil {
		for i := range ledger.Records {
			rec := &ledger.Records[i]
			byDate[rec.Date] = append(byDate[rec.Date], rec)
			keys[rec.Date] = struct{}{}
		}
	}
	chargesByDate := make(map[string]*models.SummaryRecord)
	if charges != nil {
		for i := range charges.Records {
			rec := &charges.Records[i]
			chargesByDate[rec.Date] = rec
			keys[rec.Date] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var rows []Row
	for _, date := range sorted {
		c := chargesByDate[date]
		ls := byDate[date]
		if len(ls) == 0 {
			rows = append(rows, Row{ChargesDate: date, Charges: c})
			continue
		}
		for _, l := range ls {
			row := Row{LedgerDate: date, Ledger: l}
			if c != nil {
				row.ChargesDate = date
				row.Charges = c
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// FindMismatches keeps the rows whose two dates differ.
func FindMismatches(rows []Row) []Row {
	var out []Row
	for _, r := range rows {
		if r.Mismatched() {
			out = append(out, r)
		}
	}
	return out
}

// Kind says which way a gap points.
type Kind string

const (
	// MissingInLedger: a contract note exists but the ledger has no posting.
	MissingInLedger Kind = "missing_in_ledger"
	// MissingInCharges: the ledger has a posting but no contract note was
	// aggregated for that date.
	MissingInCharges Kind = "missing_in_charges"
	// DateConflict: both dates present but different.
	DateConflict Kind = "date_conflict"
)

// Finding is one actionable gap: the named report lacks an entry for Date.
type Finding struct {
	Kind        Kind   `json:"kind"`
	Date        string `json:"date"`
	MissingFrom string `json:"missingFrom,omitempty"`
	Message     string `json:"message"`
}

// Report labels every mismatched row with the direction of the gap.
// ledgerReport and chargesReport name the two sources in messages.
func Report(rows []Row, ledgerReport, chargesReport string) []Finding {
	var findings []Finding
	for _, r := range FindMismatches(rows) {
		switch {
		case r.LedgerDate == "":
			findings = append(findings, Finding{
				Kind:        MissingInLedger,
				Date:        r.ChargesDate,
				MissingFrom: ledgerReport,
				Message:     fmt.Sprintf("Report '%s' has missing entry for date %s", ledgerReport, r.ChargesDate),
			})
		case r.ChargesDate == "":
			findings = append(findings, Finding{
				Kind:        MissingInCharges,
				Date:        r.LedgerDate,
				MissingFrom: chargesReport,
				Message:     fmt.Sprintf("Report '%s' has missing entry for date %s", chargesReport, r.LedgerDate),
			})
		default:
			findings = append(findings, Finding{
				Kind:    DateConflict,
				Date:    r.LedgerDate,
				Message: fmt.Sprintf("'%s' date %s joined to '%s' date %s", ledgerReport, r.LedgerDate, chargesReport, r.ChargesDate),
			})
		}
	}
	return findings
}

// Summary counts join rows by outcome.
type Summary struct {
	Matched     int `json:"matched"`
	LedgerOnly  int `json:"ledgerOnly"`
	ChargesOnly int `json:"chargesOnly"`
}

// Summarize counts rows by outcome.
func Summarize(rows []Row) Summary {
	var s Summary
	for _, r := range rows {
		switch {
		case !r.Mismatched():
			s.Matched++
		case r.ChargesDate == "":
			s.LedgerOnly++
		case r.LedgerDate == "":
			s.ChargesOnly++
		}
	}
	return s
}
