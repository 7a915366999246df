package models

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// SummaryRecord is the charge summary of one contract note: its trade date
// and one value per broker field.
type SummaryRecord struct {
	Date     string                     `json:"date"`
	Document string                     `json:"document,omitempty"`
	Values   map[string]decimal.Decimal `json:"values"`
}

// Value returns the named field, zero when absent.
func (r SummaryRecord) Value(field string) decimal.Decimal {
	return r.Values[field]
}

// ChargesAggregate is the ordered set of summary records for one broker,
// unique by date. All records carry exactly the Fields set.
type ChargesAggregate struct {
	DateColumn string          `json:"dateColumn"`
	Fields     []string        `json:"fields"`
	Records    []SummaryRecord `json:"records"`

	index map[string]int
}

// NewChargesAggregate returns an empty aggregate for the given schema.
func NewChargesAggregate(dateColumn string, fields []string) *ChargesAggregate {
	return &ChargesAggregate{
		DateColumn: dateColumn,
		Fields:     append([]string(nil), fields...),
		index:      make(map[string]int),
	}
}

// Len returns the number of records.
func (a *ChargesAggregate) Len() int {
	return len(a.Records)
}

// Has reports whether a record for date is present.
func (a *ChargesAggregate) Has(date string) bool {
	_, ok := a.index[date]
	return ok
}

// Get returns the record for date.
func (a *ChargesAggregate) Get(date string) (SummaryRecord, bool) {
	i, ok := a.index[date]
	if !ok {
		return SummaryRecord{}, false
	}
	return a.Records[i], true
}

// Dates returns a snapshot of the dates present, as a set.
func (a *ChargesAggregate) Dates() map[string]struct{} {
	set := make(map[string]struct{}, len(a.index))
	for d := range a.index {
		set[d] = struct{}{}
	}
	return set
}

// Validate checks that rec carries exactly the aggregate's fields.
func (a *ChargesAggregate) Validate(rec SummaryRecord) error {
	var missing, extra []string
	for _, f := range a.Fields {
		if _, ok := rec.Values[f]; !ok {
			missing = append(missing, f)
		}
	}
	known := make(map[string]bool, len(a.Fields))
	for _, f := range a.Fields {
		known[f] = true
	}
	for f := range rec.Values {
		if !known[f] {
			extra = append(extra, f)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	return fmt.Errorf("%w: record for %s missing %q, unexpected %q", ErrSchemaMismatch, rec.Date, missing, extra)
}

// Add appends rec after checking its schema and that its date is new.
func (a *ChargesAggregate) Add(rec SummaryRecord) error {
	if rec.Date == "" {
		return fmt.Errorf("%w: record has no date", ErrSchemaMismatch)
	}
	if err := a.Validate(rec); err != nil {
		return err
	}
	if a.index == nil {
		a.index = make(map[string]int)
	}
	if _, ok := a.index[rec.Date]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateDate, rec.Date)
	}
	a.index[rec.Date] = len(a.Records)
	a.Records = append(a.Records, rec)
	return nil
}

// LedgerRecord is one ledger row after date normalization. Row is the
// 1-based data row in the source sheet.
type LedgerRecord struct {
	Date   string            `json:"date"`
	Row    int               `json:"row"`
	Values map[string]string `json:"values"`
}

// Get returns the raw text of a ledger column.
func (r LedgerRecord) Get(column string) string {
	return r.Values[column]
}

// LedgerDataset is the filtered, date-normalized ledger.
type LedgerDataset struct {
	DateColumn string         `json:"dateColumn"`
	Columns    []string       `json:"columns"`
	Records    []LedgerRecord `json:"records"`
}
