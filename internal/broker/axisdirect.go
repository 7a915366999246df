package broker

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/contract-note-reconciler/internal/aggregate"
	"github.com/insightdelivered/contract-note-reconciler/internal/dates"
	"github.com/insightdelivered/contract-note-reconciler/internal/ledger"
	"github.com/insightdelivered/contract-note-reconciler/internal/models"
	"github.com/insightdelivered/contract-note-reconciler/internal/numeric"
	"github.com/insightdelivered/contract-note-reconciler/internal/selector"
)

// Axis Direct summary fields.
const (
	AxisBrokerage       = "Brokerage"
	AxisExchangeCharges = "Exchange Charges"
	AxisSEBIFees        = "SEBI Fees"
	AxisStampDuty       = "Stamp Duty"
	AxisSTT             = "STT"
	AxisGST             = "GST"
	AxisTotal           = "Total"
	AxisReportedTotal   = "Reported Total"
	AxisDifference      = "Difference"
)

// axisChargeFields is the schema order of the per-category charge fields.
var axisChargeFields = []string{AxisBrokerage, AxisExchangeCharges, AxisSEBIFees, AxisStampDuty, AxisSTT, AxisGST}

// axisCharges maps summary row labels (lower case substrings) to fields. A
// row goes to the first entry it matches, so taxes come first: "GST on
// Brokerage" is GST. All GST lines add up.
var axisCharges = []struct {
	field  string
	labels []string
}{
	{AxisGST, []string{"gst"}},
	{AxisSTT, []string{"securities transaction tax", "stt"}},
	{AxisBrokerage, []string{"brokerage"}},
	{AxisExchangeCharges, []string{"exchange"}},
	{AxisSEBIFees, []string{"sebi"}},
	{AxisStampDuty, []string{"stamp"}},
}

const axisNetLabel = "net amount"

// AxisDirect returns the definition for Axis Direct contract notes: files
// named DDMMYYYY before the extension, a two column Particulars/Amount
// summary anywhere in the note (the last one wins), ledger dates as text and
// only Bill vouchers posted.
func AxisDirect() Definition {
	fields := append([]string(nil), axisChargeFields...)
	fields = append(fields, AxisTotal, AxisReportedTotal, AxisDifference)

	return Definition{
		Key:               "axisdirect",
		Name:              "AxisDirect",
		DatePatterns:      []dates.Pattern{dates.PatternDMYCompact},
		LedgerDateColumn:  "Voucher Date",
		LedgerDateFormat:  "%d-%m-%Y",
		LedgerFilters:     []ledger.FilterRule{{Column: "Voucher Type", Equals: "Bill"}},
		ChargesDateColumn: "Date",
		Fields:            fields,
		TrailingPages:     0,
		Policy:            selector.LastMatch,
		OnError:           aggregate.SkipDocument,
		Match:             axisMatch,
		NewPostProcess:    axisSummary,
	}
}

func axisMatch(t *models.Table) selector.Tag {
	rows, cols := t.Shape()
	if cols != 2 || rows < 2 {
		return selector.TagNone
	}
	if !strings.HasPrefix(strings.ToLower(t.Columns[0]), "particular") ||
		!strings.Contains(strings.ToLower(t.Columns[1]), "amount") {
		return selector.TagNone
	}
	return selector.TagSummary
}

func axisSummary(n *numeric.Normalizer) aggregate.PostProcessFunc {
	return func(path, date string, t *models.Table) (models.SummaryRecord, error) {
		cells := make(map[string][]numeric.Cell, len(axisCharges))
		var reported *numeric.Cell

		for _, row := range t.Rows {
			label := strings.ToLower(strings.TrimSpace(row[0]))
			if label == "" {
				continue
			}
			if strings.Contains(label, axisNetLabel) {
				c := n.Normalize(row[1])
				reported = &c
				continue
			}
			for _, ch := range axisCharges {
				if containsAny(label, ch.labels) {
					cells[ch.field] = append(cells[ch.field], n.Normalize(row[1]))
					break
				}
			}
		}

		if reported == nil {
			return models.SummaryRecord{}, &models.FieldError{Field: AxisReportedTotal, Err: models.ErrColumnMissing}
		}
		reportedTotal, err := reported.Fixed()
		if err != nil {
			return models.SummaryRecord{}, &models.FieldError{Field: AxisReportedTotal, Err: err}
		}

		values := make(map[string]decimal.Decimal, len(axisCharges)+3)
		total := decimal.Zero
		for _, field := range axisChargeFields {
			// a missing line means no such charge on the day
			sum, err := numeric.Sum(cells[field]...)
			if err != nil {
				return models.SummaryRecord{}, &models.FieldError{Field: field, Err: err}
			}
			values[field] = sum.Round(numeric.FixedPlaces)
			total = total.Add(values[field])
		}
		values[AxisTotal] = total
		values[AxisReportedTotal] = reportedTotal
		values[AxisDifference] = reportedTotal.Sub(total)

		return models.SummaryRecord{Date: date, Document: path, Values: values}, nil
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
