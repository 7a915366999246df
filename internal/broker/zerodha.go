package broker

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/contract-note-reconciler/internal/aggregate"
	"github.com/insightdelivered/contract-note-reconciler/internal/dates"
	"github.com/insightdelivered/contract-note-reconciler/internal/models"
	"github.com/insightdelivered/contract-note-reconciler/internal/numeric"
	"github.com/insightdelivered/contract-note-reconciler/internal/selector"
)

// Zerodha summary columns. Older notes have no T+1 settlement column.
const (
	ZerodhaEquity            = "Equity"
	ZerodhaEquityT1          = "Equity (T+1)"
	ZerodhaFuturesAndOptions = "Futures and Options"
	ZerodhaNetTotal          = "NET TOTAL"

	// Derived from the NET TOTAL column.
	ZerodhaObligation = "Obligation"
	ZerodhaNetAmount  = "Net Amount"
	ZerodhaDifference = "Difference"
)

// zerodhaSummaryRows is the height of the summary table: the pay-in/pay-out
// obligation, nine charge lines and the net amount.
const zerodhaSummaryRows = 11

var zerodhaChargeColumns = []string{ZerodhaEquity, ZerodhaEquityT1, ZerodhaFuturesAndOptions, ZerodhaNetTotal}

// Zerodha returns the definition for Zerodha contract notes: files named by
// ISO date, the summary on one of the last two pages, ledger dates native.
func Zerodha() Definition {
	return Definition{
		Key:               "zerodha",
		Name:              "Zerodha",
		DatePatterns:      []dates.Pattern{dates.PatternISO},
		LedgerDateColumn:  "Posting Date",
		ChargesDateColumn: "Date",
		Fields:            append(append([]string(nil), zerodhaChargeColumns...), ZerodhaObligation, ZerodhaNetAmount, ZerodhaDifference),
		TrailingPages:     2,
		Policy:            selector.FirstMatch,
		OnError:           aggregate.FailFast,
		Match:             zerodhaMatch,
		NewPostProcess:    zerodhaSummary,
	}
}

// zerodhaMatch accepts the 11-row summary with 4 or 5 columns whose first
// row carries a label under the blank header.
func zerodhaMatch(t *models.Table) selector.Tag {
	rows, cols := t.Shape()
	if rows != zerodhaSummaryRows || (cols != 4 && cols != 5) {
		return selector.TagNone
	}
	idx, ok := t.Column("")
	if !ok || strings.TrimSpace(t.Rows[0][idx]) == "" {
		return selector.TagNone
	}
	return selector.TagSummary
}

func zerodhaSummary(n *numeric.Normalizer) aggregate.PostProcessFunc {
	return func(path, date string, t *models.Table) (models.SummaryRecord, error) {
		t = t.Clone()
		if _, ok := t.Column(ZerodhaEquityT1); !ok {
			t.InsertColumn(len(t.Columns), ZerodhaEquityT1)
		}
		last := len(t.Rows) - 1
		if last < 2 {
			return models.SummaryRecord{}, &models.FieldError{Field: ZerodhaNetTotal, Err: models.ErrColumnMissing}
		}

		values := make(map[string]decimal.Decimal, 7)
		for _, col := range zerodhaChargeColumns {
			idx, ok := t.Column(col)
			if !ok {
				return models.SummaryRecord{}, &models.FieldError{Field: col, Err: models.ErrColumnMissing}
			}
			cells := make([]numeric.Cell, 0, last-1)
			for r := 1; r < last; r++ {
				cells = append(cells, n.Normalize(t.Rows[r][idx]))
			}
			sum, err := numeric.Sum(cells...)
			if err != nil {
				return models.SummaryRecord{}, &models.FieldError{Field: col, Err: err}
			}
			values[col] = sum.Round(numeric.FixedPlaces)
		}

		netIdx, _ := t.Column(ZerodhaNetTotal)
		obligation, err := n.Normalize(t.Rows[0][netIdx]).Fixed()
		if err != nil {
			return models.SummaryRecord{}, &models.FieldError{Field: ZerodhaObligation, Err: err}
		}
		net, err := n.Normalize(t.Rows[last][netIdx]).Fixed()
		if err != nil {
			return models.SummaryRecord{}, &models.FieldError{Field: ZerodhaNetAmount, Err: err}
		}
		values[ZerodhaObligation] = obligation
		values[ZerodhaNetAmount] = net
		values[ZerodhaDifference] = net.Sub(obligation.Add(values[ZerodhaNetTotal]))

		return models.SummaryRecord{Date: date, Document: path, Values: values}, nil
	}
}
