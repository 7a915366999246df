package sheet

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/contract-note-reconciler/internal/dates"
	"github.com/insightdelivered/contract-note-reconciler/internal/models"
	"github.com/insightdelivered/contract-note-reconciler/internal/numeric"
)

// DocumentColumn holds the originating contract note of each record.
const DocumentColumn = "Document"

// AggregateStore persists a charges aggregate as one sheet: the date column,
// the broker's fields in order, then the document path.
type AggregateStore struct {
	log zerolog.Logger
}

// NewAggregateStore returns a store that logs loads and saves.
func NewAggregateStore(log zerolog.Logger) *AggregateStore {
	return &AggregateStore{log: log}
}

// Load reads a previously saved aggregate. A missing file is reported with
// found=false and no error. The header must carry exactly the date column and
// fields (the document column is optional); any value that is not a decimal
// is an error.
func (s *AggregateStore) Load(path, dateColumn string, fields []string) (agg *models.ChargesAggregate, found bool, err error) {
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		return nil, false, nil
	}

	s.log.Info().Str("file", path).Msg("reading charges aggregate file")
	sh, err := Read(path)
	if err != nil {
		return nil, true, err
	}

	agg = models.NewChargesAggregate(dateColumn, fields)
	if len(sh.Header) == 0 {
		return agg, true, nil
	}

	dateIdx, ok := sh.Index(dateColumn)
	if !ok {
		return nil, true, fmt.Errorf("%s: %w", path, &models.FieldError{Field: dateColumn, Err: models.ErrSchemaMismatch})
	}
	fieldIdx := make([]int, len(fields))
	for i, f := range fields {
		idx, ok := sh.Index(f)
		if !ok {
			return nil, true, fmt.Errorf("%s: %w", path, &models.FieldError{Field: f, Err: models.ErrSchemaMismatch})
		}
		fieldIdx[i] = idx
	}
	if extra := len(sh.Header) - len(fields) - 1; extra > 0 {
		if _, hasDoc := sh.Index(DocumentColumn); !hasDoc || extra > 1 {
			return nil, true, fmt.Errorf("%s: %w: header %q has columns outside %q", path, models.ErrSchemaMismatch, sh.Header, fields)
		}
	}
	docIdx, hasDoc := sh.Index(DocumentColumn)

	for r, row := range sh.Rows {
		date, err := dates.NormalizeLedgerDate(row[dateIdx], "")
		if err != nil {
			return nil, true, fmt.Errorf("%s row %d: %w", path, r+2, err)
		}
		rec := models.SummaryRecord{Date: date, Values: make(map[string]decimal.Decimal, len(fields))}
		for i, f := range fields {
			cell, err := numeric.ToFixed(row[fieldIdx[i]], false)
			if err != nil {
				return nil, true, fmt.Errorf("%s row %d: %w", path, r+2, &models.FieldError{Field: f, Err: err})
			}
			rec.Values[f] = cell.Value
		}
		if hasDoc {
			rec.Document = row[docIdx]
		}
		if err := agg.Add(rec); err != nil {
			return nil, true, fmt.Errorf("%s row %d: %w", path, r+2, err)
		}
	}

	s.log.Info().Str("file", path).Int("records", agg.Len()).Msg("charges aggregate loaded")
	return agg, true, nil
}

// Save writes the whole aggregate to path, replacing any previous file.
func (s *AggregateStore) Save(path string, agg *models.ChargesAggregate) error {
	header := append([]string{agg.DateColumn}, agg.Fields...)
	header = append(header, DocumentColumn)

	sh := &Sheet{Header: header, NumericColumns: make(map[string]bool, len(agg.Fields))}
	for _, f := range agg.Fields {
		sh.NumericColumns[f] = true
	}
	for _, rec := range agg.Records {
		row := make([]string, 0, len(header))
		row = append(row, rec.Date)
		for _, f := range agg.Fields {
			row = append(row, rec.Values[f].String())
		}
		row = append(row, rec.Document)
		sh.Rows = append(sh.Rows, row)
	}

	if err := Write(path, sh); err != nil {
		return err
	}
	s.log.Info().Str("file", path).Int("records", agg.Len()).Msg("charges aggregate written")
	return nil
}
