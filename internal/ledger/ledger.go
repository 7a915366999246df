// Package ledger loads a broker's financial ledger export and keeps the rows
// that record trading charges.
package ledger

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/insightdelivered/contract-note-reconciler/internal/dates"
	"github.com/insightdelivered/contract-note-reconciler/internal/models"
	"github.com/insightdelivered/contract-note-reconciler/internal/sheet"
)

// Filter keeps a ledger row when it returns true.
type Filter func(models.LedgerRecord) bool

// FilterRule is a declarative row filter as written in configuration. Exactly
// one of Equals, Contains, Matches or NotEmpty is expected; when several are
// set all must hold.
type FilterRule struct {
	Column   string `yaml:"column"`
	Equals   string `yaml:"equals"`
	Contains string `yaml:"contains"`
	Matches  string `yaml:"matches"`
	NotEmpty bool   `yaml:"not_empty"`
}

// Compile turns the rule into a Filter.
func (s FilterRule) Compile() (Filter, error) {
	if s.Column == "" {
		return nil, fmt.Errorf("ledger filter has no column")
	}
	if s.Equals == "" && s.Contains == "" && s.Matches == "" && !s.NotEmpty {
		return nil, fmt.Errorf("ledger filter on %q has no condition", s.Column)
	}

	var re *regexp.Regexp
	if s.Matches != "" {
		var err error
		if re, err = regexp.Compile(s.Matches); err != nil {
			return nil, fmt.Errorf("ledger filter on %q: %w", s.Column, err)
		}
	}

	return func(r models.LedgerRecord) bool {
		v := strings.TrimSpace(r.Get(s.Column))
		if s.Equals != "" && v != s.Equals {
			return false
		}
		if s.Contains != "" && !strings.Contains(v, s.Contains) {
			return false
		}
		if re != nil && !re.MatchString(v) {
			return false
		}
		if s.NotEmpty && v == "" {
			return false
		}
		return true
	}, nil
}

// All combines filters; a row must pass every one.
func All(filters ...Filter) Filter {
	return func(r models.LedgerRecord) bool {
		for _, f := range filters {
			if f != nil && !f(r) {
				return false
			}
		}
		return true
	}
}

// Options configures one ledger load.
type Options struct {
	// DateColumn names the posting date column.
	DateColumn string
	// DateLayout is the Go layout of text dates; empty for native dates.
	DateLayout string
	// Filter drops rows that are not charge postings. Nil keeps everything.
	Filter Filter
	// StartDate and EndDate bound the rows kept to [StartDate, EndDate).
	StartDate, EndDate string
}

// Loader reads ledger files.
type Loader struct {
	log zerolog.Logger
}

// NewLoader returns a Loader.
func NewLoader(log zerolog.Logger) *Loader {
	return &Loader{log: log}
}

// Load reads the whole ledger at path, converts the date column to ISO form
// and applies the row filter and date bounds.
func (l *Loader) Load(path string, opts Options) (*models.LedgerDataset, error) {
	if opts.DateColumn == "" {
		return nil, fmt.Errorf("ledger date column is not configured")
	}

	sh, err := sheet.Read(path)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	dateIdx, ok := sh.Index(opts.DateColumn)
	if !ok {
		return nil, fmt.Errorf("ledger %s: %w", path, &models.FieldError{Field: opts.DateColumn, Err: models.ErrColumnMissing})
	}

	ds := &models.LedgerDataset{DateColumn: opts.DateColumn, Columns: sh.Header}
	dropped, undated := 0, 0
	for i, row := range sh.Rows {
		date, err := dates.NormalizeLedgerDate(row[dateIdx], opts.DateLayout)
		if errors.Is(err, dates.ErrNoDate) {
			undated++
			l.log.Debug().Str("file", path).Int("row", i+1).Str("first_cell", firstCell(row)).Msg("skipping undated ledger row")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("ledger %s row %d: %w", path, i+1, &models.FieldError{Field: opts.DateColumn, Err: err})
		}

		rec := models.LedgerRecord{Date: date, Row: i + 1, Values: make(map[string]string, len(sh.Header))}
		for c, h := range sh.Header {
			rec.Values[h] = row[c]
		}
		rec.Values[opts.DateColumn] = date

		if !dates.InRange(date, opts.StartDate, opts.EndDate) || (opts.Filter != nil && !opts.Filter(rec)) {
			dropped++
			continue
		}
		ds.Records = append(ds.Records, rec)
	}

	l.log.Info().
		Str("file", path).
		Int("rows", len(sh.Rows)).
		Int("kept", len(ds.Records)).
		Int("dropped", dropped).
		Int("undated", undated).
		Msg("ledger loaded")
	return ds, nil
}

func firstCell(row []string) string {
	if len(row) == 0 {
		return ""
	}
	return row[0]
}
